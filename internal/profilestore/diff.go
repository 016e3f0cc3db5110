package profilestore

import (
	"github.com/creatorindex/profile-cli/internal/model"
)

// watchedField extracts one high-value field for version diffing. Only the
// watch list below is diffed; incidental fields (notes, audit timestamps)
// never produce change records.
type watchedField struct {
	name    string
	extract func(p *model.EnrichedProfile) any
}

var watchList = []watchedField{
	{"name", func(p *model.EnrichedProfile) any { return p.Name }},
	{"display_name", func(p *model.EnrichedProfile) any { return p.DisplayName }},
	{"bio", func(p *model.EnrichedProfile) any { return p.Bio }},
	{"image_url", func(p *model.EnrichedProfile) any { return p.ImageURL }},
	{"category", func(p *model.EnrichedProfile) any { return p.Category }},
	{"region", func(p *model.EnrichedProfile) any { return p.Region }},
	{"social_links.website", linkExtractor(model.LinkWebsite)},
	{"social_links.youtube", linkExtractor(model.LinkYouTube)},
	{"social_links.twitter", linkExtractor(model.LinkTwitter)},
	{"social_links.instagram", linkExtractor(model.LinkInstagram)},
	{"social_links.podcast", linkExtractor(model.LinkPodcast)},
	{"youtube.subscriber_count", func(p *model.EnrichedProfile) any {
		if p.YouTube == nil {
			return nil
		}
		return p.YouTube.SubscriberCount
	}},
	{"books", func(p *model.EnrichedProfile) any { return bookTitles(p.Books) }},
	{"confidence_score", func(p *model.EnrichedProfile) any { return p.ConfidenceScore }},
}

func linkExtractor(kind model.LinkKind) func(*model.EnrichedProfile) any {
	return func(p *model.EnrichedProfile) any {
		if p.SocialLinks == nil {
			return nil
		}
		if url, ok := p.SocialLinks[kind]; ok && url != "" {
			return url
		}
		return nil
	}
}

func bookTitles(books []model.Book) []string {
	if len(books) == 0 {
		return nil
	}
	titles := make([]string, len(books))
	for i, b := range books {
		titles[i] = b.Title
	}
	return titles
}

// ComputeChanges diffs two snapshots over the watch list. A nil prev (first
// version) yields no change records; the initial snapshot speaks for itself.
func ComputeChanges(prev, next *model.EnrichedProfile) []model.FieldChange {
	if prev == nil || next == nil {
		return nil
	}

	var changes []model.FieldChange
	for _, f := range watchList {
		oldVal := f.extract(prev)
		newVal := f.extract(next)
		if !valuesEqual(oldVal, newVal) {
			changes = append(changes, model.FieldChange{
				Field:    f.name,
				OldValue: oldVal,
				NewValue: newVal,
			})
		}
	}
	return changes
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok || bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}
