package syncer

import "github.com/creatorindex/profile-cli/internal/model"

// fillGaps copies a candidate value into the stored profile only when the
// stored field is empty, and returns the names of the fields it filled.
func fillGaps(stored *model.EnrichedProfile, candidate *model.CandidateProfile) []string {
	var filled []string
	fill := func(field string, dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			filled = append(filled, field)
		}
	}

	fill("title", &stored.Title, candidate.Title)
	fill("gender", &stored.Gender, candidate.Gender)
	fill("category", &stored.Category, candidate.Category)
	fill("region", &stored.Region, candidate.Region)
	fill("country", &stored.Country, candidate.Country)
	fill("bio", &stored.Bio, candidate.Bio)
	fill("image_url", &stored.ImageURL, candidate.ImageURL)

	if len(stored.Languages) == 0 && len(candidate.Languages) > 0 {
		stored.Languages = candidate.Languages
		filled = append(filled, "languages")
	}
	if len(stored.Topics) == 0 && len(candidate.Topics) > 0 {
		stored.Topics = candidate.Topics
		filled = append(filled, "topics")
	}

	if stored.SocialLinks == nil {
		stored.SocialLinks = make(map[model.LinkKind]string)
	}
	for _, kind := range model.AllLinkKinds {
		if stored.SocialLinks[kind] != "" {
			continue
		}
		if hint := candidate.Links.Get(kind); hint != "" {
			stored.SocialLinks[kind] = hint
			filled = append(filled, "social_links."+string(kind))
		}
	}

	if stored.YouTube == nil && candidate.Channel != nil && candidate.Channel.ChannelID != "" {
		stored.YouTube = &model.YouTubeBlock{
			ChannelID:       candidate.Channel.ChannelID,
			URL:             "https://www.youtube.com/channel/" + candidate.Channel.ChannelID,
			Title:           candidate.Channel.Title,
			SubscriberCount: candidate.Channel.SubscriberCount,
			VideoCount:      candidate.Channel.VideoCount,
		}
		filled = append(filled, "youtube")
	}

	if len(stored.Books) == 0 && len(candidate.Books) > 0 {
		stored.Books = candidate.Books
		filled = append(filled, "books")
	}
	if len(stored.Courses) == 0 && len(candidate.Courses) > 0 {
		stored.Courses = candidate.Courses
		filled = append(filled, "courses")
	}
	if len(stored.AudioBooks) == 0 && len(candidate.AudioBooks) > 0 {
		stored.AudioBooks = candidate.AudioBooks
		filled = append(filled, "audio_books")
	}
	if len(stored.EBooks) == 0 && len(candidate.EBooks) > 0 {
		stored.EBooks = candidate.EBooks
		filled = append(filled, "ebooks")
	}
	if stored.Historical == nil && candidate.Historical != nil {
		stored.Historical = candidate.Historical
		filled = append(filled, "historical")
	}
	if len(stored.Articles) == 0 && len(candidate.Articles) > 0 {
		stored.Articles = candidate.Articles
		filled = append(filled, "articles")
	}

	return filled
}
