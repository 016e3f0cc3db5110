// Package validate implements the fourth pipeline stage: a set of independent
// data-quality checks that annotate the enriched profile with reviewable
// flags. Validation never mutates the profile and never blocks persistence.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/linkprobe"
)

const (
	minBioChars       = 50
	lowScoreThreshold = 40
	probeTimeout      = 10 * time.Second
)

// Validator runs the validation stage. A nil prober skips the link liveness
// re-check; every other check still runs.
type Validator struct {
	prober linkprobe.Prober
}

// New creates a Validator.
func New(prober linkprobe.Prober) *Validator {
	return &Validator{prober: prober}
}

// Validate runs every check independently and returns the flags a human
// reviewer should see. Links are re-probed here even though verification
// already probed them, because validation may run long after verification.
func (v *Validator) Validate(ctx context.Context, p *model.EnrichedProfile) []model.ProfileFlag {
	now := time.Now().UTC()
	var flags []model.ProfileFlag
	add := func(ft model.FlagType, sev model.Severity, field, message string) {
		flags = append(flags, model.ProfileFlag{
			Type:      ft,
			Severity:  sev,
			Field:     field,
			Message:   message,
			CreatedAt: now,
		})
	}

	if len(p.Name) < 2 {
		add(model.FlagMissingData, model.SeverityHigh, "name", "subject name is missing or trivial")
	}
	if len(p.Bio) < minBioChars {
		add(model.FlagMissingData, model.SeverityMedium, "bio",
			fmt.Sprintf("biography is %d characters, expected at least %d", len(p.Bio), minBioChars))
	}
	if p.ImageURL == "" {
		add(model.FlagMissingData, model.SeverityLow, "image_url", "no profile image")
	}

	switch len(p.DataSources) {
	case 0:
		add(model.FlagLowConfidence, model.SeverityHigh, "data_sources", "no external data sources contributed to this profile")
	case 1:
		add(model.FlagLowConfidence, model.SeverityLow, "data_sources",
			"only one provider contributed data: "+p.DataSources[0])
	}

	if v.prober != nil {
		for _, kind := range model.AllLinkKinds {
			url, ok := p.SocialLinks[kind]
			if !ok || url == "" {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			alive, status, err := v.prober.Probe(pctx, url)
			cancel()
			if err != nil || !alive {
				add(model.FlagInvalidLink, model.SeverityMedium, "social_links."+string(kind),
					fmt.Sprintf("link dead at validation time (status %d): %s", status, url))
			}
		}
	}

	if n := distinctNormalizedNames(p.NameVariants); n > 2 {
		add(model.FlagDataConflict, model.SeverityLow, "name",
			fmt.Sprintf("%d distinct name variants across sources", n))
	}

	if p.YouTube == nil && p.Podcast == nil && len(p.Books) == 0 {
		add(model.FlagMissingData, model.SeverityLow, "content",
			"no media channel or publication found")
	}

	if p.ConfidenceScore < lowScoreThreshold {
		add(model.FlagLowConfidence, model.SeverityMedium, "confidence_score",
			fmt.Sprintf("confidence score %d is below %d", p.ConfidenceScore, lowScoreThreshold))
	}

	return flags
}

func distinctNormalizedNames(variants []string) int {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if n := model.NormalizeName(v); n != "" {
			seen[n] = struct{}{}
		}
	}
	return len(seen)
}
