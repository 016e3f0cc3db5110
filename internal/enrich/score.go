package enrich

import "github.com/creatorindex/profile-cli/internal/model"

const (
	baseScore           = 50
	failedLinkThreshold = 2
)

// ScoreRule is one additive adjustment to the confidence score. Keeping the
// rules in a table makes the scoring policy auditable in one place.
type ScoreRule struct {
	Name  string
	Delta int
	When  func(v *model.VerifiedProfile) bool
}

var scoreRules = []ScoreRule{
	{
		Name:  "youtube_verified",
		Delta: 15,
		When:  func(v *model.VerifiedProfile) bool { return v.Verification.YouTubeVerified },
	},
	{
		Name:  "podcast_verified",
		Delta: 10,
		When:  func(v *model.VerifiedProfile) bool { return v.Verification.PodcastVerified },
	},
	{
		Name:  "website_valid",
		Delta: 10,
		When:  func(v *model.VerifiedProfile) bool { return v.VerifiedLinks[model.LinkWebsite] != nil },
	},
	{
		Name:  "twitter_valid",
		Delta: 5,
		When:  func(v *model.VerifiedProfile) bool { return v.VerifiedLinks[model.LinkTwitter] != nil },
	},
	{
		Name:  "instagram_valid",
		Delta: 5,
		When:  func(v *model.VerifiedProfile) bool { return v.VerifiedLinks[model.LinkInstagram] != nil },
	},
	{
		Name:  "has_books",
		Delta: 5,
		When:  func(v *model.VerifiedProfile) bool { return len(v.Books) > 0 || len(v.ClaimedBooks) > 0 },
	},
	{
		Name:  "missing_bio",
		Delta: -10,
		When:  func(v *model.VerifiedProfile) bool { return v.Bio == "" },
	},
	{
		Name:  "missing_region",
		Delta: -5,
		When:  func(v *model.VerifiedProfile) bool { return v.Region == "" && v.Country == "" },
	},
	{
		Name:  "many_dead_links",
		Delta: -10,
		When: func(v *model.VerifiedProfile) bool {
			return v.Verification.LinksInvalid > failedLinkThreshold
		},
	},
}

// Score applies every rule to the verified profile and clamps to [0,100].
// It also returns the names of the rules that fired, for the audit log.
func Score(v *model.VerifiedProfile) (int, []string) {
	score := baseScore
	var fired []string
	for _, rule := range scoreRules {
		if rule.When(v) {
			score += rule.Delta
			fired = append(fired, rule.Name)
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, fired
}
