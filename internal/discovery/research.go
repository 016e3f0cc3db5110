package discovery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/internal/resilience"
	"github.com/creatorindex/profile-cli/pkg/research"
)

const researchSystemPrompt = `You are a research assistant that profiles public creators, authors, and educators. Respond with a single JSON object and nothing else: no markdown fences, no commentary.`

const researchPromptTemplate = `Research the public figure "%NAME%" and return a JSON object with exactly these fields (use null or omit any field you cannot confirm):
{
  "name": "canonical full name",
  "title": "short professional title",
  "gender": "male|female|other",
  "category": "primary creator category",
  "region": "region or state",
  "country": "country",
  "languages": ["languages they publish in"],
  "topics": ["main subject areas"],
  "bio": "2-4 sentence biography",
  "website": "official website URL",
  "youtube": "YouTube channel URL",
  "twitter": "Twitter/X profile URL",
  "instagram": "Instagram profile URL",
  "facebook": "Facebook page URL",
  "tiktok": "TikTok profile URL",
  "podcast": "podcast RSS or show URL",
  "spotify": "Spotify profile URL",
  "books": ["book titles they authored"],
  "courses": ["course titles they teach"],
  "audio_books": ["audiobook titles"],
  "ebooks": ["ebook titles"],
  "image_query": "search phrase for a portrait photo",
  "historical": {"lifespan": "YYYY-YYYY", "note": "why they are historical"} or null if living
}
Only include URLs you are confident exist. Do not invent links.`

// researchPayload mirrors the JSON contract with the free-text provider.
type researchPayload struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Gender     string   `json:"gender"`
	Category   string   `json:"category"`
	Region     string   `json:"region"`
	Country    string   `json:"country"`
	Languages  []string `json:"languages"`
	Topics     []string `json:"topics"`
	Bio        string   `json:"bio"`
	Website    string   `json:"website"`
	YouTube    string   `json:"youtube"`
	Twitter    string   `json:"twitter"`
	Instagram  string   `json:"instagram"`
	Facebook   string   `json:"facebook"`
	TikTok     string   `json:"tiktok"`
	Podcast    string   `json:"podcast"`
	Spotify    string   `json:"spotify"`
	Books      []string `json:"books"`
	Courses    []string `json:"courses"`
	AudioBooks []string `json:"audio_books"`
	EBooks     []string `json:"ebooks"`
	ImageQuery string   `json:"image_query"`
	Historical *struct {
		Lifespan string `json:"lifespan"`
		Note     string `json:"note"`
	} `json:"historical"`
}

func (r *researchPayload) links() model.LinkHints {
	return model.LinkHints{
		Website:   r.Website,
		YouTube:   r.YouTube,
		Twitter:   r.Twitter,
		Instagram: r.Instagram,
		Facebook:  r.Facebook,
		TikTok:    r.TikTok,
		Podcast:   r.Podcast,
		Spotify:   r.Spotify,
	}
}

// runResearch calls the free-text provider with a JSON-only contract. A parse
// failure degrades to an error the caller records as a note; it never reaches
// past the discovery stage.
func (d *Discoverer) runResearch(ctx context.Context, name string) (*researchPayload, error) {
	prompt := strings.ReplaceAll(researchPromptTemplate, "%NAME%", name)
	resp, err := resilience.DoVal(ctx, retryCfg("research", "chat_completion"), func(ctx context.Context) (*research.ChatCompletionResponse, error) {
		return d.providers.Research.ChatCompletion(ctx, research.ChatCompletionRequest{
			Messages: []research.Message{
				{Role: "system", Content: researchSystemPrompt},
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "research call failed")
	}
	if d.costs != nil {
		d.costs.RecordResearchQuery()
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("research returned no choices")
	}

	payload, err := parseResearchJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, eris.Wrap(err, "research response unparseable")
	}
	return payload, nil
}

// parseResearchJSON extracts the first JSON object from the response body,
// tolerating markdown fences and surrounding prose.
func parseResearchJSON(content string) (*researchPayload, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, eris.New("no JSON object in response")
	}

	var payload researchPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "decode research JSON")
	}
	return &payload, nil
}
