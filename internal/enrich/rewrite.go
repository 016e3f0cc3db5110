package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/anthropic"
)

const rewriteSystem = `You improve short public-figure biographies for a creator directory. Respond with one JSON object only: {"bio": "...", "category": "...", "topics": ["..."]}. Keep the bio factual, third person, 2-4 sentences. Never invent facts not implied by the input.`

type rewriteResult struct {
	Bio      string   `json:"bio"`
	Category string   `json:"category"`
	Topics   []string `json:"topics"`
}

// rewriteBio asks the writer model to expand a thin biography and suggest a
// corrected category and topics. Any failure returns nil and the caller keeps
// the existing text.
func (e *Enricher) rewriteBio(ctx context.Context, v *model.VerifiedProfile) *rewriteResult {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", v.Name)
	if v.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", v.Title)
	}
	if v.Category != "" {
		fmt.Fprintf(&sb, "Current category: %s\n", v.Category)
	}
	if len(v.Topics) > 0 {
		fmt.Fprintf(&sb, "Known topics: %s\n", strings.Join(v.Topics, ", "))
	}
	if v.Channel != nil {
		fmt.Fprintf(&sb, "YouTube channel: %s (%d subscribers)\n", v.Channel.Title, v.Channel.SubscriberCount)
	}
	if len(v.Books) > 0 {
		titles := make([]string, 0, len(v.Books))
		for _, b := range v.Books {
			titles = append(titles, b.Title)
		}
		fmt.Fprintf(&sb, "Published books: %s\n", strings.Join(titles, "; "))
	}
	if v.Bio != "" {
		fmt.Fprintf(&sb, "Existing bio: %s\n", v.Bio)
	} else {
		sb.WriteString("Existing bio: none\n")
	}

	resp, err := e.writer.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.writerModel,
		MaxTokens: rewriteTokenCap,
		System:    rewriteSystem,
		Messages: []anthropic.Message{
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		zap.L().Warn("bio rewrite failed, keeping existing text",
			zap.String("subject", v.Name), zap.Error(err))
		return nil
	}
	if e.costs != nil {
		e.costs.RecordWriter(e.writerModel, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	text := resp.Text()
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		zap.L().Warn("bio rewrite returned no JSON", zap.String("subject", v.Name))
		return nil
	}

	var result rewriteResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		zap.L().Warn("bio rewrite unparseable",
			zap.String("subject", v.Name), zap.Error(err))
		return nil
	}
	return &result
}
