package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/creatorindex/profile-cli/internal/cost"
	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/anthropic"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestEnrichAssemblesProfile(t *testing.T) {
	v := verified(func(v *model.VerifiedProfile) {
		v.DisplayName = "Jane Doe"
		v.Bio = "Jane Doe teaches woodworking to a large online audience and has done so for a decade."
		v.Region = "Oregon"
		v.Channel = &model.ChannelStats{
			ChannelID:       "UCjanedoe",
			Title:           "Jane Doe Woodworks",
			SubscriberCount: 120000,
			VideoCount:      340,
		}
		v.Verification.YouTubeVerified = true
		v.Verification.PodcastVerified = true
		v.VerifiedLinks[model.LinkYouTube] = &model.VerifiedLink{
			Kind:            model.LinkYouTube,
			URL:             "https://www.youtube.com/channel/UCjanedoe",
			ChannelID:       "UCjanedoe",
			SubscriberCount: 120000,
		}
		v.VerifiedLinks[model.LinkPodcast] = &model.VerifiedLink{
			Kind:         model.LinkPodcast,
			URL:          "https://anchor.fm/s/jane-doe/podcast/rss",
			FeedTitle:    "Workshop Talk",
			EpisodeCount: 52,
		}
		v.VerifiedLinks[model.LinkWebsite] = &model.VerifiedLink{
			Kind: model.LinkWebsite,
			URL:  "https://janedoe.example.com",
		}
		v.RecentUploads = []model.VideoSummary{
			{VideoID: "vid-9", Title: "Cutting Dovetails"},
			{VideoID: "vid-8", Title: "Sharpening Basics"},
		}
		v.Sources = []string{"youtube", "research"}
	})

	out := New().Enrich(context.Background(), v)

	require.NotNil(t, out)
	assert.Equal(t, "Jane Doe", out.DisplayName)
	assert.Equal(t, model.ConfidenceHigh, out.Confidence)
	assert.Equal(t, model.TierVerified, out.Tier)

	require.NotNil(t, out.YouTube)
	assert.Equal(t, "UCjanedoe", out.YouTube.ChannelID)
	assert.Equal(t, int64(120000), out.YouTube.SubscriberCount)
	assert.Equal(t, "Jane Doe Woodworks", out.YouTube.Title)
	assert.Equal(t, int64(340), out.YouTube.VideoCount)
	require.Len(t, out.YouTube.RecentUploads, 2)
	assert.Equal(t, "vid-9", out.YouTube.RecentUploads[0].VideoID)

	require.NotNil(t, out.Podcast)
	assert.Equal(t, "Workshop Talk", out.Podcast.Title)
	assert.Equal(t, 52, out.Podcast.EpisodeCount)

	assert.Equal(t, "https://janedoe.example.com", out.SocialLinks[model.LinkWebsite])
	assert.Equal(t, []string{"youtube", "research"}, out.DataSources)
	assert.False(t, out.Pipeline.EnrichedAt.IsZero())
}

func TestEnrichCatalogBooksBeatClaims(t *testing.T) {
	v := verified(func(v *model.VerifiedProfile) {
		v.Books = []model.Book{{Title: "Real Book", ISBN: "123"}}
		v.ClaimedBooks = []string{"Claimed Book"}
	})

	out := New().Enrich(context.Background(), v)

	require.Len(t, out.Books, 1)
	assert.Equal(t, "Real Book", out.Books[0].Title)
}

func TestEnrichClaimedBooksWhenNoCatalogMatch(t *testing.T) {
	v := verified(func(v *model.VerifiedProfile) {
		v.ClaimedBooks = []string{"Only Claimed"}
	})

	out := New().Enrich(context.Background(), v)

	require.Len(t, out.Books, 1)
	assert.Equal(t, "Only Claimed", out.Books[0].Title)
	assert.Empty(t, out.Books[0].ISBN)
}

func TestEnrichRewritesThinBio(t *testing.T) {
	writer := &mockWriter{}
	writer.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{
			Type: "text",
			Text: `{"bio": "Jane Doe is a woodworker who teaches joinery online.", "category": "crafts", "topics": ["woodworking", "joinery"]}`,
		}},
	}, nil)

	v := verified(func(v *model.VerifiedProfile) {
		v.Bio = "short bio"
		v.Region = "Oregon"
	})

	out := New(WithWriter(writer, "test-model")).Enrich(context.Background(), v)

	assert.Equal(t, "Jane Doe is a woodworker who teaches joinery online.", out.Bio)
	assert.Equal(t, "crafts", out.Category)
	assert.Equal(t, []string{"woodworking", "joinery"}, out.Topics)
	writer.AssertExpectations(t)
}

func TestEnrichRewriteRecordsWriterCost(t *testing.T) {
	writer := &mockWriter{}
	writer.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"bio": "Rewritten."}`}},
		Usage:   anthropic.TokenUsage{InputTokens: 400, OutputTokens: 120},
	}, nil)

	tracker := cost.NewTracker(cost.DefaultRates())
	v := verified(func(v *model.VerifiedProfile) {
		v.Bio = "short bio"
	})

	New(WithWriter(writer, "test-model"), WithCostTracker(tracker)).Enrich(context.Background(), v)

	sum := tracker.Summary()
	assert.Equal(t, 1, sum.WriterCalls)
	assert.Equal(t, int64(400), sum.WriterInput)
	assert.Equal(t, int64(120), sum.WriterOutput)
}

func TestEnrichRewriteFailureKeepsExistingBio(t *testing.T) {
	writer := &mockWriter{}
	writer.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	v := verified(func(v *model.VerifiedProfile) {
		v.Bio = "short bio"
	})

	out := New(WithWriter(writer, "test-model")).Enrich(context.Background(), v)

	assert.Equal(t, "short bio", out.Bio)
}

func TestEnrichSkipsRewriteForStrongProfiles(t *testing.T) {
	writer := &mockWriter{}

	v := verified(func(v *model.VerifiedProfile) {
		v.Bio = "A biography comfortably longer than one hundred characters, describing the subject's work, audience, channels, and published material in detail."
		v.Region = "Oregon"
		v.Verification.YouTubeVerified = true
		v.Verification.PodcastVerified = true
		v.VerifiedLinks[model.LinkWebsite] = &model.VerifiedLink{Kind: model.LinkWebsite}
	})

	out := New(WithWriter(writer, "test-model")).Enrich(context.Background(), v)

	assert.Equal(t, model.ConfidenceHigh, out.Confidence)
	writer.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}
