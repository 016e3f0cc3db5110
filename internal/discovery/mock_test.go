package discovery

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/creatorindex/profile-cli/pkg/books"
	"github.com/creatorindex/profile-cli/pkg/kgraph"
	"github.com/creatorindex/profile-cli/pkg/newsapi"
	"github.com/creatorindex/profile-cli/pkg/podcastindex"
	"github.com/creatorindex/profile-cli/pkg/research"
	"github.com/creatorindex/profile-cli/pkg/youtube"
)

type mockYouTube struct {
	mock.Mock
}

func (m *mockYouTube) SearchChannel(ctx context.Context, query string) (*youtube.Channel, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*youtube.Channel), args.Error(1)
}

func (m *mockYouTube) GetChannelByID(ctx context.Context, channelID string) (*youtube.Channel, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*youtube.Channel), args.Error(1)
}

func (m *mockYouTube) GetRecentVideos(ctx context.Context, channelID string, n int) ([]youtube.Video, error) {
	args := m.Called(ctx, channelID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]youtube.Video), args.Error(1)
}

type mockBooks struct {
	mock.Mock
}

func (m *mockBooks) SearchByAuthor(ctx context.Context, name string) ([]books.Volume, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]books.Volume), args.Error(1)
}

type mockPodcast struct {
	mock.Mock
}

func (m *mockPodcast) SearchByName(ctx context.Context, name string) ([]podcastindex.Podcast, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]podcastindex.Podcast), args.Error(1)
}

type mockKGraph struct {
	mock.Mock
}

func (m *mockKGraph) Lookup(ctx context.Context, name string) (*kgraph.Entity, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kgraph.Entity), args.Error(1)
}

type mockNews struct {
	mock.Mock
}

func (m *mockNews) Search(ctx context.Context, query string, limit int) ([]newsapi.Article, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]newsapi.Article), args.Error(1)
}

type mockResearch struct {
	mock.Mock
}

func (m *mockResearch) ChatCompletion(ctx context.Context, req research.ChatCompletionRequest) (*research.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*research.ChatCompletionResponse), args.Error(1)
}

func researchReply(content string) *research.ChatCompletionResponse {
	return &research.ChatCompletionResponse{
		Choices: []research.Choice{
			{Message: research.Message{Role: "assistant", Content: content}},
		},
	}
}
