// Package youtube wraps the YouTube Data API v3 operations the pipeline uses:
// channel search, channel lookup by ID, and recent videos.
package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/resilience"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ErrNotFound is returned when no channel matches the query.
var ErrNotFound = eris.New("youtube: channel not found")

// Channel is the subset of channel data the pipeline consumes.
type Channel struct {
	ChannelID       string `json:"channel_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	SubscriberCount int64  `json:"subscriber_count"`
	VideoCount      int64  `json:"video_count"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

// Video is a recent upload on a channel.
type Video struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// Client defines the channel provider operations.
type Client interface {
	SearchChannel(ctx context.Context, query string) (*Channel, error)
	GetChannelByID(ctx context.Context, channelID string) (*Channel, error)
	GetRecentVideos(ctx context.Context, channelID string, n int) ([]Video, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(base string) Option {
	return func(c *httpClient) {
		c.baseURL = base
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a YouTube Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// API response shapes, reduced to the fields we read.

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		ChannelID string `json:"channelId"`
		VideoID   string `json:"videoId"`
	} `json:"id"`
	Snippet snippet `json:"snippet"`
}

type channelsResponse struct {
	Items []channelItem `json:"items"`
}

type channelItem struct {
	ID         string  `json:"id"`
	Snippet    snippet `json:"snippet"`
	Statistics struct {
		SubscriberCount string `json:"subscriberCount"`
		VideoCount      string `json:"videoCount"`
	} `json:"statistics"`
}

type snippet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
	Thumbnails  struct {
		High struct {
			URL string `json:"url"`
		} `json:"high"`
	} `json:"thumbnails"`
}

func (c *httpClient) SearchChannel(ctx context.Context, query string) (*Channel, error) {
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"channel"},
		"maxResults": {"1"},
		"q":          {query},
	}
	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal search response")
	}
	if len(sr.Items) == 0 || sr.Items[0].ID.ChannelID == "" {
		return nil, ErrNotFound
	}

	// The search endpoint carries no statistics; follow up by ID.
	return c.GetChannelByID(ctx, sr.Items[0].ID.ChannelID)
}

func (c *httpClient) GetChannelByID(ctx context.Context, channelID string) (*Channel, error) {
	params := url.Values{
		"part": {"snippet,statistics"},
		"id":   {channelID},
	}
	body, err := c.get(ctx, "/channels", params)
	if err != nil {
		return nil, err
	}

	var cr channelsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal channels response")
	}
	if len(cr.Items) == 0 {
		return nil, ErrNotFound
	}

	item := cr.Items[0]
	return &Channel{
		ChannelID:       item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		SubscriberCount: parseCount(item.Statistics.SubscriberCount),
		VideoCount:      parseCount(item.Statistics.VideoCount),
		ThumbnailURL:    item.Snippet.Thumbnails.High.URL,
	}, nil
}

func (c *httpClient) GetRecentVideos(ctx context.Context, channelID string, n int) ([]Video, error) {
	if n <= 0 {
		n = 5
	}
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"order":      {"date"},
		"channelId":  {channelID},
		"maxResults": {strconv.Itoa(n)},
	}
	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal videos response")
	}

	videos := make([]Video, 0, len(sr.Items))
	for _, item := range sr.Items {
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		videos = append(videos, Video{
			VideoID:     item.ID.VideoID,
			Title:       item.Snippet.Title,
			PublishedAt: published,
		})
	}
	return videos, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "youtube: GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("youtube: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
