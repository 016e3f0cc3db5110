// Package podcastindex wraps the iTunes Search API for podcast lookups and
// provides fixed-convention RSS feed URL candidates for fallback probing.
package podcastindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/resilience"
)

const defaultBaseURL = "https://itunes.apple.com"

// Podcast is a show matched by the catalog search.
type Podcast struct {
	PodcastID    string `json:"podcast_id"`
	Title        string `json:"title"`
	ImageURL     string `json:"image_url,omitempty"`
	EpisodeCount int    `json:"episode_count"`
	RSSURL       string `json:"rss_url"`
}

// Client defines the podcast-catalog provider operations.
type Client interface {
	SearchByName(ctx context.Context, name string) ([]Podcast, error)
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
	baseURL string
	http    *http.Client
}

// NewClient creates an iTunes Search API client. The API is unauthenticated.
func NewClient(opts ...Option) Client {
	c := &httpClient{
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

type searchResponse struct {
	Results []struct {
		CollectionID   int64  `json:"collectionId"`
		CollectionName string `json:"collectionName"`
		ArtworkURL600  string `json:"artworkUrl600"`
		TrackCount     int    `json:"trackCount"`
		FeedURL        string `json:"feedUrl"`
	} `json:"results"`
}

func (c *httpClient) SearchByName(ctx context.Context, name string) ([]Podcast, error) {
	params := url.Values{
		"term":   {name},
		"media":  {"podcast"},
		"entity": {"podcast"},
		"limit":  {"5"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "podcastindex: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "podcastindex: search")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "podcastindex: read response")
	}

	if resp.StatusCode != http.StatusOK {
		respErr := eris.Errorf("podcastindex: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(respErr, resp.StatusCode)
		}
		return nil, respErr
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "podcastindex: unmarshal response")
	}

	podcasts := make([]Podcast, 0, len(sr.Results))
	for _, r := range sr.Results {
		if r.FeedURL == "" {
			continue
		}
		podcasts = append(podcasts, Podcast{
			PodcastID:    fmt.Sprintf("%d", r.CollectionID),
			Title:        r.CollectionName,
			ImageURL:     r.ArtworkURL600,
			EpisodeCount: r.TrackCount,
			RSSURL:       r.FeedURL,
		})
	}
	return podcasts, nil
}

// ConventionFeedURLs returns well-known feed URL patterns for a slugged show
// name, used as a last-resort probe when neither the catalog nor the research
// provider offered a feed.
func ConventionFeedURLs(slug string) []string {
	if slug == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("https://anchor.fm/s/%s/podcast/rss", slug),
		fmt.Sprintf("https://feeds.buzzsprout.com/%s.rss", slug),
		fmt.Sprintf("https://feeds.libsyn.com/%s/rss", slug),
	}
}
