// Package kgraph wraps the Google Knowledge Graph Search API for encyclopedic
// entity lookups.
package kgraph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/resilience"
)

const defaultBaseURL = "https://kgsearch.googleapis.com/v1"

// ErrNotFound is returned when the knowledge graph has no person entity for
// the query.
var ErrNotFound = eris.New("kgraph: entity not found")

// Entity is the subset of knowledge-graph data the pipeline consumes.
type Entity struct {
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	DetailedDescription string `json:"detailed_description,omitempty"`
	ImageURL            string `json:"image_url,omitempty"`
	URL                 string `json:"url,omitempty"`
}

// Client defines the knowledge-graph provider operations.
type Client interface {
	Lookup(ctx context.Context, name string) (*Entity, error)
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

// NewClient creates a Knowledge Graph Search API client.
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

type searchResponse struct {
	ItemListElement []struct {
		Result struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Image       struct {
				ContentURL string `json:"contentUrl"`
			} `json:"image"`
			DetailedDescription struct {
				ArticleBody string `json:"articleBody"`
				URL         string `json:"url"`
			} `json:"detailedDescription"`
		} `json:"result"`
	} `json:"itemListElement"`
}

func (c *httpClient) Lookup(ctx context.Context, name string) (*Entity, error) {
	params := url.Values{
		"query": {name},
		"types": {"Person"},
		"limit": {"1"},
		"key":   {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/entities:search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "kgraph: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "kgraph: entity search")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "kgraph: read response")
	}

	if resp.StatusCode != http.StatusOK {
		respErr := eris.Errorf("kgraph: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(respErr, resp.StatusCode)
		}
		return nil, respErr
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "kgraph: unmarshal response")
	}
	if len(sr.ItemListElement) == 0 {
		return nil, ErrNotFound
	}

	r := sr.ItemListElement[0].Result
	if r.Name == "" {
		return nil, ErrNotFound
	}

	return &Entity{
		Name:                r.Name,
		Description:         r.Description,
		DetailedDescription: r.DetailedDescription.ArticleBody,
		ImageURL:            r.Image.ContentURL,
		URL:                 r.DetailedDescription.URL,
	}, nil
}
