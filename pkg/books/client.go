// Package books wraps the Google Books volumes API for author lookups.
package books

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/resilience"
)

const defaultBaseURL = "https://www.googleapis.com/books/v1"

// Volume is a book matched to an author.
type Volume struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	AmazonURL     string   `json:"amazon_url,omitempty"`
}

// Client defines the book-catalog provider operations.
type Client interface {
	SearchByAuthor(ctx context.Context, name string) ([]Volume, error)
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

// WithMaxResults caps the number of volumes returned per search.
func WithMaxResults(n int) Option {
	return func(c *httpClient) {
		c.maxResults = n
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	http       *http.Client
}

// NewClient creates a Google Books API client. The API key is optional for
// public volume searches.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		maxResults: 10,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			PublishedDate       string   `json:"publishedDate"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (c *httpClient) SearchByAuthor(ctx context.Context, name string) ([]Volume, error) {
	params := url.Values{
		"q":          {fmt.Sprintf("inauthor:%q", name)},
		"maxResults": {fmt.Sprintf("%d", c.maxResults)},
		"orderBy":    {"relevance"},
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "books: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "books: search volumes")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "books: read response")
	}

	if resp.StatusCode != http.StatusOK {
		respErr := eris.Errorf("books: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(respErr, resp.StatusCode)
		}
		return nil, respErr
	}

	var vr volumesResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, eris.Wrap(err, "books: unmarshal response")
	}

	wanted := strings.ToLower(name)
	volumes := make([]Volume, 0, len(vr.Items))
	for _, item := range vr.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}
		// Keep only volumes actually attributed to the searched author;
		// inauthor matches are fuzzy.
		if !authorMatches(info.Authors, wanted) {
			continue
		}

		var isbn string
		for _, id := range info.IndustryIdentifiers {
			if id.Type == "ISBN_13" {
				isbn = id.Identifier
				break
			}
			if id.Type == "ISBN_10" && isbn == "" {
				isbn = id.Identifier
			}
		}

		v := Volume{
			Title:         info.Title,
			Authors:       info.Authors,
			PublishedDate: info.PublishedDate,
			Thumbnail:     info.ImageLinks.Thumbnail,
			ISBN:          isbn,
		}
		if isbn != "" {
			v.AmazonURL = "https://www.amazon.com/s?k=" + url.QueryEscape(isbn)
		}
		volumes = append(volumes, v)
	}

	return volumes, nil
}

func authorMatches(authors []string, wanted string) bool {
	for _, a := range authors {
		if strings.Contains(strings.ToLower(a), wanted) || strings.Contains(wanted, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
