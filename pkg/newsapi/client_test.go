package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/everything", r.URL.Path)
		assert.Equal(t, `"Jane Doe"`, r.URL.Query().Get("q"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"name":"Craft Weekly"},"title":"Jane Doe opens new workshop","description":"The woodworker expands.","url":"https://news.example.com/1","publishedAt":"2026-08-12T09:00:00Z"},
			{"source":{"name":"Broken Feed"},"title":"","description":"no title","url":"https://news.example.com/2"},
			{"source":{"name":"Craft Weekly"},"title":"Joinery class sells out","description":"","url":"https://news.example.com/3","publishedAt":"2026-08-01T09:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	articles, err := client.Search(context.Background(), "Jane Doe", 5)
	require.NoError(t, err)

	// untitled entries are dropped
	require.Len(t, articles, 2)
	assert.Equal(t, "Jane Doe opens new workshop", articles[0].Title)
	assert.Equal(t, "Craft Weekly", articles[0].Source)
	assert.Equal(t, 2026, articles[0].PublishedAt.Year())
}

func TestSearchHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"name":"A"},"title":"one","url":"https://news.example.com/1"},
			{"source":{"name":"B"},"title":"two","url":"https://news.example.com/2"},
			{"source":{"name":"C"},"title":"three","url":"https://news.example.com/3"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	articles, err := client.Search(context.Background(), "Jane Doe", 2)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestSearchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "Jane Doe", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
