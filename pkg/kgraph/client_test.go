package kgraph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entities:search", r.URL.Path)
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("query"))
		assert.Equal(t, "Person", r.URL.Query().Get("types"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"itemListElement":[{"result":{
			"name": "Jane Doe",
			"description": "American woodworker",
			"image": {"contentUrl": "https://img.example.com/jane.jpg"},
			"detailedDescription": {
				"articleBody": "Jane Doe is an American woodworker and educator known for hand-tool joinery.",
				"url": "https://en.wikipedia.org/wiki/Jane_Doe"
			}
		}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	e, err := client.Lookup(context.Background(), "Jane Doe")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", e.Name)
	assert.Equal(t, "American woodworker", e.Description)
	assert.Contains(t, e.DetailedDescription, "hand-tool joinery")
	assert.Equal(t, "https://img.example.com/jane.jpg", e.ImageURL)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Jane_Doe", e.URL)
}

func TestLookupNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"itemListElement":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Lookup(context.Background(), "Nobody At All")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupNamelessResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"itemListElement":[{"result":{"description":"orphan entry"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Lookup(context.Background(), "Jane Doe")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.Lookup(context.Background(), "Jane Doe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid key")
}
