package books

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const volumesBody = `{
	"items": [
		{"volumeInfo": {
			"title": "The Joinery Handbook",
			"authors": ["Jane Doe"],
			"publishedDate": "2021-03-15",
			"industryIdentifiers": [
				{"type": "ISBN_10", "identifier": "0123456789"},
				{"type": "ISBN_13", "identifier": "9780123456789"}
			],
			"imageLinks": {"thumbnail": "https://books.example.com/joinery.jpg"}
		}},
		{"volumeInfo": {
			"title": "Unrelated Cookbook",
			"authors": ["Someone Else"]
		}},
		{"volumeInfo": {
			"title": "",
			"authors": ["Jane Doe"]
		}}
	]
}`

func TestSearchByAuthor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, `inauthor:"Jane Doe"`, r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(volumesBody))
	}))
	defer srv.Close()

	client := NewClient("", WithBaseURL(srv.URL))
	volumes, err := client.SearchByAuthor(context.Background(), "Jane Doe")
	require.NoError(t, err)

	// other authors and untitled volumes are dropped
	require.Len(t, volumes, 1)
	v := volumes[0]
	assert.Equal(t, "The Joinery Handbook", v.Title)
	assert.Equal(t, []string{"Jane Doe"}, v.Authors)
	assert.Equal(t, "2021-03-15", v.PublishedDate)
	assert.Equal(t, "9780123456789", v.ISBN, "ISBN-13 wins over ISBN-10")
	assert.Equal(t, "https://www.amazon.com/s?k=9780123456789", v.AmazonURL)
	assert.Equal(t, "https://books.example.com/joinery.jpg", v.Thumbnail)
}

func TestSearchByAuthorSendsKeyWhenSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	volumes, err := client.SearchByAuthor(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Empty(t, volumes)
}

func TestSearchByAuthorISBN10Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"volumeInfo":{
			"title": "Old Edition",
			"authors": ["Jane Doe"],
			"industryIdentifiers": [{"type": "ISBN_10", "identifier": "0123456789"}]
		}}]}`))
	}))
	defer srv.Close()

	client := NewClient("", WithBaseURL(srv.URL))
	volumes, err := client.SearchByAuthor(context.Background(), "Jane Doe")
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Equal(t, "0123456789", volumes[0].ISBN)
}

func TestSearchByAuthorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"backend unavailable"}`))
	}))
	defer srv.Close()

	client := NewClient("", WithBaseURL(srv.URL))
	_, err := client.SearchByAuthor(context.Background(), "Jane Doe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAuthorMatches(t *testing.T) {
	tests := []struct {
		name    string
		authors []string
		wanted  string
		want    bool
	}{
		{"exact", []string{"Jane Doe"}, "jane doe", true},
		{"with_middle_name", []string{"Jane Q. Doe"}, "jane q. doe", true},
		{"author_substring_of_query", []string{"Jane"}, "jane doe", true},
		{"no_match", []string{"Someone Else"}, "jane doe", false},
		{"empty", nil, "jane doe", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, authorMatches(tt.authors, tt.wanted))
		})
	}
}
