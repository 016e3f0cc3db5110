package linkprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alive, status, err := New().Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, http.StatusOK, status)
}

func TestProbeFallsBackToGet(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alive, status, err := New().Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(1), gets.Load())
}

func TestProbeDeadLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	alive, status, err := New().Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProbeRedirectCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	alive, status, err := New().Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, alive, "3xx counts as reachable")
	assert.Equal(t, http.StatusMovedPermanently, status)
}

func TestProbePrependsScheme(t *testing.T) {
	// bare host gets https:// prepended; this host does not resolve, which is
	// exactly the unreachable shape the pipeline treats as a failed probe
	_, _, err := New().Probe(context.Background(), "definitely-not-a-real-host.invalid")
	require.Error(t, err)
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	alive, status, err := New().Probe(context.Background(), url)
	require.Error(t, err)
	assert.False(t, alive)
	assert.Zero(t, status)
}

func TestWithUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom-agent/2.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alive, _, err := New(WithUserAgent("custom-agent/2.0")).Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, alive)
}
