package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patou-app/moderation-cli/internal/resilience"
)

func newTokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTrack(t *testing.T) {
	tokenSrv := newTokenServer(t, nil)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks/4uLU6hMCjMI75M1A2tKUQC", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "4uLU6hMCjMI75M1A2tKUQC",
			"name":        "Never Gonna Give You Up",
			"artists":     []map[string]string{{"name": "Rick Astley"}},
			"explicit":    false,
			"popularity":  80,
			"duration_ms": 213573,
			"album":       map[string]string{"name": "Whenever You Need Somebody"},
		})
	}))
	t.Cleanup(apiSrv.Close)

	c := NewClient("client-id", "client-secret",
		WithBaseURL(apiSrv.URL),
		WithTokenURL(tokenSrv.URL),
	)

	track, err := c.GetTrack(context.Background(), "4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", track.Name)
	assert.Equal(t, "Rick Astley", track.PrimaryArtist())
	assert.False(t, track.Explicit)
	assert.Equal(t, 213573, track.DurationMs)
	assert.Equal(t, "Whenever You Need Somebody", track.Album.Name)
}

func TestGetTrack_TokenReused(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := newTokenServer(t, &tokenCalls)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "abc", "name": "x"})
	}))
	t.Cleanup(apiSrv.Close)

	c := NewClient("client-id", "client-secret",
		WithBaseURL(apiSrv.URL),
		WithTokenURL(tokenSrv.URL),
	)

	_, err := c.GetTrack(context.Background(), "abc")
	require.NoError(t, err)
	_, err = c.GetTrack(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestGetTrack_NotFound(t *testing.T) {
	tokenSrv := newTokenServer(t, nil)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":404,"message":"non existing id"}}`, http.StatusNotFound)
	}))
	t.Cleanup(apiSrv.Close)

	c := NewClient("client-id", "client-secret",
		WithBaseURL(apiSrv.URL),
		WithTokenURL(tokenSrv.URL),
	)

	_, err := c.GetTrack(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, resilience.IsTransient(err))
}

func TestGetTrack_RateLimitedIsTransient(t *testing.T) {
	tokenSrv := newTokenServer(t, nil)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	t.Cleanup(apiSrv.Close)

	c := NewClient("client-id", "client-secret",
		WithBaseURL(apiSrv.URL),
		WithTokenURL(tokenSrv.URL),
	)

	_, err := c.GetTrack(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGetTrack_EmptyID(t *testing.T) {
	c := NewClient("client-id", "client-secret")
	_, err := c.GetTrack(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "track id is required")
}
