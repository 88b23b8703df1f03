package lyrics

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
		assert.Equal(t, "/Rick%20Astley/Never%20Gonna%20Give%20You%20Up", r.URL.EscapedPath())
		w.Write([]byte(`{"lyrics":"Never gonna give you up\nNever gonna let you down"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL))
	text, err := c.Search(context.Background(), "Never Gonna Give You Up", "Rick Astley")
	require.NoError(t, err)
	assert.Contains(t, text, "Never gonna give you up")
}

func TestSearch_NotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"No lyrics found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL))
	text, err := c.Search(context.Background(), "Unknown Song", "Nobody")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSearch_ServerErrorIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "Song", "Artist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestSearch_EmptyInputsShortCircuit(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1")) // never dialed
	text, err := c.Search(context.Background(), "", "Artist")
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = c.Search(context.Background(), "Song", "")
	require.NoError(t, err)
	assert.Empty(t, text)
}
