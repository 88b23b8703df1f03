// Package lyrics provides a client for a lyrics.ovh-style lookup service.
// Lookups are best-effort: a missing song is not an error.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the lyrics lookup operation.
type Client interface {
	// Search returns the plain-text lyrics for a title/artist pair, or ""
	// when the service has no entry for the song.
	Search(ctx context.Context, title, artist string) (string, error)
}

// Option configures the lyrics client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a lyrics lookup client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.lyrics.ovh/v1",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, title, artist string) (string, error) {
	if title == "" || artist == "" {
		return "", nil
	}

	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(artist), url.PathEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "lyrics: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "lyrics: request failed")
	}
	defer resp.Body.Close()

	// Unknown song. Not an error: lyrics are optional evidence.
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "lyrics: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("lyrics: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Lyrics string `json:"lyrics"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "lyrics: unmarshal response")
	}
	return result.Lyrics, nil
}
