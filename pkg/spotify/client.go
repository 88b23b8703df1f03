// Package spotify provides a client for the Spotify Web API track
// endpoints, using the client-credentials OAuth flow.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/patou-app/moderation-cli/internal/resilience"
)

// Client defines the Spotify Web API operations the moderation engine
// needs.
type Client interface {
	// GetTrack fetches a track object by Spotify track ID.
	GetTrack(ctx context.Context, trackID string) (*Track, error)
}

// Track is the subset of the Spotify track object consumed here.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Explicit   bool     `json:"explicit"`
	Popularity int      `json:"popularity"`
	DurationMs int      `json:"duration_ms"`
	Album      Album    `json:"album"`
}

// Artist holds the artist name.
type Artist struct {
	Name string `json:"name"`
}

// Album holds the album name.
type Album struct {
	Name string `json:"name"`
}

// PrimaryArtist returns the first artist name, or "".
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// Option configures the Spotify client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithTokenURL sets a custom token endpoint (for testing).
func WithTokenURL(url string) Option {
	return func(c *httpClient) {
		c.tokenURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing API requests per second.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	http         *http.Client
	limiter      *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Spotify Web API client using client-credentials auth.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://api.spotify.com/v1",
		tokenURL:     "https://accounts.spotify.com/api/token",
		limiter:      rate.NewLimiter(rate.Limit(10), 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// token returns a cached access token, refreshing it when it is within a
// minute of expiry.
func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "spotify: create token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "spotify: token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "spotify: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("spotify: token status %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "spotify: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("spotify: empty access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *httpClient) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	if trackID == "" {
		return nil, eris.New("spotify: track id is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "spotify: rate limiter")
		}
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/tracks/%s", c.baseURL, url.PathEscape(trackID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "spotify: create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "spotify: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "spotify: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("spotify: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("spotify: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var track Track
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, eris.Wrap(err, "spotify: unmarshal track")
	}
	return &track, nil
}
