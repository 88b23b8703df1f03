package signal

import (
	"context"

	"github.com/patou-app/moderation-cli/internal/model"
	"github.com/patou-app/moderation-cli/internal/resilience"
	"github.com/patou-app/moderation-cli/pkg/spotify"
)

// MetadataFetcher turns Spotify track objects into evaluation signals,
// retrying transient upstream failures.
type MetadataFetcher struct {
	client spotify.Client
	retry  resilience.RetryConfig
}

// NewMetadataFetcher creates a MetadataFetcher with default retry policy.
func NewMetadataFetcher(client spotify.Client) *MetadataFetcher {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("spotify", "get_track")
	return &MetadataFetcher{client: client, retry: cfg}
}

// Fetch loads track metadata. Any failure after retries is wrapped as a
// *MetadataError.
func (f *MetadataFetcher) Fetch(ctx context.Context, trackID string) (*model.TrackSignals, error) {
	track, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*spotify.Track, error) {
		return f.client.GetTrack(ctx, trackID)
	})
	if err != nil {
		return nil, &MetadataError{TrackID: trackID, Err: err}
	}

	return &model.TrackSignals{
		TrackID:    track.ID,
		Name:       track.Name,
		Artist:     track.PrimaryArtist(),
		Album:      track.Album.Name,
		Explicit:   track.Explicit,
		Popularity: track.Popularity,
		DurationMs: track.DurationMs,
	}, nil
}
