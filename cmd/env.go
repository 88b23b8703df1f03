package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/patou-app/moderation-cli/internal/engine"
	"github.com/patou-app/moderation-cli/internal/monitoring"
	"github.com/patou-app/moderation-cli/internal/signal"
	"github.com/patou-app/moderation-cli/internal/store"
	"github.com/patou-app/moderation-cli/pkg/lyrics"
	"github.com/patou-app/moderation-cli/pkg/openai"
	"github.com/patou-app/moderation-cli/pkg/spotify"
)

// env bundles the wired components a command needs.
type env struct {
	Store   store.Store
	Engine  *engine.Engine
	Metrics *monitoring.Collector
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "patou.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the store, signal clients, and engine from config.
func initEnv(ctx context.Context) (*env, error) {
	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return nil, eris.New("spotify credentials are required (PATOU_SPOTIFY_CLIENT_ID, PATOU_SPOTIFY_CLIENT_SECRET)")
	}
	if cfg.OpenAI.Key == "" {
		return nil, eris.New("openai API key is required (PATOU_OPENAI_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	spotifyClient := spotify.NewClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret,
		spotify.WithBaseURL(cfg.Spotify.BaseURL),
		spotify.WithTokenURL(cfg.Spotify.TokenURL),
		spotify.WithRateLimit(cfg.Spotify.RatePerSec),
	)

	var lyricsClient lyrics.Client
	if cfg.Lyrics.BaseURL != "" {
		lyricsClient = lyrics.NewClient(lyrics.WithBaseURL(cfg.Lyrics.BaseURL))
	}

	openaiClient := openai.NewClient(cfg.OpenAI.Key,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithModel(cfg.OpenAI.Model),
	)

	metrics := monitoring.NewCollector()
	eng := engine.New(
		signal.NewMetadataFetcher(spotifyClient),
		signal.NewLyricsFetcher(lyricsClient, cfg.Engine.LyricsTimeout),
		signal.NewClassifier(openaiClient),
		st,
		engine.Config{
			ScoreReviewThreshold: cfg.Engine.ScoreReviewThreshold,
			WordBoundary:         cfg.Engine.WordBoundary,
			DenylistFailClosed:   cfg.Engine.DenylistFailClosed,
		},
		engine.WithObserver(metrics),
	)

	return &env{Store: st, Engine: eng, Metrics: metrics}, nil
}
