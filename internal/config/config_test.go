package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.spotify.com/v1", cfg.Spotify.BaseURL)
	assert.Equal(t, "https://accounts.spotify.com/api/token", cfg.Spotify.TokenURL)
	assert.InDelta(t, 10, cfg.Spotify.RatePerSec, 0.001)
	assert.Equal(t, "https://api.lyrics.ovh/v1", cfg.Lyrics.BaseURL)
	assert.Equal(t, "https://api.openai.com", cfg.OpenAI.BaseURL)
	assert.Equal(t, "omni-moderation-latest", cfg.OpenAI.Model)
	assert.InDelta(t, 0.7, cfg.Engine.ScoreReviewThreshold, 0.001)
	assert.False(t, cfg.Engine.WordBoundary)
	assert.False(t, cfg.Engine.DenylistFailClosed)
	assert.Equal(t, 10*time.Second, cfg.Engine.LyricsTimeout)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)
	dir, _ := os.Getwd()

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
engine:
  score_review_threshold: 0.5
  word_boundary: true
  denylist_fail_closed: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Engine.ScoreReviewThreshold, 0.001)
	assert.True(t, cfg.Engine.WordBoundary)
	assert.True(t, cfg.Engine.DenylistFailClosed)
	// Defaults still apply for unset values
	assert.Equal(t, "https://api.spotify.com/v1", cfg.Spotify.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PATOU_STORE_DRIVER", "sqlite")
	t.Setenv("PATOU_OPENAI_MODEL", "text-moderation-stable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "text-moderation-stable", cfg.OpenAI.Model)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
