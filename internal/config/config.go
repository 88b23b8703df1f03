package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Spotify  SpotifyConfig  `yaml:"spotify" mapstructure:"spotify"`
	Lyrics   LyricsConfig   `yaml:"lyrics" mapstructure:"lyrics"`
	OpenAI   OpenAIConfig   `yaml:"openai" mapstructure:"openai"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SpotifyConfig holds Spotify Web API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string  `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	TokenURL     string  `yaml:"token_url" mapstructure:"token_url"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LyricsConfig holds the lyrics lookup service settings. Lyrics are
// best-effort: an empty base URL disables the lookup entirely.
type LyricsConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds moderation classifier API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// EngineConfig configures decision behavior.
type EngineConfig struct {
	// ScoreReviewThreshold is the classifier score above which an
	// otherwise-clean track is sent to review.
	ScoreReviewThreshold float64 `yaml:"score_review_threshold" mapstructure:"score_review_threshold"`

	// WordBoundary restricts keyword matches to whole words. Off by
	// default for compatibility with the historical substring behavior.
	WordBoundary bool `yaml:"word_boundary" mapstructure:"word_boundary"`

	// DenylistFailClosed turns a denylist load failure into an evaluation
	// error instead of silently scanning with an empty list.
	DenylistFailClosed bool `yaml:"denylist_fail_closed" mapstructure:"denylist_fail_closed"`

	// LyricsTimeout bounds the best-effort lyrics lookup.
	LyricsTimeout time.Duration `yaml:"lyrics_timeout" mapstructure:"lyrics_timeout"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PATOU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("spotify.base_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify.rate_per_sec", 10)
	v.SetDefault("lyrics.base_url", "https://api.lyrics.ovh/v1")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.model", "omni-moderation-latest")
	v.SetDefault("engine.score_review_threshold", 0.7)
	v.SetDefault("engine.word_boundary", false)
	v.SetDefault("engine.denylist_fail_closed", false)
	v.SetDefault("engine.lyrics_timeout", 10*time.Second)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
