package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is the prefix for environment overrides, e.g. SENTI_SPOTIFY_CLIENT_SECRET.
const EnvPrefix = "senti"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Recommend   RecommendConfig   `toml:"recommend"`
	Cache       CacheConfig       `toml:"cache"`
	Export      ExportConfig      `toml:"export"`
	Timeouts    TimeoutConfig     `toml:"timeouts"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	OpenAI  OpenAIConfig  `toml:"openai"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// OpenAIConfig contains the language model credentials and prompt template.
type OpenAIConfig struct {
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	BaseURL      string `toml:"base_url"`
	SystemPrompt string `toml:"system_prompt"`
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey string `toml:"api_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	AllowedOrigin string `toml:"allowed_origin"`
}

// RecommendConfig tunes the recommendation pipeline.
type RecommendConfig struct {
	PopularityFloor     int     `toml:"popularity_floor"`
	TracksPerGenre      int     `toml:"tracks_per_genre"`
	MaxParallelSearches int     `toml:"max_parallel_searches"`
	SearchRateLimit     float64 `toml:"search_rate_limit"`
	MaxPromptLength     int     `toml:"max_prompt_length"`
}

// CacheConfig sets the video link staleness windows.
type CacheConfig struct {
	StaleAfter         time.Duration `toml:"stale_after"`
	NegativeStaleAfter time.Duration `toml:"negative_stale_after"`
}

// ExportConfig tunes playlist exports.
type ExportConfig struct {
	BatchSize int     `toml:"batch_size"`
	RateLimit float64 `toml:"rate_limit"`
}

// TimeoutConfig holds per-call timeouts for each provider.
type TimeoutConfig struct {
	OpenAI  time.Duration `toml:"openai"`
	Spotify time.Duration `toml:"spotify"`
	YouTube time.Duration `toml:"youtube"`
	Token   time.Duration `toml:"token"`
}

// envOverrides lists the settings that can be supplied through the environment.
type envOverrides struct {
	SpotifyClientID     string `envconfig:"spotify_client_id"`
	SpotifyClientSecret string `envconfig:"spotify_client_secret"`
	SpotifyRedirectURI  string `envconfig:"spotify_redirect_uri"`
	OpenAIAPIKey        string `envconfig:"openai_api_key"`
	OpenAIBaseURL       string `envconfig:"openai_base_url"`
	YouTubeAPIKey       string `envconfig:"youtube_api_key"`
	DatabasePath        string `envconfig:"database_path"`
	ServerPort          int    `envconfig:"server_port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays non-empty SENTI_* environment variables onto the config.
func ApplyEnv(config *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&config.Credentials.Spotify.ClientID, env.SpotifyClientID)
	set(&config.Credentials.Spotify.ClientSecret, env.SpotifyClientSecret)
	set(&config.Credentials.Spotify.RedirectURI, env.SpotifyRedirectURI)
	set(&config.Credentials.OpenAI.APIKey, env.OpenAIAPIKey)
	set(&config.Credentials.OpenAI.BaseURL, env.OpenAIBaseURL)
	set(&config.Credentials.YouTube.APIKey, env.YouTubeAPIKey)
	set(&config.Database.Path, env.DatabasePath)
	if env.ServerPort > 0 {
		config.Server.Port = env.ServerPort
	}

	return nil
}

// Validate checks that tunables are in range.
func (c *Config) Validate() error {
	r := c.Recommend
	switch {
	case r.PopularityFloor < 0 || r.PopularityFloor > 100:
		return fmt.Errorf("%w: recommend.popularity_floor must be within 0..100", ErrInvalidConfig)
	case r.TracksPerGenre <= 0:
		return fmt.Errorf("%w: recommend.tracks_per_genre must be positive", ErrInvalidConfig)
	case r.MaxParallelSearches <= 0:
		return fmt.Errorf("%w: recommend.max_parallel_searches must be positive", ErrInvalidConfig)
	case r.MaxPromptLength <= 6:
		return fmt.Errorf("%w: recommend.max_prompt_length must be greater than 6", ErrInvalidConfig)
	case c.Export.BatchSize < 1 || c.Export.BatchSize > 100:
		return fmt.Errorf("%w: export.batch_size must be within 1..100", ErrInvalidConfig)
	case c.Cache.StaleAfter <= 0 || c.Cache.NegativeStaleAfter <= 0:
		return fmt.Errorf("%w: cache windows must be positive", ErrInvalidConfig)
	}

	for name, d := range map[string]time.Duration{
		"openai":  c.Timeouts.OpenAI,
		"spotify": c.Timeouts.Spotify,
		"youtube": c.Timeouts.YouTube,
		"token":   c.Timeouts.Token,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: timeouts.%s must be positive", ErrInvalidConfig, name)
		}
	}

	return nil
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
