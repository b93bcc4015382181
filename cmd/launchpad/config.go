package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	GitSource GitSourceConfig `mapstructure:"gitsource"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ProviderConfig holds deployment provider configuration.
type ProviderConfig struct {
	// Kind selects the provider backend: "vercel", "digitalocean" or "docker".
	Kind string `mapstructure:"kind"`

	// VercelToken authenticates against the Vercel API.
	// Set via LAUNCHPAD_PROVIDER_VERCEL_TOKEN.
	VercelToken string `mapstructure:"vercel_token"`

	// VercelBaseURL overrides the Vercel API endpoint; empty means the
	// public API.
	VercelBaseURL string `mapstructure:"vercel_base_url"`

	// DOToken authenticates against the DigitalOcean API.
	DOToken string `mapstructure:"do_token"`

	// DockerHost is the Docker daemon address for the local provider.
	// Empty uses the environment default.
	DockerHost string `mapstructure:"docker_host"`

	// ContentRoot is where the local provider materializes site files.
	ContentRoot string `mapstructure:"content_root"`

	// Image is the web server image used by the local provider.
	Image string `mapstructure:"image"`
}

// NotifyConfig holds deployment notification configuration.
type NotifyConfig struct {
	// Telegram is enabled when both bot_token and chat_id are set.
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
}

// GitSourceConfig holds git source validation configuration.
type GitSourceConfig struct {
	// ValidateRepos enables checking repositories against GitHub before
	// a project is created.
	ValidateRepos bool `mapstructure:"validate_repos"`

	// GitHubToken raises the API rate limit and grants access to private
	// repositories. Optional.
	GitHubToken string `mapstructure:"github_token"`
}

// DeployConfig holds deployment attempt configuration.
type DeployConfig struct {
	// AttemptTimeout is the upper bound on a single provider call.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/launchpad.db")
	v.SetDefault("provider.kind", "docker")
	v.SetDefault("provider.vercel_token", "")
	v.SetDefault("provider.vercel_base_url", "")
	v.SetDefault("provider.do_token", "")
	v.SetDefault("provider.docker_host", "")
	v.SetDefault("provider.content_root", "./data/sites")
	v.SetDefault("provider.image", "nginx:alpine")
	v.SetDefault("notify.telegram_bot_token", "")
	v.SetDefault("notify.telegram_chat_id", "")
	v.SetDefault("gitsource.validate_repos", false)
	v.SetDefault("gitsource.github_token", "")
	v.SetDefault("deploy.attempt_timeout", "10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
