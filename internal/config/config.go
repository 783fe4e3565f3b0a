// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort            = 8080
	defaultServerHost            = "0.0.0.0"
	defaultReadTimeout           = 30 * time.Second
	defaultWriteTimeout          = 30 * time.Second
	defaultDatabasePath          = "./data/tunecrate.db"
	defaultMigrationsPath        = "file://./migrations"
	defaultLogLevel              = "info"
	defaultLogPretty             = false
	defaultDirectoryBaseURL      = "https://api.podcastindex.org/api/1.0"
	defaultDirectoryTimeout      = 5 * time.Second
	defaultDirectoryEpisodeLimit = 1000
	defaultResolveBatchSize      = 10
	defaultResolveBatchDelay     = 500 * time.Millisecond
	defaultPopulateBudget        = 3 * time.Minute
	defaultPopulateErrorCeiling  = 20
	defaultResponseCacheTTL      = 4 * time.Hour
	defaultPlaylistFetchTimeout  = 15 * time.Second
	envPrefix                    = "TUNECRATE"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Directory DirectoryConfig
	Resolver  ResolverConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path           string
	MigrationsPath string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// DirectoryConfig holds podcast directory API credentials and limits
type DirectoryConfig struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
	EpisodeLimit   int
}

// ResolverConfig holds tuning for playlist resolution and feed auto-population
type ResolverConfig struct {
	BatchSize            int
	BatchDelay           time.Duration
	PopulateBudget       time.Duration
	PopulateErrorCeiling int
	ResponseCacheTTL     time.Duration
	PlaylistFetchTimeout time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tunecrate")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("directory.baseurl", defaultDirectoryBaseURL)
	v.SetDefault("directory.requesttimeout", defaultDirectoryTimeout)
	v.SetDefault("directory.episodelimit", defaultDirectoryEpisodeLimit)

	v.SetDefault("resolver.batchsize", defaultResolveBatchSize)
	v.SetDefault("resolver.batchdelay", defaultResolveBatchDelay)
	v.SetDefault("resolver.populatebudget", defaultPopulateBudget)
	v.SetDefault("resolver.populateerrorceiling", defaultPopulateErrorCeiling)
	v.SetDefault("resolver.responsecachettl", defaultResponseCacheTTL)
	v.SetDefault("resolver.playlistfetchtimeout", defaultPlaylistFetchTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Directory.BaseURL == "" {
		return fmt.Errorf("directory base URL is required")
	}
	if c.Directory.RequestTimeout <= 0 {
		return fmt.Errorf("invalid directory request timeout: %v (must be > 0)", c.Directory.RequestTimeout)
	}
	if c.Directory.EpisodeLimit < 1 {
		return fmt.Errorf("invalid directory episode limit: %d (must be >= 1)", c.Directory.EpisodeLimit)
	}

	if c.Resolver.BatchSize < 1 {
		return fmt.Errorf("invalid resolver batch size: %d (must be >= 1)", c.Resolver.BatchSize)
	}
	if c.Resolver.PopulateBudget <= 0 {
		return fmt.Errorf("invalid populate budget: %v (must be > 0)", c.Resolver.PopulateBudget)
	}
	if c.Resolver.PopulateErrorCeiling < 1 {
		return fmt.Errorf("invalid populate error ceiling: %d (must be >= 1)", c.Resolver.PopulateErrorCeiling)
	}

	// Directory credentials are optional at boot; resolution degrades to
	// catalog-only lookups when they are absent.

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
