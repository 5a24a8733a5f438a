// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	UpstreamAPIURL string `mapstructure:"UPSTREAM_API_URL"`
	UpstreamWSURL  string `mapstructure:"UPSTREAM_WS_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	AutosaveDebounceMs  int `mapstructure:"AUTOSAVE_DEBOUNCE_MS"`
	AutosaveMaxRetries  int `mapstructure:"AUTOSAVE_MAX_RETRIES"`
	SessionTTLMinutes   int `mapstructure:"SESSION_TTL_MINUTES"`
	StatsPollSeconds    int `mapstructure:"STATS_POLL_SECONDS"`
	UpstreamTimeoutSecs int `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// AutosaveDebounce returns the autosave debounce window as a duration.
func (c *Config) AutosaveDebounce() time.Duration {
	return time.Duration(c.AutosaveDebounceMs) * time.Millisecond
}

// SessionTTL returns how long an idle review session is retained.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// UpstreamTimeout returns the per-request timeout for upstream API calls.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSecs) * time.Second
}

// StatsPollInterval returns how often the scrape backlog is polled.
func (c *Config) StatsPollInterval() time.Duration {
	return time.Duration(c.StatsPollSeconds) * time.Second
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	// Set default values for development
	viper.SetDefault("PORT", "8460")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("UPSTREAM_API_URL", "http://localhost:8080/api/v1")
	viper.SetDefault("UPSTREAM_WS_URL", "ws://localhost:8080/ws/stats")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("AUTOSAVE_DEBOUNCE_MS", 500)
	viper.SetDefault("AUTOSAVE_MAX_RETRIES", 2)
	viper.SetDefault("SESSION_TTL_MINUTES", 120)
	viper.SetDefault("STATS_POLL_SECONDS", 15)
	viper.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 15)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 0.1)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.UpstreamAPIURL == "" {
		return errors.New("UPSTREAM_API_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AutosaveDebounceMs <= 0 {
		return errors.New("AUTOSAVE_DEBOUNCE_MS must be positive")
	}
	if c.AutosaveMaxRetries < 0 {
		return errors.New("AUTOSAVE_MAX_RETRIES must not be negative")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
