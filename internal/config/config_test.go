package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Port:                "8460",
		Env:                 "development",
		UpstreamAPIURL:      "http://localhost:8080/api/v1",
		JWTSecret:           "your-secret-key-change-in-production",
		AutosaveDebounceMs:  500,
		AutosaveMaxRetries:  2,
		SessionTTLMinutes:   120,
		UpstreamTimeoutSecs: 15,
		StatsPollSeconds:    15,
	}
}

func TestValidate_AcceptsDevelopmentDefaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RequiredFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing port", func(c *Config) { c.Port = "" }, "PORT is required"},
		{"missing upstream URL", func(c *Config) { c.UpstreamAPIURL = "" }, "UPSTREAM_API_URL is required"},
		{"missing JWT secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"zero debounce", func(c *Config) { c.AutosaveDebounceMs = 0 }, "AUTOSAVE_DEBOUNCE_MS must be positive"},
		{"negative retries", func(c *Config) { c.AutosaveMaxRetries = -1 }, "AUTOSAVE_MAX_RETRIES must not be negative"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ProductionRejectsDefaultJWTSecret(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Env = "production"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed from the default")
}

func TestValidate_ProductionRequiresLongJWTSecret(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Env = "prod"
	cfg.JWTSecret = "short-secret"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")

	cfg.JWTSecret = strings.Repeat("s", 32)
	assert.NoError(t, cfg.Validate())
}

// The shipped sample config must stay in sync with the keys viper reads.
func TestSampleConfigCoversAllKeys(t *testing.T) {
	t.Parallel()
	raw, err := os.ReadFile("../../config.yml")
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &keys))

	for _, key := range []string{
		"PORT", "APP_ENV", "UPSTREAM_API_URL", "UPSTREAM_WS_URL",
		"REDIS_URL", "JWT_SECRET", "ALLOWED_ORIGINS",
		"AUTOSAVE_DEBOUNCE_MS", "AUTOSAVE_MAX_RETRIES",
		"SESSION_TTL_MINUTES", "STATS_POLL_SECONDS", "UPSTREAM_TIMEOUT_SECONDS",
	} {
		assert.Contains(t, keys, key)
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()
	cfg := validConfig()

	assert.Equal(t, 500*time.Millisecond, cfg.AutosaveDebounce())
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout())
	assert.Equal(t, 15*time.Second, cfg.StatsPollInterval())
}
