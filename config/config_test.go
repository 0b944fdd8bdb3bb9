package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9000")
	t.Setenv("PAGE_SIZE", "5")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("STAFF_USERNAMES", "alice, bob ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, cfg.Staff())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Env:           "development",
			Port:          "8080",
			SessionSecret: "a-secret-that-is-long-enough-for-production-use",
			DBDriver:      "sqlite",
			DatabaseURL:   "test.db",
			PageSize:      10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.SessionSecret = "" }, true},
		{"bad driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, true},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.SessionSecret = defaultSessionSecret
		}, true},
		{"production short secret", func(c *Config) {
			c.Env = "production"
			c.SessionSecret = "short"
		}, true},
		{"production ok", func(c *Config) { c.Env = "production" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
