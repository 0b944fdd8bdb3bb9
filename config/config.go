// Package config loads application settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultSessionSecret = "change-me-in-production"

type Config struct {
	Env            string        `mapstructure:"APP_ENV"`
	Port           string        `mapstructure:"PORT"`
	Domain         string        `mapstructure:"DOMAIN"`
	SessionSecret  string        `mapstructure:"SESSION_SECRET"`
	SecureCookies  bool          `mapstructure:"SECURE_COOKIES"`
	DBDriver       string        `mapstructure:"DB_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	MediaDir       string        `mapstructure:"MEDIA_DIR"`
	CacheDir       string        `mapstructure:"CACHE_DIR"`
	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`
	PageSize       int           `mapstructure:"PAGE_SIZE"`
	StaffUsernames string        `mapstructure:"STAFF_USERNAMES"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded settings from .env")
	}

	v := viper.New()
	v.AutomaticEnv()

	// every key needs a default so Unmarshal sees the environment value
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DOMAIN", "http://localhost:8080")
	v.SetDefault("SESSION_SECRET", defaultSessionSecret)
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "blogicum.db")
	v.SetDefault("MEDIA_DIR", "media")
	v.SetDefault("CACHE_DIR", "cache")
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("STAFF_USERNAMES", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.PageSize <= 0 {
		return errors.New("PAGE_SIZE must be positive")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if c.IsProduction() {
		if c.SessionSecret == defaultSessionSecret {
			return errors.New("SESSION_SECRET must be changed from the default value in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
		if !c.SecureCookies {
			log.Println("WARNING: SECURE_COOKIES is off in production")
		}
	} else if len(c.SessionSecret) < 32 {
		log.Println("WARNING: SESSION_SECRET is shorter than 32 characters")
	}
	return nil
}

// Staff returns the set of usernames allowed into the backoffice.
func (c *Config) Staff() map[string]bool {
	staff := make(map[string]bool)
	for _, name := range strings.Split(c.StaffUsernames, ",") {
		if name = strings.TrimSpace(name); name != "" {
			staff[name] = true
		}
	}
	return staff
}
