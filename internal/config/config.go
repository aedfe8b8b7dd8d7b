// Package config loads runtime configuration for the Kizuna server.
//
// Every setting has an environment variable; an optional YAML file named by
// KIZUNA_CONFIG can override the defaults before the environment is applied,
// so env vars always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// StoreDriver selects the persistence backend: "sqlite" or "postgres".
	StoreDriver string `yaml:"store_driver"`
	DBPath      string `yaml:"db_path"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisURL enables the background tick scheduler when set.
	RedisURL string `yaml:"redis_url"`

	BotURL    string `yaml:"bot_url"`
	BotAppKey string `yaml:"bot_app_key"`
	// GenerateTimeout is configured via GENERATE_TIMEOUT_SECONDS.
	GenerateTimeout time.Duration `yaml:"-"`

	JWTSecret string `yaml:"jwt_secret"`
	// TokenDuration is configured via TOKEN_DURATION_HOURS.
	TokenDuration time.Duration `yaml:"-"`
}

// Load builds the configuration from the optional YAML file and the
// environment.
func Load() (Config, error) {
	cfg := Config{
		Port:            "8080",
		StoreDriver:     "sqlite",
		DBPath:          "data/kizuna.db",
		GenerateTimeout: 20 * time.Second,
		TokenDuration:   24 * time.Hour,
	}

	if path := os.Getenv("KIZUNA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getString("PORT", cfg.Port)
	cfg.StoreDriver = getString("STORE_DRIVER", cfg.StoreDriver)
	cfg.DBPath = getString("DB_PATH", cfg.DBPath)
	cfg.PostgresDSN = getString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisURL = getString("REDIS_URL", cfg.RedisURL)
	cfg.BotURL = getString("BOT_URL", cfg.BotURL)
	cfg.BotAppKey = getString("BOT_APP_KEY", cfg.BotAppKey)
	cfg.GenerateTimeout = getDuration("GENERATE_TIMEOUT_SECONDS", time.Second, cfg.GenerateTimeout)
	cfg.JWTSecret = getString("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenDuration = getDuration("TOKEN_DURATION_HOURS", time.Hour, cfg.TokenDuration)

	if cfg.StoreDriver != "sqlite" && cfg.StoreDriver != "postgres" {
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "postgres" && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN required with the postgres driver")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, unit, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * unit
		}
	}
	return def
}
