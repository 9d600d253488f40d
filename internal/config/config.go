// Package config loads kanban settings from defaults, an optional TOML file
// and KANBAN_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Session  Session  `toml:"session"`
	Argon2   Argon2   `toml:"argon2"`
}

// Server holds HTTP settings.
type Server struct {
	Addr string `toml:"addr"`
	// Development relaxes security headers for local http use.
	Development bool `toml:"development"`
	// LoginRate limits login/register attempts per client, in limiter
	// format such as "20-M".
	LoginRate string `toml:"login-rate"`
	// TrustedProxies may set the client IP through X-Forwarded-For. Empty
	// trusts no proxy.
	TrustedProxies []string `toml:"trusted-proxies"`
}

// Database holds storage settings.
type Database struct {
	Path string `toml:"path"`
}

// Session holds cookie settings.
type Session struct {
	Secret string `toml:"secret"`
	Secure bool   `toml:"secure"`
	MaxAge int    `toml:"max-age"`
}

// Argon2 tunes password hashing. Zero values use the built-in defaults.
type Argon2 struct {
	Memory      uint32 `toml:"memory"`
	Iterations  uint32 `toml:"iterations"`
	Parallelism uint8  `toml:"parallelism"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server: Server{
			Addr:      ":8080",
			LoginRate: "20-M",
		},
		Database: Database{
			Path: "data/kanban.db",
		},
		Session: Session{
			MaxAge: 14 * 24 * 60 * 60,
		},
	}
}

// Load reads path (when non-empty and present) over the defaults and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if _, err := toml.Decode(string(data), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	cfg.Server.Addr = EnvOrDefault("KANBAN_ADDR", cfg.Server.Addr)
	cfg.Server.LoginRate = EnvOrDefault("KANBAN_LOGIN_RATE", cfg.Server.LoginRate)
	if raw := os.Getenv("KANBAN_TRUSTED_PROXIES"); raw != "" {
		cfg.Server.TrustedProxies = splitList(raw)
	}
	cfg.Database.Path = EnvOrDefault("KANBAN_DB_PATH", cfg.Database.Path)
	cfg.Session.Secret = EnvOrDefault("KANBAN_SESSION_SECRET", cfg.Session.Secret)

	var err error
	if cfg.Server.Development, err = envBool("KANBAN_DEV", cfg.Server.Development); err != nil {
		return Config{}, err
	}
	if cfg.Session.Secure, err = envBool("KANBAN_SECURE_COOKIES", cfg.Session.Secure); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvOrDefault returns the environment variable value or fallback when it is empty.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
