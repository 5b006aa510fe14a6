// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Browser session
	ChromeWSURL string // attach to an existing Chrome (DevTools websocket URL); empty = launch
	TargetURL   string // page to open when launching a fresh browser
	Headless    bool

	// Database
	DBPath string

	// Scheduler
	TickInterval time.Duration
	DelayMin     time.Duration // lower bound of the randomized gap between sends
	DelayMax     time.Duration

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if the
// browser endpoint is missing; in that case a local Chrome is launched instead.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ChromeWSURL = os.Getenv("CHROME_WS_URL")
	cfg.TargetURL = os.Getenv("LURK_TARGET_URL")
	if cfg.TargetURL == "" {
		cfg.TargetURL = "https://www.twitch.tv/"
	}
	cfg.Headless = os.Getenv("LURK_HEADLESS") == "1"

	cfg.DBPath = os.Getenv("LURK_DB_PATH")
	if cfg.DBPath == "" {
		cfg.DBPath = "data/lurk.db"
	}

	cfg.TickInterval = envDuration("LURK_TICK_INTERVAL", time.Second)
	cfg.DelayMin = envDuration("LURK_DELAY_MIN", 13*time.Minute)
	cfg.DelayMax = envDuration("LURK_DELAY_MAX", 15*time.Minute)
	if cfg.DelayMin > cfg.DelayMax {
		return nil, fmt.Errorf("LURK_DELAY_MIN (%s) exceeds LURK_DELAY_MAX (%s)", cfg.DelayMin, cfg.DelayMax)
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}
