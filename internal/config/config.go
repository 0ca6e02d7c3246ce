package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Configuration errors detected at startup. These are fatal: the
// daemon exits before entering the monitor loop.
var (
	ErrMissingNtfyURL = errors.New("NTFY_URL is required")
	ErrInvalidTime    = errors.New("DAILY_TIME must be HH:MM")
)

// Config holds all runtime settings. It is loaded once from the
// environment at startup and never mutated afterwards.
type Config struct {
	NtfyURL   string
	NtfyToken string
	Hostname  string

	TempLimit float64
	DiskLimit float64
	RAMLimit  float64

	DailyTime     string
	CheckInterval time.Duration
	Location      *time.Location

	HistoryDB string
}

// Load reads configuration from environment variables, applying
// defaults and validating everything that would otherwise fail deep
// inside the monitor loop.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("temp_limit", 82)
	v.SetDefault("disk_limit", 90)
	v.SetDefault("ram_limit", 92)
	v.SetDefault("daily_time", "08:00")
	v.SetDefault("check_interval", 60)
	v.SetDefault("tz", "UTC")
	v.SetDefault("history_db", "nomadmon.db")

	cfg := &Config{
		NtfyURL:       v.GetString("ntfy_url"),
		NtfyToken:     v.GetString("ntfy_token"),
		Hostname:      v.GetString("hostname"),
		TempLimit:     v.GetFloat64("temp_limit"),
		DiskLimit:     v.GetFloat64("disk_limit"),
		RAMLimit:      v.GetFloat64("ram_limit"),
		DailyTime:     v.GetString("daily_time"),
		CheckInterval: time.Duration(v.GetInt("check_interval")) * time.Second,
		HistoryDB:     v.GetString("history_db"),
	}

	if cfg.NtfyURL == "" {
		return nil, ErrMissingNtfyURL
	}

	if cfg.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine hostname: %w", err)
		}
		cfg.Hostname = hostname
	}

	if _, err := time.Parse("15:04", cfg.DailyTime); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, cfg.DailyTime)
	}

	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("CHECK_INTERVAL must be positive, got %s", cfg.CheckInterval)
	}

	loc, err := time.LoadLocation(v.GetString("tz"))
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}
