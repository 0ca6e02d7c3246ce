package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("NTFY_URL", "https://ntfy.example.com/alerts")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("HOSTNAME", "testhost")
	t.Setenv("TZ", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://ntfy.example.com/alerts", cfg.NtfyURL)
	require.Empty(t, cfg.NtfyToken)
	require.Equal(t, "testhost", cfg.Hostname)
	require.Equal(t, 82.0, cfg.TempLimit)
	require.Equal(t, 90.0, cfg.DiskLimit)
	require.Equal(t, 92.0, cfg.RAMLimit)
	require.Equal(t, "08:00", cfg.DailyTime)
	require.Equal(t, 60*time.Second, cfg.CheckInterval)
	require.Equal(t, time.UTC, cfg.Location)
	require.Equal(t, "nomadmon.db", cfg.HistoryDB)
}

func TestLoad_MissingNtfyURLIsFatal(t *testing.T) {
	t.Setenv("NTFY_URL", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingNtfyURL)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("NTFY_TOKEN", "tk_secret")
	t.Setenv("TEMP_LIMIT", "75")
	t.Setenv("RAM_LIMIT", "80")
	t.Setenv("DISK_LIMIT", "85")
	t.Setenv("DAILY_TIME", "21:30")
	t.Setenv("CHECK_INTERVAL", "15")
	t.Setenv("TZ", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "tk_secret", cfg.NtfyToken)
	require.Equal(t, 75.0, cfg.TempLimit)
	require.Equal(t, 80.0, cfg.RAMLimit)
	require.Equal(t, 85.0, cfg.DiskLimit)
	require.Equal(t, "21:30", cfg.DailyTime)
	require.Equal(t, 15*time.Second, cfg.CheckInterval)
	require.Equal(t, "Europe/Berlin", cfg.Location.String())
}

func TestLoad_InvalidDailyTime(t *testing.T) {
	setRequired(t)
	t.Setenv("DAILY_TIME", "9am")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidTime)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("TZ", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECK_INTERVAL", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_HostnameFallsBackToSystem(t *testing.T) {
	setRequired(t)
	t.Setenv("HOSTNAME", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Hostname)
}
