package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Scraper.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RetryDelay)
	assert.Equal(t, 8*time.Second, cfg.Scraper.PriceWait)
	assert.Equal(t, 3*time.Second, cfg.Scraper.SettleDelay)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "stream:price_events", cfg.Redis.Stream)
	assert.Equal(t, "https://open.er-api.com/v6/latest", cfg.Currency.RatesURL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SCRAPER_MAX_ATTEMPTS", "5")
	t.Setenv("SCRAPER_RETRY_DELAY", "500ms")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("CURRENCY_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("TRACKER_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scraper.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.RetryDelay)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 0.5, cfg.Currency.RequestsPerSecond)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2, cfg.Tracker.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Scraper.MaxAttempts = 0 }},
		{"zero workers", func(c *Config) { c.Tracker.Workers = 0 }},
		{"inverted rate limit", func(c *Config) { c.Tracker.RateLimitMin = time.Minute }},
		{"negative currency rate", func(c *Config) { c.Currency.RequestsPerSecond = -1 }},
		{"missing db name", func(c *Config) { c.Database.DBName = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestHTTPWriteTimeout(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{WriteTimeout: 5 * time.Minute},
		Tracker: TrackerConfig{RunTimeout: 30 * time.Minute},
	}
	assert.Equal(t, 30*time.Minute+30*time.Second, cfg.HTTPWriteTimeout())

	cfg.Server.WriteTimeout = time.Hour
	assert.Equal(t, time.Hour, cfg.HTTPWriteTimeout())

	defaults, err := Load()
	require.NoError(t, err)
	assert.Greater(t, defaults.HTTPWriteTimeout(), defaults.Tracker.RunTimeout)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, DBName: "pw", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/pw?sslmode=require", d.DSN())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PRICEWATCH_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PRICEWATCH_TEST_VALUE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("PRICEWATCH_TEST_VALUE"))
}
