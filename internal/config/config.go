package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Currency CurrencyConfig
	Tracker  TrackerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	MaxAttempts        int
	RetryDelay         time.Duration
	PriceWait          time.Duration
	SettleDelay        time.Duration
	VariantClickSettle time.Duration
	StorefrontTimeout  time.Duration
	StorefrontEnabled  bool
}

type BrowserConfig struct {
	Headless          bool
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	ViewportWidth     int
	ViewportHeight    int
	AcceptLanguage    string
	Locale            string
	ProxyServer       string
}

type CurrencyConfig struct {
	RatesURL          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type TrackerConfig struct {
	Workers      int
	RateLimitMin time.Duration
	RateLimitMax time.Duration
	RunTimeout   time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Stream       string
	RelayEnabled bool
	RelayBatch   int
	RelayEvery   time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadDotEnv loads variables from the given files (".env" when none) into the
// process environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			MaxAttempts:        getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 3),
			RetryDelay:         getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
			PriceWait:          getDurationOrDefault("SCRAPER_PRICE_WAIT", 8*time.Second),
			SettleDelay:        getDurationOrDefault("SCRAPER_SETTLE_DELAY", 3*time.Second),
			VariantClickSettle: getDurationOrDefault("SCRAPER_VARIANT_CLICK_SETTLE", time.Second),
			StorefrontTimeout:  getDurationOrDefault("SCRAPER_STOREFRONT_TIMEOUT", 15*time.Second),
			StorefrontEnabled:  getBoolOrDefault("SCRAPER_STOREFRONT_ENABLED", true),
		},
		Browser: BrowserConfig{
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			NavigationTimeout: getDurationOrDefault("BROWSER_NAVIGATION_TIMEOUT", 45*time.Second),
			ActionTimeout:     getDurationOrDefault("BROWSER_ACTION_TIMEOUT", 10*time.Second),
			ViewportWidth:     getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight:    getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 768),
			AcceptLanguage:    getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9,ar;q=0.8"),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			ProxyServer:       getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Currency: CurrencyConfig{
			RatesURL:          getEnvOrDefault("CURRENCY_RATES_URL", "https://open.er-api.com/v6/latest"),
			Timeout:           getDurationOrDefault("CURRENCY_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getFloatOrDefault("CURRENCY_REQUESTS_PER_SECOND", 2),
			Burst:             getIntOrDefault("CURRENCY_BURST", 5),
		},
		Tracker: TrackerConfig{
			Workers:      getIntOrDefault("TRACKER_WORKERS", 2),
			RateLimitMin: getDurationOrDefault("TRACKER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax: getDurationOrDefault("TRACKER_RATE_LIMIT_MAX", 5*time.Second),
			RunTimeout:   getDurationOrDefault("TRACKER_RUN_TIMEOUT", 30*time.Minute),
		},
		Database: DatabaseConfig{
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			DBName:      getEnvOrDefault("DB_NAME", "pricewatch"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns:    int32(getIntOrDefault("DB_MIN_CONNS", 1)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFE", time.Hour),
			MaxConnIdle: getDurationOrDefault("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			Stream:       getEnvOrDefault("REDIS_STREAM", "stream:price_events"),
			RelayEnabled: getBoolOrDefault("REDIS_RELAY_ENABLED", true),
			RelayBatch:   getIntOrDefault("REDIS_RELAY_BATCH", 100),
			RelayEvery:   getDurationOrDefault("REDIS_RELAY_INTERVAL", time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Tracker.Workers < 1 {
		return fmt.Errorf("TRACKER_WORKERS must be at least 1")
	}

	if c.Tracker.RateLimitMin > c.Tracker.RateLimitMax {
		return fmt.Errorf("TRACKER_RATE_LIMIT_MIN cannot be greater than TRACKER_RATE_LIMIT_MAX")
	}

	if c.Currency.RequestsPerSecond < 0 {
		return fmt.Errorf("CURRENCY_REQUESTS_PER_SECOND cannot be negative")
	}

	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and name are required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// writeTimeoutMargin leaves room to write a response after the request
// timeout has cancelled the handler.
const writeTimeoutMargin = 30 * time.Second

// HTTPWriteTimeout is the server write deadline. It never ends before a
// tracking run started over HTTP can answer.
func (c *Config) HTTPWriteTimeout() time.Duration {
	if floor := c.Tracker.RunTimeout + writeTimeoutMargin; c.Server.WriteTimeout < floor {
		return floor
	}
	return c.Server.WriteTimeout
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
