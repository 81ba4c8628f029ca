package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Server
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Auth
	JWTSecret      string
	PipelineAPIKey string

	Market MarketConfig
}

// MarketConfig drives the price source, the ingestion schedule and the
// valuation live-fetch fallback. It can be supplied as a YAML file through
// CONFIG_FILE; environment variables still win over the file.
type MarketConfig struct {
	Source         string        `yaml:"source"`
	SheetID        string        `yaml:"sheet_id"`
	SourceURL      string        `yaml:"source_url"`
	SourceTag      string        `yaml:"source_tag"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SymbolColumns  []string      `yaml:"symbol_columns"`
	PriceColumns   []string      `yaml:"price_columns"`

	SchedulerEnabled bool          `yaml:"scheduler_enabled"`
	ScheduleTimes    []string      `yaml:"schedule_times"`
	Timezone         string        `yaml:"timezone"`
	SnapshotTimeout  time.Duration `yaml:"snapshot_timeout"`

	LiveFetch        bool          `yaml:"live_fetch"`
	LiveFetchTimeout time.Duration `yaml:"live_fetch_timeout"`
}

const defaultSheetID = "2PACX-1vRYSd8G18V945mwYirKuzuTf8hQf3SySFDVL0D5dpWu1MWgCwH1oTwii0O57N2tl7vIZZT6zDGGc1wj"

// DefaultMarketConfig returns the settings used when neither a YAML file nor
// environment variables override them.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		Source:           "sheets",
		SheetID:          defaultSheetID,
		SourceTag:        "google_sheets",
		RequestTimeout:   10 * time.Second,
		SymbolColumns:    []string{"symbol", "simbolo", "ticker"},
		PriceColumns:     []string{"price", "precio", "valor", "cotizacion"},
		SchedulerEnabled: true,
		ScheduleTimes:    []string{"09:00", "12:00", "15:00", "18:00", "21:00"},
		Timezone:         "Local",
		SnapshotTimeout:  2 * time.Minute,
		LiveFetch:        true,
		LiveFetchTimeout: 5 * time.Second,
	}
}

// Load loads configuration from .env, an optional YAML file and environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		Port:     getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "orgfolio"),
		DBPassword: getEnv("DB_PASSWORD", "orgfolio"),
		DBName:     getEnv("DB_NAME", "orgfolio"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "orgfolio.db"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),

		Market: DefaultMarketConfig(),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadMarketFile(path, &config.Market); err != nil {
			return nil, err
		}
	}

	if err := applyMarketEnv(&config.Market); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	m := c.Market
	switch m.Source {
	case "sheets":
		if m.SheetID == "" && m.SourceURL == "" {
			return fmt.Errorf("market source %q needs a sheet id or a source url", m.Source)
		}
	case "json":
		if m.SourceURL == "" {
			return fmt.Errorf("market source %q needs a source url", m.Source)
		}
	default:
		return fmt.Errorf("market source must be sheets or json, got %q", m.Source)
	}
	if m.RequestTimeout <= 0 {
		return fmt.Errorf("market request timeout must be positive, got %v", m.RequestTimeout)
	}
	if m.LiveFetchTimeout <= 0 {
		return fmt.Errorf("live fetch timeout must be positive, got %v", m.LiveFetchTimeout)
	}
	if len(m.SymbolColumns) == 0 || len(m.PriceColumns) == 0 {
		return fmt.Errorf("symbol and price column synonyms cannot be empty")
	}
	if _, err := m.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the scheduler timezone.
func (m MarketConfig) Location() (*time.Location, error) {
	if m.Timezone == "" || m.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", m.Timezone, err)
	}
	return loc, nil
}

func loadMarketFile(path string, m *MarketConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var file struct {
		Market *MarketConfig `yaml:"market"`
	}
	file.Market = m
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config from YAML: %w", err)
	}
	return nil
}

func applyMarketEnv(m *MarketConfig) error {
	m.Source = getEnv("MARKET_SOURCE", m.Source)
	m.SheetID = getEnv("MARKET_SHEET_ID", m.SheetID)
	m.SourceURL = getEnv("MARKET_SOURCE_URL", m.SourceURL)
	m.SourceTag = getEnv("MARKET_SOURCE_TAG", m.SourceTag)
	m.Timezone = getEnv("MARKET_TIMEZONE", m.Timezone)

	if v := os.Getenv("MARKET_SYMBOL_COLUMNS"); v != "" {
		m.SymbolColumns = splitList(v)
	}
	if v := os.Getenv("MARKET_PRICE_COLUMNS"); v != "" {
		m.PriceColumns = splitList(v)
	}
	if v := os.Getenv("SNAPSHOT_SCHEDULE"); v != "" {
		m.ScheduleTimes = splitList(v)
	}

	var err error
	if m.RequestTimeout, err = getDuration("MARKET_REQUEST_TIMEOUT", m.RequestTimeout); err != nil {
		return err
	}
	if m.SnapshotTimeout, err = getDuration("SNAPSHOT_TIMEOUT", m.SnapshotTimeout); err != nil {
		return err
	}
	if m.LiveFetchTimeout, err = getDuration("VALUATION_LIVE_FETCH_TIMEOUT", m.LiveFetchTimeout); err != nil {
		return err
	}
	if m.SchedulerEnabled, err = getBool("SCHEDULER_ENABLED", m.SchedulerEnabled); err != nil {
		return err
	}
	if m.LiveFetch, err = getBool("VALUATION_LIVE_FETCH", m.LiveFetch); err != nil {
		return err
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
