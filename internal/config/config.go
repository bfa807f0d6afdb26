package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ETA board services
type Config struct {
	// HTTP
	Port        string   `yaml:"port" validate:"required,numeric"`
	CORSOrigins []string `yaml:"cors_origins"`
	StaticDir   string   `yaml:"static_dir"`

	// Database
	DatabasePath string `yaml:"sqlite_database" validate:"required"`
	DatabaseURL  string `yaml:"database_url" validate:"omitempty,url"`

	// Upstream prediction endpoints. %d placeholders are filled with
	// the stop number (subway) or line and stop number (bus).
	SubwayURL string `yaml:"ttc_subway_url" validate:"required"`
	BusURL    string `yaml:"ttc_bus_url" validate:"required"`

	// Fetch layer
	FetchTimeout    time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	FetchMaxElapsed time.Duration `yaml:"fetch_max_elapsed" validate:"gte=0"`
	QueryCacheSize  int           `yaml:"query_cache_size" validate:"gt=0"`
	QueryCacheTTL   time.Duration `yaml:"query_cache_ttl" validate:"gt=0"`

	// Alerts poller
	GTFSAlertsURL     string        `yaml:"gtfs_alerts_url" validate:"omitempty,url"`
	PollInterval      time.Duration `yaml:"poll_interval" validate:"gt=0"`
	MetricsPort       string        `yaml:"poller_metrics_port" validate:"required,numeric"`
	RetentionDuration time.Duration `yaml:"retention" validate:"gt=0"`
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE
// and then from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:        "8081",
		CORSOrigins: []string{"http://localhost:5173"},

		DatabasePath: "/data/etaboard.db",

		SubwayURL: "https://ntas.ttc.ca/api/ntas/get-next-train-time/%d",
		BusURL:    "https://ntas.ttc.ca/api/ntas/get-next-bus-basic/%d/%d",

		FetchTimeout:    10 * time.Second,
		FetchMaxElapsed: 15 * time.Second,
		QueryCacheSize:  2048,
		QueryCacheTTL:   5 * time.Minute,

		GTFSAlertsURL:     "https://bustime.ttc.ca/gtfsrt/alerts",
		PollInterval:      60 * time.Second,
		MetricsPort:       "9091",
		RetentionDuration: 6 * time.Hour,
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	c.DatabasePath = getEnv("SQLITE_DATABASE", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.SubwayURL = getEnv("TTC_SUBWAY_URL", c.SubwayURL)
	c.BusURL = getEnv("TTC_BUS_URL", c.BusURL)

	c.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.FetchMaxElapsed = getEnvDuration("FETCH_MAX_ELAPSED", c.FetchMaxElapsed)
	c.QueryCacheSize = getEnvInt("QUERY_CACHE_SIZE", c.QueryCacheSize)
	c.QueryCacheTTL = getEnvDuration("QUERY_CACHE_TTL", c.QueryCacheTTL)

	c.GTFSAlertsURL = getEnv("GTFS_ALERTS_URL", c.GTFSAlertsURL)
	c.MetricsPort = getEnv("POLLER_METRICS_PORT", c.MetricsPort)
	c.PollInterval = time.Duration(getEnvInt("POLL_INTERVAL", int(c.PollInterval/time.Second))) * time.Second
	c.RetentionDuration = time.Duration(getEnvInt("RETENTION_HOURS", int(c.RetentionDuration/time.Hour))) * time.Hour
}

// Validate checks the struct tags of the configuration
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("15s") or bare seconds ("15")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
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
