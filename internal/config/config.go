package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service settings. Values come from an optional YAML file
// and are overridden by environment variables.
type Config struct {
	HTTPAddr     string   `yaml:"http_addr"`
	ServiceName  string   `yaml:"service_name"`
	RedisAddr    string   `yaml:"redis_addr"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	PostgresDSN  string   `yaml:"postgres_dsn"`

	// Scheduler settings
	TickInterval time.Duration `yaml:"tick_interval"`
	EndAtFloor   bool          `yaml:"end_at_floor"`
	Retention    time.Duration `yaml:"retention"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// Load reads the YAML file at path (skipped if path is empty or missing) and
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:     ":8080",
		ServiceName:  "credit-auction",
		TickInterval: 15 * time.Second,
		Retention:    24 * time.Hour,
	}
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http addr is required")
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ServiceName = getenv("SERVICE_NAME", cfg.ServiceName)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.Logging.Level = getenv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Dir = getenv("LOG_DIR", cfg.Logging.Dir)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TickInterval = d
		}
	}
	if v := os.Getenv("RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention = d
		}
	}
	if v := os.Getenv("END_AT_FLOOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EndAtFloor = b
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
