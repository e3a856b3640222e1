// Package config loads the service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/potipress/insideout/pkg/logger"
)

// ServerConfig holds the HTTP listener options.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	// Driver is one of "memory", "postgres" or "supabase".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the optional Redis quota counter backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SupabaseConfig configures the Supabase REST backend.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

// AuthConfig configures bearer token authentication for the /v1 surface.
// An empty secret leaves the surface open.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// EnginesConfig points at the external classification and text generation
// engines.
type EnginesConfig struct {
	ClassifierEndpoint string        `yaml:"classifier_endpoint"`
	GeneratorBin       string        `yaml:"generator_bin"`
	GeneratorModel     string        `yaml:"generator_model"`
	GeneratorTimeout   time.Duration `yaml:"generator_timeout"`
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Supabase SupabaseConfig       `yaml:"supabase"`
	Auth     AuthConfig           `yaml:"auth"`
	Engines  EnginesConfig        `yaml:"engines"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Driver: "memory"},
		Engines: EnginesConfig{
			GeneratorBin:     "ollama",
			GeneratorModel:   "llama3",
			GeneratorTimeout: 2 * time.Minute,
		},
		Logging: logger.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load reads the configuration file, falling back to defaults when path is
// empty, and applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Server.Addr, "INSIDEOUT_ADDR")
	setString(&c.Database.Driver, "INSIDEOUT_DB_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Supabase.URL, "SUPABASE_URL")
	setString(&c.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&c.Auth.Secret, "INSIDEOUT_AUTH_SECRET")
	setString(&c.Engines.ClassifierEndpoint, "CLASSIFIER_ENDPOINT")
	setString(&c.Engines.GeneratorBin, "GENERATOR_BIN")
	setString(&c.Engines.GeneratorModel, "GENERATOR_MODEL")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver postgres requires a dsn")
		}
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			return fmt.Errorf("database driver supabase requires url and service key")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}
