// Package config loads the service configuration from config/<env>.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the recherche service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Search    SearchConfig    `yaml:"search"`
	Generator GeneratorConfig `yaml:"generator"`
	Load      LoadConfig      `yaml:"load"`
	Messaging MessagingConfig `yaml:"messaging"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Supported database drivers.
const (
	DriverRedis = "redis"
	DriverBleve = "bleve"
)

// DatabaseConfig holds search backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, bleve (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	Index            string   `yaml:"index"`
	Path             string   `yaml:"path"` // bleve only; empty keeps indexes in memory
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// DispatchConfig sizes the pool that turns blocking backend calls into callbacks.
type DispatchConfig struct {
	Workers int `yaml:"workers"`
	Queue   int `yaml:"queue"`
}

// SearchConfig holds query strategy settings.
type SearchConfig struct {
	Size           int     `yaml:"size"`
	PrefixLength   int     `yaml:"prefix_length"`
	MaxExpansions  int     `yaml:"max_expansions"`
	Transpositions *bool   `yaml:"transpositions"`
	MaxDropRatio   float64 `yaml:"max_drop_ratio"` // 0 drops bad hits silently
}

// GeneratorConfig holds synthetic document generation settings.
type GeneratorConfig struct {
	Workers int    `yaml:"workers"`
	Seed    uint64 `yaml:"seed"` // 0 = random
}

// LoadConfig holds load ramp defaults.
type LoadConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Levels    int           `yaml:"levels"`
	Step      int           `yaml:"step"`
	Window    time.Duration `yaml:"window"`
}

// MessagingConfig holds the NATS JetStream consumer settings.
type MessagingConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Stream  string        `yaml:"stream"`
	Subject string        `yaml:"subject"`
	Queue   string        `yaml:"queue"`
	Durable string        `yaml:"durable"`
	AckWait time.Duration `yaml:"ack_wait"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.Index == "" {
		c.Database.Index = "personne"
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "recherche:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Dispatch.Workers <= 0 {
		c.Dispatch.Workers = 16
	}
	if c.Dispatch.Queue <= 0 {
		c.Dispatch.Queue = 1024
	}
	if c.Search.Size <= 0 {
		c.Search.Size = 20
	}
	if c.Search.MaxExpansions <= 0 {
		c.Search.MaxExpansions = 50
	}
	if c.Search.Transpositions == nil {
		on := true
		c.Search.Transpositions = &on
	}
	if c.Generator.Workers <= 0 {
		c.Generator.Workers = runtime.NumCPU()
	}
	if c.Load.BatchSize <= 0 {
		c.Load.BatchSize = 5000
	}
	if c.Load.Levels <= 0 {
		c.Load.Levels = 10
	}
	if c.Load.Step <= 0 {
		c.Load.Step = 10
	}
	if c.Load.Window <= 0 {
		c.Load.Window = time.Second
	}
	if c.Messaging.Stream == "" {
		c.Messaging.Stream = "PERSONNES"
	}
	if c.Messaging.Subject == "" {
		c.Messaging.Subject = "personne-index-cree"
	}
	if c.Messaging.Queue == "" {
		c.Messaging.Queue = "recherche"
	}
	if c.Messaging.Durable == "" {
		c.Messaging.Durable = "recherche-indexer"
	}
	if c.Messaging.AckWait <= 0 {
		c.Messaging.AckWait = 30 * time.Second
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverBleve:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverBleve, c.Database.Driver)
	}
	if c.Search.PrefixLength < 0 {
		return fmt.Errorf("search.prefix_length must not be negative, got %d", c.Search.PrefixLength)
	}
	if c.Search.MaxDropRatio < 0 || c.Search.MaxDropRatio > 1 {
		return fmt.Errorf("search.max_drop_ratio must be between 0 and 1, got %v", c.Search.MaxDropRatio)
	}
	if c.Messaging.Enabled && c.Messaging.URL == "" {
		return fmt.Errorf("messaging.url is required when messaging is enabled")
	}
	if slices.Contains(c.Auth.APIKeys, "") {
		return fmt.Errorf("auth.api_keys must not contain empty keys")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
