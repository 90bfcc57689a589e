// Package config loads chatscan settings: built-in defaults, then an optional
// YAML file, then CHATSCAN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CHATSCAN_SCAN_PAGE_SIZE.
const EnvPrefix = "CHATSCAN"

// Corpus drivers.
const (
	DriverDRF    = "drf"
	DriverSQLite = "sqlite"
)

// Config is the full chatscan configuration.
type Config struct {
	Corpus CorpusConfig `yaml:"corpus"`
	Scan   ScanConfig   `yaml:"scan"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// CorpusConfig selects and tunes the page source.
type CorpusConfig struct {
	Driver        string        `yaml:"driver"`                              // drf or sqlite
	BaseURL       string        `yaml:"base_url" split_words:"true"`         // DRF API root
	SQLitePath    string        `yaml:"sqlite_path" envconfig:"SQLITE_PATH"` // local mirror file
	Timeout       time.Duration `yaml:"timeout"`                             // per HTTP request
	RateLimit     float64       `yaml:"rate_limit" split_words:"true"`       // fetches per second, 0 = unlimited
	Burst         int           `yaml:"burst"`                               // limiter burst
	RetryAttempts int           `yaml:"retry_attempts" split_words:"true"`   // total tries per page
}

// ScanConfig bounds scan passes and match admission.
type ScanConfig struct {
	PageSize   int     `yaml:"page_size" split_words:"true"`
	BatchPages int     `yaml:"batch_pages" split_words:"true"`
	MaxPages   int     `yaml:"max_pages" split_words:"true"`
	Threshold  float64 `yaml:"threshold"`
}

// StoreConfig locates the session database.
type StoreConfig struct {
	DBPath string `yaml:"db_path" split_words:"true"`
}

// ServerConfig holds daemon settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" split_words:"true"` // 0 = derived from db path
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Driver:        DriverDRF,
			BaseURL:       "http://localhost:8000/api",
			SQLitePath:    filepath.Join(DataDir(), "corpus.db"),
			Timeout:       30 * time.Second,
			RateLimit:     5,
			Burst:         1,
			RetryAttempts: 3,
		},
		Scan: ScanConfig{
			PageSize:   500,
			BatchPages: 50,
			MaxPages:   1000,
			Threshold:  0.70,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(DataDir(), "sessions.db"),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the config file at path ("" = DefaultPath), applies
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads only the file layer over the defaults, without environment
// overrides or validation. Used when editing the file.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides overlays CHATSCAN_* variables. Unset variables leave the
// current value alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Corpus.Driver {
	case DriverDRF:
		if c.Corpus.BaseURL == "" {
			return errors.New("corpus.base_url is required for the drf driver")
		}
	case DriverSQLite:
		if c.Corpus.SQLitePath == "" {
			return errors.New("corpus.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("corpus.driver must be drf or sqlite (got: %s)", c.Corpus.Driver)
	}
	if c.Corpus.RateLimit < 0 {
		return errors.New("corpus.rate_limit must be >= 0")
	}
	if c.Corpus.RetryAttempts < 1 {
		return errors.New("corpus.retry_attempts must be >= 1")
	}
	if c.Corpus.Timeout < 0 {
		return errors.New("corpus.timeout must be >= 0")
	}
	if c.Scan.PageSize < 1 {
		return errors.New("scan.page_size must be >= 1")
	}
	if c.Scan.BatchPages < 1 {
		return errors.New("scan.batch_pages must be >= 1")
	}
	if c.Scan.MaxPages < c.Scan.BatchPages {
		return errors.New("scan.max_pages must be >= scan.batch_pages")
	}
	if c.Scan.Threshold <= 0 || c.Scan.Threshold > 1 {
		return fmt.Errorf("scan.threshold must be in (0,1] (got: %g)", c.Scan.Threshold)
	}
	if c.Store.DBPath == "" {
		return errors.New("store.db_path is required")
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}
	return nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// field binds a dotted key to its getter and setter.
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("not an integer: %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func floatField(p func(c *Config) *float64) field {
	return field{
		get: func(c *Config) string { return strconv.FormatFloat(*p(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("not a number: %q", v)
			}
			*p(c) = f
			return nil
		},
	}
}

func durationField(p func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return p(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("not a duration: %q", v)
			}
			*p(c) = d
			return nil
		},
	}
}

var fields = map[string]field{
	"corpus.driver":         stringField(func(c *Config) *string { return &c.Corpus.Driver }),
	"corpus.base_url":       stringField(func(c *Config) *string { return &c.Corpus.BaseURL }),
	"corpus.sqlite_path":    stringField(func(c *Config) *string { return &c.Corpus.SQLitePath }),
	"corpus.timeout":        durationField(func(c *Config) *time.Duration { return &c.Corpus.Timeout }),
	"corpus.rate_limit":     floatField(func(c *Config) *float64 { return &c.Corpus.RateLimit }),
	"corpus.burst":          intField(func(c *Config) *int { return &c.Corpus.Burst }),
	"corpus.retry_attempts": intField(func(c *Config) *int { return &c.Corpus.RetryAttempts }),
	"scan.page_size":        intField(func(c *Config) *int { return &c.Scan.PageSize }),
	"scan.batch_pages":      intField(func(c *Config) *int { return &c.Scan.BatchPages }),
	"scan.max_pages":        intField(func(c *Config) *int { return &c.Scan.MaxPages }),
	"scan.threshold":        floatField(func(c *Config) *float64 { return &c.Scan.Threshold }),
	"store.db_path":         stringField(func(c *Config) *string { return &c.Store.DBPath }),
	"server.http_port":      intField(func(c *Config) *int { return &c.Server.HTTPPort }),
	"log.level":             stringField(func(c *Config) *string { return &c.Log.Level }),
}

// ListKeys returns every settable key, sorted.
func ListKeys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a value by dotted key, e.g. "scan.threshold".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("unknown key: %s", key)
	}
	return f.get(c), nil
}

// Set parses value into the dotted key and re-validates. On a validation
// failure the previous value is restored.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	prev := f.get(c)
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := c.Validate(); err != nil {
		f.set(c, prev)
		return err
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
