package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration of the bridge and the worker.
type Config struct {
	Bridge    BridgeConfig    `toml:"bridge" yaml:"bridge"`
	Worker    WorkerConfig    `toml:"worker" yaml:"worker"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// BridgeConfig holds the UI-side bridge configuration.
type BridgeConfig struct {
	WorkerURL string `envconfig:"FSBRIDGE_WORKER_URL" default:"ws://localhost:8700/ws" toml:"worker_url" yaml:"worker_url"`
	// Concurrency bounds in-flight worker calls; 0 means unbounded.
	Concurrency    int      `envconfig:"FSBRIDGE_CONCURRENCY" default:"0" toml:"concurrency" yaml:"concurrency"`
	CallDelay      Duration `envconfig:"FSBRIDGE_CALL_DELAY" default:"0s" toml:"call_delay" yaml:"call_delay"`
	CoalesceWindow Duration `envconfig:"FSBRIDGE_COALESCE_WINDOW" default:"200ms" toml:"coalesce_window" yaml:"coalesce_window"`
	// Encoding is the default text encoding for reads and writes; empty
	// selects binary mode.
	Encoding  string  `envconfig:"FSBRIDGE_ENCODING" default:"utf8" toml:"encoding" yaml:"encoding"`
	RateLimit float64 `envconfig:"FSBRIDGE_RATE_LIMIT" default:"0" toml:"rate_limit" yaml:"rate_limit"`
}

// WorkerConfig holds the worker process configuration.
type WorkerConfig struct {
	Host string `envconfig:"FSWORKER_HOST" default:"127.0.0.1" toml:"host" yaml:"host"`
	Port string `envconfig:"FSWORKER_PORT" default:"8700" toml:"port" yaml:"port"`
	// Root confines every path the worker touches when set.
	Root              string `envconfig:"FSWORKER_ROOT" toml:"root" yaml:"root"`
	CompressThreshold int    `envconfig:"FSWORKER_COMPRESS_THRESHOLD" default:"65536" toml:"compress_threshold" yaml:"compress_threshold"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" toml:"development" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration of the worker HTTP surface.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" toml:"rps" yaml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled" yaml:"enabled"`
	// Global shares one bucket across all clients instead of one per IP.
	Global            bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false" toml:"global" yaml:"global"`
}

// Duration is a time.Duration that decodes from strings like "200ms" in
// environment variables and config files alike.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a TOML or YAML file over the defaults, then applies every
// environment variable that is set. Keys missing from the file keep their
// defaults.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	fromFile := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(raw, fromFile)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, fromFile)
	default:
		return nil, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	fromEnv, err := Load()
	if err != nil {
		return nil, err
	}
	overlayEnv(reflect.ValueOf(fromFile).Elem(), reflect.ValueOf(fromEnv).Elem())
	return fromFile, nil
}

// overlayEnv copies into dst every field of src whose environment variable
// is present.
func overlayEnv(dst, src reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key, tagged := field.Tag.Lookup("envconfig")
		if !tagged && field.Type.Kind() == reflect.Struct {
			overlayEnv(dst.Field(i), src.Field(i))
			continue
		}
		if _, set := os.LookupEnv(key); tagged && set {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			WorkerURL:      "ws://localhost:8700/ws",
			Concurrency:    0,
			CoalesceWindow: Duration(200 * time.Millisecond),
			Encoding:       "utf8",
		},
		Worker: WorkerConfig{
			Host:              "127.0.0.1",
			Port:              "8700",
			CompressThreshold: 64 << 10,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
