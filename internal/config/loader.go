package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults; pointer
// fields distinguish an explicit false or zero from an absent key.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	CatalogPath  string `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	CatalogURL   string `json:"catalog_url" yaml:"catalog_url" toml:"catalog_url"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	AllowReload  *bool  `json:"allow_reload" yaml:"allow_reload" toml:"allow_reload"`
	LoadOnInit   bool   `json:"load_on_init" yaml:"load_on_init" toml:"load_on_init"`
	FakeEngine   bool   `json:"fake_engine" yaml:"fake_engine" toml:"fake_engine"`

	Temperature          *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	PollIntervalMS       int      `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	LoadTimeoutSec       int      `json:"load_timeout_sec" yaml:"load_timeout_sec" toml:"load_timeout_sec"`
	ChunkTimeoutSec      int      `json:"chunk_timeout_sec" yaml:"chunk_timeout_sec" toml:"chunk_timeout_sec"`
	CompletionTimeoutSec int      `json:"completion_timeout_sec" yaml:"completion_timeout_sec" toml:"completion_timeout_sec"`

	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Defaults used by WithDefaults.
const (
	DefaultAddr     = "127.0.0.1:8080"
	DefaultLogLevel = "info"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// WithDefaults returns c with unspecified fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.AllowReload == nil {
		t := true
		c.AllowReload = &t
	}
	return c
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0,2]", *c.Temperature)
	}
	for name, v := range map[string]int{
		"poll_interval_ms":       c.PollIntervalMS,
		"load_timeout_sec":       c.LoadTimeoutSec,
		"chunk_timeout_sec":      c.ChunkTimeoutSec,
		"completion_timeout_sec": c.CompletionTimeoutSec,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// PollInterval, LoadTimeout and ChunkTimeout convert the file units; zero
// leaves the manager default in place.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) LoadTimeout() time.Duration { return time.Duration(c.LoadTimeoutSec) * time.Second }

func (c Config) ChunkTimeout() time.Duration { return time.Duration(c.ChunkTimeoutSec) * time.Second }
