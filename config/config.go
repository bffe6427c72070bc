// Package config loads the layer's YAML configuration, applies defaults,
// and validates the result against an embedded JSON Schema before any
// component sees it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Config is the whole layer's configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Eviction   EvictionConfig   `yaml:"eviction" json:"eviction"`
	Skills     SkillsConfig     `yaml:"skills" json:"skills"`
	Memory     MemoryConfig     `yaml:"memory" json:"memory"`
	Filesystem FilesystemConfig `yaml:"filesystem" json:"filesystem"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Sandbox    SandboxConfig    `yaml:"sandbox" json:"sandbox"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

type EvictionConfig struct {
	ThresholdTokens int    `yaml:"threshold_tokens" json:"threshold_tokens"`
	CharsPerToken   int    `yaml:"chars_per_token" json:"chars_per_token"`
	Head            int    `yaml:"head" json:"head"`
	Tail            int    `yaml:"tail" json:"tail"`
	MaxLineChars    int    `yaml:"max_line_chars" json:"max_line_chars"`
	Dir             string `yaml:"dir" json:"dir"`
}

type SkillsConfig struct {
	// Sources are scanned in order; later sources win name collisions.
	Sources     []string `yaml:"sources" json:"sources"`
	Watch       bool     `yaml:"watch" json:"watch"`
	RefreshCron string   `yaml:"refresh_cron" json:"refresh_cron"`
}

type MemoryConfig struct {
	Sources []string `yaml:"sources" json:"sources"`
}

type FilesystemConfig struct {
	Root    string `yaml:"root" json:"root"`
	Virtual bool   `yaml:"virtual" json:"virtual"`
}

type StoreConfig struct {
	// Driver selects the durable store: "sqlite" or "redis".
	Driver    string `yaml:"driver" json:"driver"`
	Path      string `yaml:"path" json:"path"` // sqlite database file
	URL       string `yaml:"url" json:"url"`   // redis URL
	Namespace string `yaml:"namespace" json:"namespace"`
}

type SandboxConfig struct {
	// Kind selects the executor: "none", "host", "docker" or "wasm".
	Kind           string `yaml:"kind" json:"kind"`
	Image          string `yaml:"image" json:"image"`
	MemoryMB       int64  `yaml:"memory_mb" json:"memory_mb"`
	Network        string `yaml:"network" json:"network"`
	ModuleDir      string `yaml:"module_dir" json:"module_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the configured execution timeout as a duration.
func (c SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads, normalizes and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Eviction.ThresholdTokens <= 0 {
		c.Eviction.ThresholdTokens = 20000
	}
	if c.Eviction.CharsPerToken <= 0 {
		c.Eviction.CharsPerToken = 4
	}
	if c.Eviction.Head <= 0 {
		c.Eviction.Head = 5
	}
	if c.Eviction.Tail <= 0 {
		c.Eviction.Tail = 5
	}
	if c.Eviction.MaxLineChars <= 0 {
		c.Eviction.MaxLineChars = 1000
	}
	if c.Eviction.Dir == "" {
		c.Eviction.Dir = "/large_tool_results"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Namespace == "" {
		c.Store.Namespace = "default"
	}
	if c.Sandbox.Kind == "" {
		c.Sandbox.Kind = "none"
	}
	if c.Sandbox.TimeoutSeconds <= 0 {
		c.Sandbox.TimeoutSeconds = 30
	}
}

// Validate checks the normalized config against the embedded schema plus
// the cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal for validation: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("config: decode for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Store.Driver == "sqlite" && c.Store.URL != "" {
		return fmt.Errorf("config: store.url is a redis setting, driver is sqlite")
	}
	if c.Store.Driver == "redis" && c.Store.URL == "" {
		return fmt.Errorf("config: store.url required for the redis driver")
	}
	return nil
}
