// Package config provides configuration loading and management for the
// triage engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreBackendMemory = "memory"
	StoreBackendNATS   = "nats"
)

// Config represents the complete triage configuration
type Config struct {
	Model Model `yaml:"model"`
	Store Store `yaml:"store"`
	Inbox Inbox `yaml:"inbox"`
	WIP   WIP   `yaml:"wip"`
	HTTP  HTTP  `yaml:"http"`
}

// Model configures the LLM used for extraction and matching
type Model struct {
	// Provider is the primary provider name (ollama, openai, anthropic)
	Provider string `yaml:"provider"`
	// Endpoint is the provider API endpoint (empty = provider default)
	Endpoint string `yaml:"endpoint"`
	// Model is the model name (e.g., "qwen2.5-coder:32b")
	Model string `yaml:"model"`
	// Fallbacks are tried in order when the primary endpoint fails
	Fallbacks []Fallback `yaml:"fallbacks"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// Fallback is one alternative endpoint in the fallback chain
type Fallback struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// Store configures task persistence
type Store struct {
	// Backend selects persistence: "memory" or "nats"
	Backend string `yaml:"backend"`
	// NATSURL is the NATS server URL when backend is "nats"
	NATSURL string `yaml:"nats_url"`
	// Bucket is the JetStream KV bucket name (empty = default)
	Bucket string `yaml:"bucket"`
}

// Inbox configures the watched notes directory
type Inbox struct {
	// Enabled turns the inbox watcher on
	Enabled bool `yaml:"enabled"`
	// Dir is the directory watched for dropped note files
	Dir string `yaml:"dir"`
	// Debounce is how long a file must be quiet before intake runs
	Debounce time.Duration `yaml:"debounce"`
}

// WIP configures the work-in-progress pressure check
type WIP struct {
	// Limit is how many in-progress tasks are allowed before the engine
	// flags overcommitment
	Limit int `yaml:"limit"`
}

// HTTP configures the API server
type HTTP struct {
	// Addr is the listen address for serve mode
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: Model{
			Provider: "ollama",
			Endpoint: "http://localhost:11434/v1",
			Model:    "qwen2.5-coder:32b",
			Timeout:  2 * time.Minute,
		},
		Store: Store{
			Backend: StoreBackendMemory,
		},
		Inbox: Inbox{
			Enabled:  false,
			Debounce: 2 * time.Second,
		},
		WIP: WIP{
			Limit: 3,
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendNATS:
		if c.Store.NATSURL == "" {
			return fmt.Errorf("store.nats_url is required for the nats backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q", StoreBackendMemory, StoreBackendNATS)
	}
	if c.Inbox.Enabled && c.Inbox.Dir == "" {
		return fmt.Errorf("inbox.dir is required when the inbox is enabled")
	}
	if c.WIP.Limit < 1 {
		return fmt.Errorf("wip.limit must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Model != "" {
		c.Model.Model = other.Model.Model
	}
	if len(other.Model.Fallbacks) > 0 {
		c.Model.Fallbacks = other.Model.Fallbacks
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.NATSURL != "" {
		c.Store.NATSURL = other.Store.NATSURL
	}
	if other.Store.Bucket != "" {
		c.Store.Bucket = other.Store.Bucket
	}

	// Inbox
	if other.Inbox.Dir != "" {
		c.Inbox.Dir = other.Inbox.Dir
		c.Inbox.Enabled = other.Inbox.Enabled
	}
	if other.Inbox.Debounce != 0 {
		c.Inbox.Debounce = other.Inbox.Debounce
	}

	// WIP
	if other.WIP.Limit != 0 {
		c.WIP.Limit = other.WIP.Limit
	}

	// HTTP
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
}
