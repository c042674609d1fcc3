package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// A missing config file must stay recognizable as not-exist through the
// wrapped read error, so the loader can skip it without warning.
func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected error to wrap fs.ErrNotExist, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.Model.Provider)
	}
	if cfg.Model.Endpoint != "http://localhost:11434/v1" {
		t.Errorf("expected default endpoint http://localhost:11434/v1, got %s", cfg.Model.Endpoint)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("expected memory store by default, got %s", cfg.Store.Backend)
	}
	if cfg.WIP.Limit != 3 {
		t.Errorf("expected default WIP limit 3, got %d", cfg.WIP.Limit)
	}
	if cfg.Inbox.Enabled {
		t.Error("expected inbox disabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing provider",
			modify:  func(c *Config) { c.Model.Provider = "" },
			wantErr: true,
		},
		{
			name:    "missing model",
			modify:  func(c *Config) { c.Model.Model = "" },
			wantErr: true,
		},
		{
			name:    "unknown store backend",
			modify:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: true,
		},
		{
			name: "nats backend without url",
			modify: func(c *Config) {
				c.Store.Backend = StoreBackendNATS
				c.Store.NATSURL = ""
			},
			wantErr: true,
		},
		{
			name: "nats backend with url",
			modify: func(c *Config) {
				c.Store.Backend = StoreBackendNATS
				c.Store.NATSURL = "nats://localhost:4222"
			},
			wantErr: false,
		},
		{
			name: "inbox enabled without dir",
			modify: func(c *Config) {
				c.Inbox.Enabled = true
				c.Inbox.Dir = ""
			},
			wantErr: true,
		},
		{
			name:    "zero wip limit",
			modify:  func(c *Config) { c.WIP.Limit = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
model:
  provider: "anthropic"
  model: "claude-sonnet-4-5"
  timeout: 90s
  fallbacks:
    - provider: ollama
      model: "qwen2.5-coder:32b"
store:
  backend: "nats"
  nats_url: "nats://test:4222"
  bucket: "TASKS_TEST"
inbox:
  enabled: true
  dir: "/notes/inbox"
  debounce: 5s
wip:
  limit: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Model.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %s", cfg.Model.Provider)
	}
	if cfg.Model.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.Model.Timeout)
	}
	if len(cfg.Model.Fallbacks) != 1 || cfg.Model.Fallbacks[0].Provider != "ollama" {
		t.Errorf("expected one ollama fallback, got %+v", cfg.Model.Fallbacks)
	}
	if cfg.Store.Backend != StoreBackendNATS {
		t.Errorf("expected nats backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.NATSURL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.Store.NATSURL)
	}
	if !cfg.Inbox.Enabled || cfg.Inbox.Dir != "/notes/inbox" {
		t.Errorf("expected enabled inbox at /notes/inbox, got %+v", cfg.Inbox)
	}
	if cfg.Inbox.Debounce != 5*time.Second {
		t.Errorf("expected debounce 5s, got %v", cfg.Inbox.Debounce)
	}
	if cfg.WIP.Limit != 5 {
		t.Errorf("expected WIP limit 5, got %d", cfg.WIP.Limit)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Model: Model{
			Model: "override-model",
		},
		Store: Store{
			Backend: StoreBackendNATS,
			NATSURL: "nats://override:4222",
		},
	}

	base.Merge(override)

	if base.Model.Model != "override-model" {
		t.Errorf("expected model override-model, got %s", base.Model.Model)
	}
	// Endpoint should remain from base since override didn't set it
	if base.Model.Endpoint != "http://localhost:11434/v1" {
		t.Errorf("expected endpoint to remain default, got %s", base.Model.Endpoint)
	}
	if base.Store.Backend != StoreBackendNATS {
		t.Errorf("expected nats backend, got %s", base.Store.Backend)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Model = "saved-model"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Model.Model != "saved-model" {
		t.Errorf("expected model saved-model, got %s", loaded.Model.Model)
	}
}
