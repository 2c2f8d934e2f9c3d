package fleetwise

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
store_driver: memory
max_sections: 5
chat:
  provider: groq
  model: llama-3.3-70b-versatile
vision:
  provider: openai
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StoreDriver != "memory" || cfg.MaxSections != 5 {
		t.Errorf("config: %+v", cfg)
	}
	if cfg.Chat.Provider != "groq" || cfg.Chat.Model != "llama-3.3-70b-versatile" {
		t.Errorf("chat config: %+v", cfg.Chat)
	}
	// Unset fields keep their defaults.
	if cfg.RenderDPI != 150 || cfg.DiagramEvery != 2 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Vision.Model != "gpt-4o" {
		t.Errorf("vision model default lost: %+v", cfg.Vision)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"db_path": "/tmp/fw.db", "chat": {"provider": "ollama", "model": "llama3"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/fw.db" || cfg.Chat.Provider != "ollama" {
		t.Errorf("config: %+v", cfg)
	}
	if cfg.resolveDBPath() != "/tmp/fw.db" {
		t.Errorf("resolveDBPath: %q", cfg.resolveDBPath())
	}
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestResolveManualsDir(t *testing.T) {
	cfg := Config{DBPath: "/data/fw/fleetwise.db", ManualsDir: "manuals"}
	if got := cfg.resolveManualsDir(); got != "/data/fw/manuals" {
		t.Errorf("relative manuals dir: %q", got)
	}

	cfg.ManualsDir = "/srv/manuals"
	if got := cfg.resolveManualsDir(); got != "/srv/manuals" {
		t.Errorf("absolute manuals dir: %q", got)
	}
}
