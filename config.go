package fleetwise

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the fleetwise engine.
type Config struct {
	// StoreDriver selects the reference store implementation:
	// "sqlite" (default) or "memory".
	StoreDriver string `json:"store_driver" yaml:"store_driver"`

	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.fleetwise/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "fleetwise".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.fleetwise/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// ManualsDir is where ingested manual PDFs are stored as <id>.pdf.
	ManualsDir string `json:"manuals_dir" yaml:"manuals_dir"`

	// LLM providers. Chat handles vehicle/topic extraction and answer
	// synthesis; Vision handles page structure and diagram detection
	// during ingestion.
	Chat   LLMConfig `json:"chat" yaml:"chat"`
	Vision LLMConfig `json:"vision" yaml:"vision"`

	// MaxSections is the default cap on retained sections per query.
	MaxSections int `json:"max_sections" yaml:"max_sections"`

	// RenderDPI is the resolution used for page rendering during
	// ingestion and image extraction.
	RenderDPI int `json:"render_dpi" yaml:"render_dpi"`

	// DiagramEvery controls how often diagram detection runs during
	// ingestion: every Nth page. 0 disables diagram detection.
	DiagramEvery int `json:"diagram_every" yaml:"diagram_every"`

	// KeepZeroLengthSections keeps section starts that are superseded on
	// the same page as explicit zero-length records instead of dropping
	// them.
	KeepZeroLengthSections bool `json:"keep_zero_length_sections" yaml:"keep_zero_length_sections"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openai, openrouter, groq, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local use.
// Database is stored in ~/.fleetwise/fleetwise.db by default.
func DefaultConfig() Config {
	return Config{
		StoreDriver: "sqlite",
		DBName:      "fleetwise",
		StorageDir:  "home",
		ManualsDir:  "manuals",
		Chat: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Vision: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		MaxSections:  3,
		RenderDPI:    150,
		DiagramEvery: 2,
	}
}

// LoadConfig reads a config file (YAML or JSON by extension) over the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}

	return cfg, nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "fleetwise"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".fleetwise", name+".db")
	}
}
