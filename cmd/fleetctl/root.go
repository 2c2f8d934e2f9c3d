package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	fleetwise "github.com/dang-hang/fleet-wise-aide"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "fleetctl",
	Short:        "Manage and query vehicle owner's manuals",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `fleetctl ingests vehicle owner's manual PDFs into a local reference
store and answers questions against them using the configured LLM
providers.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// CLI output goes to stdout; keep logs on stderr.
		level := slog.LevelWarn
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = slog.LevelInfo
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable info logging")
}

// newEngine builds an engine from the config file or defaults, with
// provider API keys picked up from the environment.
func newEngine() (fleetwise.Engine, error) {
	cfg := fleetwise.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = fleetwise.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = providerKey(cfg.Chat.Provider)
	}
	if cfg.Vision.APIKey == "" {
		cfg.Vision.APIKey = providerKey(cfg.Vision.Provider)
	}

	return fleetwise.New(cfg)
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "xai":
		return os.Getenv("XAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// printJSON renders command output as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
