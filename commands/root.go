// Package commands is the review-scraper command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"review-scraper/config"
)

var (
	configPath string
	inputPath  string
)

var rootCmd = &cobra.Command{
	Use:           "review-scraper",
	Short:         "review-scraper crawls restaurant review pages with checkpointed, retrying progress.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "scraper.json5", "Config file (json5); a .local variant is merged over it.")
	rootCmd.PersistentFlags().StringVar(&inputPath, "input", "", "Target list (.json, .jsonl or .txt). Overrides INPUT_PATH.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers command-line flags over config.Load and validates.
func loadConfig(cmd *cobra.Command, overrides ...func(*cobra.Command, *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputPath = inputPath
	}
	for _, apply := range overrides {
		apply(cmd, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
