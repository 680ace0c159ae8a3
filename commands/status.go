package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/storage"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [--input <targets>]",
	Short: "Prints checkpoint progress without scraping.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := collectStatus(cfg)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

type status struct {
	Checkpoint string
	Total      int
	LastIndex  int
	Results    int
	Reviews    int
	Failures   int
	Missing    int
}

func collectStatus(cfg *config.Config) (*status, error) {
	targets, err := storage.LoadTargets(cfg.InputPath, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	state, err := storage.NewCheckpointFile(cfg.CheckpointPath).Load()
	if err != nil {
		return nil, err
	}
	failures, err := storage.NewFailureLog(cfg.FailurePath).Load()
	if err != nil {
		return nil, err
	}
	var missing []models.MissingTarget
	if cfg.MissingPath != "" {
		if missing, err = storage.NewMissingLog(cfg.MissingPath).Load(); err != nil {
			return nil, err
		}
	}

	st := &status{
		Checkpoint: cfg.CheckpointPath,
		Total:      len(targets),
		LastIndex:  state.LastIndex,
		Results:    len(state.Results),
		Failures:   len(failures),
		Missing:    len(missing),
	}
	for _, r := range state.Results {
		st.Reviews += len(r.Reviews)
	}
	return st, nil
}

func printStatus(w io.Writer, st *status) {
	pct := 0.0
	if st.Total > 0 {
		pct = float64(st.LastIndex) / float64(st.Total) * 100
	}
	sep := strings.Repeat("─", 44)

	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "  Checkpoint : %s\n", st.Checkpoint)
	fmt.Fprintf(w, "  Progress   : %d/%d (%.1f%%)\n", st.LastIndex, st.Total, pct)
	fmt.Fprintf(w, "  Results    : %d restaurants, %d reviews\n", st.Results, st.Reviews)
	fmt.Fprintf(w, "  Failures   : %d\n", st.Failures)
	fmt.Fprintf(w, "  Missing    : %d\n", st.Missing)
	fmt.Fprintln(w, sep)
}
