package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"api-aggregator/internal/app"
)

var (
	showLimit      int
	showPruneOlder time.Duration
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent anomaly events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		if showPruneOlder < 0 {
			return fmt.Errorf("--prune-older-than cannot be negative")
		}

		opts := app.ShowOptions{
			Limit:          showLimit,
			PruneOlderThan: showPruneOlder,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of anomaly events to display")
	showCmd.Flags().DurationVar(&showPruneOlder, "prune-older-than", 0, "Delete events older than this duration before listing")
}
