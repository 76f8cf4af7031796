package cli

import (
	"github.com/spf13/cobra"

	"api-aggregator/internal/app"
)

var (
	simulateProvider string
	simulateRecent   float64
	simulateOverall  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a synthetic anomaly through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Provider:     simulateProvider,
			RecentAvgMs:  simulateRecent,
			OverallAvgMs: simulateOverall,
		}
		return getApp().SimulateAnomaly(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateProvider, "provider", "weather", "Provider name to report")
	simulateCmd.Flags().Float64Var(&simulateRecent, "recent-avg", 200, "Synthetic recent average (ms)")
	simulateCmd.Flags().Float64Var(&simulateOverall, "overall-avg", 100, "Synthetic overall average (ms)")
}
