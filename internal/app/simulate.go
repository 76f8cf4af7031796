package app

import (
	"context"
	"errors"
	"time"

	"api-aggregator/internal/alerting"
)

// SimulateOptions feed a synthetic anomaly through the alert pipeline.
type SimulateOptions struct {
	Provider     string
	RecentAvgMs  float64
	OverallAvgMs float64
}

// SimulateAnomaly exercises the notification path end to end with synthetic
// numbers so alert routing can be verified without degrading a provider.
func (a *App) SimulateAnomaly(ctx context.Context, opts SimulateOptions) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("alerting is not enabled; nothing to simulate")
	}
	if opts.OverallAvgMs <= 0 {
		return errors.New("overall average must be greater than zero")
	}

	degradation := (opts.RecentAvgMs - opts.OverallAvgMs) / opts.OverallAvgMs * 100

	note := alerting.Notification{
		Provider:         opts.Provider,
		DetectedAt:       time.Now().UTC(),
		RecentAverageMs:  opts.RecentAvgMs,
		OverallAverageMs: opts.OverallAvgMs,
		RecentCount:      0,
		OverallCount:     0,
		DegradationPct:   degradation,
		ThresholdPct:     a.Config.Monitor.AnomalyThreshold,
	}

	if err := notifier.Notify(ctx, note); err != nil {
		return err
	}

	a.Logger.Info().Str("provider", opts.Provider).Float64("degradation_pct", degradation).Msg("simulated anomaly dispatched")
	return nil
}
