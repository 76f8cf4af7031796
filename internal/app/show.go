package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"api-aggregator/internal/storage"
)

// ShowOptions control the anomaly history listing.
type ShowOptions struct {
	Limit          int
	PruneOlderThan time.Duration
}

// Show prints the most recent anomaly events, optionally pruning old ones
// first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show anomalies")
	}
	if closeStore != nil {
		defer closeStore()
	}

	return a.showEvents(ctx, store, os.Stdout, opts)
}

func (a *App) showEvents(ctx context.Context, store storage.AnomalyEventStore, out io.Writer, opts ShowOptions) error {
	if opts.PruneOlderThan > 0 {
		cutoff := time.Now().UTC().Add(-opts.PruneOlderThan)
		if err := store.DeleteAnomaliesBefore(ctx, cutoff); err != nil {
			return err
		}
		a.Logger.Info().Time("cutoff", cutoff).Msg("pruned anomaly events")
	}

	events, err := store.ListRecentAnomalies(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no anomaly events found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Detected (UTC)\tProvider\tRecent ms\tOverall ms\tDegradation%\tThreshold%\tRecent/Overall")

	for _, event := range events {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			event.DetectedAt.UTC().Format(time.RFC3339),
			event.Provider,
			formatFixed(event.RecentAverageMs),
			formatFixed(event.OverallAverageMs),
			formatFixed(event.DegradationPct),
			formatFixed(event.ThresholdPct),
			event.RecentCount,
			event.OverallCount,
		)
	}

	return writer.Flush()
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
