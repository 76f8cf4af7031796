package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"api-aggregator/internal/storage"
)

// ExportOptions hold parameters for exporting the anomaly history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders the persisted anomaly history as CSV and/or a PNG chart of
// degradation over time per provider.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-30 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	events, err := store.ListAnomaliesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		a.Logger.Info().Msg("no anomaly events found for export window")
		return nil
	}

	downsampled := downsampleEvents(events, opts.MaxPoints)
	a.Logger.Info().Int("total", len(events)).Int("exported", len(downsampled)).Msg("exporting anomaly events")

	if opts.CSVPath != "" {
		if err := writeEventsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEventsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleEvents(events []storage.AnomalyEvent, max int) []storage.AnomalyEvent {
	if max <= 0 || len(events) <= max {
		return events
	}
	if max == 1 {
		return events[len(events)-1:]
	}

	result := make([]storage.AnomalyEvent, 0, max)
	step := float64(len(events)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(events) {
			idx = len(events) - 1
		}
		result = append(result, events[idx])
	}
	return result
}

func writeEventsCSV(path string, events []storage.AnomalyEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"detected_at", "provider", "recent_avg_ms", "overall_avg_ms", "recent_count", "overall_count", "degradation_pct", "threshold_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, event := range events {
		record := []string{
			event.DetectedAt.Format(time.RFC3339),
			event.Provider,
			strconv.FormatFloat(event.RecentAverageMs, 'f', 2, 64),
			strconv.FormatFloat(event.OverallAverageMs, 'f', 2, 64),
			strconv.Itoa(event.RecentCount),
			strconv.Itoa(event.OverallCount),
			strconv.FormatFloat(event.DegradationPct, 'f', 2, 64),
			strconv.FormatFloat(event.ThresholdPct, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEventsPNG(path string, events []storage.AnomalyEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	byProvider := make(map[string][]storage.AnomalyEvent)
	order := make([]string, 0)
	for _, event := range events {
		if _, ok := byProvider[event.Provider]; !ok {
			order = append(order, event.Provider)
		}
		byProvider[event.Provider] = append(byProvider[event.Provider], event)
	}

	series := make([]chart.Series, 0, len(order))
	for _, provider := range order {
		providerEvents := byProvider[provider]
		x := make([]time.Time, len(providerEvents))
		y := make([]float64, len(providerEvents))
		for i, event := range providerEvents {
			x[i] = event.DetectedAt
			y[i] = event.DegradationPct
		}
		series = append(series, chart.TimeSeries{
			Name:    provider,
			XValues: x,
			YValues: y,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Degradation (%)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
