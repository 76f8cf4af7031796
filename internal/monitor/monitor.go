package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"api-aggregator/internal/alerting"
	"api-aggregator/internal/config"
	"api-aggregator/internal/scheduler"
	"api-aggregator/internal/stats"
	"api-aggregator/internal/storage"
)

// AnomalyStore persists detected anomalies for auditing. Optional.
type AnomalyStore interface {
	InsertAnomaly(ctx context.Context, event storage.AnomalyEvent) (storage.AnomalyEvent, error)
}

// Monitor is the background control loop watching provider latency
// degradation through the statistics collector.
type Monitor struct {
	cfg       config.MonitorConfig
	collector *stats.Collector
	notifier  alerting.Notifier
	store     AnomalyStore
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs a Monitor. Notifier and store may be nil.
func New(cfg config.MonitorConfig, collector *stats.Collector, notifier alerting.Notifier, store AnomalyStore, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		collector: collector,
		notifier:  notifier,
		store:     store,
		logger:    logger.With().Str("component", "anomaly_monitor").Logger(),
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. When monitoring is disabled it returns
// immediately without touching the collector.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Info().Msg("anomaly monitoring disabled")
		return nil
	}

	m.logger.Info().
		Dur("check_interval", m.cfg.CheckInterval).
		Dur("recent_window", m.cfg.RecentWindow).
		Float64("threshold_pct", m.cfg.AnomalyThreshold).
		Msg("anomaly monitor started")

	sched := scheduler.New(scheduler.Options{
		Interval:     m.cfg.CheckInterval,
		StartupDelay: m.cfg.StartupDelay,
	}, m.logger)

	err := sched.Run(ctx, m.Tick)
	m.logger.Info().Msg("anomaly monitor stopped")
	return err
}

// Tick analyses every known provider once. A panic inside the analysis is
// contained so a bad tick never terminates the loop.
func (m *Monitor) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("anomaly analysis panicked: %v", r)
		}
	}()

	for _, name := range m.collector.GetProviderNames() {
		m.analyze(ctx, name)
	}
	return nil
}

func (m *Monitor) analyze(ctx context.Context, provider string) {
	snapshot := m.collector.GetProviderSnapshot(provider, m.cfg.RecentWindow)
	status := Evaluate(snapshot, m.cfg.AnomalyThreshold)

	switch status.Status {
	case StatusInsufficientData, StatusNoRecentData:
		// intentionally silent; the synchronous query surface reports these
		m.logger.Debug().Str("provider", provider).Str("status", string(status.Status)).Msg("skipping provider")
	case StatusAnomaly:
		m.logger.Warn().
			Str("provider", provider).
			Float64("recent_avg_ms", *snapshot.RecentAverageMs).
			Float64("overall_avg_ms", snapshot.OverallAverageMs).
			Int("recent_count", snapshot.RecentRequestCount).
			Int("overall_count", snapshot.OverallRequestCount).
			Float64("degradation_pct", status.DegradationPct).
			Msg("provider performance anomaly detected")
		m.report(ctx, status)
	default:
		m.logger.Info().
			Str("provider", provider).
			Float64("degradation_pct", status.DegradationPct).
			Msg("provider performance normal")
	}
}

func (m *Monitor) report(ctx context.Context, status PerformanceStatus) {
	detectedAt := m.now().UTC()

	if m.store != nil {
		event := storage.AnomalyEvent{
			Provider:         status.Provider,
			RecentAverageMs:  *status.RecentAverageMs,
			OverallAverageMs: status.OverallAverageMs,
			RecentCount:      status.RecentRequestCount,
			OverallCount:     status.OverallRequestCount,
			DegradationPct:   status.DegradationPct,
			ThresholdPct:     m.cfg.AnomalyThreshold,
			DetectedAt:       detectedAt,
		}
		if _, err := m.store.InsertAnomaly(ctx, event); err != nil {
			m.logger.Error().Err(err).Str("provider", status.Provider).Msg("failed to persist anomaly event")
		}
	}

	if m.notifier != nil {
		note := alerting.Notification{
			Provider:         status.Provider,
			DetectedAt:       detectedAt,
			RecentAverageMs:  *status.RecentAverageMs,
			OverallAverageMs: status.OverallAverageMs,
			RecentCount:      status.RecentRequestCount,
			OverallCount:     status.OverallRequestCount,
			DegradationPct:   status.DegradationPct,
			ThresholdPct:     m.cfg.AnomalyThreshold,
		}
		if err := m.notifier.Notify(ctx, note); err != nil {
			m.logger.Error().Err(err).Str("provider", status.Provider).Msg("failed to dispatch anomaly alert")
		}
	}
}
