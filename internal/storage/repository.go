package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	insertAnomalySQL = `INSERT INTO anomaly_events (
        provider,
        recent_avg_ms,
        overall_avg_ms,
        recent_count,
        overall_count,
        degradation_pct,
        threshold_pct,
        detected_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, provider, recent_avg_ms, overall_avg_ms, recent_count,
              overall_count, degradation_pct, threshold_pct, detected_at, created_at;`

	listRecentAnomaliesSQL = `SELECT
        id, provider, recent_avg_ms, overall_avg_ms, recent_count,
        overall_count, degradation_pct, threshold_pct, detected_at, created_at
    FROM anomaly_events
    ORDER BY detected_at DESC
    LIMIT $1;`

	listAnomaliesBetweenSQL = `SELECT
        id, provider, recent_avg_ms, overall_avg_ms, recent_count,
        overall_count, degradation_pct, threshold_pct, detected_at, created_at
    FROM anomaly_events
    WHERE detected_at >= $1
      AND detected_at < $2
    ORDER BY detected_at;`

	deleteAnomaliesBeforeSQL = `DELETE FROM anomaly_events WHERE detected_at < $1;`
)

// AnomalyEventStore defines anomaly audit persistence.
type AnomalyEventStore interface {
	InsertAnomaly(ctx context.Context, event AnomalyEvent) (AnomalyEvent, error)
	ListRecentAnomalies(ctx context.Context, limit int) ([]AnomalyEvent, error)
	ListAnomaliesBetween(ctx context.Context, from, to time.Time) ([]AnomalyEvent, error)
	DeleteAnomaliesBefore(ctx context.Context, olderThan time.Time) error
}

// Store provides pgx-backed access to the anomaly audit table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertAnomaly appends one anomaly event and returns the stored row.
func (s *Store) InsertAnomaly(ctx context.Context, event AnomalyEvent) (AnomalyEvent, error) {
	if s.pool == nil {
		return AnomalyEvent{}, ErrNotConfigured
	}

	row := s.pool.QueryRow(ctx, insertAnomalySQL,
		event.Provider,
		event.RecentAverageMs,
		event.OverallAverageMs,
		event.RecentCount,
		event.OverallCount,
		event.DegradationPct,
		event.ThresholdPct,
		event.DetectedAt,
	)

	var stored AnomalyEvent
	if err := scanAnomaly(row, &stored); err != nil {
		return AnomalyEvent{}, fmt.Errorf("insert anomaly event: %w", err)
	}
	return stored, nil
}

// ListRecentAnomalies returns the newest events first.
func (s *Store) ListRecentAnomalies(ctx context.Context, limit int) ([]AnomalyEvent, error) {
	if s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listRecentAnomaliesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent anomalies: %w", err)
	}
	defer rows.Close()

	return collectAnomalies(rows)
}

// ListAnomaliesBetween returns events in [from, to) ordered by detection
// time.
func (s *Store) ListAnomaliesBetween(ctx context.Context, from, to time.Time) ([]AnomalyEvent, error) {
	if s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listAnomaliesBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("list anomalies between: %w", err)
	}
	defer rows.Close()

	return collectAnomalies(rows)
}

// DeleteAnomaliesBefore prunes events older than the given instant.
func (s *Store) DeleteAnomaliesBefore(ctx context.Context, olderThan time.Time) error {
	if s.pool == nil {
		return ErrNotConfigured
	}
	if _, err := s.pool.Exec(ctx, deleteAnomaliesBeforeSQL, olderThan); err != nil {
		return fmt.Errorf("delete anomalies: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnomaly(row rowScanner, event *AnomalyEvent) error {
	return row.Scan(
		&event.ID,
		&event.Provider,
		&event.RecentAverageMs,
		&event.OverallAverageMs,
		&event.RecentCount,
		&event.OverallCount,
		&event.DegradationPct,
		&event.ThresholdPct,
		&event.DetectedAt,
		&event.CreatedAt,
	)
}

type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectAnomalies(rows rowIterator) ([]AnomalyEvent, error) {
	var events []AnomalyEvent
	for rows.Next() {
		var event AnomalyEvent
		if err := scanAnomaly(rows, &event); err != nil {
			return nil, fmt.Errorf("scan anomaly event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomaly events: %w", err)
	}
	return events, nil
}

var _ AnomalyEventStore = (*Store)(nil)
