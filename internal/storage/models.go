package storage

import "time"

// AnomalyEvent is one persisted anomaly detection, kept for auditing and the
// export command.
type AnomalyEvent struct {
	ID               int64
	Provider         string
	RecentAverageMs  float64
	OverallAverageMs float64
	RecentCount      int
	OverallCount     int
	DegradationPct   float64
	ThresholdPct     float64
	DetectedAt       time.Time
	CreatedAt        time.Time
}
