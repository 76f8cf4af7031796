package monitor

import (
	"github.com/shopspring/decimal"

	"api-aggregator/internal/stats"
)

// Status classifies one provider's performance at evaluation time.
type Status string

const (
	StatusNormal           Status = "Normal"
	StatusAnomaly          Status = "Anomaly"
	StatusInsufficientData Status = "Insufficient Data"
	StatusNoRecentData     Status = "No Recent Data"
)

// Minimum sample counts before degradation is meaningful.
const (
	minOverallRequests = 5
	minRecentRequests  = 2
)

// PerformanceStatus is a snapshot plus its degradation verdict.
type PerformanceStatus struct {
	stats.PerformanceSnapshot
	DegradationPct float64 `json:"degradationPercent"`
	Status         Status  `json:"status"`
}

// Evaluate derives the status for a snapshot against an anomaly threshold.
// It is re-evaluated independently on every read; nothing persists between
// evaluations.
func Evaluate(snapshot stats.PerformanceSnapshot, thresholdPct float64) PerformanceStatus {
	status := PerformanceStatus{PerformanceSnapshot: snapshot}

	if snapshot.RecentAverageMs == nil {
		status.Status = StatusNoRecentData
		return status
	}
	if snapshot.OverallRequestCount < minOverallRequests || snapshot.RecentRequestCount < minRecentRequests {
		status.Status = StatusInsufficientData
		return status
	}

	if snapshot.OverallAverageMs > 0 {
		degradation := (*snapshot.RecentAverageMs - snapshot.OverallAverageMs) / snapshot.OverallAverageMs * 100
		status.DegradationPct = decimal.NewFromFloat(degradation).Round(2).InexactFloat64()
	}

	if status.DegradationPct > thresholdPct {
		status.Status = StatusAnomaly
	} else {
		status.Status = StatusNormal
	}
	return status
}
