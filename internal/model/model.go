package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SortOption enumerates the supported result orderings.
type SortOption string

const (
	SortRelevance  SortOption = "relevance"
	SortNewest     SortOption = "newest"
	SortOldest     SortOption = "oldest"
	SortPopularity SortOption = "popularity"
)

// ParseSortOption maps a user-supplied string onto a SortOption.
// Empty input falls back to relevance.
func ParseSortOption(s string) (SortOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relevance":
		return SortRelevance, nil
	case "newest":
		return SortNewest, nil
	case "oldest":
		return SortOldest, nil
	case "popularity":
		return SortPopularity, nil
	default:
		return SortRelevance, fmt.Errorf("unknown sort option %q", s)
	}
}

// AggregationRequest describes one logical query fanned out to all
// applicable providers. Immutable once dispatched.
type AggregationRequest struct {
	Sort       SortOption        `json:"sort"`
	Query      string            `json:"query,omitempty"`
	Country    string            `json:"country,omitempty"`
	Language   string            `json:"language,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// APIResponse is the outcome of one provider call. Providers always return a
// well-formed value; upstream failures land in ErrorMessage with
// IsSuccess=false.
type APIResponse struct {
	Provider     string          `json:"provider"`
	IsSuccess    bool            `json:"isSuccess"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ResponseTime time.Duration   `json:"responseTime"`
}

// AggregationResponse is the combined fan-out result.
type AggregationResponse struct {
	Timestamp           time.Time     `json:"timestamp"`
	TotalResponseTime   time.Duration `json:"totalResponseTime"`
	ProvidersQueried    int           `json:"providersQueried"`
	SuccessfulResponses int           `json:"successfulResponses"`
	Results             []APIResponse `json:"results"`
}
