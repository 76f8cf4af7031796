package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"api-aggregator/internal/config"
	"api-aggregator/internal/storage"
)

type fakeEventStore struct {
	events      []storage.AnomalyEvent
	listedLimit int
	prunedAt    *time.Time
}

func (f *fakeEventStore) InsertAnomaly(_ context.Context, event storage.AnomalyEvent) (storage.AnomalyEvent, error) {
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeEventStore) ListRecentAnomalies(_ context.Context, limit int) ([]storage.AnomalyEvent, error) {
	f.listedLimit = limit
	if limit > len(f.events) {
		limit = len(f.events)
	}
	return f.events[:limit], nil
}

func (f *fakeEventStore) ListAnomaliesBetween(context.Context, time.Time, time.Time) ([]storage.AnomalyEvent, error) {
	return f.events, nil
}

func (f *fakeEventStore) DeleteAnomaliesBefore(_ context.Context, olderThan time.Time) error {
	f.prunedAt = &olderThan
	kept := f.events[:0]
	for _, event := range f.events {
		if !event.DetectedAt.Before(olderThan) {
			kept = append(kept, event)
		}
	}
	f.events = kept
	return nil
}

func testApp() *App {
	return &App{Config: &config.Config{}, Logger: zerolog.Nop()}
}

func TestShowEventsListsRecentAnomalies(t *testing.T) {
	store := &fakeEventStore{events: []storage.AnomalyEvent{
		{
			Provider:         "weather",
			RecentAverageMs:  250,
			OverallAverageMs: 100,
			RecentCount:      4,
			OverallCount:     20,
			DegradationPct:   150,
			ThresholdPct:     50,
			DetectedAt:       time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		},
		{
			Provider:   "news",
			DetectedAt: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		},
	}}

	var out bytes.Buffer
	if err := testApp().showEvents(context.Background(), store, &out, ShowOptions{Limit: 10}); err != nil {
		t.Fatalf("show failed: %v", err)
	}

	if store.listedLimit != 10 {
		t.Fatalf("expected limit 10 to reach the store, got %d", store.listedLimit)
	}
	if store.prunedAt != nil {
		t.Fatal("no prune was requested")
	}

	text := out.String()
	for _, want := range []string{"weather", "news", "150.00", "4/20"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestShowEventsPrunesBeforeListing(t *testing.T) {
	old := storage.AnomalyEvent{Provider: "books", DetectedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := storage.AnomalyEvent{Provider: "weather", DetectedAt: time.Now().UTC()}
	store := &fakeEventStore{events: []storage.AnomalyEvent{old, fresh}}

	var out bytes.Buffer
	opts := ShowOptions{Limit: 10, PruneOlderThan: 24 * time.Hour}
	if err := testApp().showEvents(context.Background(), store, &out, opts); err != nil {
		t.Fatalf("show failed: %v", err)
	}

	if store.prunedAt == nil {
		t.Fatal("expected a prune cutoff to reach the store")
	}
	if age := time.Since(*store.prunedAt); age < 23*time.Hour || age > 25*time.Hour {
		t.Fatalf("cutoff should sit one day back, got %v", age)
	}

	text := out.String()
	if strings.Contains(text, "books") {
		t.Fatalf("pruned event must not be listed:\n%s", text)
	}
	if !strings.Contains(text, "weather") {
		t.Fatalf("fresh event missing:\n%s", text)
	}
}

func TestShowEventsEmptyStore(t *testing.T) {
	var out bytes.Buffer
	if err := testApp().showEvents(context.Background(), &fakeEventStore{}, &out, ShowOptions{Limit: 5}); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out.String(), "no anomaly events found") {
		t.Fatalf("expected the empty notice, got %q", out.String())
	}
}
