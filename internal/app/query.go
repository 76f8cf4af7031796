package app

import (
	"context"
	"encoding/json"
	"os"

	"api-aggregator/internal/aggregator"
	"api-aggregator/internal/model"
	"api-aggregator/internal/stats"
)

// Query runs a single aggregation from the CLI and prints the combined
// result as indented JSON.
func (a *App) Query(ctx context.Context, req model.AggregationRequest) error {
	cacheStore, closeCache, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	orchestrator := aggregator.New(a.newProviders(cacheStore), stats.NewCollector(), a.Logger)

	resp, err := orchestrator.Aggregate(ctx, req)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
