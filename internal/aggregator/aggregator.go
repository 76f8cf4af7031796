package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"api-aggregator/internal/model"
	"api-aggregator/internal/provider"
	"api-aggregator/internal/stats"
)

// Orchestrator fans one request out to every applicable provider
// concurrently, isolates per-provider failures, and records one statistics
// observation per attempted call.
type Orchestrator struct {
	providers []provider.Provider
	collector *stats.Collector
	logger    zerolog.Logger
}

// New constructs an Orchestrator over a fixed provider set.
func New(providers []provider.Provider, collector *stats.Collector, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		collector: collector,
		logger:    logger.With().Str("component", "aggregator").Logger(),
	}
}

type outcome struct {
	resp      model.APIResponse
	elapsed   time.Duration
	cancelled bool
}

// Aggregate runs the fan-out and joins all provider tasks. The returned
// error is non-nil only when the context was cancelled.
func (o *Orchestrator) Aggregate(ctx context.Context, req model.AggregationRequest) (model.AggregationResponse, error) {
	start := time.Now()

	applicable := make([]provider.Provider, 0, len(o.providers))
	for _, p := range o.providers {
		if p.CanHandle(req) {
			applicable = append(applicable, p)
		}
	}

	response := model.AggregationResponse{
		Timestamp:        start.UTC(),
		ProvidersQueried: len(applicable),
		Results:          make([]model.APIResponse, 0, len(applicable)),
	}

	if len(applicable) == 0 {
		response.TotalResponseTime = time.Since(start)
		o.logger.Debug().Msg("no provider can handle the request")
		return response, nil
	}

	outcomes := make([]outcome, len(applicable))
	var wg sync.WaitGroup
	for i, p := range applicable {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			outcomes[i] = o.callProvider(ctx, p, req)
		}(i, p)
	}
	wg.Wait()

	response.TotalResponseTime = time.Since(start)

	cancelled := false
	for _, out := range outcomes {
		if out.cancelled {
			cancelled = true
			continue
		}
		o.collector.RecordRequest(out.resp.Provider, out.elapsed, out.resp.IsSuccess)
		if out.resp.IsSuccess {
			response.SuccessfulResponses++
		}
		response.Results = append(response.Results, out.resp)
	}

	if cancelled && ctx.Err() != nil {
		return model.AggregationResponse{}, ctx.Err()
	}

	o.logger.Info().
		Int("providers_queried", response.ProvidersQueried).
		Int("successful", response.SuccessfulResponses).
		Dur("elapsed", response.TotalResponseTime).
		Msg("aggregation complete")

	return response, nil
}

// callProvider wraps one Fetch in a failure boundary: a panic or unexpected
// error becomes a failed response instead of aborting sibling tasks.
func (o *Orchestrator) callProvider(ctx context.Context, p provider.Provider, req model.AggregationRequest) (out outcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("provider", p.Name()).Interface("panic", r).Msg("provider panicked")
			out = outcome{
				resp: model.APIResponse{
					Provider:     p.Name(),
					IsSuccess:    false,
					ErrorMessage: fmt.Sprintf("provider error: %v", r),
					ResponseTime: time.Since(start),
				},
				elapsed: time.Since(start),
			}
		}
	}()

	resp, err := p.Fetch(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		// a context error only counts as cancellation when the request
		// context itself is done; a live context means the provider
		// misbehaved and its failure must still appear in the results
		if (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
			return outcome{cancelled: true}
		}
		return outcome{
			resp: model.APIResponse{
				Provider:     p.Name(),
				IsSuccess:    false,
				ErrorMessage: "provider error: " + err.Error(),
				ResponseTime: elapsed,
			},
			elapsed: elapsed,
		}
	}

	resp.Provider = p.Name()
	if resp.ResponseTime == 0 {
		resp.ResponseTime = elapsed
	}
	if !resp.IsSuccess {
		o.logger.Warn().Str("provider", p.Name()).Str("error", resp.ErrorMessage).Msg("provider reported failure")
	}
	return outcome{resp: resp, elapsed: elapsed}
}
