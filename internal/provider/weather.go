package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"api-aggregator/internal/cache"
	"api-aggregator/internal/config"
	"api-aggregator/internal/model"
)

// Weather resolves a human location name to coordinates through a secondary
// geocoding upstream, then fetches current conditions. Both steps are cached;
// geocode resolutions live under a long TTL.
type Weather struct {
	rest        *restProvider
	geoEndpoint string
	geoCacheTTL time.Duration
}

// NewWeather constructs the weather provider.
func NewWeather(cfg config.WeatherProviderConfig, store cache.Cache, logger zerolog.Logger) *Weather {
	return &Weather{
		rest:        newRESTProvider("weather", "/forecast", cfg.ProviderConfig, store, logger),
		geoEndpoint: strings.TrimRight(cfg.GeoBaseURL, "/") + "/search",
		geoCacheTTL: cfg.GeoCacheTTL,
	}
}

func (w *Weather) Name() string { return w.rest.name }

func (w *Weather) CanHandle(req model.AggregationRequest) bool {
	return w.rest.spec.Applicable(req)
}

func (w *Weather) Fetch(ctx context.Context, req model.AggregationRequest) (model.APIResponse, error) {
	start := time.Now()

	params := w.rest.spec.UpstreamParams(req)
	location := firstNonEmpty(params, w.rest.spec.Required)
	if location == "" {
		return failure(w.rest.name, start, "no location parameter supplied"), nil
	}

	coords, err := w.resolveLocation(ctx, location)
	if err != nil {
		if ctx.Err() != nil {
			return model.APIResponse{}, ctx.Err()
		}
		return failure(w.rest.name, start, fmt.Sprintf("could not resolve location %q: %s", location, err)), nil
	}

	weatherParams := map[string]string{
		"latitude":        strconv.FormatFloat(coords.Latitude, 'f', 4, 64),
		"longitude":       strconv.FormatFloat(coords.Longitude, 'f', 4, 64),
		"current_weather": "true",
	}

	data, err := w.rest.fetchCached(ctx, "data", w.rest.endpoint, weatherParams)
	if err != nil {
		if ctx.Err() != nil {
			return model.APIResponse{}, ctx.Err()
		}
		return failure(w.rest.name, start, err.Error()), nil
	}

	return success(w.rest.name, start, data), nil
}

type coordinates struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// resolveLocation geocodes a location name, caching the resolution. A
// successful call with an empty result set is a resolution failure, not a
// transport error.
func (w *Weather) resolveLocation(ctx context.Context, location string) (coordinates, error) {
	geoParams := map[string]string{"name": location, "count": "1"}
	key := CacheKey(w.rest.name, "geo", geoParams)

	if cached, err := w.rest.cache.Get(ctx, key); err == nil {
		var coords coordinates
		if err := json.Unmarshal(cached, &coords); err == nil {
			return coords, nil
		}
		w.rest.logger.Warn().Str("key", key).Msg("discarding malformed cached geocode entry")
	}

	payload, err := w.rest.client.getJSON(ctx, w.geoEndpoint+"?"+CanonicalQuery(geoParams))
	if err != nil {
		return coordinates{}, err
	}

	var result struct {
		Results []coordinates `json:"results"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(result.Results) == 0 {
		return coordinates{}, fmt.Errorf("no match")
	}

	coords := result.Results[0]
	if encoded, err := json.Marshal(coords); err == nil {
		if err := w.rest.cache.Set(ctx, key, encoded, w.geoCacheTTL); err != nil {
			w.rest.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return coords, nil
}

func firstNonEmpty(params map[string]string, names []string) string {
	for _, name := range names {
		if value := params[name]; value != "" {
			return value
		}
	}
	return ""
}

var _ Provider = (*Weather)(nil)
