package provider

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"api-aggregator/internal/cache"
	"api-aggregator/internal/config"
	"api-aggregator/internal/model"
)

// restProvider implements the shared fetch algorithm for config-driven REST
// upstreams: merge parameters, build the credential-free fingerprint, consult
// the cache, and only append the credential to the outgoing URL.
type restProvider struct {
	name        string
	spec        Spec
	endpoint    string
	apiKey      string
	apiKeyParam string
	cacheTTL    time.Duration
	client      *upstreamClient
	cache       cache.Cache
	logger      zerolog.Logger
}

func newRESTProvider(name, endpoint string, cfg config.ProviderConfig, store cache.Cache, logger zerolog.Logger) *restProvider {
	return &restProvider{
		name:        name,
		spec:        SpecFromConfig(cfg.Required, cfg.Filters, cfg.Parameters, cfg.SortParameter, cfg.SortMappings),
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + endpoint,
		apiKey:      cfg.APIKey,
		apiKeyParam: cfg.APIKeyParam,
		cacheTTL:    cfg.CacheTTL,
		client:      newUpstreamClient(cfg.RequestTimeout),
		cache:       store,
		logger:      logger.With().Str("component", name+"_provider").Logger(),
	}
}

func (p *restProvider) Name() string { return p.name }

func (p *restProvider) CanHandle(req model.AggregationRequest) bool {
	return p.spec.Applicable(req)
}

func (p *restProvider) Fetch(ctx context.Context, req model.AggregationRequest) (model.APIResponse, error) {
	start := time.Now()

	params := p.spec.UpstreamParams(req)
	data, err := p.fetchCached(ctx, "data", p.endpoint, params)
	if err != nil {
		if ctx.Err() != nil {
			return model.APIResponse{}, ctx.Err()
		}
		return failure(p.name, start, err.Error()), nil
	}

	return success(p.name, start, data), nil
}

// fetchCached serves one upstream call through the cache. The key is derived
// from the credential-free canonical query; the API key only ever reaches the
// outgoing URL.
func (p *restProvider) fetchCached(ctx context.Context, kind, endpoint string, params map[string]string) ([]byte, error) {
	key := CacheKey(p.name, kind, params)

	if data, err := p.cache.Get(ctx, key); err == nil {
		p.logger.Debug().Str("key", key).Msg("cache hit")
		return data, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	outgoing := maps.Clone(params)
	if p.apiKey != "" && p.apiKeyParam != "" {
		outgoing[p.apiKeyParam] = p.apiKey
	}

	data, err := p.client.getJSON(ctx, endpoint+"?"+CanonicalQuery(outgoing))
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, data, p.cacheTTL); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return data, nil
}

// NewNews builds the news provider on a NewsAPI-style /everything endpoint.
func NewNews(cfg config.ProviderConfig, store cache.Cache, logger zerolog.Logger) Provider {
	return newRESTProvider("news", "/everything", cfg, store, logger)
}

// NewBooks builds the books provider on an Open Library style search
// endpoint.
func NewBooks(cfg config.ProviderConfig, store cache.Cache, logger zerolog.Logger) Provider {
	return newRESTProvider("books", "/search.json", cfg, store, logger)
}
