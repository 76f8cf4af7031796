package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"api-aggregator/internal/model"
)

// Provider is one pluggable upstream data source. CanHandle is a pure
// predicate; Fetch self-contains upstream failures into the response and
// returns a non-nil error only for cancellation.
type Provider interface {
	Name() string
	CanHandle(req model.AggregationRequest) bool
	Fetch(ctx context.Context, req model.AggregationRequest) (model.APIResponse, error)
}

// Spec is the declarative applicability and query-building configuration for
// one provider: which upstream parameter names make it applicable, how
// request fields map onto upstream parameters, which extra parameters pass
// through, and how sort options translate.
type Spec struct {
	Required      []string
	Filters       map[string]string
	Parameters    []string
	SortParameter string
	SortMappings  map[model.SortOption]string
}

// SpecFromConfig converts the loosely-typed config maps into a Spec. Sort
// mapping keys were validated at startup.
func SpecFromConfig(required []string, filters map[string]string, parameters []string, sortParam string, sortMappings map[string]string) Spec {
	spec := Spec{
		Required:      required,
		Filters:       make(map[string]string, len(filters)),
		Parameters:    parameters,
		SortParameter: sortParam,
		SortMappings:  make(map[model.SortOption]string, len(sortMappings)),
	}
	for field, target := range filters {
		spec.Filters[strings.ToLower(field)] = target
	}
	for name, value := range sortMappings {
		if opt, err := model.ParseSortOption(name); err == nil {
			spec.SortMappings[opt] = value
		}
	}
	return spec
}

// filterValues maps non-empty request fields through the filter table onto
// upstream parameter names.
func (s Spec) filterValues(req model.AggregationRequest) map[string]string {
	fields := map[string]string{
		"query":    req.Query,
		"country":  req.Country,
		"language": req.Language,
	}

	out := make(map[string]string)
	for field, target := range s.Filters {
		if value := strings.TrimSpace(fields[field]); value != "" {
			out[target] = value
		}
	}
	return out
}

// Merge combines request parameters with filter-derived values. Filters win
// on key collision. Keys are lower-cased so matching stays case-insensitive.
func (s Spec) Merge(req model.AggregationRequest) map[string]string {
	merged := make(map[string]string, len(req.Parameters)+len(s.Filters))
	for key, value := range req.Parameters {
		if value = strings.TrimSpace(value); value != "" {
			merged[strings.ToLower(key)] = value
		}
	}
	for key, value := range s.filterValues(req) {
		merged[strings.ToLower(key)] = value
	}
	return merged
}

// Applicable reports whether at least one required parameter name is
// satisfied by the merged request parameters.
func (s Spec) Applicable(req model.AggregationRequest) bool {
	if len(s.Required) == 0 {
		return false
	}
	merged := s.Merge(req)
	for _, name := range s.Required {
		if merged[strings.ToLower(name)] != "" {
			return true
		}
	}
	return false
}

// UpstreamParams narrows the merged request down to the parameters this
// provider actually forwards: required names, declared pass-through
// parameters, filter targets, and the mapped sort value. Keys come out in
// their declared case; only the cache-key fingerprint is lower-cased.
func (s Spec) UpstreamParams(req model.AggregationRequest) map[string]string {
	merged := s.Merge(req)

	out := make(map[string]string, len(merged))
	add := func(name string) {
		if value := merged[strings.ToLower(name)]; value != "" {
			out[name] = value
		}
	}
	for _, name := range s.Required {
		add(name)
	}
	for _, name := range s.Parameters {
		add(name)
	}
	for _, target := range s.Filters {
		add(target)
	}

	if s.SortParameter != "" {
		if mapped, ok := s.SortMappings[req.Sort]; ok && mapped != "" {
			out[s.SortParameter] = mapped
		}
	}
	return out
}

// CanonicalQuery renders parameters as an order-stable query string. The
// caller guarantees no credential is present; this string doubles as the
// cache-key fingerprint.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, key := range keys {
		values.Set(key, params[key])
	}
	return values.Encode()
}

// CacheKey builds the lower-cased, kind-prefixed cache key for a provider
// call. Credentials never reach this function.
func CacheKey(provider, kind string, params map[string]string) string {
	return fmt.Sprintf("%s:%s:%s", provider, kind, strings.ToLower(CanonicalQuery(params)))
}

func failure(provider string, start time.Time, msg string) model.APIResponse {
	return model.APIResponse{
		Provider:     provider,
		IsSuccess:    false,
		ErrorMessage: msg,
		ResponseTime: time.Since(start),
	}
}

func success(provider string, start time.Time, data []byte) model.APIResponse {
	return model.APIResponse{
		Provider:     provider,
		IsSuccess:    true,
		Data:         data,
		ResponseTime: time.Since(start),
	}
}
