package provider

import (
	"strings"
	"testing"

	"api-aggregator/internal/model"
)

func newsSpec() Spec {
	return SpecFromConfig(
		[]string{"q"},
		map[string]string{"query": "q", "language": "language"},
		[]string{"pageSize"},
		"sortBy",
		map[string]string{"relevance": "relevancy", "newest": "publishedAt"},
	)
}

func TestApplicableViaFilter(t *testing.T) {
	spec := newsSpec()

	req := model.AggregationRequest{Query: "golang"}
	if !spec.Applicable(req) {
		t.Fatal("query filter maps onto required q; provider should apply")
	}
}

func TestApplicableViaDirectParameter(t *testing.T) {
	spec := newsSpec()

	req := model.AggregationRequest{Parameters: map[string]string{"Q": "golang"}}
	if !spec.Applicable(req) {
		t.Fatal("direct parameter match should be case-insensitive")
	}
}

func TestNotApplicableWhenRequiredMissing(t *testing.T) {
	spec := newsSpec()

	cases := []model.AggregationRequest{
		{},
		{Language: "en"},
		{Parameters: map[string]string{"q": "   "}},
		{Parameters: map[string]string{"other": "x"}},
	}
	for i, req := range cases {
		if spec.Applicable(req) {
			t.Fatalf("case %d: provider should not apply to %+v", i, req)
		}
	}
}

func TestMergeFiltersWinOnCollision(t *testing.T) {
	spec := newsSpec()

	req := model.AggregationRequest{
		Query:      "from-filter",
		Parameters: map[string]string{"q": "from-params"},
	}
	merged := spec.Merge(req)
	if merged["q"] != "from-filter" {
		t.Fatalf("filter value should win, got %q", merged["q"])
	}
}

func TestUpstreamParamsIncludesSortMapping(t *testing.T) {
	spec := newsSpec()

	req := model.AggregationRequest{
		Query:      "golang",
		Sort:       model.SortNewest,
		Parameters: map[string]string{"pageSize": "10", "unknown": "dropped"},
	}
	params := spec.UpstreamParams(req)

	if params["sortBy"] != "publishedAt" {
		t.Fatalf("expected sort mapping publishedAt, got %q", params["sortBy"])
	}
	if params["pageSize"] != "10" {
		t.Fatalf("declared pass-through parameter missing: %v", params)
	}
	if _, ok := params["unknown"]; ok {
		t.Fatal("undeclared parameter must not reach the upstream query")
	}
}

func TestUpstreamParamsUnmappedSortOmitted(t *testing.T) {
	spec := newsSpec()

	req := model.AggregationRequest{Query: "golang", Sort: model.SortOldest}
	if _, ok := spec.UpstreamParams(req)["sortBy"]; ok {
		t.Fatal("oldest has no mapping for this provider; sort parameter must be omitted")
	}
}

func TestCanonicalQueryOrderStable(t *testing.T) {
	a := CanonicalQuery(map[string]string{"b": "2", "a": "1", "c": "3"})
	b := CanonicalQuery(map[string]string{"c": "3", "a": "1", "b": "2"})
	if a != b {
		t.Fatalf("canonical query must not depend on map order: %q vs %q", a, b)
	}
	if a != "a=1&b=2&c=3" {
		t.Fatalf("unexpected canonical form %q", a)
	}
}

func TestCacheKeyNeverContainsCredential(t *testing.T) {
	spec := newsSpec()

	req := model.AggregationRequest{
		Query:      "golang",
		Parameters: map[string]string{"pageSize": "10"},
	}
	key := CacheKey("news", "data", spec.UpstreamParams(req))

	for _, secret := range []string{"apikey", "secret-token-123"} {
		if strings.Contains(key, secret) {
			t.Fatalf("cache key %q leaked credential %q", key, secret)
		}
	}
	if !strings.HasPrefix(key, "news:data:") {
		t.Fatalf("cache key %q missing provider/kind prefix", key)
	}
	if key != strings.ToLower(key) {
		t.Fatalf("cache key %q is not lower-cased", key)
	}
}
