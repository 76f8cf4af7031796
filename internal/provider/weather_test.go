package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"api-aggregator/internal/cache"
	"api-aggregator/internal/config"
	"api-aggregator/internal/model"
)

func weatherConfig(baseURL, geoURL string) config.WeatherProviderConfig {
	return config.WeatherProviderConfig{
		ProviderConfig: config.ProviderConfig{
			BaseURL:        baseURL,
			RequestTimeout: time.Second,
			CacheTTL:       10 * time.Minute,
			Required:       []string{"location"},
			Filters:        map[string]string{"query": "location"},
		},
		GeoBaseURL:  geoURL,
		GeoCacheTTL: 24 * time.Hour,
	}
}

func weatherUpstreams(t *testing.T, geoCalls, dataCalls *atomic.Int32, geoResults []coordinates) (*httptest.Server, *httptest.Server) {
	t.Helper()

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geoCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"results": geoResults})
	}))
	t.Cleanup(geo.Close)

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		if r.URL.Query().Get("latitude") == "" {
			t.Errorf("latitude missing from weather query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"current_weather": map[string]any{"temperature": 18.4}})
	}))
	t.Cleanup(data.Close)

	return geo, data
}

func TestWeatherFetchGeocodesThenFetches(t *testing.T) {
	var geoCalls, dataCalls atomic.Int32
	geo, data := weatherUpstreams(t, &geoCalls, &dataCalls, []coordinates{{Name: "Berlin", Latitude: 52.52, Longitude: 13.405}})

	store := cache.NewMemory()
	p := NewWeather(weatherConfig(data.URL, geo.URL), store, noopLogger())

	req := model.AggregationRequest{Query: "Berlin"}
	if !p.CanHandle(req) {
		t.Fatal("query maps onto the required location parameter")
	}

	resp, err := p.Fetch(context.Background(), req)
	if err != nil || !resp.IsSuccess {
		t.Fatalf("fetch failed: %v / %+v", err, resp)
	}
	if geoCalls.Load() != 1 || dataCalls.Load() != 1 {
		t.Fatalf("expected one call per upstream, got geo=%d data=%d", geoCalls.Load(), dataCalls.Load())
	}

	// second call: geocode resolution and conditions both served from cache
	if _, err := p.Fetch(context.Background(), req); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if geoCalls.Load() != 1 || dataCalls.Load() != 1 {
		t.Fatalf("expected cached second call, got geo=%d data=%d", geoCalls.Load(), dataCalls.Load())
	}
}

func TestWeatherFetchUnresolvableLocation(t *testing.T) {
	var geoCalls, dataCalls atomic.Int32
	geo, data := weatherUpstreams(t, &geoCalls, &dataCalls, nil)

	p := NewWeather(weatherConfig(data.URL, geo.URL), cache.NewMemory(), noopLogger())

	resp, err := p.Fetch(context.Background(), model.AggregationRequest{Query: "Nowhereville"})
	if err != nil {
		t.Fatalf("resolution failure must not surface as an error: %v", err)
	}
	if resp.IsSuccess {
		t.Fatal("expected failure response")
	}
	if !strings.Contains(resp.ErrorMessage, "could not resolve location") {
		t.Fatalf("expected the resolution failure message, got %q", resp.ErrorMessage)
	}
	if dataCalls.Load() != 0 {
		t.Fatal("primary upstream must not be called when geocoding fails")
	}
}

func TestWeatherGeoCacheKeyDistinctFromDataKey(t *testing.T) {
	geoKey := CacheKey("weather", "geo", map[string]string{"name": "Berlin", "count": "1"})
	dataKey := CacheKey("weather", "data", map[string]string{"latitude": "52.5200", "longitude": "13.4050"})

	if !strings.HasPrefix(geoKey, "weather:geo:") || !strings.HasPrefix(dataKey, "weather:data:") {
		t.Fatalf("kind prefixes missing: %q / %q", geoKey, dataKey)
	}
}
