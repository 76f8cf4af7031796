package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"api-aggregator/internal/config"
	"api-aggregator/internal/model"
)

func TestPromptNotApplicableWithoutCredential(t *testing.T) {
	p := NewPrompt(config.PromptProviderConfig{BaseURL: "https://example.com"}, noopLogger())
	if p.CanHandle(model.AggregationRequest{Query: "anything"}) {
		t.Fatal("provider without a credential must never apply")
	}
}

func TestPromptUnconditionallyApplicableWithCredential(t *testing.T) {
	p := NewPrompt(config.PromptProviderConfig{BaseURL: "https://example.com", APIKey: "key"}, noopLogger())

	if !p.CanHandle(model.AggregationRequest{}) {
		t.Fatal("an empty request must still be handled")
	}
	if !p.CanHandle(model.AggregationRequest{Country: "de"}) {
		t.Fatal("applicability must not depend on request fields")
	}
}

func TestPromptFetchSendsBearerToken(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "Write about a lighthouse."}}},
		})
	}))
	defer srv.Close()

	p := NewPrompt(config.PromptProviderConfig{
		BaseURL:        srv.URL,
		APIKey:         "key",
		Model:          "gpt-4o-mini",
		RequestTimeout: time.Second,
	}, noopLogger())

	resp, err := p.Fetch(context.Background(), model.AggregationRequest{Query: "the sea"})
	if err != nil || !resp.IsSuccess {
		t.Fatalf("fetch failed: %v / %+v", err, resp)
	}
	if gotAuth != "Bearer key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model missing from payload: %v", gotBody)
	}
}
