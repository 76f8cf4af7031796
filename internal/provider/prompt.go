package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"api-aggregator/internal/config"
	"api-aggregator/internal/model"
)

// Prompt generates a creative writing prompt through an OpenAI-compatible
// chat completion endpoint. It is applicable whenever its credential is
// configured; generation is non-deterministic, so responses are never cached.
type Prompt struct {
	endpoint string
	apiKey   string
	modelID  string
	client   *upstreamClient
	logger   zerolog.Logger
}

// NewPrompt constructs the prompt-generation provider.
func NewPrompt(cfg config.PromptProviderConfig, logger zerolog.Logger) *Prompt {
	return &Prompt{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		modelID:  cfg.Model,
		client:   newUpstreamClient(cfg.RequestTimeout),
		logger:   logger.With().Str("component", "prompt_provider").Logger(),
	}
}

func (p *Prompt) Name() string { return "prompt" }

// CanHandle is unconditional: the provider participates in every request as
// long as its upstream credential is configured.
func (p *Prompt) CanHandle(model.AggregationRequest) bool {
	return p.apiKey != ""
}

func (p *Prompt) Fetch(ctx context.Context, req model.AggregationRequest) (model.APIResponse, error) {
	start := time.Now()

	topic := strings.TrimSpace(req.Query)
	instruction := "Generate one short creative writing prompt."
	if topic != "" {
		instruction = fmt.Sprintf("Generate one short creative writing prompt about %s.", topic)
	}

	payload := map[string]any{
		"model": p.modelID,
		"messages": []map[string]string{
			{"role": "user", "content": instruction},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}

	data, err := p.client.postJSON(ctx, p.endpoint, payload, headers)
	if err != nil {
		if ctx.Err() != nil {
			return model.APIResponse{}, ctx.Err()
		}
		return failure(p.Name(), start, err.Error()), nil
	}

	return success(p.Name(), start, data), nil
}

var _ Provider = (*Prompt)(nil)
