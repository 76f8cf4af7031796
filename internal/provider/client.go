package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// upstreamClient wraps outbound HTTP with status-error folding so every
// provider reports transport failures the same way.
type upstreamClient struct {
	client *http.Client
}

func newUpstreamClient(timeout time.Duration) *upstreamClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &upstreamClient{client: &http.Client{Timeout: timeout}}
}

func (c *upstreamClient) getJSON(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *upstreamClient) postJSON(ctx context.Context, rawURL string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.do(req)
}

func (c *upstreamClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseUpstreamError(resp.StatusCode, payload)
	}
	return payload, nil
}

type upstreamError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
	Error       string `json:"error"`
}

func parseUpstreamError(status int, payload []byte) error {
	var apiErr upstreamError
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		for _, msg := range []string{apiErr.Message, apiErr.Description, apiErr.Reason, apiErr.Error} {
			if msg != "" {
				return fmt.Errorf("upstream error (%d): %s", status, msg)
			}
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("upstream error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("upstream error (%d)", status)
}
