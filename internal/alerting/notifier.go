package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of one detected provider anomaly.
type Notification struct {
	Provider         string
	DetectedAt       time.Time
	RecentAverageMs  float64
	OverallAverageMs float64
	RecentCount      int
	OverallCount     int
	DegradationPct   float64
	ThresholdPct     float64
}

// Notifier delivers anomaly notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the anomaly text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("provider", note.Provider).
		Float64("degradation_pct", note.DegradationPct).
		Msg("anomaly alert sent")
	return nil
}

func renderMessage(note Notification) string {
	fixed := func(v float64) string {
		return decimal.NewFromFloat(v).Round(2).StringFixed(2)
	}

	builder := strings.Builder{}
	builder.WriteString("[Provider Anomaly]\n")
	builder.WriteString(fmt.Sprintf("Provider: %s\n", note.Provider))
	builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", note.DetectedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Recent avg: %s ms over %d requests\n", fixed(note.RecentAverageMs), note.RecentCount))
	builder.WriteString(fmt.Sprintf("Overall avg: %s ms over %d requests\n", fixed(note.OverallAverageMs), note.OverallCount))
	builder.WriteString(fmt.Sprintf("Degradation: %s%% (threshold %s%%)\n", fixed(note.DegradationPct), fixed(note.ThresholdPct)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
