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

	"vault-rebalancer/internal/engine"
)

// Notification kinds.
const (
	KindSuggestion = "suggestion"
	KindRunFailure = "run_failure"
	KindExecution  = "execution"
)

// Notification captures alert context for a rebalance event.
type Notification struct {
	Kind               string
	Timestamp          time.Time
	SourceChainID      int64
	DestinationChainID int64
	AmountMicro        int64
	ConfidenceScore    float64
	Message            string
}

// Notifier delivers notifications to an operator channel.
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

// NewTelegramNotifier constructs a Telegram channel.
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

// Notify calls the sendMessage API with a rendered text message.
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
		Str("kind", note.Kind).
		Time("timestamp", note.Timestamp).
		Msg("alert delivered (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	switch note.Kind {
	case KindSuggestion:
		builder.WriteString("[Rebalance Suggested]\n")
		builder.WriteString(fmt.Sprintf("At: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339)))
		builder.WriteString(fmt.Sprintf("Transfer: %s USDC from chain %d to chain %d\n",
			engine.FormatMicro(note.AmountMicro), note.SourceChainID, note.DestinationChainID))
		builder.WriteString(fmt.Sprintf("Confidence: %.2f\n", note.ConfidenceScore))
	case KindRunFailure:
		builder.WriteString("[Analysis Run Failed]\n")
		builder.WriteString(fmt.Sprintf("At: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339)))
	case KindExecution:
		builder.WriteString("[Rebalance Executed]\n")
		builder.WriteString(fmt.Sprintf("At: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339)))
		builder.WriteString(fmt.Sprintf("Transfer: %s USDC from chain %d to chain %d\n",
			engine.FormatMicro(note.AmountMicro), note.SourceChainID, note.DestinationChainID))
	}
	if note.Message != "" {
		builder.WriteString(note.Message)
		builder.WriteString("\n")
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
