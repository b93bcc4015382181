package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramNotifier sends deployment outcome messages to a Telegram chat
// via the bot API. Sends are rate limited to stay under the bot API's
// per-chat message quota.
type TelegramNotifier struct {
	baseURL    string
	botToken   string
	chatID     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewTelegramNotifier creates a Telegram notifier. baseURL is overridable
// for tests; empty means the public bot API.
func NewTelegramNotifier(botToken, chatID, baseURL string, logger *slog.Logger) *TelegramNotifier {
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	return &TelegramNotifier{
		baseURL:    baseURL,
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// Telegram allows roughly one message per second per chat.
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		logger:  logger.With("notifier", "telegram"),
		now:     time.Now,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Notify sends a formatted outcome message via sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait aborted: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      n.formatMessage(event),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram api error (status %d): %s", resp.StatusCode, raw)
	}

	n.logger.Info("notification sent", "project", event.ProjectName, "outcome", event.Outcome)
	return nil
}

func (n *TelegramNotifier) formatMessage(event Event) string {
	timestamp := n.now().Format(time.RFC1123)

	if event.Outcome == OutcomeSuccess {
		return fmt.Sprintf("✅ *Deployment Successful*\n\n*Project:* %s\n*URL:* %s\n*Status:* %s\n*Time:* %s",
			event.ProjectName, event.DeploymentURL, event.Outcome, timestamp)
	}

	detail := event.ErrorDetail
	if detail == "" {
		detail = "Unknown error"
	}
	return fmt.Sprintf("❌ *Deployment Failed*\n\n*Project:* %s\n*Status:* %s\n*Error:* %s\n*Time:* %s",
		event.ProjectName, event.Outcome, detail, timestamp)
}
