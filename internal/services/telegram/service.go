// Package telegram sends backup run summaries to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
)

// Service defines the interface for run notifications.
type Service interface {
	SendRunSummary(ctx context.Context, cfg models.TelegramConfig, rec models.RunRecord) error
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new telegram service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.telegram.org",
	}
}

// NewWithClient creates a new telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// sendMessageRequest is the request body for the Telegram sendMessage API.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendRunSummary posts a summary of one backup run to the configured chat.
func (s *Impl) SendRunSummary(ctx context.Context, cfg models.TelegramConfig, rec models.RunRecord) error {
	s.logger.Info().
		Str("chat_id", cfg.ChatID).
		Bool("success", rec.Success).
		Msg("sending Telegram notification")

	reqBody := sendMessageRequest{
		ChatID:    cfg.ChatID,
		Text:      formatRunSummary(rec),
		ParseMode: "HTML",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	s.logger.Info().Msg("Telegram notification sent")
	return nil
}

func formatRunSummary(rec models.RunRecord) string {
	var b bytes.Buffer

	if rec.Success {
		b.WriteString(fmt.Sprintf("✅ <b>%s backup completed</b>\n\n", rec.Class))
	} else {
		b.WriteString(fmt.Sprintf("❌ <b>%s backup failed</b>\n\n", rec.Class))
	}

	b.WriteString(fmt.Sprintf("<b>Generation:</b> <code>%s</code>\n", escapeHTML(rec.Destination)))
	b.WriteString(fmt.Sprintf("<b>Started:</b> %s\n", rec.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("<b>Duration:</b> %s\n", rec.Duration.Round(time.Second)))

	if rec.DBsDumped > 0 || rec.DBsFailed > 0 {
		b.WriteString(fmt.Sprintf("<b>Databases:</b> %d dumped, %d failed\n", rec.DBsDumped, rec.DBsFailed))
	}

	if !rec.Success {
		b.WriteString(fmt.Sprintf("\n<b>Failed step:</b> %s\n", escapeHTML(rec.FailedStep)))
		b.WriteString(fmt.Sprintf("<b>Error:</b> <code>%s</code>\n", escapeHTML(rec.Message)))
	}

	return b.String()
}

// escapeHTML escapes the characters Telegram's HTML parse mode treats specially.
func escapeHTML(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
