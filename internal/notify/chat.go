package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/family-scheduler/internal/reminder"
)

// DefaultTelegramBaseURL is the Telegram Bot API root.
const DefaultTelegramBaseURL = "https://api.telegram.org"

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// FormatChatMessage renders payload as Telegram Markdown: a bold title, the
// body, and the link on its own line.
func FormatChatMessage(payload reminder.Payload) string {
	var b strings.Builder
	b.WriteString("*" + markdownEscaper.Replace(payload.Title) + "*")
	if payload.Body != "" {
		b.WriteString("\n" + markdownEscaper.Replace(payload.Body))
	}
	if payload.URL != "" {
		b.WriteString("\n" + payload.URL)
	}
	return b.String()
}

// ChatConfig configures the Telegram sender.
type ChatConfig struct {
	BotToken string
	BaseURL  string
	Client   *http.Client
}

// ChatSender posts payloads with the Telegram sendMessage method.
type ChatSender struct {
	token   string
	baseURL string
	client  *http.Client
}

var _ ChatPoster = (*ChatSender)(nil)

// NewChatSender creates a sender. Without a bot token every send reports
// ErrChannelUnavailable.
func NewChatSender(cfg ChatConfig) *ChatSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &ChatSender{token: cfg.BotToken, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: cfg.Client}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendChat posts payload to chatID.
func (s *ChatSender) SendChat(ctx context.Context, chatID string, payload reminder.Payload) error {
	if s == nil || s.token == "" {
		return ErrChannelUnavailable
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: FormatChatMessage(payload), ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}

	endpoint := s.baseURL + "/bot" + s.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of the error.
		return fmt.Errorf("send chat message: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("read chat response: %w", err)
	}
	var decoded telegramResponse
	_ = json.Unmarshal(data, &decoded)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !decoded.OK {
		description := decoded.Description
		if description == "" {
			description = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("send chat message: status %d: %s", resp.StatusCode, description)
	}
	return nil
}

func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
