package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/reminder"
)

const (
	// DefaultResendEndpoint is the Resend email API.
	DefaultResendEndpoint = "https://api.resend.com/emails"
	// DefaultEmailFrom is used when no sender address is configured.
	DefaultEmailFrom = "Family Scheduler <onboarding@resend.dev>"

	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 1 << 10
)

var emailTemplate = template.Must(template.New("email").Parse(`<div style="font-family: sans-serif; max-width: 520px; margin: 0 auto;">
  <h2 style="color: #2563eb;">{{.Title}}</h2>
{{- range .Lines}}
  {{if .Heading}}<h3>{{.Text}}</h3>{{else}}<p>{{.Text}}</p>{{end}}
{{- end}}
{{- if .URL}}
  <hr style="margin: 16px 0; border: none; border-top: 1px solid #e5e7eb;" />
  <a href="{{.URL}}" style="color: #2563eb;">Open Family Scheduler</a>
{{- end}}
</div>
`))

type emailLine struct {
	Text    string
	Heading bool
}

type emailView struct {
	Title string
	Lines []emailLine
	URL   string
}

// RenderEmailHTML renders a payload as the HTML email body. A line that
// follows a blank line is rendered as a section heading.
func RenderEmailHTML(payload reminder.Payload) (string, error) {
	view := emailView{Title: payload.Title, URL: payload.URL}
	lines := strings.Split(payload.Body, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		view.Lines = append(view.Lines, emailLine{Text: line, Heading: i > 0 && strings.TrimSpace(lines[i-1]) == ""})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// EmailConfig configures the Resend email sender.
type EmailConfig struct {
	APIKey   string
	From     string
	Endpoint string
	Client   *http.Client
}

// EmailSender sends payloads through the Resend HTTP API.
type EmailSender struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

var _ Mailer = (*EmailSender)(nil)

// NewEmailSender creates a sender. Without an API key every send reports
// ErrChannelUnavailable.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	if cfg.From == "" {
		cfg.From = DefaultEmailFrom
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultResendEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &EmailSender{apiKey: cfg.APIKey, from: cfg.From, endpoint: cfg.Endpoint, client: cfg.Client}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// SendEmail sends payload to one address.
func (s *EmailSender) SendEmail(ctx context.Context, to string, payload reminder.Payload) error {
	if s == nil || s.apiKey == "" {
		return ErrChannelUnavailable
	}
	html, err := RenderEmailHTML(payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(resendRequest{From: s.from, To: []string{to}, Subject: payload.Title, HTML: html, Text: payload.Body})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send email: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
