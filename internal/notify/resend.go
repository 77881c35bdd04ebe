package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultResendURL = "https://api.resend.com/emails"

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	to         string // supervisor inbox
	fromAddr   string
	fromName   string
	endpoint   string
	httpClient *http.Client
}

// ResendOption customises a Resend client.
type ResendOption func(*resendClient)

// WithEndpoint points the client at a different API URL. Used by tests.
func WithEndpoint(url string) ResendOption {
	return func(c *resendClient) { c.endpoint = url }
}

// NewResendClient returns a Sender that emails alerts to `to` via Resend.
func NewResendClient(apiKey, to, fromAddr, fromName string, opts ...ResendOption) Sender {
	c := &resendClient{
		apiKey:   apiKey,
		to:       to,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: defaultResendURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendEscalationAlert emails the supervisor a summary of a critical analysis.
func (c *resendClient) SendEscalationAlert(ctx context.Context, p AlertParams) error {
	subject := fmt.Sprintf("[M-Shauri] Crisis escalation %s", shortID(p.SessionRef))
	return c.send(ctx, subject, alertHTML(p))
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) send(ctx context.Context, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr)

	bodyBytes, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{c.to},
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("notify: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("notify: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("notify: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}

// ─── HTML TEMPLATE ────────────────────────────────────────────────────────────

// shortID trims long references to 12 characters for the subject line.
func shortID(ref string) string {
	if r := []rune(ref); len(r) > 12 {
		return string(r[:12])
	}
	return ref
}

func alertHTML(p AlertParams) string {
	concerns := "none detected"
	if len(p.Concerns) > 0 {
		concerns = strings.Join(p.Concerns, ", ")
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px; color: #b91c1c;">Crisis escalation</h2>
  <p>A conversation was classified <strong>%s</strong>. Please follow the crisis
  protocol for this session.</p>
  <table style="border-collapse: collapse; font-size: 14px;">
    <tr><td style="padding: 4px 12px 4px 0; color: #6b7280;">Session</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #6b7280;">Crisis score</td><td>%.2f</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #6b7280;">Concerns</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #6b7280;">Raised at</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #6b7280;">Escalation</td><td>%s</td></tr>
  </table>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    M-Shauri · Message content is never included in alerts
  </p>
</body>
</html>`,
		html.EscapeString(p.RiskLevel),
		html.EscapeString(p.SessionRef),
		p.CrisisScore,
		html.EscapeString(concerns),
		p.RaisedAt.UTC().Format(time.RFC1123),
		p.EscalationID,
	)
}
