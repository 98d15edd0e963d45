package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookConfig holds the webhook sink configuration. An empty URL disables
// the sink.
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Secret  string            `mapstructure:"secret"`
	Headers map[string]string `mapstructure:"headers"`
}

// WebhookPayload is the JSON body sent to the webhook URL.
type WebhookPayload struct {
	Event     string `json:"event"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// WebhookSender delivers payloads via HTTP POST to a configured URL, with
// an optional HMAC-SHA256 signature over the body.
type WebhookSender struct {
	client *http.Client
	cfg    WebhookConfig
}

// NewWebhookSender creates a sender with the given config.
func NewWebhookSender(cfg WebhookConfig) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// Send posts the payload to the webhook URL. A non-2xx response counts as a
// delivery error.
func (w *WebhookSender) Send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SiteWatch-Webhook/0.1")
	if w.cfg.Secret != "" {
		req.Header.Set("X-Signature", sign(w.cfg.Secret, body))
	}
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST %s: %w", w.cfg.URL, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook POST %s: status %d", w.cfg.URL, resp.StatusCode)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 of body keyed by secret, the value
// receivers verify against the X-Signature header.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
