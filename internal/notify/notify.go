// Package notify delivers monitor alerts through configured sinks: a
// structured log always, and an optional webhook with HMAC-SHA256 request
// signing. It serves the notification role for the monitor's subscriber
// fan-out and mirrors alert events from the bus to the webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/HollowOak/sitewatch/internal/watch"
	"github.com/HollowOak/sitewatch/pkg/plugin"
	"github.com/HollowOak/sitewatch/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ roles.Notifier         = (*Module)(nil)
)

// Config holds the notify plugin configuration.
type Config struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Webhook: WebhookConfig{Timeout: 10 * time.Second},
	}
}

// Module implements the Notify plugin.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	webhook *WebhookSender
}

// New creates a new Notify plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "notify",
		Version:     "0.1.0",
		Description: "Delivers monitor alerts via structured logs and an optional signed webhook",
		Roles:       []string{roles.RoleNotification},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	// Load config with defaults.
	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if u := deps.Config.GetString("webhook.url"); u != "" {
			m.cfg.Webhook.URL = u
		}
		if d := deps.Config.GetDuration("webhook.timeout"); d > 0 {
			m.cfg.Webhook.Timeout = d
		}
		if s := deps.Config.GetString("webhook.secret"); s != "" {
			m.cfg.Webhook.Secret = s
		}
		// Viper hands back map[string]any for YAML sources and the
		// original type for programmatic Set.
		switch raw := deps.Config.Get("webhook.headers").(type) {
		case map[string]string:
			if len(raw) > 0 {
				m.cfg.Webhook.Headers = raw
			}
		case map[string]any:
			headers := make(map[string]string, len(raw))
			for k, v := range raw {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
			if len(headers) > 0 {
				m.cfg.Webhook.Headers = headers
			}
		}
	}

	if m.cfg.Webhook.URL != "" {
		m.webhook = NewWebhookSender(m.cfg.Webhook)
	}

	m.logger.Info("notify module initialized",
		zap.Bool("webhook_configured", m.webhook != nil),
		zap.Bool("signing_enabled", m.cfg.Webhook.Secret != ""),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("notify module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("notify module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.Health {
	sinks := "log"
	if m.webhook != nil {
		sinks = "log,webhook"
	}
	return plugin.Health{
		Status:  "healthy",
		Details: map[string]string{"sinks": sinks},
	}
}

// Notify implements roles.Notifier: one per-subscriber delivery from the
// monitor's alert fan-out. The log sink always records the delivery; the
// webhook sink runs when configured, and its failure is returned for the
// caller to count.
func (m *Module) Notify(ctx context.Context, n roles.Notification) error {
	m.logger.Info("notification",
		zap.String("kind", n.Kind),
		zap.String("subscriber_id", n.SubscriberID),
		zap.String("summary", n.Summary),
	)

	if m.webhook == nil {
		return nil
	}

	payload := WebhookPayload{
		Event:     "notification." + n.Kind,
		Source:    "notify",
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		Data:      n,
	}
	if err := m.webhook.Send(ctx, payload); err != nil {
		return fmt.Errorf("deliver to subscriber %s: %w", n.SubscriberID, err)
	}
	return nil
}

// Subscriptions implements plugin.EventSubscriber. Alert events on the bus
// are mirrored to the webhook, so an endpoint sees site state changes even
// with no subscribers registered.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: watch.TopicSiteDown, Handler: m.handleAlertEvent},
		{Topic: watch.TopicSiteRecovered, Handler: m.handleAlertEvent},
	}
}

func (m *Module) handleAlertEvent(ctx context.Context, event plugin.Event) {
	if m.webhook == nil {
		return
	}

	payload := WebhookPayload{
		Event:     event.Topic,
		Source:    event.Source,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Data:      event.Payload,
	}
	if err := m.webhook.Send(ctx, payload); err != nil {
		m.logger.Warn("webhook delivery failed",
			zap.String("topic", event.Topic),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("webhook delivered", zap.String("topic", event.Topic))
}
