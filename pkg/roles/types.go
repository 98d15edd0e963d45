package roles

import "time"

// MonitorStatus is the point-in-time health of the watched target.
type MonitorStatus struct {
	URL                 string    `json:"url"`
	Status              string    `json:"status"` // "unknown", "ok", "degraded", "critical"
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Message             string    `json:"message,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}

// Notification is one message handed to a Notifier for delivery.
type Notification struct {
	Kind         string         `json:"kind"` // "down_alert" or "recovery_alert"
	SubscriberID string         `json:"subscriber_id"`
	Summary      string         `json:"summary"`
	Body         string         `json:"body,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
