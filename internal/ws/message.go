package ws

import (
	"time"

	"github.com/HollowOak/sitewatch/internal/watch"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageCheckCompleted MessageType = "check.completed"
	MessageSiteDown       MessageType = "site.down"
	MessageSiteRecovered  MessageType = "site.recovered"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	URL       string      `json:"url"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// CheckCompletedData is the payload for check.completed messages.
type CheckCompletedData struct {
	Outcome             watch.Outcome `json:"outcome"`
	StatusCode          int           `json:"status_code,omitempty"`
	LatencyMs           float64       `json:"latency_ms"`
	Status              watch.Status  `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// AlertData is the payload for site.down and site.recovered messages.
type AlertData struct {
	Alert *watch.Alert `json:"alert"`
}
