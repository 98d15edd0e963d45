package watch

import "time"

// Event topics published by the Watch module.
const (
	TopicSiteDown       = "watch.site.down"
	TopicSiteRecovered  = "watch.site.recovered"
	TopicCheckCompleted = "watch.check.completed"
)

// CheckEvent is the payload published on TopicCheckCompleted after every
// poll cycle, alert or not.
type CheckEvent struct {
	URL                 string    `json:"url"`
	Outcome             Outcome   `json:"outcome"`
	StatusCode          int       `json:"status_code,omitempty"`
	LatencyMs           float64   `json:"latency_ms"`
	Status              Status    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CheckedAt           time.Time `json:"checked_at"`
}
