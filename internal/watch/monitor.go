package watch

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status classifies the monitored endpoint.
type Status string

const (
	// StatusUnknown is the pre-first-check value. It is never re-entered.
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// AlertKind distinguishes the two alert edges.
type AlertKind string

const (
	AlertDown     AlertKind = "down_alert"
	AlertRecovery AlertKind = "recovery_alert"
)

// Alert is one edge-triggered alerting event. A down-alert fires once when
// the failure streak reaches the threshold; a recovery-alert fires once on
// the first success after a notified outage. Both edges of one outage share
// the same ID, so consumers can correlate them.
type Alert struct {
	ID                  string          `json:"id"`
	Kind                AlertKind       `json:"kind"`
	URL                 string          `json:"url"`
	Message             string          `json:"message"`
	StatusCode          int             `json:"status_code,omitempty"`
	LatencyMs           float64         `json:"latency_ms,omitempty"`
	ConsecutiveFailures int             `json:"consecutive_failures,omitempty"`
	DownSince           *time.Time      `json:"down_since,omitempty"`
	DowntimeSeconds     float64         `json:"downtime_seconds,omitempty"`
	Diagnostic          *PingDiagnostic `json:"diagnostic,omitempty"`
	TriggeredAt         time.Time       `json:"triggered_at"`
}

// Snapshot is a point-in-time read of the monitor state.
type Snapshot struct {
	URL                 string       `json:"url"`
	Status              Status       `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	AlertActive         bool         `json:"alert_active"`
	DownSince           *time.Time   `json:"down_since,omitempty"`
	LastUpAt            *time.Time   `json:"last_up_at,omitempty"`
	LastDownAt          *time.Time   `json:"last_down_at,omitempty"`
	ChecksTotal         int64        `json:"checks_total"`
	SuccessTotal        int64        `json:"success_total"`
	FailureTotal        int64        `json:"failure_total"`
	AvailabilityPercent float64      `json:"availability_percent"`
	MonitoringSince     time.Time    `json:"monitoring_since"`
	Uptime              string       `json:"uptime"`
	CheckInterval       string       `json:"check_interval"`
	LastResult          *CheckResult `json:"last_result,omitempty"`
}

// Monitor owns all mutable health state for the watched endpoint: counters,
// the failure streak, the edge-trigger flag, the subscriber set, and the
// in-memory alert history. A single mutex serializes the poll loop (the sole
// state writer) against concurrent reads and subscription mutations, so a
// Snapshot never observes a half-applied cycle.
type Monitor struct {
	logger *zap.Logger

	mu sync.Mutex

	url          string
	threshold    int
	interval     time.Duration
	historyLimit int

	status              Status
	consecutiveFailures int
	alreadyNotifiedDown bool
	activeAlertID       string
	downSince           *time.Time
	lastUpAt            *time.Time
	lastDownAt          *time.Time

	checksTotal  int64
	successTotal int64
	failureTotal int64

	lastResult *CheckResult

	subscribers map[string]struct{}
	history     []Alert

	startedAt time.Time
}

// NewMonitor creates a monitor for the configured target with zeroed
// statistics and status unknown.
func NewMonitor(cfg Config, logger *zap.Logger) *Monitor {
	return &Monitor{
		logger:       logger,
		url:          cfg.URL,
		threshold:    cfg.FailureThreshold,
		interval:     cfg.CheckInterval,
		historyLimit: cfg.HistoryLimit,
		status:       StatusUnknown,
		subscribers:  make(map[string]struct{}),
		startedAt:    time.Now().UTC(),
	}
}

// Apply folds one check result into the monitor state and evaluates the
// alerting edge. It returns a detached copy of the alert this result fired,
// or nil when no edge was crossed. The result's own timestamp drives all
// recorded instants, so a result sequence fully determines the state.
func (m *Monitor) Apply(result *CheckResult) *Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := result.CheckedAt
	m.checksTotal++
	m.lastResult = result

	if result.Success() {
		m.successTotal++
		m.status = StatusUp
		m.consecutiveFailures = 0
		m.lastUpAt = &now

		if m.alreadyNotifiedDown {
			var downtime time.Duration
			if m.downSince != nil {
				downtime = now.Sub(*m.downSince)
			}
			id := m.activeAlertID
			if id == "" {
				id = uuid.New().String()
			}
			m.alreadyNotifiedDown = false
			m.activeAlertID = ""
			m.downSince = nil

			alert := Alert{
				ID:              id,
				Kind:            AlertRecovery,
				URL:             m.url,
				Message:         fmt.Sprintf("%s is reachable again after %s (HTTP %d, %.0f ms)", m.url, formatDuration(downtime), result.StatusCode, result.LatencyMs),
				StatusCode:      result.StatusCode,
				LatencyMs:       result.LatencyMs,
				DowntimeSeconds: downtime.Seconds(),
				TriggeredAt:     now,
			}
			m.appendHistoryLocked(alert)

			m.logger.Info("recovery alert",
				zap.String("alert_id", alert.ID),
				zap.String("url", m.url),
				zap.Duration("downtime", downtime),
			)
			return &alert
		}

		m.downSince = nil
		return nil
	}

	m.failureTotal++
	m.status = StatusDown
	m.consecutiveFailures++
	m.lastDownAt = &now
	if m.downSince == nil {
		m.downSince = &now
	}

	if m.consecutiveFailures >= m.threshold && !m.alreadyNotifiedDown {
		m.alreadyNotifiedDown = true
		m.activeAlertID = uuid.New().String()

		alert := Alert{
			ID:                  m.activeAlertID,
			Kind:                AlertDown,
			URL:                 m.url,
			Message:             fmt.Sprintf("%s is down after %d consecutive failed checks: %s", m.url, m.consecutiveFailures, result.Message),
			StatusCode:          result.StatusCode,
			LatencyMs:           result.LatencyMs,
			ConsecutiveFailures: m.consecutiveFailures,
			DownSince:           copyTime(m.downSince),
			TriggeredAt:         now,
		}
		m.appendHistoryLocked(alert)

		m.logger.Warn("down alert",
			zap.String("alert_id", alert.ID),
			zap.String("url", m.url),
			zap.Int("consecutive_failures", m.consecutiveFailures),
			zap.String("cause", result.Message),
		)
		return &alert
	}

	return nil
}

// AttachDiagnostic stores an ICMP diagnostic on the identified alert and
// returns an updated copy, or nil if the alert has already rotated out of
// the history.
func (m *Monitor) AttachDiagnostic(alertID string, diag *PingDiagnostic) *Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == alertID {
			m.history[i].Diagnostic = diag
			updated := m.history[i]
			return &updated
		}
	}
	return nil
}

// Snapshot returns a consistent point-in-time copy of the monitor state.
// Safe to call concurrently with the poll loop.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	availability := 0.0
	if m.checksTotal > 0 {
		availability = float64(m.successTotal) / float64(m.checksTotal) * 100
		availability = math.Round(availability*100) / 100
	}

	return Snapshot{
		URL:                 m.url,
		Status:              m.status,
		ConsecutiveFailures: m.consecutiveFailures,
		AlertActive:         m.alreadyNotifiedDown,
		DownSince:           copyTime(m.downSince),
		LastUpAt:            copyTime(m.lastUpAt),
		LastDownAt:          copyTime(m.lastDownAt),
		ChecksTotal:         m.checksTotal,
		SuccessTotal:        m.successTotal,
		FailureTotal:        m.failureTotal,
		AvailabilityPercent: availability,
		MonitoringSince:     m.startedAt,
		Uptime:              formatDuration(time.Since(m.startedAt)),
		CheckInterval:       m.interval.String(),
		LastResult:          m.lastResult,
	}
}

// Subscribe adds a subscriber id. Returns true if newly added, false if the
// id was already subscribed.
func (m *Monitor) Subscribe(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscribers[id]; ok {
		return false
	}
	m.subscribers[id] = struct{}{}
	return true
}

// Unsubscribe removes a subscriber id. Returns true if it was present.
func (m *Monitor) Unsubscribe(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscribers[id]; !ok {
		return false
	}
	delete(m.subscribers, id)
	return true
}

// IsSubscribed reports whether the id is currently subscribed.
func (m *Monitor) IsSubscribed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.subscribers[id]
	return ok
}

// Subscribers returns a sorted point-in-time copy of the subscriber set.
// Fan-out iterates this copy, so concurrent subscription changes during a
// delivery round neither crash nor double-deliver.
func (m *Monitor) Subscribers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns up to limit alerts, newest first, as detached copies.
func (m *Monitor) History(limit int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alert, 0, n)
	for i := len(m.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.history[i])
	}
	return out
}

// appendHistoryLocked appends an alert, discarding the oldest entries beyond
// the history limit. Caller must hold m.mu.
func (m *Monitor) appendHistoryLocked(a Alert) {
	m.history = append(m.history, a)
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}
}

// formatDuration renders a duration without sub-second noise.
func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
