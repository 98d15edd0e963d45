// Package watch implements the availability monitoring plugin: a fixed
// interval poll loop that probes one HTTP(S) endpoint, folds each outcome
// into rolling health statistics, and drives an edge-triggered alert state
// machine that notifies subscribers once per outage and once per recovery.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"github.com/HollowOak/sitewatch/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin            = (*Module)(nil)
	_ plugin.HTTPProvider      = (*Module)(nil)
	_ plugin.HealthChecker     = (*Module)(nil)
	_ roles.MonitoringProvider = (*Module)(nil)
)

// DeliveryResult records the outcome of one subscriber delivery attempt
// during alert fan-out.
type DeliveryResult struct {
	SubscriberID string
	Err          error
}

// Module implements the Watch monitoring plugin.
type Module struct {
	logger  *zap.Logger
	bus     plugin.EventBus
	plugins plugin.Resolver
	cfg     Config

	monitor *Monitor
	prober  Checker
	pinger  *Pinger

	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
	running    atomic.Bool
	cycle      atomic.Int64
}

// New creates a new Watch plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.Info {
	return plugin.Info{
		Name:        "watch",
		Version:     "0.1.0",
		Description: "HTTP endpoint availability monitoring and alerting",
		Required:    true,
		Roles:       []string{roles.RoleMonitoring},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.plugins = deps.Plugins

	// Load config with defaults.
	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if v := deps.Config.GetString("url"); v != "" {
			m.cfg.URL = v
		}
		if d := deps.Config.GetDuration("check_interval"); d > 0 {
			m.cfg.CheckInterval = d
		}
		if d := deps.Config.GetDuration("check_timeout"); d > 0 {
			m.cfg.CheckTimeout = d
		}
		if v := deps.Config.GetInt("failure_threshold"); v > 0 {
			m.cfg.FailureThreshold = v
		}
		if v := deps.Config.GetInt("history_limit"); v > 0 {
			m.cfg.HistoryLimit = v
		}
		if deps.Config.IsSet("diagnostics.enabled") {
			m.cfg.Diagnostics.Enabled = deps.Config.GetBool("diagnostics.enabled")
		}
		if v := deps.Config.GetInt("diagnostics.ping_count"); v > 0 {
			m.cfg.Diagnostics.PingCount = v
		}
		if d := deps.Config.GetDuration("diagnostics.ping_timeout"); d > 0 {
			m.cfg.Diagnostics.PingTimeout = d
		}
	}

	if err := m.cfg.Validate(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	m.monitor = NewMonitor(m.cfg, m.logger.Named("monitor"))
	m.prober = NewHTTPProber(m.cfg.CheckTimeout)
	if m.cfg.Diagnostics.Enabled {
		m.pinger = NewPinger(m.cfg.Diagnostics, m.logger.Named("ping"))
	}

	m.logger.Info("watch module initialized",
		zap.String("url", m.cfg.URL),
		zap.Duration("check_interval", m.cfg.CheckInterval),
		zap.Int("failure_threshold", m.cfg.FailureThreshold),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.loopCtx, m.loopCancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.runLoop()

	m.logger.Info("watch module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.loopCancel != nil {
		m.loopCancel()
	}
	m.wg.Wait()
	m.logger.Info("watch module stopped")
	return nil
}

// Ready reports whether the poll loop is running. Used as the server
// readiness check.
func (m *Module) Ready(_ context.Context) error {
	if !m.running.Load() {
		return errors.New("monitor loop not running")
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.Health {
	if !m.running.Load() {
		return plugin.Health{
			Status:  "unhealthy",
			Message: "monitor loop not running",
		}
	}

	snap := m.monitor.Snapshot()
	status := "healthy"
	if snap.Status == StatusDown {
		status = "degraded"
	}
	return plugin.Health{
		Status: status,
		Details: map[string]string{
			"url":                  snap.URL,
			"target_status":        string(snap.Status),
			"consecutive_failures": strconv.Itoa(snap.ConsecutiveFailures),
		},
	}
}

// Status implements roles.MonitoringProvider.
func (m *Module) Status(_ context.Context) (*roles.MonitorStatus, error) {
	snap := m.monitor.Snapshot()

	st := &roles.MonitorStatus{
		URL:                 snap.URL,
		ConsecutiveFailures: snap.ConsecutiveFailures,
	}
	switch {
	case snap.Status == StatusUnknown:
		st.Status = "unknown"
	case snap.Status == StatusUp:
		st.Status = "ok"
		st.Healthy = true
	case snap.ConsecutiveFailures >= m.cfg.FailureThreshold:
		st.Status = "critical"
	default:
		st.Status = "degraded"
	}
	if snap.LastResult != nil {
		st.Message = snap.LastResult.Message
		st.CheckedAt = snap.LastResult.CheckedAt
	}
	return st, nil
}

// runLoop drives the poll cycle: one check immediately on start, then one
// per interval until the loop context is cancelled. Cycles are strictly
// sequential; a cycle that outlives its tick delays the next one rather
// than overlapping it.
func (m *Module) runLoop() {
	defer m.wg.Done()

	m.running.Store(true)
	defer m.running.Store(false)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.runCycle(m.loopCtx)

	for {
		select {
		case <-m.loopCtx.Done():
			return
		case <-ticker.C:
			m.runCycle(m.loopCtx)
		}
	}
}

// runCycle executes one probe and applies its outcome. A panic anywhere in
// the cycle is logged and contained so the loop survives to the next tick.
func (m *Module) runCycle(ctx context.Context) {
	cycle := m.cycle.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("check cycle panicked", zap.Int64("cycle", cycle), zap.Any("panic", rec))
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()
	result := m.prober.Check(probeCtx, m.cfg.URL)

	metricChecksTotal.WithLabelValues(string(result.Outcome)).Inc()
	metricProbeDuration.Observe(result.LatencyMs / 1000)

	alert := m.monitor.Apply(result)

	snap := m.monitor.Snapshot()
	metricConsecutiveFailures.Set(float64(snap.ConsecutiveFailures))
	metricAvailability.Set(snap.AvailabilityPercent)

	m.publish(ctx, TopicCheckCompleted, CheckEvent{
		URL:                 m.cfg.URL,
		Outcome:             result.Outcome,
		StatusCode:          result.StatusCode,
		LatencyMs:           result.LatencyMs,
		Status:              snap.Status,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		CheckedAt:           result.CheckedAt,
	})

	if alert != nil {
		m.dispatchAlert(ctx, alert)
	}
}

// dispatchAlert enriches, publishes, and fans out one alert. Each subscriber
// delivery is attempted independently and its outcome captured; one failed
// delivery never blocks the others or the poll loop.
func (m *Module) dispatchAlert(ctx context.Context, alert *Alert) []DeliveryResult {
	if alert.Kind == AlertDown && m.pinger != nil {
		diag := m.pinger.Ping(ctx, m.cfg.URL)
		if updated := m.monitor.AttachDiagnostic(alert.ID, diag); updated != nil {
			alert = updated
		}
	}

	topic := TopicSiteDown
	summary := fmt.Sprintf("site down: %s", alert.URL)
	if alert.Kind == AlertRecovery {
		topic = TopicSiteRecovered
		summary = fmt.Sprintf("site recovered: %s", alert.URL)
	}
	m.publish(ctx, topic, *alert)

	subscribers := m.monitor.Subscribers()
	if len(subscribers) == 0 {
		return nil
	}

	notifiers := m.notifiers()
	if len(notifiers) == 0 {
		m.logger.Warn("no notification provider available",
			zap.Int("subscribers", len(subscribers)),
		)
		return nil
	}

	results := make([]DeliveryResult, 0, len(subscribers)*len(notifiers))
	for _, id := range subscribers {
		notification := roles.Notification{
			Kind:         string(alert.Kind),
			SubscriberID: id,
			Summary:      summary,
			Body:         alert.Message,
			Meta: map[string]any{
				"alert_id": alert.ID,
				"url":      alert.URL,
			},
			Timestamp: alert.TriggeredAt,
		}
		for _, n := range notifiers {
			err := n.Notify(ctx, notification)
			results = append(results, DeliveryResult{SubscriberID: id, Err: err})
			if err != nil {
				metricNotificationsTotal.WithLabelValues("error").Inc()
				m.logger.Warn("notification delivery failed",
					zap.String("subscriber_id", id),
					zap.Error(err),
				)
			} else {
				metricNotificationsTotal.WithLabelValues("ok").Inc()
			}
		}
	}
	return results
}

// notifiers resolves all registered notification-role plugins.
func (m *Module) notifiers() []roles.Notifier {
	if m.plugins == nil {
		return nil
	}
	var out []roles.Notifier
	for _, p := range m.plugins.ResolveByRole(roles.RoleNotification) {
		if n, ok := p.(roles.Notifier); ok {
			out = append(out, n)
		}
	}
	return out
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:     topic,
		Source:    "watch",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
