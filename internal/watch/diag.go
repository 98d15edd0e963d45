package watch

import (
	"context"
	"net/url"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// PingDiagnostic is the result of an ICMP reachability probe, attached to
// down-alerts to help distinguish host-level from HTTP-level failures.
type PingDiagnostic struct {
	Host        string  `json:"host"`
	Reachable   bool    `json:"reachable"`
	PacketsSent int     `json:"packets_sent"`
	PacketsRecv int     `json:"packets_recv"`
	PacketLoss  float64 `json:"packet_loss"`
	AvgRttMs    float64 `json:"avg_rtt_ms,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Pinger runs ICMP probes against the monitored host.
type Pinger struct {
	count   int
	timeout time.Duration
	logger  *zap.Logger
}

// NewPinger creates a pinger from the diagnostics configuration.
func NewPinger(cfg DiagnosticsConfig, logger *zap.Logger) *Pinger {
	return &Pinger{
		count:   cfg.PingCount,
		timeout: cfg.PingTimeout,
		logger:  logger,
	}
}

// Ping probes the host extracted from target with ICMP echo requests.
// Like the HTTP prober it never fails to the caller: setup and I/O errors
// are captured in the diagnostic.
func (p *Pinger) Ping(ctx context.Context, target string) *PingDiagnostic {
	host := hostOf(target)
	diag := &PingDiagnostic{Host: host}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("host", host), zap.Error(err))
		diag.Error = err.Error()
		return diag
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	// Run with context for cancellation support.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("host", host), zap.Error(runErr))
			diag.Error = runErr.Error()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		<-done
	}

	stats := pinger.Statistics()
	diag.PacketsSent = stats.PacketsSent
	diag.PacketsRecv = stats.PacketsRecv
	diag.PacketLoss = stats.PacketLoss
	if stats.PacketsRecv > 0 {
		diag.Reachable = true
		diag.AvgRttMs = float64(stats.AvgRtt) / float64(time.Millisecond)
	}
	return diag
}

// hostOf extracts the hostname from a URL, falling back to the raw string.
func hostOf(target string) string {
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return target
}
