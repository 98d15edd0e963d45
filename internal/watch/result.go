package watch

import "time"

// Outcome classifies a single probe.
type Outcome string

const (
	// OutcomeSuccess means the endpoint answered with a healthy status code.
	OutcomeSuccess Outcome = "success"
	// OutcomeHTTPError means the transport delivered a response, but the
	// status code was outside the healthy range.
	OutcomeHTTPError Outcome = "http_error"
	// OutcomeTransportError covers DNS failures, refused connections, TLS
	// handshake errors, timeouts, and every other I/O fault. The subtype
	// distinction is not preserved past the prober boundary.
	OutcomeTransportError Outcome = "transport_error"
)

// CheckResult is the outcome of one probe of the target URL.
// Produced fresh each cycle and consumed once by the monitor.
type CheckResult struct {
	Outcome    Outcome   `json:"outcome"`
	StatusCode int       `json:"status_code,omitempty"` // 0 for transport errors
	LatencyMs  float64   `json:"latency_ms"`
	Message    string    `json:"message,omitempty"` // empty on success
	CheckedAt  time.Time `json:"checked_at"`
}

// Success reports whether the probe counts as a healthy check.
func (r *CheckResult) Success() bool {
	return r.Outcome == OutcomeSuccess
}
