package watch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// Request headers sent with every probe. The fixed user agent identifies the
// monitor to the target's access logs.
const (
	probeUserAgent      = "SiteWatch-Monitor/0.1"
	probeAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	probeAcceptLanguage = "en-US,en;q=0.9"
)

// Compile-time interface guard.
var _ Checker = (*HTTPProber)(nil)

// Checker probes a target URL once. Probe failures are data, not exceptions:
// every failure path is folded into the returned result, so Check never
// reports an error to the caller.
type Checker interface {
	Check(ctx context.Context, target string) *CheckResult
}

// HTTPProber tests HTTP/HTTPS endpoint availability by sending GET requests.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with the given per-request timeout.
// Self-signed and expired TLS certificates are accepted (InsecureSkipVerify):
// an endpoint with a broken certificate should still be monitorable.
// Redirects are not followed; a 3xx response is classified as-is.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}, //nolint:gosec // G402: monitoring must work with self-signed certs
				DisableKeepAlives: true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check sends a GET request to the target URL and classifies the outcome.
// Any status code in [200, 400) counts as success.
func (p *HTTPProber) Check(ctx context.Context, target string) *CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return &CheckResult{
			Outcome:   OutcomeTransportError,
			Message:   fmt.Sprintf("invalid URL %q: %v", target, err),
			CheckedAt: time.Now().UTC(),
		}
	}
	req.Header.Set("User-Agent", probeUserAgent)
	req.Header.Set("Accept", probeAccept)
	req.Header.Set("Accept-Language", probeAcceptLanguage)

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		return &CheckResult{
			Outcome:   OutcomeTransportError,
			LatencyMs: float64(elapsed) / float64(time.Millisecond),
			Message:   err.Error(),
			CheckedAt: time.Now().UTC(),
		}
	}
	resp.Body.Close()

	result := &CheckResult{
		StatusCode: resp.StatusCode,
		LatencyMs:  float64(elapsed) / float64(time.Millisecond),
		CheckedAt:  time.Now().UTC(),
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Outcome = OutcomeSuccess
	} else {
		result.Outcome = OutcomeHTTPError
		result.Message = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return result
}
