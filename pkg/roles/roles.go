// Package roles names the capabilities a plugin can advertise through
// Info.Roles and defines the typed contract behind each one. Callers
// resolve providers with Resolver.ResolveByRole and type-assert the
// result against the matching interface.
package roles

import "context"

// Role names as they appear in Info.Roles.
const (
	RoleMonitoring   = "monitoring"
	RoleNotification = "notification"
)

// MonitoringProvider reports the health of the watched endpoint.
type MonitoringProvider interface {
	// Status returns the current state of the watched target.
	Status(ctx context.Context) (*MonitorStatus, error)
}

// Notifier delivers alert notifications somewhere out of process, such as
// a webhook or a chat channel.
type Notifier interface {
	// Notify delivers one notification. An error means this delivery
	// failed; the caller decides whether to surface it.
	Notify(ctx context.Context, notification Notification) error
}
