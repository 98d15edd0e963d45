// Package plugin defines the SDK surface shared by the sitewatch host and
// its plugins. Built-in modules and external plugins alike implement these
// interfaces; the host only ever talks to a plugin through them.
package plugin

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Supported Plugin API version range. A plugin declares the version it was
// built against in Info.APIVersion; the registry refuses anything outside
// [APIVersionMin, APIVersionCurrent].
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// Plugin is the lifecycle contract every module implements. The host calls
// Init once with the module's dependencies, Start after every registered
// module initialized, and Stop during shutdown in reverse start order.
type Plugin interface {
	Info() Info
	Init(ctx context.Context, deps Dependencies) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Info describes a plugin to the registry.
type Info struct {
	// Name is the unique plugin identifier, also the prefix for its HTTP
	// routes and its config section under "plugins.".
	Name string

	Version     string
	Description string

	// Dependencies lists plugin names that must initialize before this one.
	Dependencies []string

	// Required marks plugins the server cannot run without. A failure in a
	// required plugin aborts startup; optional plugins are disabled instead.
	Required bool

	// Roles names the capabilities this plugin provides, see pkg/roles.
	Roles []string

	// APIVersion is the Plugin API version this plugin targets.
	APIVersion int
}

// Dependencies carries the host services handed to a plugin in Init.
type Dependencies struct {
	// Config is scoped to the plugin's own section of the server config.
	Config Config

	// Logger is pre-named with the plugin name.
	Logger *zap.Logger

	// Bus connects the plugin to host-wide publish/subscribe.
	Bus EventBus

	// Plugins resolves other registered plugins by name or role.
	Plugins Resolver
}

// Config is the read-only view a plugin gets of its configuration section.
// Backed by Viper in the server; kept as an interface so plugin code never
// imports the config machinery.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
}

// Resolver looks up other plugins. Lookups only return active plugins;
// disabled ones are invisible.
type Resolver interface {
	Resolve(name string) (Plugin, bool)
	ResolveByRole(role string) []Plugin
}

// HTTPProvider is an optional capability: plugins implementing it get their
// routes mounted under /api/v1/{plugin name}{path}.
type HTTPProvider interface {
	Routes() []Route
}

// Route is one HTTP endpoint exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// HealthChecker is an optional capability: plugins implementing it report
// their own health for the aggregated health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) Health
}

// Health is a plugin's self-reported health.
type Health struct {
	Status  string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Event is one message on the bus. Payload is topic-specific; subscribers
// type-assert it.
type Event struct {
	Topic     string
	Source    string
	Timestamp time.Time
	Payload   any
}

// EventHandler consumes events. Handlers must not block: synchronous
// publishes run them on the publisher's goroutine.
type EventHandler func(ctx context.Context, event Event)

// Publisher is the emit-only slice of the bus for code that never listens.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber is the listen-only slice of the bus.
type Subscriber interface {
	Subscribe(topic string, handler EventHandler) (unsubscribe func())
}

// EventBus is the full bus surface: synchronous and asynchronous publish,
// per-topic and wildcard subscribe.
type EventBus interface {
	Publisher
	Subscriber
	PublishAsync(ctx context.Context, event Event)
	SubscribeAll(handler EventHandler) (unsubscribe func())
}

// Subscription declares one static topic subscription. The registry wires
// EventSubscriber subscriptions to the bus after the plugin's Init succeeds.
type Subscription struct {
	Topic   string
	Handler EventHandler
}

// EventSubscriber is an optional capability for plugins that want bus
// subscriptions wired declaratively instead of subscribing in Init.
type EventSubscriber interface {
	Subscriptions() []Subscription
}
