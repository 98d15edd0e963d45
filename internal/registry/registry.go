// Package registry wires plugins into a running host. It tracks
// registrations, orders plugins by their declared dependencies, drives the
// Init/Start/Stop lifecycle, and quarantines optional plugins that fail
// instead of letting them take the server down.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"go.uber.org/zap"
)

// entry is one registered plugin plus its registry-side state.
type entry struct {
	plugin   plugin.Plugin
	info     plugin.Info
	disabled bool
}

// Registry holds every registered plugin. Register everything first, then
// Validate once; after that the start order is fixed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // dependency order, set by Validate
	logger  *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a plugin. Names must be unique and non-empty.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin with empty name (version %q)", info.Version)
	}
	if _, dup := r.entries[info.Name]; dup {
		return fmt.Errorf("plugin %q registered twice", info.Name)
	}

	r.entries[info.Name] = &entry{plugin: p, info: info}
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// Validate gates plugins on API version, resolves the dependency graph, and
// fixes the start order. Problems in a required plugin are fatal; an optional
// plugin with a problem is disabled, along with everything depending on it.
// The resulting order is deterministic: dependencies first, ties broken by
// name.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := r.entries[name]
		if err := apiVersionSupported(e.info); err != nil {
			if e.info.Required {
				return err
			}
			r.logger.Warn("disabling plugin, unsupported API version",
				zap.String("name", name), zap.Error(err))
			e.disabled = true
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.entries))
	r.order = r.order[:0]

	var visit func(name string) error
	visit = func(name string) error {
		e := r.entries[name]
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("plugin dependency cycle through %q", name)
		}
		if e.disabled {
			state[name] = done
			return nil
		}

		state[name] = visiting
		for _, dep := range e.info.Dependencies {
			de, registered := r.entries[dep]
			if registered {
				if err := visit(dep); err != nil {
					return err
				}
			}
			if !registered || de.disabled {
				if e.info.Required {
					return fmt.Errorf("required plugin %q depends on %q, which is unavailable", name, dep)
				}
				r.logger.Warn("disabling plugin, dependency unavailable",
					zap.String("name", name), zap.String("dependency", dep))
				e.disabled = true
				state[name] = done
				return nil
			}
		}
		state[name] = done
		r.order = append(r.order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}

	r.logger.Info("plugin graph resolved",
		zap.Strings("start_order", r.order),
		zap.Int("disabled", len(r.entries)-len(r.order)),
	)
	return nil
}

// InitAll initializes active plugins in dependency order, fetching each
// plugin's dependencies from depsFn. A plugin implementing EventSubscriber
// has its declared subscriptions wired to the bus once Init succeeds.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		if dep := r.disabledDepLocked(e); dep != "" {
			if e.info.Required {
				return fmt.Errorf("required plugin %q lost dependency %q before init", name, dep)
			}
			r.logger.Warn("disabling plugin, dependency was disabled",
				zap.String("name", name), zap.String("dependency", dep))
			e.disabled = true
			continue
		}

		r.logger.Info("initializing plugin", zap.String("name", name))
		deps := depsFn(name)
		if err := guard("init", func() error { return e.plugin.Init(ctx, deps) }); err != nil {
			if e.info.Required {
				return fmt.Errorf("required plugin %q: %w", name, err)
			}
			r.logger.Error("disabling optional plugin, init failed",
				zap.String("name", name), zap.Error(err))
			e.disabled = true
			continue
		}

		if sub, ok := e.plugin.(plugin.EventSubscriber); ok && deps.Bus != nil {
			for _, s := range sub.Subscriptions() {
				deps.Bus.Subscribe(s.Topic, s.Handler)
				r.logger.Debug("event subscription wired",
					zap.String("plugin", name), zap.String("topic", s.Topic))
			}
		}
	}
	return nil
}

// StartAll starts active plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := guard("start", func() error { return e.plugin.Start(ctx) }); err != nil {
			if e.info.Required {
				return fmt.Errorf("required plugin %q: %w", name, err)
			}
			r.logger.Error("disabling optional plugin, start failed",
				zap.String("name", name), zap.Error(err))
			e.disabled = true
		}
	}
	return nil
}

// StopAll stops active plugins in reverse start order. One plugin failing to
// stop never blocks the rest.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.entries[r.order[i]]
		if e.disabled {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", r.order[i]))
		if err := guard("stop", func() error { return e.plugin.Stop(ctx) }); err != nil {
			r.logger.Error("plugin stop failed",
				zap.String("name", r.order[i]), zap.Error(err))
		}
	}
}

// Get returns an active plugin by name. Disabled plugins are not found.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok || e.disabled {
		return nil, false
	}
	return e.plugin, true
}

// All returns the active plugins in start order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; !e.disabled {
			out = append(out, e.plugin)
		}
	}
	return out
}

// AllRoutes collects HTTP routes from active plugins implementing
// HTTPProvider, keyed by plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		if hp, ok := e.plugin.(plugin.HTTPProvider); ok {
			if rs := hp.Routes(); len(rs) > 0 {
				routes[name] = rs
			}
		}
	}
	return routes
}

// Resolve implements plugin.Resolver.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	return r.Get(name)
}

// ResolveByRole returns active plugins declaring the given role, in start
// order.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []plugin.Plugin
	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		for _, have := range e.info.Roles {
			if have == role {
				out = append(out, e.plugin)
				break
			}
		}
	}
	return out
}

// IsDisabled reports whether a plugin was disabled during validation or
// lifecycle. Unknown names report false.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return ok && e.disabled
}

// disabledDepLocked returns the first dependency of e that is registered but
// disabled, or "". Caller must hold r.mu.
func (r *Registry) disabledDepLocked(e *entry) string {
	for _, dep := range e.info.Dependencies {
		if de, ok := r.entries[dep]; ok && de.disabled {
			return dep
		}
	}
	return ""
}

// guard runs one lifecycle call, converting a panic into an error.
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v", stage, rec)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s failed: %w", stage, err)
	}
	return nil
}

// apiVersionSupported checks a plugin's declared API version against the
// server's supported range.
func apiVersionSupported(info plugin.Info) error {
	if info.APIVersion < plugin.APIVersionMin {
		return fmt.Errorf("plugin %q targets Plugin API v%d, server supports v%d through v%d",
			info.Name, info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
	}
	if info.APIVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets Plugin API v%d, newer than this server's v%d",
			info.Name, info.APIVersion, plugin.APIVersionCurrent)
	}
	return nil
}
