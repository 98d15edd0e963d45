// Package plugintest holds the behavioral contract every plugin.Plugin
// implementation is expected to pass. Module test files run it once against
// their own constructor so lifecycle regressions surface in the module's
// test run, not at server startup.
package plugintest

import (
	"context"
	"testing"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"go.uber.org/zap"
)

// TestPluginContract exercises the lifecycle contract using minimal
// dependencies (a nop logger, no config). Typical usage:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return notify.New() })
//	}
//
// Modules whose Init rejects an empty configuration pass a deps factory to
// TestPluginContractWithDeps instead.
func TestPluginContract(t *testing.T, factory func() plugin.Plugin) {
	t.Helper()
	TestPluginContractWithDeps(t, factory, func(name string) plugin.Dependencies {
		return plugin.Dependencies{Logger: zap.NewNop().Named(name)}
	})
}

// TestPluginContractWithDeps is the contract with caller-supplied
// dependencies.
func TestPluginContractWithDeps(t *testing.T, factory func() plugin.Plugin, deps func(name string) plugin.Dependencies) {
	t.Helper()
	ctx := context.Background()

	t.Run("info_identifies_the_plugin", func(t *testing.T) {
		info := factory().Info()
		if info.Name == "" {
			t.Error("Info().Name is empty")
		}
		if info.Version == "" {
			t.Error("Info().Version is empty")
		}
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			t.Errorf("Info().APIVersion = %d, outside supported range [%d, %d]",
				info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		}
	})

	t.Run("info_is_stable_across_calls", func(t *testing.T) {
		p := factory()
		first, second := p.Info(), p.Info()
		if first.Name != second.Name || first.Version != second.Version || first.Required != second.Required {
			t.Errorf("Info() changed between calls: %+v then %+v", first, second)
		}
	})

	t.Run("full_lifecycle", func(t *testing.T) {
		p := factory()
		if err := p.Init(ctx, deps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := p.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	})

	t.Run("stop_before_start_is_safe", func(t *testing.T) {
		p := factory()
		if err := p.Init(ctx, deps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Stop(ctx); err != nil {
			t.Errorf("Stop() before Start() error = %v", err)
		}
	})

	t.Run("health_reports_after_init", func(t *testing.T) {
		p := factory()
		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			t.Skip("plugin does not implement HealthChecker")
		}
		if err := p.Init(ctx, deps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if h := hc.Health(ctx); h.Status == "" {
			t.Error("Health().Status is empty")
		}
	})
}
