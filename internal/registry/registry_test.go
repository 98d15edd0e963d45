package registry

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/HollowOak/sitewatch/pkg/plugin"
	"go.uber.org/zap"
)

// fakePlugin records lifecycle calls and fails or panics on demand.
type fakePlugin struct {
	info    plugin.Info
	calls   *[]string
	gotDeps plugin.Dependencies
	subs    []plugin.Subscription
	routes  []plugin.Route

	initErr  error
	startErr error
	stopErr  error
	panicIn  string // lifecycle stage that should panic
}

func fake(name string, required bool, deps ...string) *fakePlugin {
	return &fakePlugin{
		info: plugin.Info{
			Name:         name,
			Version:      "0.0.1",
			Required:     required,
			Dependencies: deps,
			APIVersion:   plugin.APIVersionCurrent,
		},
	}
}

func (p *fakePlugin) Info() plugin.Info { return p.info }

func (p *fakePlugin) Init(_ context.Context, deps plugin.Dependencies) error {
	p.record("init")
	if p.panicIn == "init" {
		panic("init exploded")
	}
	p.gotDeps = deps
	return p.initErr
}

func (p *fakePlugin) Start(context.Context) error {
	p.record("start")
	if p.panicIn == "start" {
		panic("start exploded")
	}
	return p.startErr
}

func (p *fakePlugin) Stop(context.Context) error {
	p.record("stop")
	if p.panicIn == "stop" {
		panic("stop exploded")
	}
	return p.stopErr
}

func (p *fakePlugin) Routes() []plugin.Route               { return p.routes }
func (p *fakePlugin) Subscriptions() []plugin.Subscription { return p.subs }

func (p *fakePlugin) record(stage string) {
	if p.calls != nil {
		*p.calls = append(*p.calls, p.info.Name+"."+stage)
	}
}

// recordingBus captures Subscribe calls made by InitAll.
type recordingBus struct {
	topics []string
}

func (b *recordingBus) Publish(context.Context, plugin.Event) error { return nil }
func (b *recordingBus) PublishAsync(context.Context, plugin.Event)  {}
func (b *recordingBus) SubscribeAll(plugin.EventHandler) func()     { return func() {} }

func (b *recordingBus) Subscribe(topic string, _ plugin.EventHandler) func() {
	b.topics = append(b.topics, topic)
	return func() {}
}

func register(t *testing.T, r *Registry, plugins ...plugin.Plugin) {
	t.Helper()
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register(%q) error = %v", p.Info().Name, err)
		}
	}
}

func validated(t *testing.T, plugins ...plugin.Plugin) *Registry {
	t.Helper()
	r := New(zap.NewNop())
	register(t, r, plugins...)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return r
}

func noDeps(string) plugin.Dependencies { return plugin.Dependencies{} }

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r := New(zap.NewNop())
	register(t, r, fake("watch", true))

	if err := r.Register(fake("watch", false)); err == nil {
		t.Fatal("Register() with duplicate name succeeded, want error")
	}
}

func TestRegister_RejectsEmptyName(t *testing.T) {
	r := New(zap.NewNop())
	if err := r.Register(fake("", false)); err == nil {
		t.Fatal("Register() with empty name succeeded, want error")
	}
}

func TestValidate_OrdersDependenciesFirst(t *testing.T) {
	r := validated(t,
		fake("stream", false, "watch"),
		fake("notify", false, "watch"),
		fake("watch", true),
	)

	want := []string{"watch", "notify", "stream"}
	if !reflect.DeepEqual(r.order, want) {
		t.Errorf("start order = %v, want %v", r.order, want)
	}
}

func TestValidate_OrderIsDeterministic(t *testing.T) {
	// Same plugin set registered in two different orders.
	a := validated(t, fake("notify", false), fake("watch", true), fake("metrics", false))
	b := validated(t, fake("metrics", false), fake("watch", true), fake("notify", false))

	if !reflect.DeepEqual(a.order, b.order) {
		t.Errorf("start order depends on registration order: %v vs %v", a.order, b.order)
	}
}

func TestValidate_DetectsCycle(t *testing.T) {
	r := New(zap.NewNop())
	register(t, r,
		fake("a", false, "b"),
		fake("b", false, "a"),
	)

	err := r.Validate()
	if err == nil {
		t.Fatal("Validate() with cyclic dependencies succeeded, want error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Validate() error = %q, want mention of cycle", err)
	}
}

func TestValidate_RequiredPluginMissingDependency(t *testing.T) {
	r := New(zap.NewNop())
	register(t, r, fake("watch", true, "ghost"))

	if err := r.Validate(); err == nil {
		t.Fatal("Validate() succeeded, want error for required plugin with unregistered dependency")
	}
}

func TestValidate_OptionalPluginMissingDependencyIsDisabled(t *testing.T) {
	r := validated(t,
		fake("watch", true),
		fake("notify", false, "ghost"),
	)

	if !r.IsDisabled("notify") {
		t.Error("IsDisabled(notify) = false, want true")
	}
	if got := len(r.All()); got != 1 {
		t.Errorf("len(All()) = %d, want 1", got)
	}
}

func TestValidate_DisableCascadesToDependents(t *testing.T) {
	broken := fake("metrics", false)
	broken.info.APIVersion = plugin.APIVersionCurrent + 1

	r := validated(t,
		broken,
		fake("notify", false, "metrics"),
		fake("stream", false, "notify"),
		fake("watch", true),
	)

	for _, name := range []string{"metrics", "notify", "stream"} {
		if !r.IsDisabled(name) {
			t.Errorf("IsDisabled(%q) = false, want true", name)
		}
	}
	if r.IsDisabled("watch") {
		t.Error("IsDisabled(watch) = true, want false")
	}
}

func TestValidate_APIVersionGate(t *testing.T) {
	tests := []struct {
		name       string
		apiVersion int
		required   bool
		wantErr    bool
	}{
		{"supported", plugin.APIVersionCurrent, true, false},
		{"too new, required", plugin.APIVersionCurrent + 1, true, true},
		{"too old, required", plugin.APIVersionMin - 1, true, true},
		{"too new, optional", plugin.APIVersionCurrent + 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake("p", tt.required)
			p.info.APIVersion = tt.apiVersion

			r := New(zap.NewNop())
			register(t, r, p)

			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.apiVersion != plugin.APIVersionCurrent && !r.IsDisabled("p") {
				t.Error("optional plugin with unsupported API version was not disabled")
			}
		})
	}
}

func TestInitAll_PassesPerPluginDependencies(t *testing.T) {
	w := fake("watch", true)
	n := fake("notify", false)
	r := validated(t, w, n)

	loggers := map[string]*zap.Logger{
		"watch":  zap.NewNop(),
		"notify": zap.NewNop(),
	}
	err := r.InitAll(context.Background(), func(name string) plugin.Dependencies {
		return plugin.Dependencies{Logger: loggers[name]}
	})
	if err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	if w.gotDeps.Logger != loggers["watch"] {
		t.Error("watch received another plugin's dependencies")
	}
	if n.gotDeps.Logger != loggers["notify"] {
		t.Error("notify received another plugin's dependencies")
	}
}

func TestInitAll_WiresDeclaredSubscriptions(t *testing.T) {
	n := fake("notify", false)
	n.subs = []plugin.Subscription{
		{Topic: "watch.site.down", Handler: func(context.Context, plugin.Event) {}},
		{Topic: "watch.site.recovered", Handler: func(context.Context, plugin.Event) {}},
	}
	r := validated(t, n)

	bus := &recordingBus{}
	err := r.InitAll(context.Background(), func(string) plugin.Dependencies {
		return plugin.Dependencies{Bus: bus}
	})
	if err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	want := []string{"watch.site.down", "watch.site.recovered"}
	if !reflect.DeepEqual(bus.topics, want) {
		t.Errorf("subscribed topics = %v, want %v", bus.topics, want)
	}
}

func TestInitAll_DoesNotSubscribeFailedPlugin(t *testing.T) {
	n := fake("notify", false)
	n.initErr = errors.New("bad webhook config")
	n.subs = []plugin.Subscription{{Topic: "watch.site.down", Handler: func(context.Context, plugin.Event) {}}}
	r := validated(t, n)

	bus := &recordingBus{}
	err := r.InitAll(context.Background(), func(string) plugin.Dependencies {
		return plugin.Dependencies{Bus: bus}
	})
	if err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	if len(bus.topics) != 0 {
		t.Errorf("failed plugin still subscribed to %v", bus.topics)
	}
}

func TestInitAll_RequiredFailureAborts(t *testing.T) {
	w := fake("watch", true)
	w.initErr = errors.New("no url configured")
	r := validated(t, w)

	err := r.InitAll(context.Background(), noDeps)
	if err == nil {
		t.Fatal("InitAll() succeeded, want error from required plugin")
	}
	if !errors.Is(err, w.initErr) {
		t.Errorf("InitAll() error = %v, want wrapped %v", err, w.initErr)
	}
}

func TestInitAll_OptionalFailureDisables(t *testing.T) {
	n := fake("notify", false)
	n.initErr = errors.New("bad webhook config")
	r := validated(t, n, fake("watch", true))

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	if !r.IsDisabled("notify") {
		t.Error("IsDisabled(notify) = false, want true")
	}
	if r.IsDisabled("watch") {
		t.Error("IsDisabled(watch) = true, want false")
	}
}

func TestInitAll_SkipsDependentsOfFailedPlugin(t *testing.T) {
	var calls []string
	n := fake("notify", false)
	n.initErr = errors.New("boom")
	n.calls = &calls
	s := fake("stream", false, "notify")
	s.calls = &calls
	r := validated(t, n, s)

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	want := []string{"notify.init"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("lifecycle calls = %v, want %v", calls, want)
	}
	if !r.IsDisabled("stream") {
		t.Error("IsDisabled(stream) = false, want true")
	}
}

func TestInitAll_PanicBecomesError(t *testing.T) {
	w := fake("watch", true)
	w.panicIn = "init"
	r := validated(t, w)

	err := r.InitAll(context.Background(), noDeps)
	if err == nil {
		t.Fatal("InitAll() succeeded, want error from panicking required plugin")
	}
	if !strings.Contains(err.Error(), "panicked") {
		t.Errorf("InitAll() error = %q, want mention of panic", err)
	}
}

func TestStartAll_RunsInDependencyOrder(t *testing.T) {
	var calls []string
	w := fake("watch", true)
	w.calls = &calls
	n := fake("notify", false, "watch")
	n.calls = &calls
	r := validated(t, n, w)

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	calls = calls[:0]

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}

	want := []string{"watch.start", "notify.start"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("start calls = %v, want %v", calls, want)
	}
}

func TestStartAll_OptionalPanicDisables(t *testing.T) {
	n := fake("notify", false)
	n.panicIn = "start"
	r := validated(t, n, fake("watch", true))

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}

	if !r.IsDisabled("notify") {
		t.Error("IsDisabled(notify) = false, want true")
	}
}

func TestStopAll_ReverseOrderAndFailureIsolation(t *testing.T) {
	var calls []string
	w := fake("watch", true)
	w.calls = &calls
	n := fake("notify", false, "watch")
	n.calls = &calls
	n.stopErr = errors.New("webhook still draining")
	s := fake("stream", false, "notify")
	s.calls = &calls
	s.panicIn = "stop"
	r := validated(t, w, n, s)

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	calls = calls[:0]

	r.StopAll(context.Background())

	want := []string{"stream.stop", "notify.stop", "watch.stop"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("stop calls = %v, want %v", calls, want)
	}
}

func TestGet_DisabledPluginIsInvisible(t *testing.T) {
	r := validated(t,
		fake("watch", true),
		fake("notify", false, "ghost"),
	)

	if _, ok := r.Get("watch"); !ok {
		t.Error("Get(watch) not found, want found")
	}
	if _, ok := r.Get("notify"); ok {
		t.Error("Get(notify) found a disabled plugin")
	}
	if _, ok := r.Get("ghost"); ok {
		t.Error("Get(ghost) found an unregistered plugin")
	}
}

func TestAllRoutes_OnlyActiveProvidersWithRoutes(t *testing.T) {
	w := fake("watch", true)
	w.routes = []plugin.Route{{Method: "GET", Path: "/status", Handler: nil}}
	bare := fake("notify", false)
	off := fake("stream", false, "ghost")
	off.routes = []plugin.Route{{Method: "GET", Path: "/ws", Handler: nil}}

	r := validated(t, w, bare, off)

	routes := r.AllRoutes()
	if len(routes) != 1 {
		t.Fatalf("len(AllRoutes()) = %d, want 1", len(routes))
	}
	if got := len(routes["watch"]); got != 1 {
		t.Errorf("len(routes[watch]) = %d, want 1", got)
	}
}

func TestResolveByRole(t *testing.T) {
	w := fake("watch", true)
	w.info.Roles = []string{"monitoring"}
	n := fake("notify", false)
	n.info.Roles = []string{"notification"}
	off := fake("pager", false, "ghost")
	off.info.Roles = []string{"notification"}

	r := validated(t, w, n, off)

	got := r.ResolveByRole("notification")
	if len(got) != 1 {
		t.Fatalf("len(ResolveByRole(notification)) = %d, want 1", len(got))
	}
	if got[0].Info().Name != "notify" {
		t.Errorf("ResolveByRole(notification)[0] = %q, want notify", got[0].Info().Name)
	}
	if len(r.ResolveByRole("storage")) != 0 {
		t.Error("ResolveByRole(storage) returned plugins, want none")
	}
}
