// Package lifecycle runs the kernel's six-phase boot and teardown
// sequence (C6) across the resolver's ordered plugin list: beforeInit,
// init, afterInit on boot; beforeDestroy, destroy, afterDestroy in
// reverse on teardown. Each phase runs under bounded parallelism by
// topological level and supports a per-phase timeout/retry policy.
// Grounded on the teacher's runtime boot sequence
// (leeforge-framework/runtime/runtime.go), generalized from its fixed
// component start/stop order into a policy-driven, level-parallel engine.
package lifecycle

import (
	"context"
	"time"

	"github.com/zern/kernel/bus"
	"github.com/zern/kernel/concurrency"
	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/logging"
	"github.com/zern/kernel/plugin"
	"go.uber.org/zap"
)

// Phase identifies one of the six lifecycle hooks.
type Phase string

const (
	PhaseBeforeInit    Phase = "beforeInit"
	PhaseInit          Phase = "init"
	PhaseAfterInit     Phase = "afterInit"
	PhaseBeforeDestroy Phase = "beforeDestroy"
	PhaseDestroy       Phase = "destroy"
	PhaseAfterDestroy  Phase = "afterDestroy"
)

// Policy configures one phase's per-attempt timeout and retry count.
type Policy struct {
	TimeoutMs int
	Retry     int // additional attempts beyond the first
}

// Options configures the Engine.
type Options struct {
	// Concurrency bounds how many plugins in the same topological level
	// run a phase at once. Default 1 (fully sequential).
	Concurrency int
	Policies    map[Phase]Policy
}

func (o Options) policyFor(phase Phase) Policy {
	if o.Policies == nil {
		return Policy{}
	}
	return o.Policies[phase]
}

// Engine runs lifecycle phases across an ordered plugin list.
type Engine struct {
	opts      Options
	events    *bus.EventBus
	errorBus  *bus.ErrorBus
	logger    logging.Logger
	// levels maps each plugin name to its topological level (computed
	// from the dependency subgraph the caller provides via SetLevels);
	// nil means "no level info", and every phase runs fully sequential
	// in resolved order regardless of opts.Concurrency.
	levels map[string]int
	// onSetup, when set, is called with each plugin's Setup result right
	// after a successful init phase, letting the caller capture the
	// plugin's API without Init's signature growing a return value.
	onSetup func(name string, api plugin.API)
}

// SetOnSetup installs a callback invoked after each plugin's init phase
// succeeds, with the API its Setup returned.
func (e *Engine) SetOnSetup(fn func(name string, api plugin.API)) { e.onSetup = fn }

// New creates an Engine. events receives pluginLoaded/pluginFailed;
// errorBus receives teardown errors encountered during abort-time
// rollback (never re-thrown).
func New(opts Options, events *bus.EventBus, errorBus *bus.ErrorBus, logger logging.Logger) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Engine{opts: opts, events: events, errorBus: errorBus, logger: logger.Named("lifecycle")}
}

// SetLevels records each plugin's topological level so Init/Destroy can
// run same-level plugins concurrently while still respecting
// cross-level dependency ordering. Optional; without it, phases run
// sequentially in the order given.
func (e *Engine) SetLevels(levels map[string]int) { e.levels = levels }

// Result is one plugin's outcome for one phase attempt, used to build
// PluginFailed payloads and teardown decisions.
type Result struct {
	Plugin string
	Err    error
}

// initOutcome is one plugin's result from running all three boot phases,
// computed off the main goroutine when a level group runs concurrently.
type initOutcome struct {
	name  string
	phase Phase
	api   plugin.API
	err   error
}

// initOne runs beforeInit -> init -> afterInit for a single plugin.
func (e *Engine) initOne(ctx context.Context, p plugin.Plugin, pctx *plugin.Context) initOutcome {
	if err := e.runPhaseWithPolicy(ctx, p, PhaseBeforeInit, func() error {
		return callBeforeInit(p, pctx)
	}); err != nil {
		return initOutcome{name: p.Name(), phase: PhaseBeforeInit, err: err}
	}

	var api plugin.API
	if err := e.runPhaseWithPolicy(ctx, p, PhaseInit, func() error {
		result, setupErr := p.Setup(pctx)
		api = result
		return setupErr
	}); err != nil {
		return initOutcome{name: p.Name(), phase: PhaseInit, err: err}
	}

	if err := e.runPhaseWithPolicy(ctx, p, PhaseAfterInit, func() error {
		return callAfterInit(p, pctx)
	}); err != nil {
		return initOutcome{name: p.Name(), phase: PhaseAfterInit, err: err}
	}

	return initOutcome{name: p.Name(), api: api}
}

// Init runs beforeInit -> init -> afterInit across order (a topologically
// valid permutation of plugin names). Plugins in the same topological
// level run concurrently, up to opts.Concurrency at once; levels run in
// order, so a plugin never starts before everything it depends on has
// finished. On the first phase failure after retries are exhausted, Init
// aborts: it tears down (beforeDestroy -> destroy -> afterDestroy,
// reverse order, errors swallowed) every plugin whose init already
// succeeded, then returns LifecyclePhaseFailed.
func (e *Engine) Init(ctx context.Context, ordered []plugin.Plugin, byName map[string]plugin.Plugin, ctxFor func(p plugin.Plugin) *plugin.Context) ([]string, error) {
	var initialized []string

	for _, group := range e.levelGroups(ordered) {
		outcomes := concurrency.ParallelMap(group, e.opts.Concurrency, func(p plugin.Plugin) initOutcome {
			return e.initOne(ctx, p, ctxFor(p))
		})

		var failed *initOutcome
		for i := range outcomes {
			o := &outcomes[i]
			if o.err != nil {
				if failed == nil {
					failed = o
				}
				continue
			}
			initialized = append(initialized, o.name)
			if e.onSetup != nil {
				e.onSetup(o.name, o.api)
			}
			if e.events != nil {
				_ = e.events.Emit(ctx, "lifecycle", "pluginLoaded", map[string]any{"name": o.name})
			}
		}

		if failed != nil {
			e.abort(ctx, initialized, byName, ctxFor)
			return nil, e.fail(failed.name, failed.phase, failed.err)
		}
	}

	return initialized, nil
}

func (e *Engine) fail(name string, phase Phase, cause error) error {
	wrapped := kernelerr.LifecyclePhaseFailed(name, string(phase), cause)
	if e.events != nil {
		_ = e.events.Emit(context.Background(), "lifecycle", "pluginFailed", map[string]any{"name": name, "error": wrapped})
	}
	return wrapped
}

// abort tears down every plugin named in initialized, in reverse order,
// swallowing (logging, routing to the error bus) every teardown error.
func (e *Engine) abort(ctx context.Context, initialized []string, byName map[string]plugin.Plugin, ctxFor func(p plugin.Plugin) *plugin.Context) {
	if len(initialized) == 0 {
		return
	}
	e.logger.Warn("aborting boot, tearing down already-initialized plugins", zap.Int("count", len(initialized)))
	toTearDown := make([]plugin.Plugin, 0, len(initialized))
	for _, name := range initialized {
		if p, ok := byName[name]; ok {
			toTearDown = append(toTearDown, p)
		}
	}
	e.Destroy(ctx, toTearDown, ctxFor)
}

// destroyOne runs beforeDestroy -> destroy -> afterDestroy for a single
// plugin, reporting (never returning) any phase error.
func (e *Engine) destroyOne(ctx context.Context, p plugin.Plugin, pctx *plugin.Context) {
	if err := e.runPhaseWithPolicy(ctx, p, PhaseBeforeDestroy, func() error {
		return callBeforeDestroy(p, pctx)
	}); err != nil {
		e.reportTeardownError(p.Name(), PhaseBeforeDestroy, err)
	}
	if err := e.runPhaseWithPolicy(ctx, p, PhaseDestroy, func() error {
		return callDestroy(p, pctx)
	}); err != nil {
		e.reportTeardownError(p.Name(), PhaseDestroy, err)
	}
	if err := e.runPhaseWithPolicy(ctx, p, PhaseAfterDestroy, func() error {
		return callAfterDestroy(p, pctx)
	}); err != nil {
		e.reportTeardownError(p.Name(), PhaseAfterDestroy, err)
	}
}

// Destroy runs beforeDestroy -> destroy -> afterDestroy across ordered's
// topological levels in reverse (highest level first), regardless of
// caller-supplied order. Plugins in the same level tear down
// concurrently, up to opts.Concurrency at once, the same bound Init
// uses; each level's plugins are started in reverse of their order in
// ordered, so with Concurrency 1 teardown is the exact reverse of
// ordered. Errors are logged and routed to the error bus but never
// re-thrown; Destroy always attempts every plugin.
func (e *Engine) Destroy(ctx context.Context, ordered []plugin.Plugin, ctxFor func(p plugin.Plugin) *plugin.Context) {
	groups := e.levelGroups(ordered)
	for i := len(groups) - 1; i >= 0; i-- {
		group := make([]plugin.Plugin, len(groups[i]))
		for j, p := range groups[i] {
			group[len(group)-1-j] = p
		}
		concurrency.ParallelMap(group, e.opts.Concurrency, func(p plugin.Plugin) struct{} {
			e.destroyOne(ctx, p, ctxFor(p))
			return struct{}{}
		})
	}
}

func (e *Engine) reportTeardownError(name string, phase Phase, cause error) {
	wrapped := kernelerr.LifecyclePhaseFailed(name, string(phase), cause)
	e.logger.Warn("teardown phase failed", zap.String("plugin", name), zap.String("phase", string(phase)))
	if e.errorBus != nil {
		e.errorBus.Report(context.Background(), "lifecycle", "TeardownError", wrapped, map[string]any{
			"plugin": name, "phase": string(phase),
		})
	}
}

// runPhaseWithPolicy calls fn up to policy.Retry+1 times, bounding each
// attempt by policy.TimeoutMs when positive.
func (e *Engine) runPhaseWithPolicy(ctx context.Context, p plugin.Plugin, phase Phase, fn func() error) error {
	policy := e.opts.policyFor(phase)
	attempts := policy.Retry + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		timeout := time.Duration(policy.TimeoutMs) * time.Millisecond
		err := concurrency.RunWithTimeout(ctx, timeout, func(_ context.Context) error {
			return fn()
		})
		if err == nil {
			return nil
		}
		if err == context.DeadlineExceeded {
			lastErr = kernelerr.LifecyclePhaseTimeout(p.Name(), string(phase), attempt)
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// levelGroups partitions ordered into topological levels using e.levels
// when set; otherwise every plugin is its own level (fully sequential).
func (e *Engine) levelGroups(ordered []plugin.Plugin) [][]plugin.Plugin {
	if e.levels == nil {
		groups := make([][]plugin.Plugin, len(ordered))
		for i, p := range ordered {
			groups[i] = []plugin.Plugin{p}
		}
		return groups
	}

	var groups [][]plugin.Plugin
	var current []plugin.Plugin
	currentLevel := -1
	for _, p := range ordered {
		lvl := e.levels[p.Name()]
		if lvl != currentLevel && current != nil {
			groups = append(groups, current)
			current = nil
		}
		currentLevel = lvl
		current = append(current, p)
	}
	if current != nil {
		groups = append(groups, current)
	}
	return groups
}

func callBeforeInit(p plugin.Plugin, ctx *plugin.Context) error {
	if hook, ok := p.(plugin.BeforeIniter); ok {
		return hook.BeforeInit(ctx)
	}
	return nil
}

func callAfterInit(p plugin.Plugin, ctx *plugin.Context) error {
	if hook, ok := p.(plugin.AfterIniter); ok {
		return hook.AfterInit(ctx)
	}
	return nil
}

func callBeforeDestroy(p plugin.Plugin, ctx *plugin.Context) error {
	if hook, ok := p.(plugin.BeforeDestroyer); ok {
		return hook.BeforeDestroy(ctx)
	}
	return nil
}

func callDestroy(p plugin.Plugin, ctx *plugin.Context) error {
	if hook, ok := p.(plugin.Destroyer); ok {
		return hook.Destroy(ctx)
	}
	return nil
}

func callAfterDestroy(p plugin.Plugin, ctx *plugin.Context) error {
	if hook, ok := p.(plugin.AfterDestroyer); ok {
		return hook.AfterDestroy(ctx)
	}
	return nil
}
