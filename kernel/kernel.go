// Package kernel assembles the registry, resolver, lifecycle engine,
// bus family, recovery coordinator, and augmentation merger into the
// single facade a host process drives: Builder.Use to register plugins,
// Builder.Build to resolve the load order, then Kernel.Init/Destroy to
// run the boot and teardown sequence. Grounded on the teacher's
// application bootstrap (leeforge-framework/runtime/runtime.go),
// generalized from a fixed component list into a resolved, policy-driven
// plugin graph.
package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/zern/kernel/augment"
	"github.com/zern/kernel/bus"
	"github.com/zern/kernel/config"
	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/lifecycle"
	"github.com/zern/kernel/logging"
	"github.com/zern/kernel/plugin"
	"github.com/zern/kernel/recovery"
	"github.com/zern/kernel/registry"
	"github.com/zern/kernel/resolver"
	"go.uber.org/zap/zapcore"
)

// alertOnError returns a logging.Hook that forwards error/fatal log
// entries to alerts as a "kernel"/"log-error" alert, so alert channels
// (console, webhook, ...) surface severe log lines without every
// subsystem having to emit its own alert by hand.
func alertOnError(alerts *bus.AlertBus) logging.Hook {
	return func(entry zapcore.Entry) error {
		if entry.Level < zapcore.ErrorLevel {
			return nil
		}
		alerts.Emit(context.Background(), "kernel", "log-error", map[string]any{
			"message": entry.Message,
			"logger":  entry.LoggerName,
			"level":   entry.Level.String(),
		})
		return nil
	}
}

// namedAdapter pairs a bus.Adapter with the name config.EventsOptions's
// adapter list refers to it by.
type namedAdapter struct {
	name    string
	adapter bus.Adapter
}

// Builder accumulates plugin registrations and kernel options before a
// single Build call resolves the dependency graph and wires the bus
// family together.
type Builder struct {
	reg        *registry.Registry
	opts       config.KernelOptions
	logger     logging.Logger
	factory    *logging.Factory
	adapters   []namedAdapter
	channels   []bus.AlertChannel
	stages     []bus.PolicyStage
	strategies []recovery.Strategy
	fallbacks  []recovery.Strategy
}

// NewBuilder creates a Builder with default kernel options.
func NewBuilder() *Builder {
	return &Builder{
		reg:  registry.New(),
		opts: config.DefaultKernelOptions(),
	}
}

// Use registers p, with an optional before/after ordering directive.
// Registering two plugins under the same name fails with DuplicatePlugin;
// an empty Name() fails with InvalidPluginName; a plugin that declares
// itself as a dependency fails with SelfDependency.
func (b *Builder) Use(p plugin.Plugin, order ...registry.Order) error {
	o := registry.Order{}
	if len(order) > 0 {
		o = order[0]
	}
	return b.reg.Register(p, o)
}

// WithOptions replaces the builder's kernel options wholesale.
func (b *Builder) WithOptions(opts config.KernelOptions) *Builder {
	b.opts = opts
	return b
}

// WithLogger sets the base logger every subsystem derives its named
// child logger from; nil falls back to logging.Global().
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// WithLoggingConfig builds a logging.Factory from cfg and uses it both
// for the kernel's own subsystem loggers and for the per-plugin logger
// handed to each plugin through its Context. Plugins then log under
// their own name without sharing a single zap core's file handles with
// every other plugin. Whichever of WithLogger and WithLoggingConfig is
// called last sets the kernel's own base logger; the per-plugin loggers
// come from this factory either way.
func (b *Builder) WithLoggingConfig(cfg logging.Config) *Builder {
	b.factory = logging.NewFactory(cfg)
	b.logger = b.factory.GetLogger("kernel")
	return b
}

// UseAdapter registers a trusted event observer under name, matched
// against config.EventsOptions.Adapters at Build time.
func (b *Builder) UseAdapter(name string, adapter bus.Adapter) *Builder {
	b.adapters = append(b.adapters, namedAdapter{name: name, adapter: adapter})
	return b
}

// UseAlertChannel registers an additional alert sink beyond the default
// console channel.
func (b *Builder) UseAlertChannel(ch bus.AlertChannel) *Builder {
	b.channels = append(b.channels, ch)
	return b
}

// UseErrorStage appends a policy stage to the error bus pipeline, run in
// registration order after the default sanitize/log stages Build
// installs.
func (b *Builder) UseErrorStage(stage bus.PolicyStage) *Builder {
	b.stages = append(b.stages, stage)
	return b
}

// UseRecoveryStrategy registers a priority-ordered recovery strategy the
// recovery coordinator tries on demand.
func (b *Builder) UseRecoveryStrategy(s recovery.Strategy) *Builder {
	b.strategies = append(b.strategies, s)
	return b
}

// UseRecoveryFallback registers a fallback strategy, tried only when
// every primary strategy fails and recovery.enableFallbacks is set.
func (b *Builder) UseRecoveryFallback(s recovery.Strategy) *Builder {
	b.fallbacks = append(b.fallbacks, s)
	return b
}

// Build resolves the registered plugins' dependency graph and wires the
// bus family, lifecycle engine, and recovery coordinator. It does not run
// any plugin code; call Kernel.Init for that.
func (b *Builder) Build() (*Kernel, error) {
	logger := b.logger
	if logger == nil {
		logger = logging.Global()
	}
	logger = logger.Named("kernel")

	res := resolver.New(resolverStrategy(b.opts.Resolver.Strategy))
	report, err := res.Resolve(b.reg)
	if err != nil {
		return nil, kernelerr.KernelErrorf(err)
	}
	for _, c := range report.Downgraded {
		logger.Warn(fmt.Sprintf("resolver conflict downgraded to a warning: %s (plugin %q, %s)", c.Kind, c.Plugin, c.Detail))
	}

	errorBus := bus.NewErrorBus(logger)
	errorBus.Use(bus.SanitizeStage)
	errorBus.Use(bus.LogStage(logger))
	for _, stage := range b.stages {
		errorBus.Use(stage)
	}

	eventBus := bus.NewEventBus(bus.ModePermissive, errorBus, logger)
	hookBus := bus.NewHookBus(errorBus, logger)
	alertBus := bus.NewAlertBus(errorBus, logger)
	alertBus.RegisterChannel(bus.NewConsoleChannel(logger))
	for _, ch := range b.channels {
		alertBus.RegisterChannel(ch)
	}

	logger = logging.WithHook(logger, alertOnError(alertBus))

	registeredAdapters := make(map[string]bool, len(b.adapters))
	for _, na := range b.adapters {
		eventBus.RegisterAdapter(na.adapter)
		registeredAdapters[na.name] = true
	}
	for _, name := range b.opts.Events.Adapters {
		if !registeredAdapters[name] {
			logger.Warn(fmt.Sprintf("configured event adapter %q was never registered via UseAdapter", name))
		}
	}

	recoveryMgr := recovery.NewManager(recoveryConfig(b.opts.Recovery), b.strategies, b.fallbacks, logger)

	engine := lifecycle.New(lifecycleOptions(b.opts.Lifecycle), eventBus, errorBus, logger)
	engine.SetLevels(computeLevels(b.reg, report.Order))

	k := &Kernel{
		registry:  b.reg,
		report:    report,
		events:    eventBus,
		hooks:     hookBus,
		alerts:    alertBus,
		errors:    errorBus,
		lifecycle: engine,
		recovery:  recoveryMgr,
		augmenter: augment.New(errorBus, logger),
		logger:    logger,
		factory:   b.factory,
		apis:      make(map[string]plugin.API),
		state:     StateUninitialized,
	}
	k.eventAccess = &eventAccess{bus: eventBus}
	k.hookAccess = &hookAccess{bus: hookBus}
	k.alertAccess = &alertAccess{bus: alertBus}
	k.errorAccess = &errorAccess{bus: errorBus}
	k.view = &kernelView{k: k}

	engine.SetOnSetup(func(name string, api plugin.API) {
		k.mu.Lock()
		k.apis[name] = api
		k.mu.Unlock()
	})

	declareBusContracts(b.reg, eventBus, errorBus)

	return k, nil
}

// Kernel is the facade a host process drives through Init/Destroy; it
// owns the resolved plugin order, the bus family, and the recovery
// coordinator every plugin shares.
type Kernel struct {
	mu       sync.RWMutex
	state    State
	registry *registry.Registry
	report   *resolver.Report

	events *bus.EventBus
	hooks  *bus.HookBus
	alerts *bus.AlertBus
	errors *bus.ErrorBus

	lifecycle *lifecycle.Engine
	recovery  *recovery.Manager
	augmenter *augment.Merger

	eventAccess plugin.EventAccess
	hookAccess  plugin.HookAccess
	alertAccess plugin.AlertAccess
	errorAccess plugin.ErrorAccess
	view        plugin.KernelView

	logger  logging.Logger
	factory *logging.Factory
	apis    map[string]plugin.API
}

// State reports the kernel's current position in its boot/teardown state
// machine.
func (k *Kernel) State() State {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

func (k *Kernel) setState(s State) {
	k.mu.Lock()
	k.state = s
	k.mu.Unlock()
}

func (k *Kernel) pluginAPI(name string) (plugin.API, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	api, ok := k.apis[name]
	return api, ok
}

// Events, Hooks, Alerts, and Errors expose the four buses to a host
// process outside the plugin Context path (e.g. for test assertions or a
// process-level supervisor).
func (k *Kernel) Events() *bus.EventBus { return k.events }
func (k *Kernel) Hooks() *bus.HookBus   { return k.hooks }
func (k *Kernel) Alerts() *bus.AlertBus { return k.alerts }
func (k *Kernel) Errors() *bus.ErrorBus { return k.errors }

// Recovery exposes the shared recovery coordinator so plugins and host
// code can route flaky operations through the same strategies.
func (k *Kernel) Recovery() *recovery.Manager { return k.recovery }

// Plugins returns the resolved load order's plugin names.
func (k *Kernel) Plugins() []string {
	return append([]string{}, k.report.Order...)
}

// LoadedPlugins returns the names of plugins whose init phase has
// completed, in resolved order, regardless of the kernel's current state.
func (k *Kernel) LoadedPlugins() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.apis))
	for _, name := range k.report.Order {
		if _, ok := k.apis[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// PluginAPI returns the final (post-augmentation, once Init has
// completed) public API of the named plugin.
func (k *Kernel) PluginAPI(name string) (plugin.API, bool) {
	return k.pluginAPI(name)
}

func (k *Kernel) ctxFor(ctx context.Context, p plugin.Plugin) *plugin.Context {
	pluginLogger := k.logger
	if k.factory != nil {
		pluginLogger = k.factory.GetLogger(p.Name())
	} else if pluginLogger != nil {
		pluginLogger = pluginLogger.Named(p.Name())
	}
	return &plugin.Context{Ctx: ctx, Self: p.Name(), Kernel: k.view, Logger: pluginLogger}
}

// Init resolves a *plugin.Context.Ctx against ctx and runs the boot
// sequence: beforeInit/init/afterInit across the resolved order, then
// applies every plugin's declared API augmentations, then starts the
// event bus (releasing anything buffered during boot). Init is not
// idempotent: calling it twice returns KernelAlreadyInitialized.
func (k *Kernel) Init(ctx context.Context) error {
	k.mu.Lock()
	if k.state != StateUninitialized {
		k.mu.Unlock()
		return kernelerr.KernelAlreadyInitialized()
	}
	k.state = StateInitializing
	k.mu.Unlock()

	ordered := make([]plugin.Plugin, 0, len(k.report.Order))
	byName := make(map[string]plugin.Plugin, len(k.report.Order))
	for _, name := range k.report.Order {
		p, _ := k.registry.Get(name)
		ordered = append(ordered, p)
		byName[name] = p
	}

	ctxFor := func(p plugin.Plugin) *plugin.Context {
		return k.ctxFor(ctx, p)
	}

	if _, err := k.lifecycle.Init(ctx, ordered, byName, ctxFor); err != nil {
		k.setState(StateErrored)
		return kernelerr.KernelErrorf(err)
	}

	k.applyAugmentations()
	k.events.Start(ctx)
	k.setState(StateInitialized)
	return nil
}

// applyAugmentations folds every registered Augmenter's contributions
// onto their declared targets, once every plugin's own Setup has run.
func (k *Kernel) applyAugmentations() {
	contributions := make(map[string][]augment.Contribution)
	for _, name := range k.report.Order {
		p, _ := k.registry.Get(name)
		augmenter, ok := p.(plugin.Augmenter)
		if !ok {
			continue
		}
		ownAPI, _ := k.pluginAPI(name)
		for target, methods := range augmenter.Augments() {
			contributions[target] = append(contributions[target], augment.Contribution{
				Source: name, OwnAPI: ownAPI, Methods: methods,
			})
		}
	}

	for target, cs := range contributions {
		ownAPI, _ := k.pluginAPI(target)
		merged := k.augmenter.Merge(target, ownAPI, cs)
		k.mu.Lock()
		k.apis[target] = merged
		k.mu.Unlock()
	}
}

// Destroy runs the teardown sequence (beforeDestroy/destroy/afterDestroy,
// reverse resolved order) across every plugin that reached init, then
// closes the event bus's background workers. Destroy is idempotent: a
// second call is a no-op. Calling Destroy before Init has completed tears
// down whatever prefix did initialize, matching lifecycle.Engine's own
// abort behavior.
func (k *Kernel) Destroy(ctx context.Context) error {
	k.mu.Lock()
	if k.state == StateDestroyed || k.state == StateDestroying {
		k.mu.Unlock()
		return nil
	}
	k.state = StateDestroying
	k.mu.Unlock()

	ordered := make([]plugin.Plugin, 0, len(k.report.Order))
	for _, name := range k.report.Order {
		if _, ok := k.pluginAPI(name); !ok {
			continue
		}
		if p, ok := k.registry.Get(name); ok {
			ordered = append(ordered, p)
		}
	}

	k.lifecycle.Destroy(ctx, ordered, func(p plugin.Plugin) *plugin.Context {
		return k.ctxFor(ctx, p)
	})
	k.events.Close()
	k.setState(StateDestroyed)
	return nil
}

// Namespaces returns every plugin's declared hook and alert key ownership,
// for introspection/documentation tooling. The event bus tracks its own
// namespace+key definitions directly (see Kernel.Events().Define); this
// covers the two buses that declare ownership without an upfront contract.
func (k *Kernel) Namespaces() []plugin.NamespaceDecl {
	var out []plugin.NamespaceDecl
	for _, name := range k.registry.Names() {
		p, _ := k.registry.Get(name)
		if declarer, ok := p.(plugin.HookDeclarer); ok {
			out = append(out, plugin.NamespaceDecl{Namespace: "hooks:" + name, Keys: declarer.HookKeys()})
		}
		if declarer, ok := p.(plugin.AlertDeclarer); ok {
			out = append(out, plugin.NamespaceDecl{Namespace: "alerts:" + name, Keys: declarer.AlertKinds()})
		}
	}
	return out
}

func computeLevels(reg *registry.Registry, order []string) map[string]int {
	levels := make(map[string]int, len(order))
	depsOf := make(map[string][]string, len(order))
	for _, name := range order {
		p, ok := reg.Get(name)
		if !ok {
			continue
		}
		declarer, ok := p.(plugin.DependencyDeclarer)
		if !ok {
			continue
		}
		for _, d := range declarer.Dependencies() {
			depsOf[name] = append(depsOf[name], d.Name)
		}
	}
	for _, name := range order {
		level := 0
		for _, dep := range depsOf[name] {
			if l, ok := levels[dep]; ok && l+1 > level {
				level = l + 1
			}
		}
		levels[name] = level
	}
	return levels
}

// declareBusContracts wires each plugin's declared event definitions and
// error factories into the event and error buses ahead of Init, so the
// very first emit/report during beforeInit already resolves correctly.
func declareBusContracts(reg *registry.Registry, events *bus.EventBus, errors *bus.ErrorBus) {
	for _, name := range reg.Names() {
		p, _ := reg.Get(name)

		if declarer, ok := p.(plugin.EventDeclarer); ok {
			for _, d := range declarer.EventDefs() {
				events.Define(bus.EventDef{
					Namespace: d.Namespace,
					Key:       d.Key,
					Mode:      eventMode(d.Mode),
					Startup:   startupPolicy(d.Startup, d.BufferSize),
				})
			}
		}

		if declarer, ok := p.(plugin.ErrorDeclarer); ok {
			factories := make(map[string]bus.ErrorFactory, len(declarer.ErrorFactories()))
			for kind, fn := range declarer.ErrorFactories() {
				factories[kind] = bus.ErrorFactory(fn)
			}
			errors.DefineErrors(name, factories)
		}
	}
}

func eventMode(raw string) bus.DeliveryMode {
	switch raw {
	case "microtask":
		return bus.Microtask
	case "async":
		return bus.Async
	default:
		return bus.Sync
	}
}

func startupPolicy(raw string, bufferSize int) bus.StartupPolicy {
	switch raw {
	case "buffer":
		return bus.StartupPolicy{Kind: bus.StartupBuffer, BufferSize: bufferSize}
	case "sticky":
		return bus.StartupPolicy{Kind: bus.StartupSticky}
	default:
		return bus.StartupPolicy{Kind: bus.StartupDrop}
	}
}
