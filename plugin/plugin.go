// Package plugin defines the contract a Zern plugin implements: stable
// identity, declared dependencies and load hints, optional namespace
// declarations for the bus family, optional API augmentation, and the
// six lifecycle phase hooks. Concrete plugins satisfy Plugin and
// optionally the capability interfaces below; the kernel discovers which
// capabilities a plugin has via type assertion, the same pattern the
// teacher's component registry uses for its optional hooks
// (leeforge-framework/component/interface.go).
package plugin

import (
	"context"

	"github.com/zern/kernel/logging"
)

// API is a plugin's public surface: the record its Setup returns, plus
// whatever later-loaded plugins fold into it via augmentation. Go has no
// structural typing, so callers type-assert the concrete value they
// expect out of a named key.
type API map[string]any

// Dependency declares a required (or optional) plugin this one needs
// present, with a semver constraint on its version.
type Dependency struct {
	Name         string
	VersionRange string // semver constraint; empty means "*"
	Optional     bool
}

// LoadHints are soft ordering preferences that do not create a hard
// dependency edge (weight 1 in the constraint graph, vs. 3 for Dependency
// edges).
type LoadHints struct {
	LoadBefore []string
	LoadAfter  []string
}

// NamespaceDecl declares the keys a plugin owns under one bus namespace.
// Declaring a namespace does not define event contracts by itself —
// EventDeclarer supplies the per-key definitions the event bus needs.
type NamespaceDecl struct {
	Namespace string
	Keys      []string
}

// AugmentFunc contributes one additional method's value onto a target
// plugin's API. ownAPI is the augmenting plugin's own setup output,
// letting the contribution close over state without importing the kernel.
type AugmentFunc func(ownAPI API) any

// Context is passed to Setup and to every lifecycle phase function. It
// exposes the kernel facilities a plugin is allowed to touch during its
// own construction, scoped narrowly to avoid a plugin-package ->
// kernel-package import cycle.
type Context struct {
	Ctx    context.Context
	Self   string // this plugin's own name, for logging/error meta
	Kernel KernelView
	Logger logging.Logger // named after Self; falls back to logging.Global() if unset
}

// KernelView is the minimal read surface a plugin sees of the kernel
// during setup and lifecycle phases: the already-initialized APIs of
// earlier plugins in the resolved order, plus the four buses.
type KernelView interface {
	PluginAPI(name string) (API, bool)
	Events() EventAccess
	Hooks() HookAccess
	Alerts() AlertAccess
	Errors() ErrorAccess
}

// EventAccess, HookAccess, AlertAccess, and ErrorAccess are narrow
// views onto the bus family exposed through KernelView; the kernel
// package's concrete bus types satisfy these, keeping plugin free of a
// bus-package import requirement for anything beyond these methods.
type EventAccess interface {
	Emit(ctx context.Context, namespace, key string, payload any) error
	Subscribe(namespace, key string, handler func(ctx context.Context, payload any) error) (Unsubscriber, error)
}

type HookAccess interface {
	Emit(ctx context.Context, key string, payload any)
	On(key string, handler func(ctx context.Context, payload any) error) Unsubscriber
}

type AlertAccess interface {
	Emit(ctx context.Context, namespace, kind string, payload any)
	On(handler func(ctx context.Context, namespace, kind string, payload any) error) Unsubscriber
}

type ErrorAccess interface {
	Report(ctx context.Context, namespace, kind string, cause error, meta map[string]any)
	On(namespace, kind string, handler func(ctx context.Context, cause error, payload any) error) Unsubscriber
}

// Unsubscriber is satisfied by every bus's Subscription type.
type Unsubscriber interface {
	Unsubscribe()
}

// Plugin is the mandatory surface every plugin implements: stable
// identity and a setup function producing its public API. Everything
// else is opt-in via the capability interfaces below.
type Plugin interface {
	Name() string
	Version() string
	Setup(ctx *Context) (API, error)
}

// DependencyDeclarer is implemented by plugins that require other
// plugins to be present (and optionally version-constrained).
type DependencyDeclarer interface {
	Dependencies() []Dependency
}

// HintDeclarer is implemented by plugins with a soft load-order
// preference that should not fail the boot if unsatisfiable.
type HintDeclarer interface {
	Hints() LoadHints
}

// Augmenter is implemented by plugins that extend another plugin's
// public API once that target's own setup has produced its API.
type Augmenter interface {
	Augments() map[string]map[string]AugmentFunc // targetName -> methodName -> fn
}

// EventDeclarer is implemented by plugins that own one or more event
// definitions.
type EventDeclarer interface {
	EventDefs() []EventDefDecl
}

// EventDefDecl mirrors bus.EventDef's shape without importing the bus
// package from plugin, keeping the dependency direction one-way
// (plugin has no import of bus; kernel wires EventDefDecl into
// bus.EventDef at boot).
type EventDefDecl struct {
	Namespace  string
	Key        string
	Mode       string // "sync" | "microtask" | "async"
	Startup    string // "drop" | "buffer" | "sticky"
	BufferSize int
}

// HookDeclarer, AlertDeclarer, and ErrorDeclarer are implemented by
// plugins that want their namespace ownership recorded for
// documentation/introspection purposes; hooks and alerts need no
// upfront definition (they are created lazily), and error kinds are
// registered via ErrorFactories.
type HookDeclarer interface {
	HookKeys() []string
}

type AlertDeclarer interface {
	AlertKinds() []string
}

type ErrorDeclarer interface {
	ErrorFactories() map[string]func(cause error, meta map[string]any) any // kind -> factory
}

// BeforeIniter, AfterIniter, BeforeDestroyer, Destroyer, and
// AfterDestroyer are the five optional lifecycle phase hooks; Setup
// itself stands in for the "init" phase proper. A plugin implementing
// none of them still runs Setup and is otherwise a no-op through
// lifecycle.
type BeforeIniter interface {
	BeforeInit(ctx *Context) error
}

type AfterIniter interface {
	AfterInit(ctx *Context) error
}

type BeforeDestroyer interface {
	BeforeDestroy(ctx *Context) error
}

type Destroyer interface {
	Destroy(ctx *Context) error
}

type AfterDestroyer interface {
	AfterDestroy(ctx *Context) error
}

// State is a plugin's position in the lifecycle state machine, tracked
// by the kernel per spec.md's finer-grained mirror of the kernel state
// machine.
type State int

const (
	StateRegistered State = iota
	StateInitializing
	StateInitialized
	StateDestroying
	StateDestroyed
	StateError
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
