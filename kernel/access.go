package kernel

import (
	"context"

	"github.com/zern/kernel/bus"
	"github.com/zern/kernel/plugin"
)

// eventAccess, hookAccess, alertAccess, and errorAccess adapt the
// concrete bus family types onto the narrow plugin.*Access interfaces a
// plugin.Context exposes, closing the signature gap between the buses'
// own named handler/subscription types and the plugin package's
// import-cycle-free stand-ins for them.
type eventAccess struct{ bus *bus.EventBus }

func (a *eventAccess) Emit(ctx context.Context, namespace, key string, payload any) error {
	return a.bus.Emit(ctx, namespace, key, payload)
}

func (a *eventAccess) Subscribe(namespace, key string, handler func(ctx context.Context, payload any) error) (plugin.Unsubscriber, error) {
	return a.bus.Subscribe(namespace, key, bus.EventHandler(handler))
}

type hookAccess struct{ bus *bus.HookBus }

func (a *hookAccess) Emit(ctx context.Context, key string, payload any) {
	a.bus.Emit(ctx, key, payload)
}

func (a *hookAccess) On(key string, handler func(ctx context.Context, payload any) error) plugin.Unsubscriber {
	return a.bus.On(key, bus.HookHandler(handler))
}

type alertAccess struct{ bus *bus.AlertBus }

func (a *alertAccess) Emit(ctx context.Context, namespace, kind string, payload any) {
	a.bus.Emit(ctx, namespace, kind, payload)
}

func (a *alertAccess) On(handler func(ctx context.Context, namespace, kind string, payload any) error) plugin.Unsubscriber {
	return a.bus.On(bus.AlertHandler(handler))
}

type errorAccess struct{ bus *bus.ErrorBus }

func (a *errorAccess) Report(ctx context.Context, namespace, kind string, cause error, meta map[string]any) {
	a.bus.Report(ctx, namespace, kind, cause, meta)
}

func (a *errorAccess) On(namespace, kind string, handler func(ctx context.Context, cause error, payload any) error) plugin.Unsubscriber {
	return a.bus.On(namespace, kind, func(ctx context.Context, addr bus.Address, cause error, payload any) error {
		return handler(ctx, cause, payload)
	})
}

// kernelView is the plugin.KernelView a running Kernel exposes through
// plugin.Context.Kernel.
type kernelView struct {
	k *Kernel
}

func (v *kernelView) PluginAPI(name string) (plugin.API, bool) {
	return v.k.pluginAPI(name)
}

func (v *kernelView) Events() plugin.EventAccess { return v.k.eventAccess }
func (v *kernelView) Hooks() plugin.HookAccess   { return v.k.hookAccess }
func (v *kernelView) Alerts() plugin.AlertAccess { return v.k.alertAccess }
func (v *kernelView) Errors() plugin.ErrorAccess { return v.k.errorAccess }
