// Package registry holds the insertion-ordered map of registered
// plugins and the user ordering directives supplied at registration
// time, grounded on the teacher's component registry
// (leeforge-framework/component/registry.go), generalized from
// component-name keys to plugin instances plus an auxiliary ordering
// table.
package registry

import (
	"sync"

	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/plugin"
)

// Order is the user-supplied ordering directive passed to Registry.Register,
// mirroring .use(plugin, order?) in the builder surface.
type Order struct {
	Before []string
	After  []string
}

func (o Order) isEmpty() bool {
	return len(o.Before) == 0 && len(o.After) == 0
}

// Registry is an insertion-ordered plugin table. It is single-writer
// (built during the builder phase, read thereafter) but guards its maps
// with a mutex since lifecycle and bus code may read it concurrently
// once the kernel is running.
type Registry struct {
	mu      sync.RWMutex
	names   []string
	plugins map[string]plugin.Plugin
	orders  map[string]Order
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		plugins: make(map[string]plugin.Plugin),
		orders:  make(map[string]Order),
	}
}

// Register adds p under its own Name(). An empty name is rejected with
// InvalidPluginName, a plugin declaring itself as a dependency is
// rejected with SelfDependency, and a second registration under an
// already-used name is rejected with DuplicatePlugin. order is stored
// only when it carries at least one directive.
func (r *Registry) Register(p plugin.Plugin, order Order) error {
	name := p.Name()
	if name == "" {
		return kernelerr.InvalidPluginName(name)
	}
	if declarer, ok := p.(plugin.DependencyDeclarer); ok {
		for _, d := range declarer.Dependencies() {
			if d.Name == name {
				return kernelerr.SelfDependency(name)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[name]; exists {
		return kernelerr.DuplicatePlugin(name)
	}
	r.names = append(r.names, name)
	r.plugins[name] = p
	if !order.isEmpty() {
		r.orders[name] = order
	}
	return nil
}

// List returns plugins in registration order.
func (r *Registry) List() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]plugin.Plugin, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.plugins[n])
	}
	return out
}

// Names returns plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.names...)
}

// Get looks up a plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[name]
	return ok
}

// Orders returns the user ordering directives keyed by plugin name; only
// plugins registered with a non-empty Order appear.
func (r *Registry) Orders() map[string]Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Order, len(r.orders))
	for k, v := range r.orders {
		out[k] = v
	}
	return out
}

// Clear drops every registered plugin and ordering directive. Intended
// for test harnesses only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = nil
	r.plugins = make(map[string]plugin.Plugin)
	r.orders = make(map[string]Order)
}

// Len reports the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
