// Package bus implements the event, hook, alert, and error bus family
// (C7-C10): namespaced addresses, delivery modes, startup buffering, a
// three-tier middleware chain, and cross-bus error routing. It is the
// single mechanism for plugin-to-plugin and plugin-to-kernel
// communication, generalizing the teacher's single-topic EventBus
// (leeforge-framework/plugin/event.go, runtime/event_bus.go) into the
// four-bus family spec.md §4.7-§4.10 describes.
package bus

import "fmt"

// Address identifies a bus channel by namespace + key, e.g. events under
// namespace "users" with key "created".
type Address struct {
	Namespace string
	Key       string
}

func (a Address) String() string {
	return fmt.Sprintf("%s.%s", a.Namespace, a.Key)
}

// Mode governs strict vs. permissive handling of undeclared addresses.
type Mode int

const (
	// ModeStrict rejects operations against undeclared (namespace, key)
	// pairs (spec.md §3 invariant).
	ModeStrict Mode = iota
	// ModePermissive lazily defines an unadorned address on first use.
	ModePermissive
)
