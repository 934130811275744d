package bus

import "context"

// Context is passed down the three-tier middleware chain (bus-wide ->
// namespace -> event) ending at handler dispatch. A middleware may mutate
// Meta, replace Payload before it propagates, or short-circuit by simply
// not calling next.
type Context struct {
	Ctx       context.Context
	Namespace string
	Key       string
	Payload   any
	Meta      map[string]any
}

// Middleware wraps the next link in the chain. Returning an error without
// calling next short-circuits delivery to handlers for this emission.
type Middleware func(mc *Context, next func(*Context) error) error

// chain composes middlewares (outermost first) around a terminal handler.
func chain(mws []Middleware, terminal func(*Context) error) func(*Context) error {
	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		prevNext := next
		next = func(mc *Context) error {
			return mw(mc, prevNext)
		}
	}
	return next
}

// shallowCopyPayload defends handlers against cross-mutation for the one
// payload shape Go can meaningfully copy without reflection: plain
// map[string]any records. Everything else (slices, structs, pointers) is
// passed through unchanged — the Go analogue of the spec's "non-plain
// values pass as-is" rule, since Go has no generic object-freeze.
func shallowCopyPayload(payload any) any {
	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
