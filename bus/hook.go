package bus

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/logging"
)

// HookHandler receives a hook emission. As with events, a returned error
// never propagates to the emitter; it is routed to the error bus.
type HookHandler func(ctx context.Context, payload any) error

type hookEntry struct {
	id      uint64
	fnPtr   uintptr
	handler HookHandler
	// wrap, when set, is the debounce/throttle-adjusted invocation path;
	// dispatch calls wrap instead of handler directly when present.
	wrap func(ctx context.Context, payload any)
}

type hookSubscription struct {
	bus *HookBus
	key string
	id  uint64
}

func (s *hookSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	entries := s.bus.hooks[s.key]
	for i, e := range entries {
		if e.id == s.id {
			s.bus.hooks[s.key] = append(append([]hookEntry{}, entries[:i]...), entries[i+1:]...)
			return
		}
	}
}

// HookBus is the C8 per-key hook bus: eagerly created keys, synchronous
// fan-out, and debounce/throttle wrappers over plain handlers.
type HookBus struct {
	mu      sync.Mutex
	hooks   map[string][]hookEntry
	nextID  uint64
	errorBus *ErrorBus
	logger  logging.Logger
}

// NewHookBus creates a HookBus. Unlike the event bus, hooks require no
// prior Define call: on() implicitly creates the key.
func NewHookBus(errorBus *ErrorBus, logger logging.Logger) *HookBus {
	if logger == nil {
		logger = logging.Global()
	}
	return &HookBus{
		hooks:    make(map[string][]hookEntry),
		errorBus: errorBus,
		logger:   logger.Named("hooks"),
	}
}

// On subscribes handler under key. Duplicate registration of the same
// function value is a no-op.
func (b *HookBus) On(key string, handler HookHandler) Subscription {
	return b.register(key, handler, nil)
}

func (b *HookBus) register(key string, handler HookHandler, wrap func(context.Context, any)) Subscription {
	ptr := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.hooks[key] {
		if e.fnPtr == ptr {
			return &hookSubscription{bus: b, key: key, id: e.id}
		}
	}
	b.nextID++
	id := b.nextID
	b.hooks[key] = append(b.hooks[key], hookEntry{id: id, fnPtr: ptr, handler: handler, wrap: wrap})
	return &hookSubscription{bus: b, key: key, id: id}
}

// Off removes every subscription of handler under key.
func (b *HookBus) Off(key string, handler HookHandler) {
	ptr := reflect.ValueOf(handler).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.hooks[key]
	out := entries[:0:0]
	for _, e := range entries {
		if e.fnPtr != ptr {
			out = append(out, e)
		}
	}
	b.hooks[key] = out
}

// Once resolves the next emission of key and auto-unsubscribes.
func (b *HookBus) Once(key string) <-chan any {
	out := make(chan any, 1)
	var sub Subscription
	var subMu sync.Mutex
	handler := func(ctx context.Context, payload any) error {
		select {
		case out <- payload:
		default:
		}
		subMu.Lock()
		if sub != nil {
			sub.Unsubscribe()
		}
		subMu.Unlock()
		return nil
	}
	subMu.Lock()
	sub = b.register(key, handler, nil)
	subMu.Unlock()
	return out
}

// Emit synchronously fans payload out to every handler registered under
// key, in subscription order.
func (b *HookBus) Emit(ctx context.Context, key string, payload any) {
	b.mu.Lock()
	snapshot := append([]hookEntry{}, b.hooks[key]...)
	b.mu.Unlock()

	for _, e := range snapshot {
		p := shallowCopyPayload(payload)
		if e.wrap != nil {
			e.wrap(ctx, p)
			continue
		}
		b.invoke(ctx, key, e.handler, p)
	}
}

func (b *HookBus) invoke(ctx context.Context, key string, handler HookHandler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.reportHandlerError(key, panicToError(r))
		}
	}()
	if err := handler(ctx, payload); err != nil {
		b.reportHandlerError(key, err)
	}
}

func (b *HookBus) reportHandlerError(key string, cause error) {
	wrapped := kernelerr.HookHandlerError("hooks", key, cause)
	b.logger.Warn("hook handler error", zapFields(Address{Namespace: "hooks", Key: key}, cause)...)
	if b.errorBus != nil {
		b.errorBus.Report(context.Background(), "hooks", "HandlerError", wrapped, map[string]any{"key": key})
	}
}

// Debounce wraps handler so it fires once `wait` after the last Emit for
// key; intervening emits reset the timer. Unsubscribe removes the handler
// for later emits; it does not stop a timer that is already pending, so
// that one delivery still fires.
func (b *HookBus) Debounce(key string, wait time.Duration, handler HookHandler) Subscription {
	var mu sync.Mutex
	var timer *time.Timer
	var latest any

	wrap := func(ctx context.Context, payload any) {
		mu.Lock()
		defer mu.Unlock()
		latest = payload
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, func() {
			mu.Lock()
			p := latest
			mu.Unlock()
			b.invoke(ctx, key, handler, p)
		})
	}
	return b.register(key, handler, wrap)
}

// Throttle wraps handler so it fires at most once per `window`, on the
// leading edge of each window.
func (b *HookBus) Throttle(key string, window time.Duration, handler HookHandler) Subscription {
	var mu sync.Mutex
	var last time.Time

	wrap := func(ctx context.Context, payload any) {
		mu.Lock()
		now := time.Now()
		if !last.IsZero() && now.Sub(last) < window {
			mu.Unlock()
			return
		}
		last = now
		mu.Unlock()
		b.invoke(ctx, key, handler, payload)
	}
	return b.register(key, handler, wrap)
}
