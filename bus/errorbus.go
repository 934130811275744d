package bus

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zern/kernel/logging"
	"go.uber.org/zap"
)

// ErrorFactory builds a typed payload for one (namespace, kind) pair.
// DefineErrors stores these keyed by namespace and kind; Report looks the
// factory up by the reported (namespace, kind), and On subscribes by the
// same pair of strings.
type ErrorFactory func(cause error, meta map[string]any) any

// ErrorHandler observes a reported error after the policy pipeline.
type ErrorHandler func(ctx context.Context, addr Address, cause error, payload any) error

// PolicyStage is one link of the error bus's processing pipeline. It
// returns the (possibly replaced) payload that continues downstream; the
// cause is passed unchanged to every stage. A stage that returns an error
// is logged and skipped, and the payload it received carries on.
type PolicyStage func(ctx context.Context, addr Address, cause error, payload any) (any, error)

type errorSubEntry struct {
	id      uint64
	fnPtr   uintptr
	handler ErrorHandler
}

type errorSubscription struct {
	bus  *ErrorBus
	addr Address
	id   uint64
}

func (s *errorSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	entries := s.bus.subs[s.addr]
	for i, e := range entries {
		if e.id == s.id {
			s.bus.subs[s.addr] = append(append([]errorSubEntry{}, entries[:i]...), entries[i+1:]...)
			return
		}
	}
}

// ErrorBus is the C10 error bus: (namespace, kind)-addressed typed error
// reports pushed through a configurable policy pipeline before reaching
// subscribers.
type ErrorBus struct {
	mu       sync.Mutex
	factories map[string]map[string]ErrorFactory
	subs      map[Address][]errorSubEntry
	pipeline  []PolicyStage
	nextID    uint64
	logger    logging.Logger
}

// NewErrorBus creates an ErrorBus with no policy stages configured; use
// Use to install sanitize/log/sentry/retry stages.
func NewErrorBus(logger logging.Logger) *ErrorBus {
	if logger == nil {
		logger = logging.Global()
	}
	return &ErrorBus{
		factories: make(map[string]map[string]ErrorFactory),
		subs:      make(map[Address][]errorSubEntry),
		logger:    logger.Named("errors"),
	}
}

// DefineErrors registers one payload factory per kind under namespace.
func (b *ErrorBus) DefineErrors(namespace string, factories map[string]ErrorFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.factories[namespace]
	if !ok {
		m = make(map[string]ErrorFactory)
		b.factories[namespace] = m
	}
	for kind, f := range factories {
		m[kind] = f
	}
}

// Use appends a policy stage to the pipeline, run in registration order
// before delivery to subscribers.
func (b *ErrorBus) Use(stage PolicyStage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipeline = append(b.pipeline, stage)
}

// On subscribes handler to reports at (namespace, kind). Duplicate
// registration of the same function value is a no-op.
func (b *ErrorBus) On(namespace, kind string, handler ErrorHandler) Subscription {
	addr := Address{Namespace: namespace, Key: kind}
	ptr := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.subs[addr] {
		if e.fnPtr == ptr {
			return &errorSubscription{bus: b, addr: addr, id: e.id}
		}
	}
	b.nextID++
	id := b.nextID
	b.subs[addr] = append(b.subs[addr], errorSubEntry{id: id, fnPtr: ptr, handler: handler})
	return &errorSubscription{bus: b, addr: addr, id: id}
}

// Report builds the payload (via the registered factory, if any; the raw
// cause otherwise), runs the policy pipeline, and dispatches to
// subscribers at (namespace, kind). Report never returns an error: a
// pipeline stage's failure is logged and swallowed, consistent with
// handler errors never propagating back to the reporter.
func (b *ErrorBus) Report(ctx context.Context, namespace, kind string, cause error, meta map[string]any) {
	addr := Address{Namespace: namespace, Key: kind}

	b.mu.Lock()
	var payload any = cause
	if fam, ok := b.factories[namespace]; ok {
		if factory, ok := fam[kind]; ok {
			payload = factory(cause, meta)
		}
	}
	pipeline := append([]PolicyStage{}, b.pipeline...)
	subs := append([]errorSubEntry{}, b.subs[addr]...)
	b.mu.Unlock()

	for _, stage := range pipeline {
		next, err := stage(ctx, addr, cause, payload)
		if err != nil {
			b.logger.Warn("error bus policy stage failed", zap.Error(err), zap.String("address", addr.String()))
			continue
		}
		payload = next
	}

	for _, e := range subs {
		b.invoke(ctx, addr, e.handler, cause, payload)
	}
}

func (b *ErrorBus) invoke(ctx context.Context, addr Address, handler ErrorHandler, cause error, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("error bus handler panicked", zap.Any("recover", r), zap.String("address", addr.String()))
		}
	}()
	if err := handler(ctx, addr, cause, payload); err != nil {
		b.logger.Warn("error bus handler returned error", zap.Error(err), zap.String("address", addr.String()))
	}
}

// SanitizeStage strips anything JSON cannot represent (functions,
// channels) from map[string]any payloads via a JSON round-trip of each
// value; a key whose value does not survive the round-trip is dropped.
// Error values and other instances pass through unchanged, matching the
// rule that only plain records are sanitized.
func SanitizeStage(_ context.Context, _ Address, _ error, payload any) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return payload, nil
	}
	clean := make(map[string]any, len(m))
	for k, v := range m {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			continue
		}
		clean[k] = decoded
	}
	return clean, nil
}

// LogStage writes every reported error through logger at Warn.
func LogStage(logger logging.Logger) PolicyStage {
	if logger == nil {
		logger = logging.Global()
	}
	return func(_ context.Context, addr Address, cause error, payload any) (any, error) {
		logger.Warn("reported error",
			zap.String("namespace", addr.Namespace),
			zap.String("kind", addr.Key),
			zap.Error(cause),
		)
		return payload, nil
	}
}

// SentryReporter is the pluggable interface the sentry policy stage
// delegates to; production wiring supplies a real client.
type SentryReporter interface {
	CaptureError(ctx context.Context, addr Address, cause error, payload any)
}

// SentryStage forwards every reported error to reporter, without
// altering the payload.
func SentryStage(reporter SentryReporter) PolicyStage {
	return func(ctx context.Context, addr Address, cause error, payload any) (any, error) {
		if reporter != nil {
			reporter.CaptureError(ctx, addr, cause, payload)
		}
		return payload, nil
	}
}

// RetryPolicy configures RetryStage's exponential backoff.
type RetryPolicy struct {
	Retries  uint64
	Delay    time.Duration
	Backoff  float64 // multiplier; 0 defaults to 2
}

// RetryStage re-invokes recover for recoverable reports. It is meant to
// sit near the end of the pipeline, driving the recovery coordinator
// rather than transforming the payload.
func RetryStage(policy RetryPolicy, recoverFn func(ctx context.Context, cause error) error) PolicyStage {
	mult := policy.Backoff
	if mult == 0 {
		mult = 2
	}
	return func(ctx context.Context, addr Address, cause error, payload any) (any, error) {
		if recoverFn == nil {
			return payload, nil
		}
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = policy.Delay
		bo.Multiplier = mult
		bounded := backoff.WithMaxRetries(bo, policy.Retries)
		err := backoff.Retry(func() error {
			return recoverFn(ctx, cause)
		}, backoff.WithContext(bounded, ctx))
		return payload, err
	}
}
