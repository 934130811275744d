package bus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/logging"
)

// EventHandler receives an event payload. An error return is caught,
// wrapped as a CodeEventHandlerError, and routed to the error bus; it
// never propagates back to the emitter.
type EventHandler func(ctx context.Context, payload any) error

// DeliveryMode governs when, relative to Emit, handlers run.
type DeliveryMode int

const (
	// Sync runs handlers on the emitting goroutine, in subscription
	// order; Emit returns only after all handlers complete.
	Sync DeliveryMode = iota
	// Microtask schedules handlers on a dedicated FIFO worker so Emit
	// returns immediately but delivery still happens "as soon as
	// possible", preserving emit-to-emit order for the same address.
	Microtask
	// Async schedules handlers on a per-address FIFO worker so separate
	// addresses interleave freely while a single address's emits still
	// arrive in order.
	Async
)

// StartupKind selects how pre-ready emits are handled.
type StartupKind int

const (
	// StartupDrop discards emits issued before Start.
	StartupDrop StartupKind = iota
	// StartupBuffer queues up to N pre-Start emits, FIFO, dropping the
	// oldest when full; Start replays them in order.
	StartupBuffer
	// StartupSticky retains only the latest pre-Start payload, delivered
	// once at Start to every handler then alive, and once more to every
	// handler that subscribes later.
	StartupSticky
)

// StartupPolicy configures pre-ready emit handling for one event.
type StartupPolicy struct {
	Kind       StartupKind
	BufferSize int // only meaningful for StartupBuffer
}

// EventDef declares an event's wire contract: its delivery mode, startup
// policy, and event-scoped middleware.
type EventDef struct {
	Namespace  string
	Key        string
	Mode       DeliveryMode
	Startup    StartupPolicy
	Middleware []Middleware
}

// Subscription is returned by Subscribe/Once; Unsubscribe is idempotent
// and safe after the bus is closed.
type Subscription interface {
	Unsubscribe()
}

// Adapter observes every emission after internal middleware and before
// handlers run (for Sync/Microtask); it never participates in delivery
// and never blocks it.
type Adapter interface {
	Observe(addr Address, payload any)
}

type subEntry struct {
	id      uint64
	fnPtr   uintptr
	handler EventHandler
}

type eventSubscription struct {
	bus  *EventBus
	addr Address
	id   uint64
}

func (s *eventSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	entries := s.bus.subs[s.addr]
	for i, e := range entries {
		if e.id == s.id {
			s.bus.subs[s.addr] = append(append([]subEntry{}, entries[:i]...), entries[i+1:]...)
			return
		}
	}
}

type addrQueue struct {
	jobs chan func()
}

// EventBus is the C7 event bus: namespaces with lazy creation, per-event
// delivery mode, startup buffering/sticky/drop, and a three-tier
// middleware chain terminating at handler dispatch.
type EventBus struct {
	mode Mode

	mu         sync.RWMutex
	defs       map[Address]*EventDef
	subs       map[Address][]subEntry
	globalMW   []Middleware
	nsMW       map[string][]Middleware
	nextSubID  atomic.Uint64
	adapters   []Adapter
	errorBus   *ErrorBus
	logger     logging.Logger

	started   atomic.Bool
	preBuffer map[Address][]any
	preSticky map[Address]any

	microtaskQ chan func()
	asyncQs    map[Address]*addrQueue
	asyncMu    sync.Mutex

	closeOnce sync.Once
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewEventBus creates an EventBus. errorBus receives wrapped handler
// errors under namespace "events", kind "HandlerError".
func NewEventBus(mode Mode, errorBus *ErrorBus, logger logging.Logger) *EventBus {
	if logger == nil {
		logger = logging.Global()
	}
	b := &EventBus{
		mode:       mode,
		defs:       make(map[Address]*EventDef),
		subs:       make(map[Address][]subEntry),
		nsMW:       make(map[string][]Middleware),
		errorBus:   errorBus,
		logger:     logger.Named("events"),
		preBuffer:  make(map[Address][]any),
		preSticky:  make(map[Address]any),
		microtaskQ: make(chan func(), 4096),
		asyncQs:    make(map[Address]*addrQueue),
		done:       make(chan struct{}),
	}
	b.wg.Add(1)
	go b.runMicrotaskWorker()
	return b
}

func (b *EventBus) runMicrotaskWorker() {
	defer b.wg.Done()
	for {
		select {
		case job := <-b.microtaskQ:
			job()
		case <-b.done:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case job := <-b.microtaskQ:
					job()
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) addrQueueFor(addr Address) *addrQueue {
	b.asyncMu.Lock()
	defer b.asyncMu.Unlock()
	q, ok := b.asyncQs[addr]
	if ok {
		return q
	}
	q = &addrQueue{jobs: make(chan func(), 1024)}
	b.asyncQs[addr] = q
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case job := <-q.jobs:
				job()
			case <-b.done:
				for {
					select {
					case job := <-q.jobs:
						job()
					default:
						return
					}
				}
			}
		}
	}()
	return q
}

// Define registers an event's contract. Calling Define twice for the same
// address replaces the previous definition (used by plugin EventDeclarers
// composing at boot).
func (b *EventBus) Define(def EventDef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr := Address{Namespace: def.Namespace, Key: def.Key}
	cp := def
	b.defs[addr] = &cp
}

// Use registers bus-wide middleware, run before any namespace/event
// middleware for every address.
func (b *EventBus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalMW = append(b.globalMW, mw)
}

// UseNamespace registers middleware scoped to one namespace.
func (b *EventBus) UseNamespace(namespace string, mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nsMW[namespace] = append(b.nsMW[namespace], mw)
}

// RegisterAdapter wires in a trusted observer that sees every emission's
// unfrozen payload, after middleware and before handlers.
func (b *EventBus) RegisterAdapter(a Adapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adapters = append(b.adapters, a)
}

func (b *EventBus) lookupDef(addr Address) (*EventDef, error) {
	b.mu.RLock()
	def, ok := b.defs[addr]
	b.mu.RUnlock()
	if ok {
		return def, nil
	}
	if b.mode == ModePermissive {
		def = &EventDef{Namespace: addr.Namespace, Key: addr.Key, Mode: Sync, Startup: StartupPolicy{Kind: StartupDrop}}
		b.mu.Lock()
		// Re-check under the write lock in case of a race with another
		// lazy definer.
		if existing, ok := b.defs[addr]; ok {
			def = existing
		} else {
			b.defs[addr] = def
		}
		b.mu.Unlock()
		return def, nil
	}
	return nil, kernelerr.UnknownEvent(addr.Namespace, addr.Key)
}

// Subscribe registers handler for addr. Duplicate registration of the
// same function value is a no-op.
func (b *EventBus) Subscribe(namespace, key string, handler EventHandler) (Subscription, error) {
	addr := Address{Namespace: namespace, Key: key}
	if _, err := b.lookupDef(addr); err != nil {
		return nil, err
	}

	ptr := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	for _, e := range b.subs[addr] {
		if e.fnPtr == ptr {
			b.mu.Unlock()
			return &eventSubscription{bus: b, addr: addr, id: e.id}, nil
		}
	}
	id := b.nextSubID.Add(1)
	b.subs[addr] = append(b.subs[addr], subEntry{id: id, fnPtr: ptr, handler: handler})

	// Replay pre-start payloads to a subscriber that arrives after Start.
	// Handlers already subscribed before Start are covered by Start's own
	// dispatch, so this only fires post-start; otherwise a pre-start
	// subscriber would see its sticky/buffered payload twice. The replay
	// runs on the caller's goroutine, outside the lock, before Subscribe
	// returns, so it precedes any emit the caller issues afterwards.
	var replay []any
	if b.started.Load() {
		if sticky, ok := b.preSticky[addr]; ok {
			replay = append(replay, sticky)
		}
		replay = append(replay, b.preBuffer[addr]...)
	}
	b.mu.Unlock()

	for _, payload := range replay {
		_ = handler(context.Background(), shallowCopyPayload(payload))
	}

	return &eventSubscription{bus: b, addr: addr, id: id}, nil
}

// Once resolves the next emission of addr and auto-unsubscribes.
func (b *EventBus) Once(namespace, key string) (<-chan any, error) {
	out := make(chan any, 1)
	var sub Subscription
	var subMu sync.Mutex
	fired := false
	handler := func(ctx context.Context, payload any) error {
		select {
		case out <- payload:
		default:
		}
		subMu.Lock()
		fired = true
		if sub != nil {
			sub.Unsubscribe()
		}
		subMu.Unlock()
		return nil
	}
	s, err := b.Subscribe(namespace, key, handler)
	if err != nil {
		return nil, err
	}
	subMu.Lock()
	sub = s
	if fired {
		// A post-start replay already delivered inside Subscribe.
		s.Unsubscribe()
	}
	subMu.Unlock()
	return out, nil
}

// Emit publishes payload to namespace.key, running the middleware chain
// and dispatching to handlers per the event's delivery mode.
func (b *EventBus) Emit(ctx context.Context, namespace, key string, payload any) error {
	addr := Address{Namespace: namespace, Key: key}
	def, err := b.lookupDef(addr)
	if err != nil {
		return err
	}

	if !b.started.Load() {
		b.bufferPreStart(addr, def, payload)
		return nil
	}

	return b.dispatch(ctx, addr, def, payload)
}

func (b *EventBus) bufferPreStart(addr Address, def *EventDef, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch def.Startup.Kind {
	case StartupDrop:
		return
	case StartupSticky:
		b.preSticky[addr] = payload
	case StartupBuffer:
		n := def.Startup.BufferSize
		if n <= 0 {
			n = 1
		}
		buf := append(b.preBuffer[addr], payload)
		if len(buf) > n {
			buf = buf[len(buf)-n:] // drop oldest, keep the newest n
		}
		b.preBuffer[addr] = buf
	}
}

// Start marks the bus ready: buffered pre-start emits replay in FIFO
// order, and sticky pre-start values deliver once to every handler alive
// right now. The bus is marked started before that replay begins: an Emit
// issued after Start returns is dispatched after the replay, but an Emit
// running concurrently with Start, or issued by a handler during the
// replay, is dispatched at once and is not held back behind the replay.
//
// Neither preBuffer nor preSticky is cleared afterward: both stay around
// so a handler that subscribes after Start still gets the pre-start
// payloads it missed (Subscribe replays from these same maps).
func (b *EventBus) Start(ctx context.Context) {
	if !b.started.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	buffers := make(map[Address][]any, len(b.preBuffer))
	for addr, payloads := range b.preBuffer {
		buffers[addr] = append([]any{}, payloads...)
	}
	sticky := make(map[Address]any, len(b.preSticky))
	for addr, payload := range b.preSticky {
		sticky[addr] = payload
	}
	b.mu.Unlock()

	for addr, payloads := range buffers {
		def, err := b.lookupDef(addr)
		if err != nil {
			continue
		}
		for _, p := range payloads {
			_ = b.dispatch(ctx, addr, def, p)
		}
	}
	for addr, payload := range sticky {
		def, err := b.lookupDef(addr)
		if err != nil {
			continue
		}
		_ = b.dispatch(ctx, addr, def, payload)
	}
}

func (b *EventBus) dispatch(ctx context.Context, addr Address, def *EventDef, payload any) error {
	b.mu.RLock()
	global := append([]Middleware{}, b.globalMW...)
	nsmw := append([]Middleware{}, b.nsMW[addr.Namespace]...)
	evmw := append([]Middleware{}, def.Middleware...)
	adapters := append([]Adapter{}, b.adapters...)
	b.mu.RUnlock()

	mws := make([]Middleware, 0, len(global)+len(nsmw)+len(evmw))
	mws = append(mws, global...)
	mws = append(mws, nsmw...)
	mws = append(mws, evmw...)

	terminal := func(mc *Context) error {
		for _, a := range adapters {
			a.Observe(addr, mc.Payload)
		}
		b.deliver(mc.Ctx, addr, def, mc.Payload)
		return nil
	}

	mc := &Context{Ctx: ctx, Namespace: addr.Namespace, Key: addr.Key, Payload: payload, Meta: map[string]any{}}
	run := chain(mws, terminal)
	return run(mc)
}

// deliver fans out to subscribers per def.Mode. Subscribers are snapshot
// before dispatch so a handler that (un)subscribes mid-dispatch cannot
// corrupt the iteration.
func (b *EventBus) deliver(ctx context.Context, addr Address, def *EventDef, payload any) {
	b.mu.RLock()
	snapshot := append([]subEntry{}, b.subs[addr]...)
	b.mu.RUnlock()

	switch def.Mode {
	case Sync:
		for _, e := range snapshot {
			b.invoke(ctx, addr, e.handler, shallowCopyPayload(payload))
		}
	case Microtask:
		select {
		case b.microtaskQ <- func() {
			for _, e := range snapshot {
				b.invoke(ctx, addr, e.handler, shallowCopyPayload(payload))
			}
		}:
		case <-b.done:
		}
	case Async:
		q := b.addrQueueFor(addr)
		select {
		case q.jobs <- func() {
			for _, e := range snapshot {
				b.invoke(ctx, addr, e.handler, shallowCopyPayload(payload))
			}
		}:
		case <-b.done:
		}
	}
}

func (b *EventBus) invoke(ctx context.Context, addr Address, handler EventHandler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.reportHandlerError(addr, panicToError(r))
		}
	}()
	if err := handler(ctx, payload); err != nil {
		b.reportHandlerError(addr, err)
	}
}

func (b *EventBus) reportHandlerError(addr Address, cause error) {
	wrapped := kernelerr.EventHandlerError(addr.Namespace, addr.Key, cause)
	b.logger.Warn("event handler error", zapFields(addr, cause)...)
	if b.errorBus != nil {
		b.errorBus.Report(context.Background(), "events", "HandlerError", wrapped, map[string]any{
			"namespace": addr.Namespace,
			"key":       addr.Key,
		})
	}
}

// Close stops accepting further async/microtask work and waits for
// in-flight dispatches to finish.
func (b *EventBus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}

func newUUID() string { return uuid.NewString() }
