package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEventBus_StrictMode_RejectsUndeclaredAddress(t *testing.T) {
	b := NewEventBus(ModeStrict, nil, nil)
	if err := b.Emit(context.Background(), "users", "created", nil); err == nil {
		t.Fatal("expected UnknownEvent error for undeclared address in strict mode")
	}
}

func TestEventBus_PermissiveMode_LazilyDefines(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Start(context.Background())
	var got any
	var wg sync.WaitGroup
	wg.Add(1)
	if _, err := b.Subscribe("users", "created", func(_ context.Context, p any) error {
		got = p
		wg.Done()
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.Emit(context.Background(), "users", "created", 42); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if got != 42 {
		t.Fatalf("got = %v, want 42", got)
	}
}

func TestEventBus_Sync_DeliversBeforeEmitReturns(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "k", Mode: Sync})
	b.Start(context.Background())

	var delivered bool
	if _, err := b.Subscribe("n", "k", func(_ context.Context, _ any) error {
		delivered = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.Emit(context.Background(), "n", "k", nil); err != nil {
		t.Fatal(err)
	}
	if !delivered {
		t.Fatal("sync delivery must complete before Emit returns")
	}
}

func TestEventBus_StartupBuffer_ReplaysFIFOUpToN(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "buffered", Mode: Sync, Startup: StartupPolicy{Kind: StartupBuffer, BufferSize: 2}})

	for i := 0; i < 3; i++ {
		if err := b.Emit(context.Background(), "n", "buffered", i); err != nil {
			t.Fatal(err)
		}
	}

	var got []any
	if _, err := b.Subscribe("n", "buffered", func(_ context.Context, p any) error {
		got = append(got, p)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	b.Start(context.Background())

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got = %v, want [1 2] (oldest dropped, FIFO order preserved)", got)
	}
}

func TestEventBus_StartupSticky_DeliversLatestOnce(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "sticky", Mode: Sync, Startup: StartupPolicy{Kind: StartupSticky}})

	_ = b.Emit(context.Background(), "n", "sticky", "first")
	_ = b.Emit(context.Background(), "n", "sticky", "second")

	var got []any
	var mu sync.Mutex
	if _, err := b.Subscribe("n", "sticky", func(_ context.Context, p any) error {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	b.Start(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "second" {
		t.Fatalf("got = %v, want [second]", got)
	}
}

func TestEventBus_StartupDrop_DiscardsPreStartEmits(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "dropped", Mode: Sync, Startup: StartupPolicy{Kind: StartupDrop}})
	_ = b.Emit(context.Background(), "n", "dropped", "lost")

	var called bool
	if _, err := b.Subscribe("n", "dropped", func(_ context.Context, _ any) error {
		called = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	b.Start(context.Background())
	if called {
		t.Fatal("dropped startup policy must not replay pre-start emits")
	}
}

func TestEventBus_Subscribe_DuplicateHandlerIsNoop(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "k", Mode: Sync})
	b.Start(context.Background())

	var count int
	handler := func(_ context.Context, _ any) error {
		count++
		return nil
	}
	if _, err := b.Subscribe("n", "k", handler); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe("n", "k", handler); err != nil {
		t.Fatal(err)
	}
	_ = b.Emit(context.Background(), "n", "k", nil)
	if count != 1 {
		t.Fatalf("count = %d, want 1 (duplicate subscription must be a no-op)", count)
	}
}

func TestEventBus_Unsubscribe_IsIdempotent(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "k", Mode: Sync})
	b.Start(context.Background())

	sub, err := b.Subscribe("n", "k", func(_ context.Context, _ any) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic
}

func TestEventBus_HandlerError_RoutedToErrorBus(t *testing.T) {
	errBus := NewErrorBus(nil)
	reported := make(chan error, 1)
	errBus.On("events", "HandlerError", func(_ context.Context, _ Address, cause error, _ any) error {
		reported <- cause
		return nil
	})

	b := NewEventBus(ModePermissive, errBus, nil)
	b.Define(EventDef{Namespace: "n", Key: "k", Mode: Sync})
	b.Start(context.Background())

	failure := errFixture("boom")
	if _, err := b.Subscribe("n", "k", func(_ context.Context, _ any) error { return failure }); err != nil {
		t.Fatal(err)
	}
	_ = b.Emit(context.Background(), "n", "k", nil)

	select {
	case <-reported:
	case <-time.After(time.Second):
		t.Fatal("handler error was not routed to the error bus")
	}
}

func TestEventBus_Async_DeliversEventually(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "k", Mode: Async})
	b.Start(context.Background())

	done := make(chan struct{})
	if _, err := b.Subscribe("n", "k", func(_ context.Context, _ any) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.Emit(context.Background(), "n", "k", nil); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async delivery did not happen")
	}
}

func TestEventBus_StartupBuffer_ReplaysToSubscriberAfterStart(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "buffered", Mode: Sync, Startup: StartupPolicy{Kind: StartupBuffer, BufferSize: 1}})

	_ = b.Emit(context.Background(), "n", "buffered", 1)
	_ = b.Emit(context.Background(), "n", "buffered", 2)

	b.Start(context.Background())

	var got []any
	var mu sync.Mutex
	done := make(chan struct{}, 2)
	if _, err := b.Subscribe("n", "buffered", func(_ context.Context, p any) error {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.Emit(context.Background(), "n", "buffered", 3); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not receive both the replayed buffer and the live emit")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("got = %v, want [2 3]", got)
	}
}

func TestEventBus_StartupSticky_ReplaysToSubscriberAfterStart(t *testing.T) {
	b := NewEventBus(ModePermissive, nil, nil)
	b.Define(EventDef{Namespace: "n", Key: "sticky", Mode: Sync, Startup: StartupPolicy{Kind: StartupSticky}})

	_ = b.Emit(context.Background(), "n", "sticky", 5)
	b.Start(context.Background())

	var got []any
	var mu sync.Mutex
	first := make(chan struct{})
	if _, err := b.Subscribe("n", "sticky", func(_ context.Context, p any) error {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		select {
		case <-first:
		default:
			close(first)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("subscriber after Start did not receive the sticky replay")
	}

	if err := b.Emit(context.Background(), "n", "sticky", 6); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("got = %v, want [5 6]", got)
	}
}

type errFixture string

func (e errFixture) Error() string { return string(e) }
