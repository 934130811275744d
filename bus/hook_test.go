package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHookBus_EmitIsSynchronous(t *testing.T) {
	b := NewHookBus(nil, nil)
	var called bool
	b.On("k", func(_ context.Context, _ any) error {
		called = true
		return nil
	})
	b.Emit(context.Background(), "k", nil)
	if !called {
		t.Fatal("hook handler must run synchronously within Emit")
	}
}

func TestHookBus_On_DuplicateHandlerIsNoop(t *testing.T) {
	b := NewHookBus(nil, nil)
	var count int32
	handler := func(_ context.Context, _ any) error {
		atomic.AddInt32(&count, 1)
		return nil
	}
	b.On("k", handler)
	b.On("k", handler)
	b.Emit(context.Background(), "k", nil)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestHookBus_Off_RemovesHandler(t *testing.T) {
	b := NewHookBus(nil, nil)
	var called bool
	handler := func(_ context.Context, _ any) error {
		called = true
		return nil
	}
	b.On("k", handler)
	b.Off("k", handler)
	b.Emit(context.Background(), "k", nil)
	if called {
		t.Fatal("handler removed by Off must not be invoked")
	}
}

func TestHookBus_HandlerError_RoutedToErrorBus(t *testing.T) {
	errBus := NewErrorBus(nil)
	reported := make(chan error, 1)
	errBus.On("hooks", "HandlerError", func(_ context.Context, _ Address, cause error, _ any) error {
		reported <- cause
		return nil
	})

	b := NewHookBus(errBus, nil)
	b.On("k", func(_ context.Context, _ any) error { return errFixture("boom") })
	b.Emit(context.Background(), "k", nil)

	select {
	case <-reported:
	case <-time.After(time.Second):
		t.Fatal("hook handler error was not routed to the error bus")
	}
}

func TestHookBus_Debounce_FiresOnceAfterQuiet(t *testing.T) {
	b := NewHookBus(nil, nil)
	var mu sync.Mutex
	var calls int
	var lastPayload any

	b.Debounce("k", 20*time.Millisecond, func(_ context.Context, p any) error {
		mu.Lock()
		calls++
		lastPayload = p
		mu.Unlock()
		return nil
	})

	b.Emit(context.Background(), "k", 1)
	b.Emit(context.Background(), "k", 2)
	b.Emit(context.Background(), "k", 3)

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (intervening emits must reset the timer)", calls)
	}
	if lastPayload != 3 {
		t.Fatalf("payload = %v, want 3 (debounce delivers the last value)", lastPayload)
	}
}

func TestHookBus_Throttle_LeadingEdgeOncePerWindow(t *testing.T) {
	b := NewHookBus(nil, nil)
	var calls int32

	b.Throttle("k", 50*time.Millisecond, func(_ context.Context, _ any) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	b.Emit(context.Background(), "k", nil)
	b.Emit(context.Background(), "k", nil)
	b.Emit(context.Background(), "k", nil)

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1 (only the leading edge fires within the window)", calls)
	}
}
