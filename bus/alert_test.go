package bus

import (
	"context"
	"testing"
)

func TestAlertBus_SubscribersThenChannelsInOrder(t *testing.T) {
	b := NewAlertBus(nil, nil)
	var order []string

	b.On(func(_ context.Context, namespace, kind string, _ any) error {
		order = append(order, "sub")
		return nil
	})
	b.RegisterChannel(fakeChannel{name: "first", seen: &order})
	b.RegisterChannel(fakeChannel{name: "second", seen: &order})

	b.Emit(context.Background(), "n", "k", nil)

	want := []string{"sub", "first", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestAlertBus_ChannelErrorIsIsolated(t *testing.T) {
	b := NewAlertBus(nil, nil)
	b.RegisterChannel(fakeChannel{name: "broken", fail: true})
	var secondCalled bool
	b.RegisterChannel(fakeChannelFunc(func() { secondCalled = true }))

	b.Emit(context.Background(), "n", "k", nil) // must not panic

	if !secondCalled {
		t.Fatal("a failing channel must not block subsequent channels")
	}
}

type fakeChannel struct {
	name string
	seen *[]string
	fail bool
}

func (c fakeChannel) Name() string { return c.name }
func (c fakeChannel) Send(_ context.Context, _, _ string, _ any) error {
	if c.seen != nil {
		*c.seen = append(*c.seen, c.name)
	}
	if c.fail {
		return errFixture("channel failed")
	}
	return nil
}

type fakeChannelFunc func()

func (f fakeChannelFunc) Name() string { return "fn" }
func (f fakeChannelFunc) Send(_ context.Context, _, _ string, _ any) error {
	f()
	return nil
}
