package registry

import (
	"testing"

	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/plugin"
)

type fakePlugin struct {
	name    string
	version string
}

func (p fakePlugin) Name() string    { return p.name }
func (p fakePlugin) Version() string { return p.version }
func (p fakePlugin) Setup(_ *plugin.Context) (plugin.API, error) {
	return plugin.API{}, nil
}

type depPlugin struct {
	fakePlugin
	deps []plugin.Dependency
}

func (p depPlugin) Dependencies() []plugin.Dependency { return p.deps }

func TestRegister_EmptyNameRejected(t *testing.T) {
	r := New()
	err := r.Register(fakePlugin{name: "", version: "1.0.0"}, Order{})
	if err == nil {
		t.Fatal("expected InvalidPluginName error")
	}
	code, ok := kernelerr.CodeOf(err)
	if !ok || code != kernelerr.CodeInvalidPluginName {
		t.Fatalf("code = %v, ok = %v, want CodeInvalidPluginName", code, ok)
	}
}

func TestRegister_SelfDependencyRejected(t *testing.T) {
	r := New()
	p := depPlugin{
		fakePlugin: fakePlugin{name: "a", version: "1.0.0"},
		deps:       []plugin.Dependency{{Name: "a"}},
	}
	err := r.Register(p, Order{})
	if err == nil {
		t.Fatal("expected SelfDependency error")
	}
	code, ok := kernelerr.CodeOf(err)
	if !ok || code != kernelerr.CodeSelfDependency {
		t.Fatalf("code = %v, ok = %v, want CodeSelfDependency", code, ok)
	}
	if r.Has("a") {
		t.Fatal("a self-dependent plugin must not be registered")
	}
}

func TestRegister_DuplicateNameRejected(t *testing.T) {
	r := New()
	if err := r.Register(fakePlugin{name: "a", version: "1.0.0"}, Order{}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(fakePlugin{name: "a", version: "2.0.0"}, Order{})
	if err == nil {
		t.Fatal("expected DuplicatePlugin error")
	}
	code, ok := kernelerr.CodeOf(err)
	if !ok || code != kernelerr.CodeDuplicatePlugin {
		t.Fatalf("code = %v, ok = %v, want CodeDuplicatePlugin", code, ok)
	}
}

func TestList_PreservesInsertionOrder(t *testing.T) {
	r := New()
	for _, n := range []string{"c", "a", "b"} {
		if err := r.Register(fakePlugin{name: n, version: "1.0.0"}, Order{}); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"c", "a", "b"}
	got := r.Names()
	for i, n := range want {
		if got[i] != n {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestOrders_OnlyStoresNonEmpty(t *testing.T) {
	r := New()
	_ = r.Register(fakePlugin{name: "a", version: "1.0.0"}, Order{})
	_ = r.Register(fakePlugin{name: "b", version: "1.0.0"}, Order{Before: []string{"a"}})

	orders := r.Orders()
	if _, ok := orders["a"]; ok {
		t.Fatal("plugin registered with empty order must not appear in Orders()")
	}
	if _, ok := orders["b"]; !ok {
		t.Fatal("plugin registered with a non-empty order must appear in Orders()")
	}
}

func TestClear_RemovesEverything(t *testing.T) {
	r := New()
	_ = r.Register(fakePlugin{name: "a", version: "1.0.0"}, Order{Before: []string{"b"}})
	r.Clear()
	if r.Len() != 0 {
		t.Fatal("Clear must remove all plugins")
	}
	if len(r.Orders()) != 0 {
		t.Fatal("Clear must remove all order directives")
	}
}
