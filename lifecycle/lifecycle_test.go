package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/zern/kernel/plugin"
)

type recordingPlugin struct {
	name  string
	calls *[]string
	fail  map[Phase]error
}

func (p *recordingPlugin) Name() string    { return p.name }
func (p *recordingPlugin) Version() string { return "1.0.0" }
func (p *recordingPlugin) Setup(_ *plugin.Context) (plugin.API, error) {
	*p.calls = append(*p.calls, p.name+":init")
	return plugin.API{}, p.fail[PhaseInit]
}
func (p *recordingPlugin) BeforeInit(_ *plugin.Context) error {
	*p.calls = append(*p.calls, p.name+":beforeInit")
	return p.fail[PhaseBeforeInit]
}
func (p *recordingPlugin) AfterInit(_ *plugin.Context) error {
	*p.calls = append(*p.calls, p.name+":afterInit")
	return p.fail[PhaseAfterInit]
}
func (p *recordingPlugin) BeforeDestroy(_ *plugin.Context) error {
	*p.calls = append(*p.calls, p.name+":beforeDestroy")
	return nil
}
func (p *recordingPlugin) Destroy(_ *plugin.Context) error {
	*p.calls = append(*p.calls, p.name+":destroy")
	return nil
}
func (p *recordingPlugin) AfterDestroy(_ *plugin.Context) error {
	*p.calls = append(*p.calls, p.name+":afterDestroy")
	return nil
}

func ctxFor(p plugin.Plugin) *plugin.Context {
	return &plugin.Context{Ctx: context.Background(), Self: p.Name()}
}

func TestEngine_Init_RunsPhasesInOrder(t *testing.T) {
	var calls []string
	a := &recordingPlugin{name: "a", calls: &calls, fail: map[Phase]error{}}
	b := &recordingPlugin{name: "b", calls: &calls, fail: map[Phase]error{}}

	e := New(Options{}, nil, nil, nil)
	ordered := []plugin.Plugin{a, b}
	byName := map[string]plugin.Plugin{"a": a, "b": b}

	loaded, err := e.Init(context.Background(), ordered, byName, ctxFor)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 || loaded[0] != "a" || loaded[1] != "b" {
		t.Fatalf("loaded = %v", loaded)
	}
	want := []string{
		"a:beforeInit", "a:init", "a:afterInit",
		"b:beforeInit", "b:init", "b:afterInit",
	}
	assertCalls(t, calls, want)
}

func TestEngine_Init_AbortTearsDownAlreadyInitialized(t *testing.T) {
	var calls []string
	a := &recordingPlugin{name: "a", calls: &calls, fail: map[Phase]error{}}
	b := &recordingPlugin{name: "b", calls: &calls, fail: map[Phase]error{PhaseInit: errors.New("boom")}}

	e := New(Options{}, nil, nil, nil)
	ordered := []plugin.Plugin{a, b}
	byName := map[string]plugin.Plugin{"a": a, "b": b}

	_, err := e.Init(context.Background(), ordered, byName, ctxFor)
	if err == nil {
		t.Fatal("expected init to fail")
	}

	want := []string{
		"a:beforeInit", "a:init", "a:afterInit",
		"b:beforeInit", "b:init",
		"a:beforeDestroy", "a:destroy", "a:afterDestroy",
	}
	assertCalls(t, calls, want)
}

func TestEngine_Destroy_RunsInReverseOrder(t *testing.T) {
	var calls []string
	a := &recordingPlugin{name: "a", calls: &calls, fail: map[Phase]error{}}
	b := &recordingPlugin{name: "b", calls: &calls, fail: map[Phase]error{}}

	e := New(Options{}, nil, nil, nil)
	e.Destroy(context.Background(), []plugin.Plugin{a, b}, ctxFor)

	want := []string{
		"b:beforeDestroy", "b:destroy", "b:afterDestroy",
		"a:beforeDestroy", "a:destroy", "a:afterDestroy",
	}
	assertCalls(t, calls, want)
}

func TestEngine_Init_RetriesUntilSuccess(t *testing.T) {
	var calls []string
	attempts := 0
	p := &retryPlugin{name: "a", calls: &calls, failUntil: 2, attempts: &attempts}

	e := New(Options{Policies: map[Phase]Policy{PhaseInit: {Retry: 2}}}, nil, nil, nil)
	ordered := []plugin.Plugin{p}
	byName := map[string]plugin.Plugin{"a": p}

	_, err := e.Init(context.Background(), ordered, byName, ctxFor)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2 (fail once, succeed on retry)", attempts)
	}
}

type retryPlugin struct {
	name      string
	calls     *[]string
	failUntil int
	attempts  *int
}

func (p *retryPlugin) Name() string    { return p.name }
func (p *retryPlugin) Version() string { return "1.0.0" }
func (p *retryPlugin) Setup(_ *plugin.Context) (plugin.API, error) {
	*p.attempts++
	if *p.attempts < p.failUntil {
		return nil, errors.New("transient")
	}
	return plugin.API{}, nil
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}
