package kernelerr

import (
	"errors"
	"testing"
)

func TestError_Is_MatchesByCode(t *testing.T) {
	a := DependencyMissing("feature", "core")
	b := New(CodeDependencyMissing, "different message")

	if !errors.Is(a, b) {
		t.Fatal("expected errors with the same Code to match via errors.Is")
	}
}

func TestError_Unwrap_ChainsCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := LifecyclePhaseFailed("audit", "init", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestCodeOf(t *testing.T) {
	err := DependencyCycle([]string{"a", "b", "a"})
	code, ok := CodeOf(err)
	if !ok || code != CodeDependencyCycle {
		t.Fatalf("CodeOf = (%v, %v), want (%v, true)", code, ok, CodeDependencyCycle)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatal("CodeOf should report false for non-kernel errors")
	}
}

func TestWithMeta_DoesNotMutateOriginal(t *testing.T) {
	base := DuplicatePlugin("audit")
	derived := base.WithMeta("extra", 1)

	if _, ok := base.Meta["extra"]; ok {
		t.Fatal("WithMeta must not mutate the receiver's Meta map")
	}
	if derived.Meta["extra"] != 1 {
		t.Fatal("WithMeta must set the key on the returned copy")
	}
}
