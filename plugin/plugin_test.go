package plugin

import "testing"

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateRegistered:    "registered",
		StateInitializing:  "initializing",
		StateInitialized:   "initialized",
		StateDestroying:    "destroying",
		StateDestroyed:     "destroyed",
		StateError:         "error",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
