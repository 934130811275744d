package kernel

// State is the kernel's own position in its boot/teardown state machine,
// distinct from the finer-grained per-plugin plugin.State the lifecycle
// engine tracks.
type State int

const (
	StateUninitialized State = iota
	StateBuilding
	StateInitializing
	StateInitialized
	StateDestroying
	StateDestroyed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	case StateErrored:
		return "error"
	default:
		return "unknown"
	}
}
