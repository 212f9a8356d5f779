package link

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Outcome is the single terminal result of an attempt. Handle is only set
// for StateCompleted; Err is set for StateFailed and may explain a
// StateCancelled.
type Outcome struct {
	State  State
	Handle Handle
	Err    error
}

// Status is the short message shown to the user once the attempt resolves.
func (o Outcome) Status() string {
	switch o.State {
	case StateCompleted:
		return "Connected!"
	case StateCancelled:
		return "Connection cancelled!"
	case StateFailed:
		return "Connection failed!"
	default:
		return "Connecting..."
	}
}
