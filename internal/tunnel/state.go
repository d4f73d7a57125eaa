package tunnel

// State identifies where a pipe invocation is in its lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateListening      State = "listening"
	StateAwaitingLocal  State = "awaiting-local-connection"
	StatePiping         State = "piping"
	StateClosing        State = "closing"
	StateTerminated     State = "terminated"
)

// validTransitions guards lifecycle moves. A bind or spawn failure jumps
// straight to terminated; every other path drains through closing first.
var validTransitions = map[State][]State{
	StateIdle:          {StateListening, StateTerminated},
	StateListening:     {StateAwaitingLocal, StateTerminated},
	StateAwaitingLocal: {StatePiping, StateClosing, StateTerminated},
	StatePiping:        {StateClosing},
	StateClosing:       {StateTerminated},
	StateTerminated:    {},
}

func isValidTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
