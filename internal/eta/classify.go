package eta

// State is the terminal display state of a stop board
type State int

const (
	StateLoading State = iota
	StateNotFound
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotFound:
		return "NOT_FOUND"
	case StateReady:
		return "READY"
	default:
		return "LOADING"
	}
}

// MarshalText renders the state by name in JSON payloads
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classify derives the state from the primary record. A missing record is
// still loading; an upstream error flag means the stop was not found.
func Classify(primary *PrimaryRecord) State {
	switch {
	case primary == nil:
		return StateLoading
	case primary.Error:
		return StateNotFound
	default:
		return StateReady
	}
}
