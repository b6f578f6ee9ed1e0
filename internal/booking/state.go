package booking

import "fmt"

// State is the submission workflow state.
type State int

const (
	Idle State = iota
	Validating
	Blocked
	AuthRequired
	Submitting
	Success
	ConflictError
	GenericError
)

var stateNames = map[State]string{
	Idle:          "idle",
	Validating:    "validating",
	Blocked:       "blocked",
	AuthRequired:  "auth_required",
	Submitting:    "submitting",
	Success:       "success",
	ConflictError: "conflict_error",
	GenericError:  "generic_error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown booking state %q", text)
}

// inFlight reports whether a submission owns the form.
func (s State) inFlight() bool {
	return s == Validating || s == Submitting
}

// editable reports whether form fields may change in this state.
func (s State) editable() bool {
	return !s.inFlight() && s != Success
}
