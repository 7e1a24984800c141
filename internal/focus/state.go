package focus

import "fmt"

// State is the categorical focus state reported for a frame.
type State int

const (
	Unknown State = iota
	Focused
	Distracted
	Relaxing
	Drowsy
)

var stateNames = map[State]string{
	Unknown:    "unknown",
	Focused:    "focused",
	Distracted: "distracted",
	Relaxing:   "relaxing",
	Drowsy:     "drowsy",
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	return []State{Unknown, Focused, Distracted, Relaxing, Drowsy}
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Severity ranks states for alerting: Drowsy > Distracted > Relaxing > Focused.
// Unknown ranks lowest. The numeric value of State carries no ordering.
func (s State) Severity() int {
	switch s {
	case Drowsy:
		return 4
	case Distracted:
		return 3
	case Relaxing:
		return 2
	case Focused:
		return 1
	default:
		return 0
	}
}

func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown focus state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState converts the lowercase name back into a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return Unknown, fmt.Errorf("unknown focus state %q", name)
}
