package flags

// State is a flag's moderation state. Any state may be set to any other;
// transitions are recorded in history, never forbidden.
type State string

const (
	StateOpen     State = "open"
	StateWip      State = "wip"
	StateResolved State = "resolved"
	StateRejected State = "rejected"
)

func (s State) Valid() bool {
	switch s {
	case StateOpen, StateWip, StateResolved, StateRejected:
		return true
	}
	return false
}

// LabelClass is the presentation severity class for a state.
func (s State) LabelClass() string {
	switch s {
	case StateOpen:
		return "info"
	case StateWip:
		return "warning"
	case StateResolved:
		return "success"
	case StateRejected:
		return "danger"
	}
	return ""
}

// Default display labels. Stored history always carries the raw state
// value; labels are resolved at read time so storage stays locale-free.
var defaultStateLabels = map[State]string{
	StateOpen:     "Open",
	StateWip:      "In Progress",
	StateResolved: "Resolved",
	StateRejected: "Rejected",
}

func (e *Engine) stateLabel(raw string) string {
	if raw == "" {
		return ""
	}
	if label, ok := e.Config.StateLabels[State(raw)]; ok {
		return label
	}
	if label, ok := defaultStateLabels[State(raw)]; ok {
		return label
	}
	return raw
}
