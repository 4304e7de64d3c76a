package domain

// Action tells the exploration loop what to do with an adjusted state.
type Action int

const (
	// ActionContinue lets the state go through merge and stop and be expanded later.
	ActionContinue Action = iota
	// ActionBreak records the state as a frontier/target state that is not expanded further.
	ActionBreak
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "CONTINUE"
	case ActionBreak:
		return "BREAK"
	default:
		return "UNKNOWN"
	}
}

// Adjustment is the output of a precision adjustment.
type Adjustment struct {
	State     AbstractState
	Precision Precision
	Action    Action
}

// Continue builds an Adjustment that keeps exploring the given pair.
func Continue(state AbstractState, precision Precision) Adjustment {
	return Adjustment{State: state, Precision: precision, Action: ActionContinue}
}

// Break builds an Adjustment that records the pair as a frontier state.
func Break(state AbstractState, precision Precision) Adjustment {
	return Adjustment{State: state, Precision: precision, Action: ActionBreak}
}
