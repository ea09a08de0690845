package models

// Status is the explicit lifecycle phase of a session. It is persisted in
// the store rather than derived from control flow, so any component can
// query it without replaying history.
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusStarted Status = "started"
	StatusAnswers Status = "answers"
	StatusEnded   Status = "ended"

	// StatusError is the terminal state a scheduler fault leaves a session
	// in, so clients are not left staring at a silently stalled game.
	StatusError Status = "error"
)

// transitions is the allowed forward edges of the session state machine.
var transitions = map[Status][]Status{
	StatusLobby:   {StatusStarted},
	StatusStarted: {StatusAnswers, StatusError},
	StatusAnswers: {StatusEnded, StatusError},
	StatusEnded:   {},
	StatusError:   {},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
