// Package voice tracks live web calls between a dashboard user and their
// assistant. Provider webhooks drive a small state machine whose changes are
// pushed to the user's websocket subscribers.
package voice

// State of a live voice session as shown by the call widget.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateListening    State = "listening"
	StateSpeaking     State = "speaking"
	StateDisconnected State = "disconnected"
)

var transitions = map[State][]State{
	StateIdle:         {StateConnecting},
	StateConnecting:   {StateListening, StateSpeaking, StateDisconnected},
	StateListening:    {StateSpeaking, StateDisconnected},
	StateSpeaking:     {StateListening, StateDisconnected},
	StateDisconnected: {StateConnecting},
}

// CanTransition reports whether from -> to is a legal move. Resetting to idle
// is always allowed; it is how a stuck session is recovered.
func CanTransition(from, to State) bool {
	if to == StateIdle || from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active is true while a call is in flight.
func (s State) Active() bool {
	return s == StateConnecting || s == StateListening || s == StateSpeaking
}
