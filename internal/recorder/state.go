package recorder

import "fmt"

// State is the recording session lifecycle. Listening and Recording both
// accumulate audio; the distinction is whether speech has been heard yet.
type State int

const (
	StateIdle State = iota
	StateListening
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validNext encodes the only legal transitions:
// Idle → Listening → Recording → Stopping → Idle, with Listening allowed to
// stop without ever hearing speech.
func validNext(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateListening
	case StateListening:
		return to == StateRecording || to == StateStopping
	case StateRecording:
		return to == StateStopping
	case StateStopping:
		return to == StateIdle
	default:
		return false
	}
}

// transitionLocked moves the session to the given state or fails loudly.
// Callers must hold r.mu.
func (r *Recorder) transitionLocked(to State) error {
	if !validNext(r.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, to)
	}
	r.state = to
	if r.onState != nil {
		r.onState(to)
	}
	return nil
}
