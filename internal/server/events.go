package server

import (
	"time"

	"github.com/focusd/focusd/internal/storage"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type TurnEvent struct {
	Event
	Turn storage.Turn `json:"turn"`
}

// RevealChunkEvent carries one character of the typewriter reveal. Done marks
// the end of the reveal for the turn.
type RevealChunkEvent struct {
	Event
	TurnID string `json:"turn_id"`
	Chunk  string `json:"chunk"`
	Done   bool   `json:"done"`
}

type PlaybackEvent struct {
	Event
	TurnID  string `json:"turn_id"`
	Playing bool   `json:"playing"`
}

type SurfaceClearedEvent struct {
	Event
	TurnID string `json:"turn_id"`
}

type TimerTickEvent struct {
	Event
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
}

type TimerDoneEvent struct {
	Event
	Label string `json:"label"`
}

type CaptureStateEvent struct {
	Event
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

type RecorderStateEvent struct {
	Event
	State   string `json:"state"`
	Enabled bool   `json:"enabled"`
}

type NudgeEvent struct {
	Event
	Source   string `json:"source"`
	Activity string `json:"activity"`
	Message  string `json:"message"`
}

// NoticeEvent is a user-visible warning, such as a capture device that could
// not be acquired.
type NoticeEvent struct {
	Event
	Message string `json:"message"`
}

type ConnectionEvent struct {
	Event
	Connected bool           `json:"connected"`
	Status    map[string]any `json:"status,omitempty"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
