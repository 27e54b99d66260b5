package dialogue

import (
	"context"

	"github.com/focusd/focusd/internal/coach"
	"github.com/focusd/focusd/internal/storage"
)

type Store interface {
	AppendTurn(turn storage.Turn) error
}

// Coach is the remote service boundary the manager talks to.
type Coach interface {
	Chat(ctx context.Context, message string) (coach.ChatResponse, error)
	Voice(ctx context.Context, audioBase64, format string) (coach.ChatResponse, error)
	Welcome(ctx context.Context) (coach.WelcomeResponse, error)
	Reset(ctx context.Context) error
}

// Recorder is the slice of the voice recorder the manager drives: force-stop
// before speech playback and restart after the surface clears.
type Recorder interface {
	Stop()
	Start() error
	Enabled() bool
}

// Player plays one synthesized speech clip; Play blocks until playback ends.
type Player interface {
	Play(data []byte, format string) error
	Stop()
}

// Timer arms the countdown from a response's time field.
type Timer interface {
	Start(raw string) error
}

type EventBroadcaster interface {
	BroadcastTurn(turn storage.Turn)
	BroadcastRevealChunk(turnID, chunk string, done bool)
	BroadcastPlaybackStarted(turnID string)
	BroadcastPlaybackEnded(turnID string)
	BroadcastSurfaceCleared(turnID string)
}
