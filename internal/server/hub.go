package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/focusd/focusd/internal/storage"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastTurn(turn storage.Turn) {
	h.broadcastEvent(TurnEvent{
		Event: newEvent("turn", turn.CreatedAt),
		Turn:  turn,
	})
}

func (h *Hub) BroadcastRevealChunk(turnID, chunk string, done bool) {
	h.broadcastEvent(RevealChunkEvent{
		Event:  newEvent("reveal_chunk", time.Now().UTC()),
		TurnID: turnID,
		Chunk:  chunk,
		Done:   done,
	})
}

func (h *Hub) BroadcastPlaybackStarted(turnID string) {
	h.broadcastEvent(PlaybackEvent{
		Event:   newEvent("playback", time.Now().UTC()),
		TurnID:  turnID,
		Playing: true,
	})
}

func (h *Hub) BroadcastPlaybackEnded(turnID string) {
	h.broadcastEvent(PlaybackEvent{
		Event:   newEvent("playback", time.Now().UTC()),
		TurnID:  turnID,
		Playing: false,
	})
}

func (h *Hub) BroadcastSurfaceCleared(turnID string) {
	h.broadcastEvent(SurfaceClearedEvent{
		Event:  newEvent("surface_cleared", time.Now().UTC()),
		TurnID: turnID,
	})
}

func (h *Hub) BroadcastTimerTick(remaining int, display string) {
	h.broadcastEvent(TimerTickEvent{
		Event:     newEvent("timer_tick", time.Now().UTC()),
		Remaining: remaining,
		Display:   display,
	})
}

func (h *Hub) BroadcastTimerDone(label string) {
	h.broadcastEvent(TimerDoneEvent{
		Event: newEvent("timer_done", time.Now().UTC()),
		Label: label,
	})
}

func (h *Hub) BroadcastCaptureState(kind string, active bool) {
	h.broadcastEvent(CaptureStateEvent{
		Event:  newEvent("capture_state", time.Now().UTC()),
		Kind:   kind,
		Active: active,
	})
}

func (h *Hub) BroadcastRecorderState(state string, enabled bool) {
	h.broadcastEvent(RecorderStateEvent{
		Event:   newEvent("recorder_state", time.Now().UTC()),
		State:   state,
		Enabled: enabled,
	})
}

func (h *Hub) BroadcastNudge(source, activity, message string) {
	h.broadcastEvent(NudgeEvent{
		Event:    newEvent("nudge", time.Now().UTC()),
		Source:   source,
		Activity: activity,
		Message:  message,
	})
}

func (h *Hub) BroadcastNotice(message string) {
	h.broadcastEvent(NoticeEvent{
		Event:   newEvent("notice", time.Now().UTC()),
		Message: message,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
