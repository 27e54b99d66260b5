// Package dialogue orchestrates conversational turns: user input (typed,
// spoken, or synthesized from a distraction nudge) goes to the coach, and the
// reply is rendered with a typewriter text reveal, optional speech playback,
// and the playback/recording handoff. Speech playback and microphone
// recording never overlap: the recorder is force-stopped before the first
// audio frame and restarted only after the reply surface has cleared.
package dialogue

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/focusd/focusd/internal/coach"
	"github.com/focusd/focusd/internal/recorder"
	"github.com/focusd/focusd/internal/storage"
)

type Config struct {
	RevealInterval time.Duration
	ClearGrace     time.Duration
	ResumeDelay    time.Duration
	RequestTimeout time.Duration
	AudioDir       string
}

func DefaultConfig() Config {
	return Config{
		RevealInterval: 30 * time.Millisecond,
		ClearGrace:     2 * time.Second,
		ResumeDelay:    500 * time.Millisecond,
		RequestTimeout: 60 * time.Second,
	}
}

type Manager struct {
	cfg      Config
	store    Store
	coach    Coach
	recorder Recorder
	player   Player
	timer    Timer
	hub      EventBroadcaster

	// renderMu serializes reply rendering so two turns never interleave
	// their reveal, playback, and recorder handoff.
	renderMu sync.Mutex

	sleep func(time.Duration)
	now   func() time.Time
}

func NewManager(cfg Config, store Store, coachClient Coach, rec Recorder, player Player, timer Timer, hub EventBroadcaster) *Manager {
	def := DefaultConfig()
	if cfg.RevealInterval <= 0 {
		cfg.RevealInterval = def.RevealInterval
	}
	if cfg.ClearGrace <= 0 {
		cfg.ClearGrace = def.ClearGrace
	}
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = def.ResumeDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	return &Manager{
		cfg:      cfg,
		store:    store,
		coach:    coachClient,
		recorder: rec,
		player:   player,
		timer:    timer,
		hub:      hub,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// SubmitText handles one typed user message and returns the stored coach
// turn. Rendering of the reply proceeds asynchronously.
func (m *Manager) SubmitText(ctx context.Context, text string) (storage.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return storage.Turn{}, errors.New("empty message")
	}

	m.recordTurn(storage.RoleStudent, text, "", "", "")

	resp, err := m.coach.Chat(ctx, text)
	if err != nil {
		return storage.Turn{}, fmt.Errorf("chat request: %w", err)
	}

	return m.handleResponse(resp), nil
}

// SubmitClip uploads one finalized utterance. The service transcribes it and
// replies like a typed message; the transcription is echoed back as the
// student side of the turn.
func (m *Manager) SubmitClip(clip recorder.Clip) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	m.saveClip(clip)

	encoded := base64.StdEncoding.EncodeToString(clip.WAV)
	resp, err := m.coach.Voice(ctx, encoded, strings.TrimPrefix(clip.Format, "audio/"))
	if err != nil {
		log.Printf("warning: voice upload %s failed: %v", clip.ID, err)
		return
	}

	if transcription := strings.TrimSpace(resp.Transcription); transcription != "" {
		m.recordTurn(storage.RoleStudent, transcription, transcription, "", "")
	}

	m.handleResponse(resp)
}

// SubmitNudge routes a fired distraction reminder through the normal chat
// path so the coach answers it like any other message.
func (m *Manager) SubmitNudge(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	m.recordTurn(storage.RoleSystem, message, "", "", "")

	resp, err := m.coach.Chat(ctx, message)
	if err != nil {
		log.Printf("warning: nudge chat failed: %v", err)
		return
	}
	m.handleResponse(resp)
}

// SubmitTimerDone announces a completed countdown as a conversational turn.
// The reply is processed like any other, so a response carrying a new
// duration re-arms the timer.
func (m *Manager) SubmitTimerDone(label string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	message := fmt.Sprintf("My %s timer just finished.", label)
	m.recordTurn(storage.RoleSystem, message, "", "", "")

	resp, err := m.coach.Chat(ctx, message)
	if err != nil {
		log.Printf("warning: timer completion chat failed: %v", err)
		return
	}
	m.handleResponse(resp)
}

// SubmitWelcome fetches and renders the greeting shown at startup.
func (m *Manager) SubmitWelcome(ctx context.Context) error {
	welcome, err := m.coach.Welcome(ctx)
	if err != nil {
		return fmt.Errorf("welcome request: %w", err)
	}

	m.handleResponse(coach.ChatResponse{
		Response: welcome.Message,
		Status:   welcome.Status,
		Audio:    welcome.Audio,
	})
	return nil
}

// Reset clears the coach's conversation history.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.coach.Reset(ctx); err != nil {
		return fmt.Errorf("reset request: %w", err)
	}
	log.Printf("dialogue: conversation reset")
	return nil
}

func (m *Manager) handleResponse(resp coach.ChatResponse) storage.Turn {
	text := strings.TrimSpace(resp.Response)
	if text == "" && resp.ErrorMessage != "" {
		log.Printf("warning: coach reported error: %s", resp.ErrorMessage)
		return storage.Turn{}
	}

	if resp.Time != "" && m.timer != nil {
		if err := m.timer.Start(resp.Time); err != nil {
			log.Printf("warning: ignoring timer request %q: %v", resp.Time, err)
		}
	}

	var speech []byte
	var speechFormat string
	if resp.Audio != nil && resp.Audio.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(resp.Audio.Data)
		if err != nil {
			log.Printf("warning: decode reply speech: %v", err)
		} else {
			speech = decoded
			speechFormat = resp.Audio.Format
		}
	}

	audioPath := ""
	if len(speech) > 0 {
		audioPath = m.saveSpeech(speech, speechFormat)
	}

	turn := m.recordTurn(storage.RoleCoach, text, "", audioPath, resp.Time)
	if text == "" && len(speech) == 0 {
		return turn
	}

	go m.render(turn, speech, speechFormat)
	return turn
}

// render drives one reply through reveal, playback, clear, and recorder
// restart. The reveal and playback run concurrently on independent clocks;
// the surface clears after a grace period when nothing was spoken, or as soon
// as playback ends otherwise.
func (m *Manager) render(turn storage.Turn, speech []byte, format string) {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()

	hasSpeech := len(speech) > 0
	if hasSpeech && m.recorder != nil {
		m.recorder.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.reveal(turn.ID, turn.Text)
	}()

	if hasSpeech {
		if m.hub != nil {
			m.hub.BroadcastPlaybackStarted(turn.ID)
		}
		if err := m.player.Play(speech, format); err != nil {
			log.Printf("warning: speech playback: %v", err)
		}
		if m.hub != nil {
			m.hub.BroadcastPlaybackEnded(turn.ID)
		}
	}

	// The clear waits for the reveal as well as playback; a clear issued
	// mid-reveal would truncate the visible text. The two usually finish
	// close together since the reveal pace tracks speech length.
	wg.Wait()

	if !hasSpeech {
		m.sleep(m.cfg.ClearGrace)
	}
	if m.hub != nil {
		m.hub.BroadcastSurfaceCleared(turn.ID)
	}

	if m.recorder == nil {
		return
	}
	m.sleep(m.cfg.ResumeDelay)
	if m.recorder.Enabled() {
		if err := m.recorder.Start(); err != nil && !errors.Is(err, recorder.ErrNotIdle) {
			log.Printf("warning: recorder restart after reply: %v", err)
		}
	}
}

func (m *Manager) reveal(turnID, text string) {
	if m.hub == nil {
		return
	}
	for _, r := range text {
		m.hub.BroadcastRevealChunk(turnID, string(r), false)
		m.sleep(m.cfg.RevealInterval)
	}
	m.hub.BroadcastRevealChunk(turnID, "", true)
}

func (m *Manager) recordTurn(role, text, transcription, audioPath, timerLabel string) storage.Turn {
	turn := storage.Turn{
		ID:            uuid.NewString(),
		CreatedAt:     m.now().UTC(),
		Role:          role,
		Text:          text,
		Transcription: transcription,
		AudioPath:     audioPath,
		TimerLabel:    timerLabel,
	}

	if m.store != nil {
		if err := m.store.AppendTurn(turn); err != nil {
			log.Printf("warning: append %s turn: %v", role, err)
		}
	}
	if m.hub != nil {
		m.hub.BroadcastTurn(turn)
	}
	return turn
}

// saveClip keeps a copy of the uploaded utterance for debugging. Failure to
// save never blocks the upload.
func (m *Manager) saveClip(clip recorder.Clip) {
	if m.cfg.AudioDir == "" {
		return
	}
	if err := os.MkdirAll(m.cfg.AudioDir, 0o755); err != nil {
		log.Printf("warning: create audio dir: %v", err)
		return
	}
	path := filepath.Join(m.cfg.AudioDir, clip.ID+".wav")
	if err := os.WriteFile(path, clip.WAV, 0o644); err != nil {
		log.Printf("warning: save utterance %s: %v", clip.ID, err)
	}
}

func (m *Manager) saveSpeech(data []byte, format string) string {
	if m.cfg.AudioDir == "" {
		return ""
	}
	if err := os.MkdirAll(m.cfg.AudioDir, 0o755); err != nil {
		log.Printf("warning: create audio dir: %v", err)
		return ""
	}

	ext := strings.TrimPrefix(format, "audio/")
	if ext == "" {
		ext = "mp3"
	}
	path := filepath.Join(m.cfg.AudioDir, "reply-"+uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("warning: save reply speech: %v", err)
		return ""
	}
	return path
}
