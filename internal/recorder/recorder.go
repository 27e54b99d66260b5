// Package recorder implements the voice-gated microphone session. A session
// runs Idle → Listening → Recording → Stopping → Idle, accumulating PCM while
// an RMS probe watches for speech. Stop triggers are silence past a minimum
// duration, a hard safety cap, the master flag flipping off, or an explicit
// stop. Finished utterances below the duration or size floor are discarded as
// false starts; anything else is handed to the clip callback for upload.
package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/focusd/focusd/internal/audio"
)

var (
	ErrInvalidTransition = errors.New("invalid recorder state transition")
	ErrNotIdle           = errors.New("recording session already active")
	ErrDisabled          = errors.New("recording is toggled off")
)

// Source is one acquired microphone stream. ReadFrame blocks for one probe
// interval's worth of samples.
type Source interface {
	Start() error
	Stop() error
	Close() error
	ReadFrame() ([]int16, error)
}

// SourceFactory acquires the microphone for a new session. It is called once
// per session so the device is fully released between sessions.
type SourceFactory func(sampleRate, framesPerBuffer int) (Source, error)

// Clip is one complete finalized utterance.
type Clip struct {
	ID         string
	WAV        []byte
	Format     string
	SampleRate int
	Duration   time.Duration
}

type Config struct {
	SampleRate      int
	ProbeInterval   time.Duration
	SpeechThreshold float64
	Silence         time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
	MinBytes        int
	ToggleDebounce  time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		ProbeInterval:   150 * time.Millisecond,
		SpeechThreshold: 0.01,
		Silence:         1200 * time.Millisecond,
		MinDuration:     500 * time.Millisecond,
		MaxDuration:     30 * time.Second,
		MinBytes:        2000,
		ToggleDebounce:  300 * time.Millisecond,
	}
}

// framesPerBuffer sizes the mic buffer so each blocking read spans exactly
// one probe interval, which makes the read loop the probe.
func (c Config) framesPerBuffer() int {
	n := int(float64(c.SampleRate) * c.ProbeInterval.Seconds())
	if n <= 0 {
		n = 256
	}
	return n
}

// Recorder owns the single microphone session plus the master recording flag.
// The flag expresses user intent (should the system listen at all); the state
// expresses current mechanics. They change independently.
type Recorder struct {
	cfg       Config
	newSource SourceFactory
	onClip    func(Clip)
	onState   func(State)
	onNotice  func(message string)

	mu         sync.Mutex
	state      State
	enabled    bool
	noticed    bool
	lastToggle time.Time
	src        Source
	pcm        bytes.Buffer
	startedAt  time.Time
	lastAbove  time.Time
	gen        int

	now func() time.Time
}

func New(cfg Config, factory SourceFactory, onClip func(Clip)) *Recorder {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = def.ProbeInterval
	}
	if cfg.SpeechThreshold <= 0 {
		cfg.SpeechThreshold = def.SpeechThreshold
	}
	if cfg.Silence <= 0 {
		cfg.Silence = def.Silence
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = def.MinDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = def.MinBytes
	}
	if cfg.ToggleDebounce <= 0 {
		cfg.ToggleDebounce = def.ToggleDebounce
	}

	return &Recorder{
		cfg:       cfg,
		newSource: factory,
		onClip:    onClip,
		now:       time.Now,
	}
}

// OnStateChange registers a listener fired on every transition while r.mu is
// held; listeners must not call back into the recorder.
func (r *Recorder) OnStateChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onState = fn
}

// OnNotice registers the user-visible notification hook for microphone
// errors. It fires once per run of failed acquisitions and re-arms after the
// device opens again.
func (r *Recorder) OnNotice(fn func(message string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onNotice = fn
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Toggle flips the master recording flag, absorbing repeated activations
// within the debounce window. It returns the flag value after the call and
// whether the activation was accepted.
func (r *Recorder) Toggle() (enabled, accepted bool) {
	r.mu.Lock()
	now := r.now()
	if !r.lastToggle.IsZero() && now.Sub(r.lastToggle) < r.cfg.ToggleDebounce {
		enabled = r.enabled
		r.mu.Unlock()
		return enabled, false
	}
	r.lastToggle = now
	r.enabled = !r.enabled
	enabled = r.enabled
	r.mu.Unlock()

	if enabled {
		if err := r.Start(); err != nil && !errors.Is(err, ErrNotIdle) {
			log.Printf("warning: recording start failed: %v", err)
		}
	} else {
		r.Stop()
	}
	return enabled, true
}

// Start begins a new session. It is a guarded entry point: only from Idle,
// and only while the master flag is on.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return ErrDisabled
	}
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrNotIdle
	}
	if err := r.transitionLocked(StateListening); err != nil {
		r.mu.Unlock()
		return err
	}
	gen := r.gen
	r.mu.Unlock()

	src, err := r.newSource(r.cfg.SampleRate, r.cfg.framesPerBuffer())
	if err == nil {
		err = src.Start()
		if err != nil {
			_ = src.Close()
		}
	}
	if err != nil {
		r.mu.Lock()
		if r.gen == gen && r.state == StateListening {
			_ = r.transitionLocked(StateStopping)
			_ = r.transitionLocked(StateIdle)
			r.gen++
		}
		notify := r.onNotice
		if r.noticed {
			notify = nil
		} else {
			r.noticed = true
		}
		r.mu.Unlock()
		if notify != nil {
			notify(fmt.Sprintf("microphone unavailable: %v", err))
		}
		return fmt.Errorf("acquire microphone: %w", err)
	}

	r.mu.Lock()
	if r.gen != gen || r.state != StateListening {
		// Session was torn down while the device was being acquired.
		r.mu.Unlock()
		_ = src.Stop()
		_ = src.Close()
		return nil
	}
	now := r.now()
	r.src = src
	r.noticed = false
	r.pcm.Reset()
	r.startedAt = now
	r.lastAbove = now
	r.mu.Unlock()

	go r.run(src, gen)
	return nil
}

// Stop force-stops the active session, if any. The device is released before
// Stop returns; any resulting upload proceeds independently.
func (r *Recorder) Stop() {
	r.finalize(r.currentGen(), "stop requested")
}

func (r *Recorder) currentGen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func (r *Recorder) run(src Source, gen int) {
	for {
		frame, err := src.ReadFrame()
		if err != nil {
			// Either the session was finalized under us (stream closed)
			// or the device failed; finalize is a no-op for the former.
			r.finalize(gen, fmt.Sprintf("source: %v", err))
			return
		}
		if stop, reason := r.ingest(frame, r.now()); stop {
			r.finalize(gen, reason)
			return
		}
	}
}

// ingest accumulates one probe frame and evaluates the stop triggers. It
// returns whether the session should stop and why.
func (r *Recorder) ingest(frame []int16, now time.Time) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateListening && r.state != StateRecording {
		return true, "session no longer active"
	}

	r.pcm.Write(audio.FrameBytes(frame))

	if audio.RMS(frame) >= r.cfg.SpeechThreshold {
		r.lastAbove = now
		if r.state == StateListening {
			if err := r.transitionLocked(StateRecording); err != nil {
				log.Printf("warning: %v", err)
			}
		}
	}

	elapsed := now.Sub(r.startedAt)
	if elapsed >= r.cfg.MaxDuration {
		return true, "max duration reached"
	}
	if now.Sub(r.lastAbove) >= r.cfg.Silence && elapsed >= r.cfg.MinDuration {
		return true, "silence"
	}
	return false, ""
}

// finalize tears one session down exactly once: later callers for the same
// generation see the bumped counter and return. The source is stopped and
// closed synchronously; the clip callback runs on its own goroutine.
func (r *Recorder) finalize(gen int, reason string) {
	r.mu.Lock()
	if r.gen != gen || r.state == StateIdle || r.state == StateStopping {
		r.mu.Unlock()
		return
	}
	if err := r.transitionLocked(StateStopping); err != nil {
		r.mu.Unlock()
		return
	}
	r.gen++
	src := r.src
	r.src = nil
	pcm := make([]byte, r.pcm.Len())
	copy(pcm, r.pcm.Bytes())
	r.pcm.Reset()
	elapsed := r.now().Sub(r.startedAt)
	r.mu.Unlock()

	if src != nil {
		_ = src.Stop()
		_ = src.Close()
	}

	r.mu.Lock()
	if err := r.transitionLocked(StateIdle); err != nil {
		log.Printf("warning: %v", err)
	}
	r.mu.Unlock()

	if elapsed < r.cfg.MinDuration || len(pcm) < r.cfg.MinBytes {
		log.Printf("recorder: discarding %dms/%dB utterance (%s)", elapsed.Milliseconds(), len(pcm), reason)
		return
	}

	wav, err := audio.WAV(pcm, r.cfg.SampleRate)
	if err != nil {
		log.Printf("warning: assemble utterance: %v", err)
		return
	}

	clip := Clip{
		ID:         uuid.NewString(),
		WAV:        wav,
		Format:     "audio/wav",
		SampleRate: r.cfg.SampleRate,
		Duration:   elapsed,
	}
	log.Printf("recorder: utterance %s ready, %dms (%s)", clip.ID, elapsed.Milliseconds(), reason)

	if r.onClip != nil {
		go r.onClip(clip)
	}
}
