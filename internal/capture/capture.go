// Package capture owns periodic screen and camera sampling. Each kind runs an
// independent session: grab a frame, skip it silently if the source is not
// ready, otherwise submit it to the coach service and forward any
// "not studying" verdict. The two kinds never block each other; a failed tick
// is logged and superseded by the next one.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/focusd/focusd/internal/coach"
)

type Kind string

const (
	KindScreen Kind = "screen"
	KindCamera Kind = "camera"
)

var (
	ErrUnknownKind = errors.New("unknown capture kind")
	// ErrFrameNotReady marks a grab attempt against a source that has not
	// produced a real frame yet. Ticks hitting it are skipped silently.
	ErrFrameNotReady = errors.New("frame not ready")
)

// Grabber is one acquired capture source producing JPEG frames.
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}

// GrabberFactory acquires the platform source for a kind. A factory error is
// a device error: surfaced once, no retry.
type GrabberFactory func(kind Kind) (Grabber, error)

// Analyzer is the slice of the coach service the scheduler needs.
type Analyzer interface {
	DetectScreen(ctx context.Context, imageBase64 string) (coach.DetectResponse, error)
	DetectCamera(ctx context.Context, imageBase64 string) (coach.DetectResponse, error)
}

type session struct {
	grabber Grabber
	stop    chan struct{}
}

// Scheduler runs at most one active session per kind.
type Scheduler struct {
	svc        Analyzer
	newGrabber GrabberFactory
	intervals  map[Kind]time.Duration
	onVerdict  func(kind Kind, activity string)
	onState    func(kind Kind, active bool)
	onNotice   func(message string)

	mu       sync.Mutex
	sessions map[Kind]*session
}

type Option func(*Scheduler)

// OnVerdict registers the hook invoked for every successful sample whose
// verdict is "not studying".
func OnVerdict(fn func(kind Kind, activity string)) Option {
	return func(s *Scheduler) { s.onVerdict = fn }
}

// OnStateChange registers a hook fired when a kind starts or stops.
func OnStateChange(fn func(kind Kind, active bool)) Option {
	return func(s *Scheduler) { s.onState = fn }
}

// OnNotice registers the user-visible notification hook for device errors.
func OnNotice(fn func(message string)) Option {
	return func(s *Scheduler) { s.onNotice = fn }
}

func NewScheduler(svc Analyzer, factory GrabberFactory, screenInterval, cameraInterval time.Duration, opts ...Option) *Scheduler {
	if screenInterval <= 0 {
		screenInterval = 2 * time.Second
	}
	if cameraInterval <= 0 {
		cameraInterval = 2 * time.Second
	}

	s := &Scheduler{
		svc:        svc,
		newGrabber: factory,
		intervals: map[Kind]time.Duration{
			KindScreen: screenInterval,
			KindCamera: cameraInterval,
		},
		sessions: make(map[Kind]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start arms the periodic sampler for a kind. Starting an already active kind
// is a no-op.
func (s *Scheduler) Start(kind Kind) error {
	interval, ok := s.intervals[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	s.mu.Lock()
	if _, active := s.sessions[kind]; active {
		s.mu.Unlock()
		return nil
	}
	// Claim the slot before the (slow) device acquisition so a concurrent
	// Start for the same kind is a no-op.
	sess := &session{stop: make(chan struct{})}
	s.sessions[kind] = sess
	s.mu.Unlock()

	grabber, err := s.newGrabber(kind)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, kind)
		s.mu.Unlock()
		s.notice(fmt.Sprintf("%s capture unavailable: %v", kind, err))
		return fmt.Errorf("acquire %s source: %w", kind, err)
	}
	sess.grabber = grabber

	if s.onState != nil {
		s.onState(kind, true)
	}
	log.Printf("capture: %s sampling every %s", kind, interval)

	go s.run(kind, sess, interval)
	return nil
}

// Stop disarms a kind and releases its source. Stopping an inactive kind is a
// no-op, so repeated calls are safe.
func (s *Scheduler) Stop(kind Kind) {
	s.mu.Lock()
	sess, active := s.sessions[kind]
	if !active {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, kind)
	s.mu.Unlock()

	close(sess.stop)
	if sess.grabber != nil {
		_ = sess.grabber.Close()
	}
	if s.onState != nil {
		s.onState(kind, false)
	}
	log.Printf("capture: %s stopped", kind)
}

// StopAll releases every active source, for page teardown and shutdown.
func (s *Scheduler) StopAll() {
	for _, kind := range []Kind{KindScreen, KindCamera} {
		s.Stop(kind)
	}
}

func (s *Scheduler) Active(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, active := s.sessions[kind]
	return active
}

func (s *Scheduler) run(kind Kind, sess *session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			s.tick(kind, sess)
		}
	}
}

// tick grabs, submits, and forwards one sample. It runs to completion before
// the next tick of the same kind is processed; ticks that fall behind a slow
// request are dropped by the ticker rather than piling up.
func (s *Scheduler) tick(kind Kind, sess *session) {
	ctx := context.Background()

	frame, err := sess.grabber.Grab(ctx)
	if err != nil {
		if errors.Is(err, ErrFrameNotReady) {
			return
		}
		log.Printf("warning: %s grab failed: %v", kind, err)
		return
	}
	if len(frame) == 0 {
		return
	}

	encoded := base64.StdEncoding.EncodeToString(frame)

	var verdict coach.DetectResponse
	switch kind {
	case KindScreen:
		verdict, err = s.svc.DetectScreen(ctx, encoded)
	case KindCamera:
		verdict, err = s.svc.DetectCamera(ctx, encoded)
	}
	if err != nil {
		// Transient per-tick failure: dropped, next tick supersedes.
		log.Printf("warning: %s sample failed: %v", kind, err)
		return
	}

	if !verdict.IsStudying && s.onVerdict != nil {
		s.onVerdict(kind, verdict.ActivityDetected)
	}
}

func (s *Scheduler) notice(message string) {
	log.Printf("warning: %s", message)
	if s.onNotice != nil {
		s.onNotice(message)
	}
}
