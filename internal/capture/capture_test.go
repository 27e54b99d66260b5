package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/focusd/focusd/internal/coach"
)

type fakeGrabber struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	closed int
}

func (g *fakeGrabber) Grab(context.Context) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if len(g.frames) == 0 {
		return nil, ErrFrameNotReady
	}
	frame := g.frames[0]
	g.frames = g.frames[1:]
	return frame, nil
}

func (g *fakeGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed++
	return nil
}

func (g *fakeGrabber) closeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	screens []string
	cameras []string
	verdict coach.DetectResponse
	err     error
}

func (a *fakeAnalyzer) DetectScreen(_ context.Context, imageBase64 string) (coach.DetectResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.screens = append(a.screens, imageBase64)
	return a.verdict, a.err
}

func (a *fakeAnalyzer) DetectCamera(_ context.Context, imageBase64 string) (coach.DetectResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cameras = append(a.cameras, imageBase64)
	return a.verdict, a.err
}

func (a *fakeAnalyzer) screenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.screens)
}

func TestTickSubmitsEncodedFrameAndForwardsVerdict(t *testing.T) {
	analyzer := &fakeAnalyzer{
		verdict: coach.DetectResponse{IsStudying: false, ActivityDetected: "watching a video"},
	}
	grabber := &fakeGrabber{frames: [][]byte{[]byte("jpegdata")}}

	var gotKind Kind
	var gotActivity string
	sched := NewScheduler(analyzer, nil, time.Second, time.Second, OnVerdict(func(kind Kind, activity string) {
		gotKind = kind
		gotActivity = activity
	}))

	sched.tick(KindScreen, &session{grabber: grabber})

	if analyzer.screenCount() != 1 {
		t.Fatalf("expected one screen sample, got %d", analyzer.screenCount())
	}
	if want := base64.StdEncoding.EncodeToString([]byte("jpegdata")); analyzer.screens[0] != want {
		t.Errorf("expected base64 frame %q, got %q", want, analyzer.screens[0])
	}
	if gotKind != KindScreen || gotActivity != "watching a video" {
		t.Errorf("verdict not forwarded: kind=%q activity=%q", gotKind, gotActivity)
	}
}

func TestTickSkipsNotReadyFrameSilently(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	grabber := &fakeGrabber{} // no frames queued: every grab is not-ready

	sched := NewScheduler(analyzer, nil, time.Second, time.Second, OnVerdict(func(Kind, string) {
		t.Error("no verdict expected for a skipped tick")
	}))

	sched.tick(KindScreen, &session{grabber: grabber})

	if analyzer.screenCount() != 0 {
		t.Fatalf("expected no samples for not-ready frame, got %d", analyzer.screenCount())
	}
}

func TestTickIgnoresStudyingVerdict(t *testing.T) {
	analyzer := &fakeAnalyzer{verdict: coach.DetectResponse{IsStudying: true}}
	grabber := &fakeGrabber{frames: [][]byte{[]byte("frame")}}

	sched := NewScheduler(analyzer, nil, time.Second, time.Second, OnVerdict(func(Kind, string) {
		t.Error("studying verdict must not produce a nudge")
	}))

	sched.tick(KindCamera, &session{grabber: grabber})
}

func TestTickDropsFailedRequest(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("service unavailable")}
	grabber := &fakeGrabber{frames: [][]byte{[]byte("frame")}}

	sched := NewScheduler(analyzer, nil, time.Second, time.Second, OnVerdict(func(Kind, string) {
		t.Error("failed request must not produce a nudge")
	}))

	sched.tick(KindScreen, &session{grabber: grabber})
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	var acquisitions int
	factory := func(Kind) (Grabber, error) {
		acquisitions++
		return &fakeGrabber{}, nil
	}

	sched := NewScheduler(&fakeAnalyzer{}, factory, time.Hour, time.Hour)
	defer sched.StopAll()

	if err := sched.Start(KindScreen); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := sched.Start(KindScreen); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if acquisitions != 1 {
		t.Fatalf("expected one acquisition, got %d", acquisitions)
	}
	if !sched.Active(KindScreen) {
		t.Fatal("expected screen capture active")
	}
}

func TestKindsAreIndependent(t *testing.T) {
	factory := func(Kind) (Grabber, error) { return &fakeGrabber{}, nil }
	sched := NewScheduler(&fakeAnalyzer{}, factory, time.Hour, time.Hour)
	defer sched.StopAll()

	if err := sched.Start(KindScreen); err != nil {
		t.Fatalf("start screen: %v", err)
	}
	if err := sched.Start(KindCamera); err != nil {
		t.Fatalf("start camera: %v", err)
	}

	sched.Stop(KindScreen)

	if sched.Active(KindScreen) {
		t.Error("expected screen inactive after stop")
	}
	if !sched.Active(KindCamera) {
		t.Error("expected camera unaffected by screen stop")
	}
}

func TestStopIsIdempotentAndReleasesSource(t *testing.T) {
	grabber := &fakeGrabber{}
	factory := func(Kind) (Grabber, error) { return grabber, nil }
	sched := NewScheduler(&fakeAnalyzer{}, factory, time.Hour, time.Hour)

	if err := sched.Start(KindScreen); err != nil {
		t.Fatalf("start: %v", err)
	}

	sched.Stop(KindScreen)
	sched.Stop(KindScreen)

	if got := grabber.closeCount(); got != 1 {
		t.Fatalf("expected exactly one close, got %d", got)
	}
	if sched.Active(KindScreen) {
		t.Fatal("expected screen inactive")
	}
}

func TestDeviceErrorSurfacesOneNoticeAndLeavesInactive(t *testing.T) {
	factory := func(Kind) (Grabber, error) {
		return nil, errors.New("permission denied")
	}

	var notices []string
	sched := NewScheduler(&fakeAnalyzer{}, factory, time.Hour, time.Hour, OnNotice(func(msg string) {
		notices = append(notices, msg)
	}))

	if err := sched.Start(KindCamera); err == nil {
		t.Fatal("expected acquisition error")
	}
	if len(notices) != 1 {
		t.Fatalf("expected one user-visible notice, got %d", len(notices))
	}
	if sched.Active(KindCamera) {
		t.Fatal("expected camera left inactive after device error")
	}
}

func TestUnknownKindRejected(t *testing.T) {
	sched := NewScheduler(&fakeAnalyzer{}, nil, time.Second, time.Second)
	if err := sched.Start(Kind("hologram")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
