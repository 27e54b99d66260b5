// Package countdown implements the study timer. At most one timer exists at
// a time: starting a new one destroys the previous TimerState first. On
// expiry the timer announces completion through a conversational turn, whose
// response may itself carry a new duration and re-arm the timer.
package countdown

import (
	"log"
	"sync"
	"time"
)

// Timer decrements once per second and reports progress through callbacks.
// onTick receives the remaining seconds and a display string; onDone receives
// the label of the duration that just expired. Both run without the timer
// lock held, so onDone may start a new timer.
type Timer struct {
	onTick func(remaining int, display string)
	onDone func(label string)

	mu        sync.Mutex
	remaining int
	label     string
	running   bool
	gen       int
	stop      chan struct{}

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func New(onTick func(remaining int, display string), onDone func(label string)) *Timer {
	return &Timer{
		onTick: onTick,
		onDone: onDone,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		},
	}
}

// SetOnDone replaces the completion callback. Call it before the first Start.
func (t *Timer) SetOnDone(fn func(label string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDone = fn
}

// Start accepts a clock string ("MM:SS", "HH:MM:SS") or free text carrying a
// spoken duration. Unparseable or non-positive durations leave any running
// timer untouched.
func (t *Timer) Start(raw string) error {
	d, err := ParseClock(raw)
	if err != nil {
		extracted, ok := ExtractFromText(raw)
		if !ok {
			return err
		}
		d = extracted
	}
	t.StartDuration(d)
	return nil
}

// StartDuration arms the timer, destroying any existing one first.
func (t *Timer) StartDuration(d time.Duration) {
	if d <= 0 {
		return
	}

	t.Stop()

	t.mu.Lock()
	t.remaining = int(d / time.Second)
	t.label = FormatClock(d)
	t.running = true
	t.gen++
	t.stop = make(chan struct{})
	gen := t.gen
	stop := t.stop
	t.mu.Unlock()

	log.Printf("countdown: armed for %s", FormatClock(d))
	go t.run(gen, stop)
}

// Stop clears the tick and destroys the timer state. Safe to call when no
// timer is running.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

// Remaining returns the seconds left, zero when no timer is running.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return t.remaining
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) run(gen int, stop chan struct{}) {
	ticks, cancel := t.newTicker(time.Second)
	defer cancel()

	for {
		select {
		case <-stop:
			return
		case <-ticks:
			t.mu.Lock()
			if !t.running || t.gen != gen {
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining := t.remaining
			label := t.label
			onTick, onDone := t.onTick, t.onDone
			done := remaining <= 0
			if done {
				t.running = false
			}
			t.mu.Unlock()

			if onTick != nil {
				onTick(remaining, FormatClock(time.Duration(remaining)*time.Second))
			}
			if done {
				log.Printf("countdown: %s timer completed", label)
				if onDone != nil {
					onDone(label)
				}
				return
			}
		}
	}
}
