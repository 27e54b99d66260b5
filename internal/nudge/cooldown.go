// Package nudge arbitrates interruptions triggered by capture verdicts. All
// sources compete for a single cooldown slot: whichever claims it first wins
// the window, and the user is never nudged twice within it even when screen
// and camera disagree about them simultaneously.
package nudge

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultWindow is the minimum gap between two fired nudges.
const DefaultWindow = 60 * time.Second

// Coordinator holds the shared cooldown timestamp. The timestamp is updated
// before any asynchronous work begins, which is the sole mechanism closing
// the race between concurrent triggers.
type Coordinator struct {
	window time.Duration
	send   func(source, activity, message string)

	mu        sync.Mutex
	lastFired time.Time

	now func() time.Time
}

// New builds a coordinator. send delivers the synthesized status message
// through the normal conversational path; it is invoked only for nudges that
// won the slot.
func New(window time.Duration, send func(source, activity, message string)) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coordinator{
		window: window,
		send:   send,
		now:    time.Now,
	}
}

// Consider is invoked for every "not studying" verdict. It reports whether
// the nudge fired; suppressed nudges are logged and otherwise dropped.
func (c *Coordinator) Consider(source, activity string) bool {
	c.mu.Lock()
	now := c.now()
	if !c.lastFired.IsZero() {
		if elapsed := now.Sub(c.lastFired); elapsed < c.window {
			c.mu.Unlock()
			log.Printf("nudge: %s trigger suppressed, %s into %s cooldown", source, elapsed.Round(time.Second), c.window)
			return false
		}
	}
	// Claim the slot before anything slow happens.
	c.lastFired = now
	c.mu.Unlock()

	message := Message(activity)
	log.Printf("nudge: fired for %s (%s)", source, activity)
	if c.send != nil {
		c.send(source, activity, message)
	}
	return true
}

// LastFired returns when the slot was last claimed, zero if never.
func (c *Coordinator) LastFired() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFired
}

// Message synthesizes the first-person status line sent to the coach on the
// user's behalf.
func Message(activity string) string {
	if activity == "" {
		activity = "doing something else"
	}
	return fmt.Sprintf("I got distracted: I'm %s instead of studying. Give me a short, caring nudge to get back on track.", activity)
}
