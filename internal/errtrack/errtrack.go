// Package errtrack holds the most recent unrecoverable syntax error of a
// buffer and decides when it becomes visible. An error is shown only after
// it has persisted for the configured delay, so that an error flashing
// through while the user types never reaches the screen.
package errtrack

import (
	"fmt"
	"sync"
	"time"

	"github.com/jward/shade/internal/span"
)

// State is the tracker state.
type State uint8

const (
	Clean State = iota
	Pending
	Visible
)

var stateNames = [...]string{"clean", "pending", "visible"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Change tells the caller what to do with the error indicator.
type Change uint8

const (
	Unchanged Change = iota
	Show             // draw (or redraw) the current record
	Hide             // remove the indicator
)

// Record is one syntax error.
type Record struct {
	Range    span.Range `json:"range"`
	Message  string     `json:"message"`
	RaisedAt time.Time  `json:"raisedAt"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	delay time.Duration
	state State
	rec   Record
}

// New returns a clean tracker that shows errors after delay. A delay of
// zero or less shows them immediately.
func New(delay time.Duration) *Tracker {
	return &Tracker{delay: delay}
}

// Fail records a failed parse at now. rec.RaisedAt is ignored.
//
// While an error is pending or visible at the same range, the record is
// replaced in place and keeps its original RaisedAt. An error at a
// different range restarts the delay and hides a visible indicator.
func (t *Tracker) Fail(rec Record, now time.Time) Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Clean && t.rec.Range == rec.Range {
		changed := t.rec.Message != rec.Message
		rec.RaisedAt = t.rec.RaisedAt
		t.rec = rec
		if t.state == Visible && changed {
			return Show
		}
		return t.promote(now)
	}

	change := Unchanged
	if t.state == Visible {
		change = Hide
	}
	rec.RaisedAt = now
	t.rec = rec
	t.state = Pending
	if c := t.promote(now); c != Unchanged {
		return c
	}
	return change
}

// Succeed records a successful parse. Any error state becomes Clean.
func (t *Tracker) Succeed() Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state
	t.state = Clean
	t.rec = Record{}
	if prev == Visible {
		return Hide
	}
	return Unchanged
}

// Tick makes a pending error visible once its delay has elapsed at now.
func (t *Tracker) Tick(now time.Time) Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.promote(now)
}

func (t *Tracker) promote(now time.Time) Change {
	if t.state != Pending || now.Before(t.rec.RaisedAt.Add(t.delay)) {
		return Unchanged
	}
	t.state = Visible
	return Show
}

// Deadline returns when the pending error becomes visible. ok is false
// unless the tracker is Pending.
func (t *Tracker) Deadline() (deadline time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Pending {
		return time.Time{}, false
	}
	return t.rec.RaisedAt.Add(t.delay), true
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns a copy of the active record, pending or visible.
func (t *Tracker) Current() (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec, t.state != Clean
}
