// Package hwtimer provides compare-match timers for the burst sequencer.
// SoftTimer emulates a free-running 16-bit counter on the host clock;
// FakeTimer is fired by hand in tests.
package hwtimer

import (
	"sync"
	"time"

	"github.com/sweeney/ir-trigger/internal/logic"
)

// SoftTimer emulates a 16-bit counter clocked at hz with one compare channel.
// Each match is resolved relative to the previous match, never to the time
// the compare register was written, so deadlines do not drift.
type SoftTimer struct {
	hz  uint64
	now func() time.Time

	mu       sync.Mutex
	handler  func()
	base     time.Time // instant of counter zero
	last     uint64    // absolute tick of the previous match
	target   uint64    // absolute tick of the scheduled match
	compare  logic.Ticks
	running  bool
	pending  *time.Timer
	gen      uint64
	matches  uint64
	first    time.Duration
	lateness time.Duration

	// fire serializes handler calls; a match never nests inside another.
	fire sync.Mutex
}

// NewSoftTimer creates a stopped timer counting at hz.
func NewSoftTimer(hz uint64) *SoftTimer {
	return &SoftTimer{hz: hz, now: time.Now}
}

// SetHandler registers the compare-match handler.
func (t *SoftTimer) SetHandler(h func()) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Clear resets the counter to zero.
func (t *SoftTimer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.base = t.now()
	t.last = 0
	t.matches = 0
	if t.running {
		t.schedule()
	}
}

// SetCompare programs the next match value.
func (t *SoftTimer) SetCompare(deadline logic.Ticks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compare = deadline
	if t.running {
		t.schedule()
	}
}

// Start lets the counter run. Starting a running timer is a no-op.
func (t *SoftTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	if t.base.IsZero() {
		t.base = t.now()
	}
	t.running = true
	t.schedule()
}

// Stop halts the counter and cancels any scheduled match.
func (t *SoftTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// Counter returns the current counter value.
func (t *SoftTimer) Counter() logic.Ticks {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.base.IsZero() {
		return 0
	}
	return logic.Ticks(t.durationToTicks(t.now().Sub(t.base)))
}

// FirstMatchLateness reports how late the first match after the last Clear
// fired relative to its ideal instant.
func (t *SoftTimer) FirstMatchLateness() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.first
}

// Lateness reports how late the most recent match fired.
func (t *SoftTimer) Lateness() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lateness
}

// schedule arms the host timer for the next match. Caller holds mu.
func (t *SoftTimer) schedule() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
	}

	dist := uint64(t.compare - logic.Ticks(t.last))
	if dist == 0 {
		// Same value as the previous match: one full counter period.
		dist = 1 << 16
	}
	t.target = t.last + dist

	d := t.base.Add(t.ticksToDuration(t.target)).Sub(t.now())
	if d < 0 {
		d = 0
	}
	gen := t.gen
	t.pending = time.AfterFunc(d, func() { t.match(gen) })
}

func (t *SoftTimer) match(gen uint64) {
	t.fire.Lock()
	defer t.fire.Unlock()

	t.mu.Lock()
	if gen != t.gen || !t.running {
		t.mu.Unlock()
		return
	}
	ideal := t.base.Add(t.ticksToDuration(t.target))
	t.lateness = t.now().Sub(ideal)
	if t.matches == 0 {
		t.first = t.lateness
	}
	t.matches++
	t.last = t.target
	t.pending = nil
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h()
	}
}

func (t *SoftTimer) ticksToDuration(ticks uint64) time.Duration {
	sec := ticks / t.hz
	rem := ticks % t.hz
	return time.Duration(sec)*time.Second + time.Duration(rem*uint64(time.Second)/t.hz)
}

func (t *SoftTimer) durationToTicks(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	sec := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return sec*t.hz + rem*t.hz/uint64(time.Second)
}
