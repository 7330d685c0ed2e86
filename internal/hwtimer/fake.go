package hwtimer

import (
	"sync"

	"github.com/sweeney/ir-trigger/internal/logic"
)

// FakeTimer is a test double that fires only when told to.
type FakeTimer struct {
	mu sync.Mutex

	// Compares contains every value written to the compare register.
	Compares []logic.Ticks

	// Clears counts calls to Clear.
	Clears int

	running bool
	handler func()
}

// NewFakeTimer creates a stopped FakeTimer.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{}
}

// SetHandler registers the compare-match handler.
func (f *FakeTimer) SetHandler(h func()) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// Clear records the counter reset.
func (f *FakeTimer) Clear() {
	f.mu.Lock()
	f.Clears++
	f.mu.Unlock()
}

// SetCompare records the compare value.
func (f *FakeTimer) SetCompare(deadline logic.Ticks) {
	f.mu.Lock()
	f.Compares = append(f.Compares, deadline)
	f.mu.Unlock()
}

// Start marks the timer running.
func (f *FakeTimer) Start() {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
}

// Stop marks the timer stopped.
func (f *FakeTimer) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

// Running reports whether the timer is started.
func (f *FakeTimer) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Fire delivers one compare match if the timer is running.
// Returns false if the timer was stopped.
func (f *FakeTimer) Fire() bool {
	f.mu.Lock()
	running, h := f.running, f.handler
	f.mu.Unlock()

	if !running || h == nil {
		return false
	}
	h()
	return true
}

// RunToStop fires until the timer stops or limit matches have been delivered.
// Returns the number of matches delivered.
func (f *FakeTimer) RunToStop(limit int) int {
	n := 0
	for n < limit && f.Fire() {
		n++
	}
	return n
}

// Reset clears recorded calls.
func (f *FakeTimer) Reset() {
	f.mu.Lock()
	f.Compares = nil
	f.Clears = 0
	f.running = false
	f.mu.Unlock()
}
