package logic

import "sync"

// Latch holds at most one pending trigger request.
// While a request is pending, further edges are dropped.
type Latch struct {
	mu      sync.Mutex
	pending TriggerKind
	dropped uint64
	wake    chan struct{}
}

// NewLatch creates an empty latch.
func NewLatch() *Latch {
	return &Latch{wake: make(chan struct{}, 1)}
}

// OnEdges records a request for the lines in flags, unless one is already
// pending. Line A takes precedence when both fired together. Unmapped bits
// are ignored. Returns true if a request was recorded.
func (l *Latch) OnEdges(flags EdgeFlags) bool {
	var kind TriggerKind
	switch {
	case flags&EdgeImmediate != 0:
		kind = KindImmediate
	case flags&EdgeDelayed != 0:
		kind = KindDelayed
	default:
		return false
	}

	l.mu.Lock()
	if l.pending != KindNone {
		l.dropped++
		l.mu.Unlock()
		return false
	}
	l.pending = kind
	l.mu.Unlock()

	// Never blocks the edge context.
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the pending request, if any.
func (l *Latch) Pending() (TriggerKind, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending, l.pending != KindNone
}

// Clear empties the latch so the next edge is accepted.
func (l *Latch) Clear() {
	l.mu.Lock()
	l.pending = KindNone
	l.mu.Unlock()
}

// Wake receives a token each time a request is recorded.
func (l *Latch) Wake() <-chan struct{} {
	return l.wake
}

// Dropped returns how many edges were ignored because a request was pending.
func (l *Latch) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
