package hwtimer

import (
	"sync"
	"testing"
	"time"

	"github.com/sweeney/ir-trigger/internal/logic"
)

// levelGate records gate changes and when they happened.
type levelGate struct {
	mu     sync.Mutex
	levels []bool
	at     []time.Time
}

func (g *levelGate) Connect()    { g.record(true) }
func (g *levelGate) Disconnect() { g.record(false) }

func (g *levelGate) record(on bool) {
	g.mu.Lock()
	g.levels = append(g.levels, on)
	g.at = append(g.at, time.Now())
	g.mu.Unlock()
}

func waitIdle(t *testing.T, s *logic.Sequencer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != logic.StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("sequence did not complete, stuck in %s", s.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSoftTimerDrivesSequence(t *testing.T) {
	for _, kind := range []logic.TriggerKind{logic.KindImmediate, logic.KindDelayed} {
		t.Run(kind.String(), func(t *testing.T) {
			timer := NewSoftTimer(logic.ReferenceHz)
			gate := &levelGate{}
			seq := logic.NewSequencer(timer, gate)
			timer.SetHandler(seq.OnTimerEvent)

			if err := seq.Arm(kind); err != nil {
				t.Fatalf("Arm: %v", err)
			}
			waitIdle(t, seq)

			gate.mu.Lock()
			defer gate.mu.Unlock()
			want := []bool{true, false, true, false}
			if len(gate.levels) != len(want) {
				t.Fatalf("gate levels: got %v, want %v", gate.levels, want)
			}
			for i := range want {
				if gate.levels[i] != want[i] {
					t.Fatalf("gate levels: got %v, want %v", gate.levels, want)
				}
			}

			// Host scheduling adds latency, never removes it: the second
			// burst cannot start before the protocol separation.
			sep := gate.at[2].Sub(gate.at[0])
			if min := logic.TicksToDuration(logic.Separation(kind)); sep < min-time.Millisecond {
				t.Errorf("burst separation %v shorter than %v", sep, min)
			}
			if seq.Completed() != 1 {
				t.Errorf("expected 1 completed sequence, got %d", seq.Completed())
			}
		})
	}
}

func TestSoftTimerStopCancelsMatch(t *testing.T) {
	timer := NewSoftTimer(logic.ReferenceHz)
	fired := make(chan struct{}, 1)
	timer.SetHandler(func() { fired <- struct{}{} })

	timer.Clear()
	timer.SetCompare(1000) // ~30ms
	timer.Start()
	timer.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSoftTimerCompareWritesBeforeStart(t *testing.T) {
	timer := NewSoftTimer(logic.ReferenceHz)
	fired := make(chan struct{}, 1)
	timer.SetHandler(func() { fired <- struct{}{} })

	timer.Clear()
	timer.SetCompare(16)

	select {
	case <-fired:
		t.Fatal("timer fired before Start")
	case <-time.After(10 * time.Millisecond):
	}

	timer.Start()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire after Start")
	}
	timer.Stop()
}

func TestSoftTimerHandlerReschedules(t *testing.T) {
	timer := NewSoftTimer(logic.ReferenceHz)
	var mu sync.Mutex
	var matches int
	done := make(chan struct{})

	next := logic.Ticks(8)
	timer.SetHandler(func() {
		mu.Lock()
		matches++
		n := matches
		mu.Unlock()
		if n == 5 {
			timer.Stop()
			close(done)
			return
		}
		next += 8
		timer.SetCompare(next)
	})

	timer.Clear()
	timer.SetCompare(next)
	timer.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler chain did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if matches != 5 {
		t.Errorf("expected 5 matches, got %d", matches)
	}
	if timer.FirstMatchLateness() < 0 {
		t.Errorf("first match fired early: %v", timer.FirstMatchLateness())
	}
}

// A late match does not shift later deadlines: the next compare is resolved
// from the previous ideal target, not from when the handler ran.
func TestSoftTimerLateMatchDoesNotDrift(t *testing.T) {
	timer := NewSoftTimer(logic.ReferenceHz)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var clock sync.Mutex
	now := start
	timer.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return now
	}
	matched := make(chan struct{}, 2)
	timer.SetHandler(func() { matched <- struct{}{} })
	defer timer.Stop()

	wait := func() {
		t.Helper()
		select {
		case <-matched:
		case <-time.After(time.Second):
			t.Fatal("no match")
		}
	}

	timer.Clear()
	timer.SetCompare(16)
	// The host runs 10ms behind; both matches below are already overdue.
	clock.Lock()
	now = start.Add(10 * time.Millisecond)
	clock.Unlock()
	timer.Start()
	wait()

	timer.mu.Lock()
	last, late := timer.last, timer.lateness
	timer.mu.Unlock()
	if last != 16 {
		t.Errorf("last after first match: got %d, want 16", last)
	}
	if want := 10*time.Millisecond - timer.ticksToDuration(16); late != want {
		t.Errorf("first lateness: got %v, want %v", late, want)
	}

	timer.SetCompare(272)
	timer.mu.Lock()
	target := timer.target
	timer.mu.Unlock()
	if target != 272 {
		t.Errorf("target: got %d, want 272 (anchored to previous match)", target)
	}
	wait()

	timer.mu.Lock()
	last, late = timer.last, timer.lateness
	timer.mu.Unlock()
	if last != 272 {
		t.Errorf("last after second match: got %d, want 272", last)
	}
	if want := 10*time.Millisecond - timer.ticksToDuration(272); late != want {
		t.Errorf("second lateness: got %v, want %v", late, want)
	}
	if timer.FirstMatchLateness() != 10*time.Millisecond-timer.ticksToDuration(16) {
		t.Errorf("first match lateness overwritten: %v", timer.FirstMatchLateness())
	}
}

func TestSoftTimerTickConversion(t *testing.T) {
	timer := NewSoftTimer(logic.ReferenceHz)
	tests := []struct {
		ticks uint64
		want  time.Duration
	}{
		{0, 0},
		{256, 7812500 * time.Nanosecond},
		{192, 5859375 * time.Nanosecond},
		{32768, time.Second},
		{65536, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := timer.ticksToDuration(tt.ticks); got != tt.want {
			t.Errorf("ticksToDuration(%d): got %v, want %v", tt.ticks, got, tt.want)
		}
		if got := timer.durationToTicks(tt.want); got != tt.ticks {
			t.Errorf("durationToTicks(%v): got %d, want %d", tt.want, got, tt.ticks)
		}
	}
}

func TestSoftTimerCounter(t *testing.T) {
	timer := NewSoftTimer(logic.ReferenceHz)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	timer.now = func() time.Time { return now }

	if timer.Counter() != 0 {
		t.Errorf("counter before Clear: got %d", timer.Counter())
	}

	timer.Clear()
	now = start.Add(time.Second)
	if got := timer.Counter(); got != 32768 {
		t.Errorf("counter after 1s: got %d, want 32768", got)
	}

	// Wraps at 16 bits.
	now = start.Add(2*time.Second + 31*time.Microsecond)
	if got := timer.Counter(); got != 1 {
		t.Errorf("counter after wrap: got %d, want 1", got)
	}
}

func TestFakeTimer(t *testing.T) {
	f := NewFakeTimer()
	calls := 0
	f.SetHandler(func() { calls++ })

	if f.Fire() {
		t.Error("stopped FakeTimer must not fire")
	}

	f.Clear()
	f.SetCompare(16)
	f.Start()
	if !f.Fire() {
		t.Error("running FakeTimer should fire")
	}
	if calls != 1 {
		t.Errorf("expected 1 handler call, got %d", calls)
	}
	if f.Clears != 1 || len(f.Compares) != 1 || f.Compares[0] != 16 {
		t.Errorf("unexpected recording: clears=%d compares=%v", f.Clears, f.Compares)
	}

	f.Reset()
	if f.Running() || f.Clears != 0 || f.Compares != nil {
		t.Error("Reset should clear recorded state")
	}
}

func TestFakeTimerRunToStop(t *testing.T) {
	f := NewFakeTimer()
	seq := logic.NewSequencer(f, &levelGate{})
	f.SetHandler(seq.OnTimerEvent)

	seq.Arm(logic.KindDelayed)
	if n := f.RunToStop(10); n != 3 {
		t.Errorf("expected 3 matches, got %d", n)
	}
	if seq.State() != logic.StateIdle {
		t.Errorf("expected IDLE, got %s", seq.State())
	}
	want := []logic.Ticks{16, 192, 208}
	for i, w := range want {
		if f.Compares[i] != w {
			t.Errorf("compare %d: got %d, want %d", i, f.Compares[i], w)
		}
	}
}
