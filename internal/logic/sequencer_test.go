package logic

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// recordingTimer captures every call the sequencer makes on the timer.
type recordingTimer struct {
	running  bool
	cleared  int
	compares []Ticks
	stops    int
}

func (r *recordingTimer) Clear()             { r.cleared++ }
func (r *recordingTimer) SetCompare(d Ticks) { r.compares = append(r.compares, d) }
func (r *recordingTimer) Start()             { r.running = true }
func (r *recordingTimer) Stop()              { r.running = false; r.stops++ }

func (r *recordingTimer) lastCompare() Ticks { return r.compares[len(r.compares)-1] }

// recordingGate captures the oscillator gate level.
type recordingGate struct {
	connected bool
	history   []bool
}

func (g *recordingGate) Connect()    { g.connected = true; g.history = append(g.history, true) }
func (g *recordingGate) Disconnect() { g.connected = false; g.history = append(g.history, false) }

func newTestSequencer() (*Sequencer, *recordingTimer, *recordingGate) {
	timer := &recordingTimer{}
	gate := &recordingGate{}
	return NewSequencer(timer, gate), timer, gate
}

func TestNewSequencerIsIdle(t *testing.T) {
	s, timer, gate := newTestSequencer()
	if s.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", s.State())
	}
	if timer.running {
		t.Error("timer should not run before Arm")
	}
	if gate.connected {
		t.Error("gate should be disconnected before Arm")
	}
}

func TestSequence(t *testing.T) {
	tests := []struct {
		kind       TriggerKind
		first, gap State
		gapTicks   Ticks
	}{
		{KindImmediate, StateFirstBurstImmediate, StateGapImmediate, 240},
		{KindDelayed, StateFirstBurstDelayed, StateGapDelayed, 176},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			s, timer, gate := newTestSequencer()

			if err := s.Arm(tt.kind); err != nil {
				t.Fatalf("Arm: %v", err)
			}
			if timer.cleared == 0 {
				t.Error("Arm should clear the counter")
			}
			if !timer.running {
				t.Error("Arm should start the timer")
			}
			if s.State() != tt.first || !gate.connected || s.Deadline() != 16 {
				t.Fatalf("after Arm: state=%s gate=%v deadline=%d", s.State(), gate.connected, s.Deadline())
			}

			s.OnTimerEvent()
			if s.State() != tt.gap || gate.connected || s.Deadline() != 16+tt.gapTicks {
				t.Fatalf("after first burst: state=%s gate=%v deadline=%d", s.State(), gate.connected, s.Deadline())
			}

			s.OnTimerEvent()
			if s.State() != StateSecondBurst || !gate.connected || s.Deadline() != 16+tt.gapTicks+16 {
				t.Fatalf("after gap: state=%s gate=%v deadline=%d", s.State(), gate.connected, s.Deadline())
			}

			s.OnTimerEvent()
			if s.State() != StateIdle || gate.connected || timer.running {
				t.Fatalf("after second burst: state=%s gate=%v running=%v", s.State(), gate.connected, timer.running)
			}

			want := []Ticks{16, 16 + tt.gapTicks, 32 + tt.gapTicks}
			if len(timer.compares) != len(want) {
				t.Fatalf("expected %d compare writes, got %d", len(want), len(timer.compares))
			}
			for i, w := range want {
				if timer.compares[i] != w {
					t.Errorf("compare %d: got %d, want %d", i, timer.compares[i], w)
				}
			}

			wantGate := []bool{true, false, true, false}
			if len(gate.history) != len(wantGate) {
				t.Fatalf("gate history: got %v, want %v", gate.history, wantGate)
			}
			for i := range wantGate {
				if gate.history[i] != wantGate[i] {
					t.Errorf("gate history: got %v, want %v", gate.history, wantGate)
					break
				}
			}

			if s.Completed() != 1 {
				t.Errorf("expected 1 completed sequence, got %d", s.Completed())
			}
			if s.Faults() != 0 {
				t.Errorf("expected no faults, got %d", s.Faults())
			}
		})
	}
}

func TestBurstStartSeparation(t *testing.T) {
	tests := []struct {
		kind TriggerKind
		want Ticks
		dur  time.Duration
	}{
		{KindImmediate, 256, 7812500 * time.Nanosecond},
		{KindDelayed, 192, 5859375 * time.Nanosecond},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := Separation(tt.kind); got != tt.want {
				t.Errorf("Separation: got %d, want %d", got, tt.want)
			}
			if got := TicksToDuration(Separation(tt.kind)); got != tt.dur {
				t.Errorf("duration: got %v, want %v", got, tt.dur)
			}

			// First burst starts at counter 0; the second starts at the
			// deadline that ends the gap.
			s, timer, _ := newTestSequencer()
			s.Arm(tt.kind)
			s.OnTimerEvent()
			if got := timer.lastCompare(); got != tt.want {
				t.Errorf("second burst starts at %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeparationIndependentOfStartDeadline(t *testing.T) {
	// Deadlines advance relative to themselves, so the separation holds
	// even across a counter wrap.
	for _, start := range []Ticks{0, 1000, 65500, 65535} {
		s, timer, _ := newTestSequencer()
		s.Arm(KindImmediate)
		s.deadline = start
		s.OnTimerEvent()
		s.OnTimerEvent()
		gapEnd := timer.compares[1]
		if gapEnd-start != ImmediateGapTicks {
			t.Errorf("start %d: gap end %d not %d ticks later", start, gapEnd, ImmediateGapTicks)
		}
		if timer.lastCompare()-start != ImmediateGapTicks+BurstTicks {
			t.Errorf("start %d: second burst end %d", start, timer.lastCompare())
		}
	}
}

func TestArmWhileBusy(t *testing.T) {
	s, timer, _ := newTestSequencer()
	if err := s.Arm(KindImmediate); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.OnTimerEvent()

	err := s.Arm(KindDelayed)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if s.State() != StateGapImmediate {
		t.Errorf("rejected Arm changed state to %s", s.State())
	}
	if len(timer.compares) != 2 {
		t.Errorf("rejected Arm wrote compare register")
	}
}

func TestArmUnknownKind(t *testing.T) {
	s, timer, gate := newTestSequencer()
	if err := s.Arm(KindNone); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if s.State() != StateIdle || timer.running || gate.connected {
		t.Error("invalid Arm must leave the sequencer idle")
	}
}

func TestRearmAfterCompletion(t *testing.T) {
	s, _, _ := newTestSequencer()
	for i := 0; i < 3; i++ {
		kind := KindImmediate
		if i%2 == 1 {
			kind = KindDelayed
		}
		if err := s.Arm(kind); err != nil {
			t.Fatalf("round %d: Arm: %v", i, err)
		}
		for s.State() != StateIdle {
			s.OnTimerEvent()
		}
	}
	if s.Completed() != 3 {
		t.Errorf("expected 3 completed, got %d", s.Completed())
	}
}

func TestTimerEventWhileIdle(t *testing.T) {
	s, timer, gate := newTestSequencer()
	s.OnTimerEvent()
	if s.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", s.State())
	}
	if len(timer.compares) != 0 || gate.connected || len(gate.history) != 0 {
		t.Error("idle timer event must not touch hardware")
	}
	if s.Faults() != 0 {
		t.Error("idle timer event is not a fault")
	}
}

func TestInvalidStateFault(t *testing.T) {
	for _, bad := range []State{numStates, 7, 42, 255} {
		t.Run(fmt.Sprintf("state_%d", bad), func(t *testing.T) {
			s, timer, gate := newTestSequencer()
			s.Arm(KindImmediate)
			s.state = bad

			s.OnTimerEvent()

			if s.State() != StateIdle {
				t.Errorf("expected IDLE after fault, got %s", s.State())
			}
			if timer.running {
				t.Error("timer must be stopped after fault")
			}
			if gate.connected {
				t.Error("gate must be disconnected after fault")
			}
			if s.Faults() != 1 {
				t.Errorf("expected 1 fault, got %d", s.Faults())
			}
			if err := s.Arm(KindDelayed); err != nil {
				t.Errorf("sequencer should accept Arm after recovery: %v", err)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:                "IDLE",
		StateFirstBurstImmediate: "FIRST_BURST_IMMEDIATE",
		StateGapImmediate:        "GAP_IMMEDIATE",
		StateSecondBurst:         "SECOND_BURST",
		StateFirstBurstDelayed:   "FIRST_BURST_DELAYED",
		StateGapDelayed:          "GAP_DELAYED",
		State(99):                "INVALID",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d): got %q, want %q", s, s.String(), want)
		}
	}
}
