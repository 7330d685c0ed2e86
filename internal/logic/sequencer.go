package logic

import (
	"sync"
	"time"
)

// Ticks is a value of the 16-bit compare timer. Arithmetic wraps, as the
// hardware register does.
type Ticks uint16

// Protocol constants, in cycles of the 32768 Hz reference clock.
const (
	ReferenceHz       = 32768
	BurstTicks        = Ticks(16)
	ImmediateGapTicks = Ticks(240)
	DelayedGapTicks   = Ticks(176)
)

// State is the burst sequencer state.
type State uint8

const (
	StateIdle State = iota
	StateFirstBurstImmediate
	StateGapImmediate
	StateSecondBurst
	StateFirstBurstDelayed
	StateGapDelayed
	numStates
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFirstBurstImmediate:
		return "FIRST_BURST_IMMEDIATE"
	case StateGapImmediate:
		return "GAP_IMMEDIATE"
	case StateSecondBurst:
		return "SECOND_BURST"
	case StateFirstBurstDelayed:
		return "FIRST_BURST_DELAYED"
	case StateGapDelayed:
		return "GAP_DELAYED"
	}
	return "INVALID"
}

// transition is what happens when the compare deadline of a state is reached.
type transition struct {
	gate  bool  // oscillator connected after the transition
	delta Ticks // added to the deadline; ignored when stop is set
	next  State
	stop  bool
	valid bool
}

var transitions = [numStates]transition{
	StateFirstBurstImmediate: {gate: false, delta: ImmediateGapTicks, next: StateGapImmediate, valid: true},
	StateGapImmediate:        {gate: true, delta: BurstTicks, next: StateSecondBurst, valid: true},
	StateFirstBurstDelayed:   {gate: false, delta: DelayedGapTicks, next: StateGapDelayed, valid: true},
	StateGapDelayed:          {gate: true, delta: BurstTicks, next: StateSecondBurst, valid: true},
	StateSecondBurst:         {gate: false, next: StateIdle, stop: true, valid: true},
}

// firstBurst maps a trigger kind to the state entered on Arm.
var firstBurst = map[TriggerKind]State{
	KindImmediate: StateFirstBurstImmediate,
	KindDelayed:   StateFirstBurstDelayed,
}

// Sequencer drives the compare timer through the two-burst pattern.
// Arm is the only entry point for foreground code; every other transition
// happens in OnTimerEvent.
type Sequencer struct {
	// mu stands in for masking the timer interrupt.
	mu        sync.Mutex
	timer     CompareTimer
	gate      Gate
	state     State
	deadline  Ticks
	faults    uint64
	completed uint64
}

// NewSequencer creates an idle sequencer. The caller must route the timer's
// compare-match events to OnTimerEvent.
func NewSequencer(timer CompareTimer, gate Gate) *Sequencer {
	return &Sequencer{
		timer: timer,
		gate:  gate,
		state: StateIdle,
	}
}

// Arm starts a burst sequence of the given kind.
// Returns ErrBusy unless the sequencer is idle.
func (s *Sequencer) Arm(kind TriggerKind) error {
	first, ok := firstBurst[kind]
	if !ok {
		return ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}

	s.gate.Connect()
	s.timer.Clear()
	s.deadline = BurstTicks
	s.timer.SetCompare(s.deadline)
	s.state = first
	s.timer.Start()
	return nil
}

// OnTimerEvent advances the state machine at a compare match.
// A state outside the transition table is a protocol fault: the timer is
// stopped, the oscillator disconnected and the state forced to Idle.
func (s *Sequencer) OnTimerEvent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}

	var tr transition
	if s.state < numStates {
		tr = transitions[s.state]
	}
	if !tr.valid {
		s.timer.Stop()
		s.gate.Disconnect()
		s.state = StateIdle
		s.faults++
		return
	}

	if tr.gate {
		s.gate.Connect()
	} else {
		s.gate.Disconnect()
	}

	if tr.stop {
		s.timer.Stop()
		s.completed++
	} else {
		s.deadline += tr.delta
		s.timer.SetCompare(s.deadline)
	}
	s.state = tr.next
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Deadline returns the compare value of the next transition.
func (s *Sequencer) Deadline() Ticks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// Faults returns the number of protocol faults recovered since startup.
func (s *Sequencer) Faults() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// Completed returns the number of sequences that reached Idle normally.
func (s *Sequencer) Completed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Separation returns the distance between the starts of the two bursts.
func Separation(kind TriggerKind) Ticks {
	switch kind {
	case KindImmediate:
		return BurstTicks + ImmediateGapTicks
	case KindDelayed:
		return BurstTicks + DelayedGapTicks
	}
	return 0
}

// TicksToDuration converts reference clock cycles to wall time.
func TicksToDuration(t Ticks) time.Duration {
	return time.Duration(uint64(t) * uint64(time.Second) / ReferenceHz)
}
