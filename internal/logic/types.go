// Package logic contains the pure trigger logic: the event latch, the burst
// sequencer and the battery threshold decision.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Hardware is reached only through the small interfaces declared here.
package logic

import (
	"errors"
	"time"
)

// TriggerKind selects which of the two protocol variants to emit.
type TriggerKind uint8

const (
	KindNone TriggerKind = iota
	KindImmediate
	KindDelayed
)

func (k TriggerKind) String() string {
	switch k {
	case KindImmediate:
		return "IMMEDIATE"
	case KindDelayed:
		return "DELAYED"
	}
	return "NONE"
}

// EdgeFlags is the set of input lines that saw a falling edge,
// one bit per line.
type EdgeFlags uint8

const (
	EdgeImmediate EdgeFlags = 1 << iota // line A
	EdgeDelayed                         // line B
)

// Errors returned by Sequencer.Arm.
var (
	ErrBusy        = errors.New("sequencer not idle")
	ErrUnknownKind = errors.New("unknown trigger kind")
)

// Gate connects the free-running carrier oscillator to the IR output line.
// The sequencer never toggles the output bit itself.
type Gate interface {
	Connect()
	Disconnect()
}

// CompareTimer is a free-running counter with a single compare channel.
// The owner registers Sequencer.OnTimerEvent as the compare-match handler.
type CompareTimer interface {
	// Clear resets the counter to zero.
	Clear()
	// SetCompare programs the absolute counter value of the next match.
	SetCompare(deadline Ticks)
	Start()
	Stop()
}

// Cycle records one completed trigger request, as seen by the orchestrator.
type Cycle struct {
	Timestamp time.Time
	Kind      TriggerKind
	BatteryOK bool
	// Faults is the sequencer's cumulative protocol fault count after the cycle.
	Faults uint64
}

// Counts tracks trigger activity since startup.
type Counts struct {
	Immediate  int
	Delayed    int
	Dropped    uint64
	Faults     uint64
	BatteryLow int
}
