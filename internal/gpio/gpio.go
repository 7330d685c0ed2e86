// Package gpio provides button edge detection and output lines with hardware
// abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"go.uber.org/zap"

	"github.com/sweeney/ir-trigger/internal/logic"
)

// Output drives a single digital output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close drives the line low and releases it.
	Close() error
}

// EdgeSink receives falling edges from the trigger buttons.
// It is called from the edge-watcher goroutine and must not block.
type EdgeSink func(flags logic.EdgeFlags)

// Pin definitions (BCM numbering)
const (
	DefaultPinImmediate = 17 // button A, active low
	DefaultPinDelayed   = 27 // button B, active low
	DefaultPinIRGate    = 22 // enables the 32768 Hz oscillator onto the IR LED
	DefaultPinLED       = 23 // status LED, active high
	DefaultPinDivider   = 24 // top of the battery sense divider
)

// Gate adapts an Output that enables the carrier oscillator to logic.Gate.
// The sequencer has no error path, so write failures are logged.
type Gate struct {
	out Output
	log *zap.Logger
}

var _ logic.Gate = (*Gate)(nil)

// NewGate wraps out as an oscillator gate.
func NewGate(out Output, log *zap.Logger) *Gate {
	return &Gate{out: out, log: log}
}

// Connect routes the oscillator to the IR output.
func (g *Gate) Connect() {
	if err := g.out.Set(true); err != nil {
		g.log.Error("connect ir gate", zap.Error(err))
	}
}

// Disconnect holds the IR output low.
func (g *Gate) Disconnect() {
	if err := g.out.Set(false); err != nil {
		g.log.Error("disconnect ir gate", zap.Error(err))
	}
}

// edgeFlags maps a line offset to its edge bit. Unknown offsets map to no bits.
func edgeFlags(offset, pinImmediate, pinDelayed int) logic.EdgeFlags {
	switch offset {
	case pinImmediate:
		return logic.EdgeImmediate
	case pinDelayed:
		return logic.EdgeDelayed
	}
	return 0
}
