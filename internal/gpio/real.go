//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

const consumer = "ir-trigger"

// RealOutput drives an output line through the Linux GPIO character device.
type RealOutput struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	offset int
}

// NewRealOutput requests offset on chipName as an output, initially low.
func NewRealOutput(chipName string, offset int) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}

	return &RealOutput{chip: chip, line: line, offset: offset}, nil
}

// Set drives the line.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.offset, err)
	}
	return nil
}

// Close drives the line low and reconfigures it to input with pull-down
// (matching Pi boot defaults) before releasing it.
func (o *RealOutput) Close() error {
	var err error
	if o.line != nil {
		err = multierr.Append(err, o.line.SetValue(0))
		err = multierr.Append(err, o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown))
		err = multierr.Append(err, o.line.Close())
	}
	if o.chip != nil {
		err = multierr.Append(err, o.chip.Close())
	}
	if err != nil {
		return fmt.Errorf("close pin %d: %w", o.offset, err)
	}
	return nil
}

// RealButtons watches both trigger buttons for falling edges.
type RealButtons struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealButtons requests both button lines as pulled-up inputs and delivers
// falling edges to sink. A non-zero debounce enables kernel debouncing.
func NewRealButtons(chipName string, pinImmediate, pinDelayed int, debounce time.Duration, sink EdgeSink) (*RealButtons, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	handler := func(evt gpiocdev.LineEvent) {
		if evt.Type != gpiocdev.LineEventFallingEdge {
			return
		}
		sink(edgeFlags(evt.Offset, pinImmediate, pinDelayed))
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	lines, err := chip.RequestLines([]int{pinImmediate, pinDelayed}, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pins %d,%d: %w", pinImmediate, pinDelayed, err)
	}

	return &RealButtons{chip: chip, lines: lines}, nil
}

// Close stops edge delivery and releases the lines.
func (b *RealButtons) Close() error {
	var err error
	if b.lines != nil {
		err = multierr.Append(err, b.lines.Close())
	}
	if b.chip != nil {
		err = multierr.Append(err, b.chip.Close())
	}
	if err != nil {
		return fmt.Errorf("close buttons: %w", err)
	}
	return nil
}

// Levels reports whether each button is currently pressed (line low).
func (b *RealButtons) Levels() (immediate, delayed bool, err error) {
	vals := make([]int, 2)
	if err := b.lines.Values(vals); err != nil {
		return false, false, fmt.Errorf("read buttons: %w", err)
	}
	return vals[0] == 0, vals[1] == 0, nil
}
