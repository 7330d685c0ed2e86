// Package battery implements the advisory supply voltage check that gates the
// confirmation LED. It never affects the burst sequence itself.
package battery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sweeney/ir-trigger/internal/gpio"
	"github.com/sweeney/ir-trigger/internal/logic"
)

// Defaults matching the sense circuit: divider midpoint on channel 7,
// 10 ms for the divider to settle.
const (
	DefaultChannel = 7
	DefaultSettle  = 10 * time.Millisecond
)

// ErrNoSample is returned when the converter produced no reading.
var ErrNoSample = errors.New("battery: no sample")

// ADC is a successive-approximation converter with a fixed internal reference.
type ADC interface {
	// Enable powers the converter and reference and selects channel.
	Enable(channel int) error
	// Sample performs one conversion and returns a 10-bit code.
	Sample() (uint16, error)
	// Disable powers down the converter and reference.
	Disable() error
}

// Gate samples the supply through a switched resistor divider.
type Gate struct {
	divider gpio.Output
	adc     ADC
	channel int
	settle  time.Duration
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Gate.
type Option func(*Gate)

// WithSettle sets the divider settle time.
func WithSettle(d time.Duration) Option {
	return func(g *Gate) { g.settle = d }
}

// WithSleep replaces the context-aware sleep used for settling.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Gate) { g.sleep = sleep }
}

// NewGate creates a battery gate. divider enables the sense path.
func NewGate(divider gpio.Output, adc ADC, channel int, opts ...Option) *Gate {
	g := &Gate{
		divider: divider,
		adc:     adc,
		channel: channel,
		settle:  DefaultSettle,
		sleep:   Sleep,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CheckPowerOK reports whether the supply is at or above the minimum voltage.
// Any error yields false.
func (g *Gate) CheckPowerOK(ctx context.Context) (bool, error) {
	code, err := g.Read(ctx)
	if err != nil {
		return false, err
	}
	return logic.PowerOK(code), nil
}

// Read returns the authoritative ADC code at the divider midpoint.
// The sense path and the converter are powered down on every return.
func (g *Gate) Read(ctx context.Context) (code uint16, err error) {
	defer func() {
		if derr := g.divider.Set(false); derr != nil {
			err = multierr.Append(err, fmt.Errorf("disable divider: %w", derr))
		}
	}()
	if err := g.divider.Set(true); err != nil {
		return 0, fmt.Errorf("enable divider: %w", err)
	}

	if err := g.sleep(ctx, g.settle); err != nil {
		return 0, err
	}

	defer func() {
		if derr := g.adc.Disable(); derr != nil {
			err = multierr.Append(err, fmt.Errorf("disable adc: %w", derr))
		}
	}()
	if err := g.adc.Enable(g.channel); err != nil {
		return 0, fmt.Errorf("enable adc channel %d: %w", g.channel, err)
	}

	// The first conversion after selecting the channel is discarded while
	// the reference settles.
	if _, err := g.adc.Sample(); err != nil {
		return 0, fmt.Errorf("first sample: %w", err)
	}
	code, err = g.adc.Sample()
	if err != nil {
		return 0, fmt.Errorf("second sample: %w", err)
	}
	return code, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
