// Package trigger runs the foreground control loop: it sleeps until a button
// request is latched, arms the burst sequencer and shows the battery
// confirmation.
package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ir-trigger/internal/battery"
	"github.com/sweeney/ir-trigger/internal/gpio"
	"github.com/sweeney/ir-trigger/internal/logic"
)

// Foreground timing, in host time. Independent of the burst timing, which
// the sequencer drives from the compare timer.
const (
	DefaultWakeDelay   = 200 * time.Millisecond
	DefaultArmDelay    = 100 * time.Millisecond
	DefaultConfirmTime = 400 * time.Millisecond
)

// Sequencer is the part of logic.Sequencer the orchestrator may touch.
type Sequencer interface {
	Arm(kind logic.TriggerKind) error
	Faults() uint64
}

// PowerChecker decides whether the supply is healthy.
type PowerChecker interface {
	CheckPowerOK(ctx context.Context) (bool, error)
}

// Reporter receives every completed cycle.
type Reporter interface {
	Report(cycle logic.Cycle)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(logic.Cycle)

// Report calls f.
func (f ReporterFunc) Report(c logic.Cycle) { f(c) }

// Orchestrator is the top-level trigger loop.
type Orchestrator struct {
	latch  *logic.Latch
	seq    Sequencer
	power  PowerChecker
	led    gpio.Output
	report Reporter
	log    *zap.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	// idle, if set, runs each time Run is about to block for a wake.
	idle func()

	wakeDelay time.Duration
	armDelay  time.Duration
	confirm   time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReporter sets the cycle reporter.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) { o.report = r }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithClock sets the time source used to stamp cycles.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleep replaces the context-aware sleep used for every foreground delay.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New creates an Orchestrator.
func New(latch *logic.Latch, seq Sequencer, power PowerChecker, led gpio.Output, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		latch:     latch,
		seq:       seq,
		power:     power,
		led:       led,
		report:    ReporterFunc(func(logic.Cycle) {}),
		log:       zap.NewNop(),
		now:       time.Now,
		sleep:     battery.Sleep,
		wakeDelay: DefaultWakeDelay,
		armDelay:  DefaultArmDelay,
		confirm:   DefaultConfirmTime,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes requests until ctx is done. It returns nil on cancellation.
// A sequence already armed completes on its own timer.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.setLED(false)

	for {
		if _, ok := o.latch.Pending(); ok {
			// The edge that latched this request also posted a wake token.
			select {
			case <-o.latch.Wake():
			default:
			}
		} else {
			if o.idle != nil {
				o.idle()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-o.latch.Wake():
			}
			if err := o.sleep(ctx, o.wakeDelay); err != nil {
				return nil
			}
		}

		kind, ok := o.latch.Pending()
		if !ok {
			continue
		}

		if err := o.cycle(ctx, kind); err != nil {
			o.latch.Clear()
			return nil
		}
	}
}

// cycle handles one request. It returns an error only when ctx is done.
func (o *Orchestrator) cycle(ctx context.Context, kind logic.TriggerKind) error {
	start := o.now()

	if err := o.seq.Arm(kind); err != nil {
		o.log.Warn("arm failed, dropping request", zap.Stringer("kind", kind), zap.Error(err))
		o.latch.Clear()
		return nil
	}
	o.log.Debug("armed", zap.Stringer("kind", kind))

	if err := o.sleep(ctx, o.armDelay); err != nil {
		return err
	}

	powerOK, err := o.power.CheckPowerOK(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.log.Warn("battery check failed", zap.Error(err))
	}
	if powerOK {
		o.setLED(true)
	}
	err = o.sleep(ctx, o.confirm)
	o.setLED(false)
	if err != nil {
		return err
	}

	o.latch.Clear()

	c := logic.Cycle{
		Timestamp: start,
		Kind:      kind,
		BatteryOK: powerOK,
		Faults:    o.seq.Faults(),
	}
	o.log.Info("trigger",
		zap.Stringer("kind", kind),
		zap.Bool("battery_ok", powerOK),
		zap.Uint64("faults", c.Faults),
	)
	o.report.Report(c)
	return nil
}

// Blink flashes the LED n times, on and off for length each.
func (o *Orchestrator) Blink(ctx context.Context, n int, length time.Duration) error {
	for i := 0; i < n; i++ {
		o.setLED(true)
		err := o.sleep(ctx, length)
		o.setLED(false)
		if err != nil {
			return err
		}
		if err := o.sleep(ctx, length); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) setLED(on bool) {
	if err := o.led.Set(on); err != nil {
		o.log.Warn("set led", zap.Bool("on", on), zap.Error(err))
	}
}
