// Command ir-trigger emits IR camera-trigger bursts on button presses, confirms
// battery health on the status LED and reports each trigger to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ir-trigger/internal/battery"
	"github.com/sweeney/ir-trigger/internal/config"
	"github.com/sweeney/ir-trigger/internal/gpio"
	"github.com/sweeney/ir-trigger/internal/hwtimer"
	"github.com/sweeney/ir-trigger/internal/logging"
	"github.com/sweeney/ir-trigger/internal/logic"
	"github.com/sweeney/ir-trigger/internal/mqtt"
	"github.com/sweeney/ir-trigger/internal/status"
	"github.com/sweeney/ir-trigger/internal/trigger"
	"github.com/sweeney/ir-trigger/internal/web"
)

// Startup confirmation: two short blinks once the hardware is up.
const (
	startupBlinks      = 2
	startupBlinkLength = 200 * time.Millisecond
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults if empty)")
	broker := flag.String("broker", "", "MQTT broker address, overrides config (empty disables)")
	httpAddr := flag.String("http", "", "HTTP status address, overrides config (empty disables)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval, overrides config (0 disables)")
	logLevel := flag.String("log-level", "", "Log level, overrides config")
	checkBattery := flag.Bool("check-battery", false, "Measure the battery once and exit")
	printState := flag.Bool("print-state", false, "Print button levels and exit")

	flag.Parse()

	var o overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			o.broker = broker
		case "http":
			o.httpAddr = httpAddr
		case "heartbeat":
			o.heartbeat = heartbeat
		case "log-level":
			o.logLevel = logLevel
		}
	})

	cfg, err := loadConfig(*configPath, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch {
	case *printState:
		err = printButtons(cfg, os.Stdout)
	case *checkBattery:
		err = printBattery(cfg, os.Stdout)
	default:
		err = run(cfg, logger)
	}
	if err != nil {
		fatal(logger, err, os.Exit)
	}
}

// fatal logs err, flushes the logger and exits. Deferred calls do not run.
func fatal(logger *zap.Logger, err error, exit func(int)) {
	logger.Error("fatal", zap.Error(err))
	logger.Sync()
	exit(1)
}

// overrides holds the flags that were explicitly set on the command line.
type overrides struct {
	broker    *string
	httpAddr  *string
	heartbeat *time.Duration
	logLevel  *string
}

// loadConfig reads the config file (or defaults) and applies flag overrides.
func loadConfig(path string, o overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if o.broker != nil {
		cfg.MQTT.Broker = *o.broker
	}
	if o.httpAddr != nil {
		cfg.HTTP.Addr = *o.httpAddr
	}
	if o.heartbeat != nil {
		cfg.Heartbeat = *o.heartbeat
	}
	if o.logLevel != nil {
		cfg.Log.Level = *o.logLevel
	}

	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func printButtons(cfg config.Config, w io.Writer) error {
	buttons, err := gpio.NewRealButtons(cfg.GPIO.Chip, cfg.GPIO.ImmediatePin, cfg.GPIO.DelayedPin, 0, func(logic.EdgeFlags) {})
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	immediate, delayed, err := buttons.Levels()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "IMMEDIATE: %s, DELAYED: %s\n", pressedString(immediate), pressedString(delayed))
	return nil
}

func printBattery(cfg config.Config, w io.Writer) error {
	divider, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.DividerPin)
	if err != nil {
		return fmt.Errorf("init divider: %w", err)
	}
	defer divider.Close()

	power := battery.NewGate(divider, battery.NewIIOADC(cfg.ADC.Device, cfg.ADC.Bits), cfg.ADC.Channel)
	return reportBattery(context.Background(), power, w)
}

// batteryReader is the part of battery.Gate used by -check-battery.
type batteryReader interface {
	Read(ctx context.Context) (uint16, error)
}

func reportBattery(ctx context.Context, power batteryReader, w io.Writer) error {
	code, err := power.Read(ctx)
	if err != nil {
		return fmt.Errorf("read battery: %w", err)
	}
	fmt.Fprintf(w, "battery: code=%d threshold=%d %s\n", code, logic.BatteryThreshold, status.BatteryLabel(logic.PowerOK(code)))
	return nil
}

func run(cfg config.Config, log *zap.Logger) error {
	g := cfg.GPIO

	// Outputs first so the IR line is held low before any edge can arrive.
	irOut, err := gpio.NewRealOutput(g.Chip, g.IRGatePin)
	if err != nil {
		return fmt.Errorf("init ir gate: %w", err)
	}
	defer closeLogged(log, "ir gate", irOut)

	led, err := gpio.NewRealOutput(g.Chip, g.LEDPin)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer closeLogged(log, "led", led)

	divider, err := gpio.NewRealOutput(g.Chip, g.DividerPin)
	if err != nil {
		return fmt.Errorf("init divider: %w", err)
	}
	defer closeLogged(log, "divider", divider)

	timer := hwtimer.NewSoftTimer(logic.ReferenceHz)
	seq := logic.NewSequencer(timer, gpio.NewGate(irOut, log))
	timer.SetHandler(seq.OnTimerEvent)
	defer timer.Stop()

	latch := logic.NewLatch()
	buttons, err := gpio.NewRealButtons(g.Chip, g.ImmediatePin, g.DelayedPin, g.Debounce, func(f logic.EdgeFlags) {
		latch.OnEdges(f)
	})
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer closeLogged(log, "buttons", buttons)

	power := battery.NewGate(divider, battery.NewIIOADC(cfg.ADC.Device, cfg.ADC.Bits), cfg.ADC.Channel)

	var publisher mqtt.Publisher = mqtt.Discard{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Buffer, log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Pins: status.Pins{
			Chip:      g.Chip,
			Immediate: g.ImmediatePin,
			Delayed:   g.DelayedPin,
			IRGate:    g.IRGatePin,
			LED:       g.LEDPin,
			Divider:   g.DividerPin,
		},
		DebounceMs:  g.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		latch:      latch,
		seq:        seq,
		log:        log,
		now:        time.Now,
	}
	report := d.reporter()
	d.orch = trigger.New(latch, seq, power, led,
		trigger.WithLogger(log),
		trigger.WithReporter(trigger.ReporterFunc(func(c logic.Cycle) {
			report(c)
			log.Debug("compare timing",
				zap.Duration("first_match_late", timer.FirstMatchLateness()),
				zap.Duration("last_match_late", timer.Lateness()),
			)
		})),
	)

	d.publishSystem("STARTUP", "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	if err := d.orch.Blink(context.Background(), startupBlinks, startupBlinkLength); err != nil {
		log.Warn("startup blink", zap.Error(err))
	}

	log.Info("started",
		zap.String("chip", g.Chip),
		zap.Int("pin_immediate", g.ImmediatePin),
		zap.Int("pin_delayed", g.DelayedPin),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.Heartbeat),
	)

	var hb <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		hb = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.runLoop(hb, sigCh)
}

// daemon ties the orchestrator to the telemetry surfaces.
type daemon struct {
	orch       *trigger.Orchestrator
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	latch      *logic.Latch
	seq        trigger.Sequencer
	log        *zap.Logger
	now        func() time.Time
}

// reporter returns the per-cycle callback: update status, then publish.
func (d *daemon) reporter() func(logic.Cycle) {
	return func(c logic.Cycle) {
		d.tracker.Record(c)
		d.tracker.SetDropped(d.latch.Dropped())
		if err := d.publisher.Publish(c); err != nil {
			d.log.Warn("publish error", zap.Error(err))
		}
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// runLoop runs the orchestrator until a signal arrives, publishing heartbeats.
func (d *daemon) runLoop(heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.orch.Run(ctx) }()

	for {
		select {
		case s := <-sig:
			d.log.Info("shutting down", zap.Stringer("signal", s))
			cancel()
			if err := <-done; err != nil {
				d.log.Warn("orchestrator stopped with error", zap.Error(err))
			}
			d.publishSystem("SHUTDOWN", signalName(s))
			return nil

		case <-heartbeat:
			d.publishSystem("HEARTBEAT", "")

		case err := <-done:
			if err == nil {
				err = errors.New("orchestrator stopped")
			}
			return err
		}
	}
}

// publishSystem refreshes the tracker and publishes a full status event.
// STARTUP and SHUTDOWN are retained; HEARTBEAT is not.
func (d *daemon) publishSystem(event, reason string) {
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	d.tracker.SetDropped(d.latch.Dropped())
	d.tracker.SetFaults(d.seq.Faults())
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
	snap := d.tracker.Snapshot()

	if event == "HEARTBEAT" {
		c := snap.Counts
		d.log.Info("heartbeat",
			zap.Duration("uptime", snap.Uptime()),
			zap.Int("immediate", c.Immediate),
			zap.Int("delayed", c.Delayed),
			zap.Uint64("dropped", c.Dropped),
			zap.Uint64("faults", c.Faults),
		)
	}

	e := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(e); err != nil {
		d.log.Warn("failed to publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	d.log.Debug("published system event", zap.String("event", event))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

func closeLogged(log *zap.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("close", zap.String("resource", name), zap.Error(err))
	}
}
