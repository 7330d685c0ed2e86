// Package status provides a thread-safe status tracker for the ir-trigger daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ir-trigger/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Pins is the GPIO wiring shown on the status page.
type Pins struct {
	Chip      string
	Immediate int
	Delayed   int
	IRGate    int
	LED       int
	Divider   int
}

// Config contains daemon configuration for display.
type Config struct {
	Pins        Pins
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Counts        logic.Counts
	Last          *logic.Cycle
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record folds a completed cycle into the counts and remembers it as the last one.
func (t *Tracker) Record(cycle logic.Cycle) {
	t.mu.Lock()
	t.snap.Counts.Record(cycle)
	c := cycle
	t.snap.Last = &c
	t.mu.Unlock()
}

// SetDropped sets the number of edges discarded while a request was pending.
func (t *Tracker) SetDropped(n uint64) {
	t.mu.Lock()
	t.snap.Counts.Dropped = n
	t.mu.Unlock()
}

// SetFaults sets the sequencer fault count.
func (t *Tracker) SetFaults(n uint64) {
	t.mu.Lock()
	t.snap.Counts.Faults = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Last != nil {
		c := *s.Last
		s.Last = &c
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
