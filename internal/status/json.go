package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"trigger_counts"`
	Last          *CycleJSON   `json:"last_trigger,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of trigger counts.
type CountsJSON struct {
	Immediate  int    `json:"immediate"`
	Delayed    int    `json:"delayed"`
	Dropped    uint64 `json:"dropped_edges"`
	Faults     uint64 `json:"faults"`
	BatteryLow int    `json:"battery_low"`
}

// CycleJSON is the JSON representation of the last completed cycle.
type CycleJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Battery   string `json:"battery"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// PinsJSON is the JSON representation of the GPIO wiring.
type PinsJSON struct {
	Chip      string `json:"chip"`
	Immediate int    `json:"immediate"`
	Delayed   int    `json:"delayed"`
	IRGate    int    `json:"ir_gate"`
	LED       int    `json:"led"`
	Divider   int    `json:"divider"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pins        PinsJSON `json:"pins"`
	DebounceMs  int64    `json:"debounce_ms"`
	HeartbeatMs int64    `json:"heartbeat_ms"`
	Broker      string   `json:"broker"`
	HTTPPort    string   `json:"http_port"`
}

// BatteryLabel renders a battery decision the way every output surface shows it.
func BatteryLabel(ok bool) string {
	if ok {
		return "OK"
	}
	return "LOW"
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Config.Pins
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Immediate:  snap.Counts.Immediate,
			Delayed:    snap.Counts.Delayed,
			Dropped:    snap.Counts.Dropped,
			Faults:     snap.Counts.Faults,
			BatteryLow: snap.Counts.BatteryLow,
		},
		Config: ConfigJSON{
			Pins: PinsJSON{
				Chip:      p.Chip,
				Immediate: p.Immediate,
				Delayed:   p.Delayed,
				IRGate:    p.IRGate,
				LED:       p.LED,
				Divider:   p.Divider,
			},
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}
	if snap.Last != nil {
		inner.Last = &CycleJSON{
			Timestamp: snap.Last.Timestamp.UTC().Format(time.RFC3339),
			Event:     snap.Last.Kind.String(),
			Battery:   BatteryLabel(snap.Last.BatteryOK),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
