// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ir-trigger/internal/logic"
)

// Topic is the MQTT topic for trigger events.
const Topic = "camera/ir-trigger/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "camera/ir-trigger/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a completed trigger cycle to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(cycle logic.Cycle) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Trigger TriggerPayload `json:"trigger"`
}

// TriggerPayload contains the trigger cycle details.
type TriggerPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Battery   string `json:"battery"`
	Faults    uint64 `json:"faults"`
}

// FormatPayload creates the JSON payload for a trigger cycle.
func FormatPayload(cycle logic.Cycle) ([]byte, error) {
	battery := "OK"
	if !cycle.BatteryOK {
		battery = "LOW"
	}
	payload := Payload{
		Trigger: TriggerPayload{
			Timestamp: cycle.Timestamp.UTC().Format(time.RFC3339),
			Event:     cycle.Kind.String(),
			Battery:   battery,
			Faults:    cycle.Faults,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// Discard is a Publisher used when no broker is configured.
type Discard struct{}

// Publish drops the cycle.
func (Discard) Publish(logic.Cycle) error { return nil }

// PublishSystem drops the event.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }

// IsConnected always reports false.
func (Discard) IsConnected() bool { return false }
