package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	pins := []struct {
		name string
		pin  int
	}{
		{"immediate_pin", cfg.GPIO.ImmediatePin},
		{"delayed_pin", cfg.GPIO.DelayedPin},
		{"ir_gate_pin", cfg.GPIO.IRGatePin},
		{"led_pin", cfg.GPIO.LEDPin},
		{"divider_pin", cfg.GPIO.DividerPin},
	}

	owner := make(map[int]string, len(pins))
	for _, p := range pins {
		if p.pin < 0 {
			return fmt.Errorf("gpio.%s: negative pin %d", p.name, p.pin)
		}
		if prev, exists := owner[p.pin]; exists {
			return fmt.Errorf("gpio pin %d used by both %s and %s", p.pin, prev, p.name)
		}
		owner[p.pin] = p.name
	}

	if cfg.GPIO.Chip == "" {
		return fmt.Errorf("gpio.chip: must not be empty")
	}
	if cfg.GPIO.Debounce < 0 {
		return fmt.Errorf("gpio.debounce: negative duration %v", cfg.GPIO.Debounce)
	}

	if cfg.ADC.Bits < 10 || cfg.ADC.Bits > 16 {
		return fmt.Errorf("adc.bits: %d outside 10..16", cfg.ADC.Bits)
	}
	if cfg.ADC.Channel < 0 {
		return fmt.Errorf("adc.channel: negative channel %d", cfg.ADC.Channel)
	}

	if cfg.MQTT.Buffer <= 0 {
		return fmt.Errorf("mqtt.buffer: must be positive, got %d", cfg.MQTT.Buffer)
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt.client_id: required when a broker is set")
	}

	if cfg.Heartbeat < 0 {
		return fmt.Errorf("heartbeat: negative duration %v", cfg.Heartbeat)
	}

	return nil
}
