// Package config loads the daemon's YAML configuration.
// Only wiring is configurable; protocol timing is fixed in internal/logic.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPIO      GPIOConfig    `yaml:"gpio"`
	ADC       ADCConfig     `yaml:"adc"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTP      HTTPConfig    `yaml:"http"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Log       LogConfig     `yaml:"log"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Chip         string        `yaml:"chip"`
	ImmediatePin int           `yaml:"immediate_pin"`
	DelayedPin   int           `yaml:"delayed_pin"`
	IRGatePin    int           `yaml:"ir_gate_pin"`
	LEDPin       int           `yaml:"led_pin"`
	DividerPin   int           `yaml:"divider_pin"`
	Debounce     time.Duration `yaml:"debounce"` // kernel debounce; 0 disables
}

// ---- ADC ----

type ADCConfig struct {
	Device  string `yaml:"device"` // IIO sysfs directory
	Channel int    `yaml:"channel"`
	Bits    int    `yaml:"bits"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	ClientID string `yaml:"client_id"`
	Buffer   int    `yaml:"buffer"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		GPIO: GPIOConfig{
			Chip:         "gpiochip0",
			ImmediatePin: 17,
			DelayedPin:   27,
			IRGatePin:    22,
			LEDPin:       23,
			DividerPin:   24,
			Debounce:     5 * time.Millisecond,
		},
		ADC: ADCConfig{
			Device:  "/sys/bus/iio/devices/iio:device0",
			Channel: 7,
			Bits:    10,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: "ir-trigger",
			Buffer:   100,
		},
		HTTP:      HTTPConfig{Addr: ":80"},
		Heartbeat: 15 * time.Minute,
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
// Unknown keys are rejected. An empty document yields the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
