package battery

import (
	"errors"
	"sync"
)

// FakeADC is a test double that returns scripted codes.
type FakeADC struct {
	mu sync.Mutex

	// Codes contains scripted conversion results.
	// Each call to Sample() consumes the next code; the last one repeats.
	Codes []uint16
	index int

	// Enabled is true between Enable and Disable.
	Enabled bool

	// Channel is the channel passed to the last Enable.
	Channel int

	// Samples counts conversions.
	Samples int

	// Disables counts calls to Disable.
	Disables int

	// EnableError and SampleError, if set, are returned by Enable and Sample.
	EnableError error
	SampleError error
}

// NewFakeADC creates a FakeADC with the given codes.
func NewFakeADC(codes ...uint16) *FakeADC {
	return &FakeADC{Codes: codes}
}

// Enable records the channel.
func (f *FakeADC) Enable(channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channel = channel
	if f.EnableError != nil {
		return f.EnableError
	}
	f.Enabled = true
	return nil
}

// Sample returns the next scripted code.
func (f *FakeADC) Sample() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Enabled {
		return 0, errors.New("adc not enabled")
	}
	if f.SampleError != nil {
		return 0, f.SampleError
	}
	if len(f.Codes) == 0 {
		return 0, ErrNoSample
	}
	f.Samples++
	code := f.Codes[f.index]
	if f.index < len(f.Codes)-1 {
		f.index++
	}
	return code, nil
}

// Disable powers the fake down.
func (f *FakeADC) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled = false
	f.Disables++
	return nil
}

// IsEnabled reports whether the converter is powered.
func (f *FakeADC) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Enabled
}

// Reset rewinds the scripted codes and clears counters.
func (f *FakeADC) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Enabled = false
	f.Samples = 0
	f.Disables = 0
}
