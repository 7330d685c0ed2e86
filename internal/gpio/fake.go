package gpio

import "sync"

// FakeOutput is a test double that records every level written.
type FakeOutput struct {
	mu sync.Mutex

	// Value is the current level.
	Value bool

	// History contains every level passed to Set, in order.
	History []bool

	// SetError, if set, will be returned by Set (the level is not changed).
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput driven low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Value = on
	f.History = append(f.History, on)
	return nil
}

// Close drives the line low and marks it closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Value = false
	f.Closed = true
	return nil
}

// Level returns the current level.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Value
}

// Levels returns a copy of the recorded history.
func (f *FakeOutput) Levels() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.History...)
}

// Reset clears the recorded history.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Value = false
	f.History = nil
	f.SetError = nil
	f.Closed = false
}

// FakeButtons delivers scripted button presses to a sink.
type FakeButtons struct {
	sink         EdgeSink
	pinImmediate int
	pinDelayed   int

	// PressedImmediate and PressedDelayed are returned by Levels.
	PressedImmediate bool
	PressedDelayed   bool

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeButtons creates FakeButtons on the default pins.
func NewFakeButtons(sink EdgeSink) *FakeButtons {
	return &FakeButtons{
		sink:         sink,
		pinImmediate: DefaultPinImmediate,
		pinDelayed:   DefaultPinDelayed,
	}
}

// Press delivers a falling edge on the given line offset, as the kernel
// event handler would.
func (f *FakeButtons) Press(offset int) {
	f.sink(edgeFlags(offset, f.pinImmediate, f.pinDelayed))
}

// PressImmediate delivers a falling edge on line A.
func (f *FakeButtons) PressImmediate() { f.Press(f.pinImmediate) }

// PressDelayed delivers a falling edge on line B.
func (f *FakeButtons) PressDelayed() { f.Press(f.pinDelayed) }

// Levels returns the simulated button levels.
func (f *FakeButtons) Levels() (bool, bool, error) {
	return f.PressedImmediate, f.PressedDelayed, nil
}

// Close marks the buttons closed.
func (f *FakeButtons) Close() error {
	f.Closed = true
	return nil
}
