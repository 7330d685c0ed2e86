package battery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// IIOADC reads a Linux Industrial I/O voltage channel and scales the raw
// value to a 10-bit code.
type IIOADC struct {
	dir  string
	bits int
	f    *os.File
}

// NewIIOADC reads channels of the IIO device directory dir
// (e.g. /sys/bus/iio/devices/iio:device0), whose converter has bits of
// resolution (10..16).
func NewIIOADC(dir string, bits int) *IIOADC {
	return &IIOADC{dir: dir, bits: bits}
}

// Enable opens the channel's raw value attribute.
func (a *IIOADC) Enable(channel int) (err error) {
	if a.f != nil {
		if cerr := a.f.Close(); cerr != nil {
			err = fmt.Errorf("close previous channel: %w", cerr)
		}
		a.f = nil
	}
	path := filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", channel))
	f, oerr := os.Open(path)
	if oerr != nil {
		return multierr.Append(err, fmt.Errorf("open %s: %w", path, oerr))
	}
	a.f = f
	return err
}

// Sample triggers one conversion by re-reading the attribute.
func (a *IIOADC) Sample() (uint16, error) {
	if a.f == nil {
		return 0, ErrNoSample
	}
	if _, err := a.f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind: %w", err)
	}
	buf := make([]byte, 32)
	n, err := a.f.Read(buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("read: %w", err)
	}
	s := strings.TrimSpace(string(buf[:n]))
	if s == "" {
		return 0, ErrNoSample
	}
	raw, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return scaleTo10Bit(raw, a.bits), nil
}

// Disable closes the attribute.
func (a *IIOADC) Disable() error {
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

func scaleTo10Bit(raw uint64, bits int) uint16 {
	if bits > 10 {
		raw >>= uint(bits - 10)
	}
	if raw > 1023 {
		raw = 1023
	}
	return uint16(raw)
}
