package hid

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// BootReportSize is the size of a boot protocol keyboard input report.
	BootReportSize = 8

	// maxReportSize leaves room for a leading report ID.
	maxReportSize = 64

	// bootKeyOffset is where the six key usage slots start in a boot report.
	bootKeyOffset = 2

	// usageErrorRollOver fills every slot when too many keys are held.
	usageErrorRollOver = 0x01
)

// Keyboard usage IDs (HID usage tables, page 0x07) that adjust the target.
const (
	KeyMinus       byte = 0x2D
	KeyEqual       byte = 0x2E
	KeyKeypadMinus byte = 0x56
	KeyKeypadPlus  byte = 0x57
)

// ErrKeyboardClosed is returned when an operation is attempted on a closed keyboard.
var ErrKeyboardClosed = errors.New("keyboard is closed")

// ErrShortReport is returned for reports smaller than a boot keyboard report.
var ErrShortReport = errors.New("input report too short")

// ErrRollOver is returned when the keyboard reports more keys than it can track.
var ErrRollOver = errors.New("keyboard roll-over error")

// KeyState is the set of key usages held down in a single report.
type KeyState struct {
	keys [6]byte
}

// Held reports whether usage is held.
func (s KeyState) Held(usage byte) bool {
	if usage == 0 {
		return false
	}
	for _, k := range s.keys {
		if k == usage {
			return true
		}
	}
	return false
}

// Increase reports whether a key that raises the target is held.
func (s KeyState) Increase() bool {
	return s.Held(KeyEqual) || s.Held(KeyKeypadPlus)
}

// Decrease reports whether a key that lowers the target is held.
func (s KeyState) Decrease() bool {
	return s.Held(KeyMinus) || s.Held(KeyKeypadMinus)
}

// ParseBootReport decodes a boot protocol keyboard report.
// A 9-byte report is assumed to carry a leading report ID.
func ParseBootReport(report []byte) (KeyState, error) {
	if len(report) == BootReportSize+1 {
		report = report[1:]
	}
	if len(report) < BootReportSize {
		return KeyState{}, fmt.Errorf("%w: %d bytes", ErrShortReport, len(report))
	}

	var state KeyState
	copy(state.keys[:], report[bootKeyOffset:BootReportSize])
	if state.keys[0] == usageErrorRollOver {
		return KeyState{}, ErrRollOver
	}
	return state, nil
}

// Keyboard reads key states from a HID device.
// Close may be called concurrently with ReadState.
type Keyboard struct {
	device Device
	mu     sync.Mutex
	closed bool
}

// NewKeyboard creates a new Keyboard wrapping the given HID device.
func NewKeyboard(device Device) *Keyboard {
	return &Keyboard{device: device}
}

// ReadState blocks until the next input report and decodes it.
func (k *Keyboard) ReadState() (KeyState, error) {
	if k.isClosed() {
		return KeyState{}, ErrKeyboardClosed
	}

	data := make([]byte, maxReportSize)
	n, err := k.device.Read(data)
	if err != nil {
		if k.isClosed() {
			return KeyState{}, ErrKeyboardClosed
		}
		return KeyState{}, fmt.Errorf("failed to read input report: %w", err)
	}

	return ParseBootReport(data[:n])
}

// Path returns the device path of the keyboard.
// This method does not require locking as device info is immutable.
func (k *Keyboard) Path() string {
	return k.device.Info().Path
}

// ProductName returns the product name of the keyboard.
func (k *Keyboard) ProductName() string {
	return k.device.Info().Product
}

// Close closes the underlying HID device.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil // Already closed
	}

	k.closed = true
	return k.device.Close()
}

func (k *Keyboard) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}
