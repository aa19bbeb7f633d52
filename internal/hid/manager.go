// SPDX-License-Identifier: GPL-3.0-only

package hid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
	"github.com/shini4i/hdr-calibrator/internal/input"
)

// ErrNoKeyboard is returned when enumeration finds no usable keyboard.
var ErrNoKeyboard = errors.New("no HID keyboard found")

const (
	// reacquirePerSecond limits how often a lost keyboard is searched for.
	reacquirePerSecond = 1

	// reacquireBurst allows an immediate first attempt.
	reacquireBurst = 1
)

// Manager owns the calibration keyboard: it acquires the device, reads its
// reports in the background and re-acquires it after the device is lost.
//
// Poll is meant to be called once per frame from the frame loop. Rescan and
// Close may be called from any goroutine.
type Manager struct {
	mu       sync.Mutex
	keyboard *Keyboard
	state    KeyState
	lost     bool
	rescan   bool

	step       float64
	limiter    *rate.Limiter
	enumerator func() ([]DeviceInfo, error)
	opener     func(info DeviceInfo) (Device, error)
	readers    sync.WaitGroup
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithEnumerator sets a custom device enumerator for testing.
func WithEnumerator(fn func() ([]DeviceInfo, error)) ManagerOption {
	return func(m *Manager) {
		m.enumerator = fn
	}
}

// WithOpener sets a custom device opener for testing.
func WithOpener(fn func(info DeviceInfo) (Device, error)) ManagerOption {
	return func(m *Manager) {
		m.opener = fn
	}
}

// WithStep sets the change in nits produced per poll while a key is held.
func WithStep(step float64) ManagerOption {
	return func(m *Manager) {
		m.step = step
	}
}

// WithReacquireLimit sets how often acquisition is retried while no keyboard is open.
func WithReacquireLimit(limit rate.Limit, burst int) ManagerOption {
	return func(m *Manager) {
		m.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewManager creates a new keyboard manager.
// By default it enumerates every HID keyboard on the system.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		step:       brightness.DefaultStepNits,
		limiter:    rate.NewLimiter(reacquirePerSecond, reacquireBurst),
		enumerator: defaultEnumerator,
		opener:     OpenDevice,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// defaultEnumerator wraps EnumerateKeyboards to match the expected signature.
func defaultEnumerator() ([]DeviceInfo, error) {
	return EnumerateKeyboards(0, 0, AnyInterface)
}

// Acquire opens the first keyboard found, replacing any open one.
func (m *Manager) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked()
}

func (m *Manager) acquireLocked() error {
	m.releaseLocked()

	devices, err := m.enumerator()
	if err != nil {
		return fmt.Errorf("failed to enumerate keyboards: %w", err)
	}

	for _, info := range devices {
		device, err := m.opener(info)
		if err != nil {
			log.Warn().Err(err).Str("path", info.Path).Msg("Failed to open keyboard")
			continue
		}

		kb := NewKeyboard(device)
		m.keyboard = kb
		m.lost = false
		m.state = KeyState{}

		m.readers.Add(1)
		go m.readLoop(kb)

		log.Info().Str("path", info.Path).Str("product", info.Product).Msg("Keyboard acquired")
		return nil
	}

	return ErrNoKeyboard
}

// releaseLocked closes the current keyboard, if any.
func (m *Manager) releaseLocked() {
	if m.keyboard == nil {
		return
	}
	if err := m.keyboard.Close(); err != nil {
		log.Warn().Err(err).Str("path", m.keyboard.Path()).Msg("Failed to close keyboard")
	}
	m.keyboard = nil
	m.state = KeyState{}
	m.lost = false
}

// readLoop stores the latest key state until kb fails or is closed.
func (m *Manager) readLoop(kb *Keyboard) {
	defer m.readers.Done()

	for {
		state, err := kb.ReadState()
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyboardClosed):
			return
		case errors.Is(err, ErrShortReport), errors.Is(err, ErrRollOver):
			log.Debug().Err(err).Msg("Ignoring keyboard report")
			continue
		default:
			log.Warn().Err(err).Str("path", kb.Path()).Msg("Keyboard lost")
			m.mu.Lock()
			if m.keyboard == kb {
				m.lost = true
				m.state = KeyState{}
			}
			m.mu.Unlock()
			return
		}

		m.mu.Lock()
		if m.keyboard == kb {
			m.state = state
		}
		m.mu.Unlock()
	}
}

// Rescan requests an acquisition attempt on the next Poll, bypassing the rate limit.
// It is typically wired to hot-plug events.
func (m *Manager) Rescan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rescan = true
}

// Poll returns one adjustment event per direction key currently held.
// A lost keyboard is released and re-acquired here.
func (m *Manager) Poll() []input.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lost {
		m.releaseLocked()
	}
	if m.keyboard == nil && (m.rescan || m.limiter.Allow()) {
		m.rescan = false
		if err := m.acquireLocked(); err != nil {
			log.Debug().Err(err).Msg("Keyboard not available")
		}
	}

	var events []input.Event
	if m.state.Increase() {
		events = append(events, input.Increase(m.step))
	}
	if m.state.Decrease() {
		events = append(events, input.Decrease(m.step))
	}
	return events
}

// Connected reports whether a keyboard is currently open and healthy.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyboard != nil && !m.lost
}

// Close closes the keyboard and waits for the reader to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.releaseLocked()
	m.mu.Unlock()

	m.readers.Wait()
	return nil
}
