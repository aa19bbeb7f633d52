// Package udev provides hot-plug detection for HID input devices via netlink/udev events.
package udev

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog/log"
)

const (
	// netlinkBufferSize is the receive buffer size for the netlink socket.
	// Plugging a composite USB keyboard emits a burst of messages; 2MB absorbs it.
	netlinkBufferSize = 2 * 1024 * 1024 // 2 MB

	// removeDebounceWindow collapses repeated remove events for one node.
	removeDebounceWindow = time.Second

	// removeHistoryTTL bounds how long remove timestamps are kept.
	removeHistoryTTL = time.Minute
)

const (
	// Subsystem is the kernel subsystem of raw HID device nodes.
	Subsystem = "hidraw"

	// DevNamePattern matches hidraw device node names.
	DevNamePattern = `^hidraw[0-9]+$`
)

// EventType represents the type of device event.
type EventType int

const (
	// EventAdd indicates a device was connected.
	EventAdd EventType = iota
	// EventRemove indicates a device was disconnected.
	EventRemove
)

// Event represents a device hot-plug event.
type Event struct {
	Type    EventType
	DevName string
}

// EventHandler is called when a device event occurs.
type EventHandler func(event Event)

// RecoveryHandler is called when the monitor recovers from an error condition
// (e.g., netlink buffer overflow) and needs to trigger a refresh.
type RecoveryHandler func()

// Monitor watches for hidraw connect/disconnect events.
type Monitor struct {
	conn            *netlink.UEventConn
	handler         EventHandler
	recoveryHandler RecoveryHandler
	quit            chan struct{}
	stopped         bool
	lastRemoveTime  map[string]time.Time
	mu              sync.Mutex
}

// NewMonitor creates a new udev monitor with the given event handler.
func NewMonitor(handler EventHandler) *Monitor {
	return &Monitor{
		handler:        handler,
		lastRemoveTime: make(map[string]time.Time),
	}
}

// SetRecoveryHandler sets the handler called when the monitor recovers from errors.
// This should trigger a device rescan to recover from potentially missed events.
func (m *Monitor) SetRecoveryHandler(handler RecoveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryHandler = handler
}

// Start begins monitoring for device events.
// This method is non-blocking; events are processed in a background goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return fmt.Errorf("monitor already started")
	}

	m.conn = &netlink.UEventConn{}
	if err := m.conn.Connect(netlink.UdevEvent); err != nil {
		m.conn = nil
		return fmt.Errorf("failed to connect to netlink: %w", err)
	}

	if err := setSocketBufferSize(m.conn.Fd, netlinkBufferSize); err != nil {
		log.Warn().Err(err).Int("size", netlinkBufferSize).Msg("Failed to set netlink buffer size")
		// Continue anyway - the default buffer may still work for most cases
	} else {
		log.Debug().Int("size", netlinkBufferSize).Msg("Netlink socket buffer size configured")
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := m.createMatcher()

	m.quit = m.conn.Monitor(queue, errs, matcher)
	m.stopped = false

	go m.processEvents(queue, errs)

	log.Info().Msg("udev monitor started")
	return nil
}

// Stop stops the monitor and releases resources.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.stopped {
		return nil
	}

	m.stopped = true

	// Signal the monitor goroutine to stop
	select {
	case m.quit <- struct{}{}:
	default:
	}

	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close netlink connection: %w", err)
	}

	m.conn = nil
	log.Info().Msg("udev monitor stopped")
	return nil
}

// createMatcher creates a matcher for hidraw node add/remove events.
func (m *Monitor) createMatcher() *netlink.RuleDefinitions {
	rules := &netlink.RuleDefinitions{}

	addAction := "add"
	removeAction := "remove"
	env := map[string]string{
		"SUBSYSTEM": "^" + Subsystem + "$",
		"DEVNAME":   DevNamePattern,
	}

	rules.AddRule(netlink.RuleDefinition{
		Action: &addAction,
		Env:    env,
	})

	rules.AddRule(netlink.RuleDefinition{
		Action: &removeAction,
		Env:    env,
	})

	return rules
}

// processEvents handles incoming udev events.
func (m *Monitor) processEvents(queue chan netlink.UEvent, errs chan error) {
	for {
		select {
		case event, ok := <-queue:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			m.mu.Lock()
			stopped := m.stopped
			recoveryHandler := m.recoveryHandler
			m.mu.Unlock()
			if stopped {
				return
			}

			// Events may have been dropped on ENOBUFS; let the owner rescan.
			if isBufferOverflowError(err) {
				log.Warn().Msg("Netlink buffer overflow detected, triggering recovery rescan")
				if recoveryHandler != nil {
					go recoveryHandler()
				}
				continue
			}

			log.Error().Err(err).Msg("udev monitor error")
		}
	}
}

// setSocketBufferSize sets the receive buffer size for a socket.
// It first tries SO_RCVBUFFORCE (requires CAP_NET_ADMIN), then falls back to SO_RCVBUF.
func setSocketBufferSize(fd int, size int) error {
	err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUFFORCE, size)
	if err == nil {
		return nil
	}

	// Limited by net.core.rmem_max
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
}

// isBufferOverflowError checks if the error is a netlink buffer overflow (ENOBUFS).
func isBufferOverflowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOBUFS) {
		return true
	}
	// The udev library does not always wrap the errno.
	return strings.Contains(strings.ToLower(err.Error()), "no buffer space available")
}

// shouldDebounceRemove reports whether a remove for devName was already
// handled inside the debounce window, and records this one otherwise.
func (m *Monitor) shouldDebounceRemove(devName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for name, at := range m.lastRemoveTime {
		if now.Sub(at) > removeHistoryTTL {
			delete(m.lastRemoveTime, name)
		}
	}

	if at, ok := m.lastRemoveTime[devName]; ok && now.Sub(at) < removeDebounceWindow {
		return true
	}
	m.lastRemoveTime[devName] = now
	return false
}

// handleEvent processes a single udev event.
func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	devName := uevent.Env["DEVNAME"]
	if devName == "" {
		return
	}

	log.Debug().
		Str("action", string(uevent.Action)).
		Str("devpath", uevent.KObj).
		Str("devname", devName).
		Msg("hidraw device event")

	var eventType EventType
	switch uevent.Action {
	case netlink.ADD:
		eventType = EventAdd
		log.Info().Str("devname", devName).Msg("HID device connected")
	case netlink.REMOVE:
		if m.shouldDebounceRemove(devName) {
			return
		}
		eventType = EventRemove
		log.Info().Str("devname", devName).Msg("HID device disconnected")
	default:
		return
	}

	if m.handler != nil {
		m.handler(Event{Type: eventType, DevName: devName})
	}
}
