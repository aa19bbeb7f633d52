// SPDX-License-Identifier: GPL-3.0-only

package udev

import (
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/stretchr/testify/assert"
)

func hidrawEvent(action netlink.KObjAction, devName string) netlink.UEvent {
	return netlink.UEvent{
		Action: action,
		KObj:   "/devices/pci0000:00/usb1/1-2/1-2:1.0/0003:046D:C31C.0004/hidraw/" + devName,
		Env: map[string]string{
			"SUBSYSTEM": "hidraw",
			"DEVNAME":   devName,
		},
	}
}

func TestNewMonitor(t *testing.T) {
	handlerCalled := false
	handler := func(event Event) {
		handlerCalled = true
	}

	monitor := NewMonitor(handler)
	assert.NotNil(t, monitor)
	assert.NotNil(t, monitor.handler)

	// Verify handler is stored correctly
	monitor.handler(Event{Type: EventAdd})
	assert.True(t, handlerCalled)
}

func TestNewMonitor_NilHandler(t *testing.T) {
	monitor := NewMonitor(nil)
	assert.NotNil(t, monitor)
	assert.Nil(t, monitor.handler)
}

func TestEventType(t *testing.T) {
	assert.Equal(t, EventType(0), EventAdd)
	assert.Equal(t, EventType(1), EventRemove)
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	monitor := NewMonitor(nil)
	// Stop should be safe to call even if not started
	err := monitor.Stop()
	assert.NoError(t, err)
}

func TestMonitor_HandleEvent(t *testing.T) {
	tests := []struct {
		name          string
		uevent        netlink.UEvent
		expectHandler bool
		expectedType  EventType
	}{
		{
			name:          "add event triggers handler",
			uevent:        hidrawEvent(netlink.ADD, "hidraw3"),
			expectHandler: true,
			expectedType:  EventAdd,
		},
		{
			name:          "remove event triggers handler",
			uevent:        hidrawEvent(netlink.REMOVE, "hidraw3"),
			expectHandler: true,
			expectedType:  EventRemove,
		},
		{
			name:          "change action is ignored",
			uevent:        hidrawEvent(netlink.CHANGE, "hidraw3"),
			expectHandler: false,
		},
		{
			name:          "move action is ignored",
			uevent:        hidrawEvent(netlink.MOVE, "hidraw3"),
			expectHandler: false,
		},
		{
			name: "missing DEVNAME is ignored",
			uevent: netlink.UEvent{
				Action: netlink.ADD,
				KObj:   "/devices/pci0000:00/usb1/1-2",
				Env:    map[string]string{"SUBSYSTEM": "hidraw"},
			},
			expectHandler: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			handlerCalled := false
			var receivedEvent Event

			handler := func(event Event) {
				mu.Lock()
				defer mu.Unlock()
				handlerCalled = true
				receivedEvent = event
			}

			monitor := NewMonitor(handler)
			monitor.handleEvent(tt.uevent)

			mu.Lock()
			defer mu.Unlock()

			if tt.expectHandler {
				assert.True(t, handlerCalled, "handler should have been called")
				assert.Equal(t, tt.expectedType, receivedEvent.Type)
				assert.Equal(t, "hidraw3", receivedEvent.DevName)
			} else {
				assert.False(t, handlerCalled, "handler should not have been called")
			}
		})
	}
}

func TestMonitor_HandleEvent_NilHandler(t *testing.T) {
	monitor := NewMonitor(nil)

	assert.NotPanics(t, func() {
		monitor.handleEvent(hidrawEvent(netlink.ADD, "hidraw0"))
	})
}

func TestMonitor_CreateMatcher(t *testing.T) {
	monitor := NewMonitor(nil)
	matcher := monitor.createMatcher()

	assert.NotNil(t, matcher)
	assert.Len(t, matcher.Rules, 2) // add and remove rules

	err := matcher.Compile()
	assert.NoError(t, err)

	tests := []struct {
		name     string
		uevent   netlink.UEvent
		expected bool
	}{
		{
			name:     "matches hidraw add",
			uevent:   hidrawEvent(netlink.ADD, "hidraw0"),
			expected: true,
		},
		{
			name:     "matches hidraw remove",
			uevent:   hidrawEvent(netlink.REMOVE, "hidraw12"),
			expected: true,
		},
		{
			name:     "does not match change action",
			uevent:   hidrawEvent(netlink.CHANGE, "hidraw0"),
			expected: false,
		},
		{
			name: "does not match other subsystem",
			uevent: netlink.UEvent{
				Action: netlink.ADD,
				KObj:   "/devices/virtual/input/input7/event5",
				Env: map[string]string{
					"SUBSYSTEM": "input",
					"DEVNAME":   "input/event5",
				},
			},
			expected: false,
		},
		{
			name: "does not match non-hidraw node name",
			uevent: netlink.UEvent{
				Action: netlink.ADD,
				KObj:   "/devices/virtual/misc/uhid",
				Env: map[string]string{
					"SUBSYSTEM": "hidraw",
					"DEVNAME":   "uhid",
				},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := matcher.Evaluate(tt.uevent)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMonitor_SetRecoveryHandler(t *testing.T) {
	monitor := NewMonitor(nil)
	assert.Nil(t, monitor.recoveryHandler)

	handlerCalled := false
	handler := func() {
		handlerCalled = true
	}

	monitor.SetRecoveryHandler(handler)
	assert.NotNil(t, monitor.recoveryHandler)

	monitor.recoveryHandler()
	assert.True(t, handlerCalled)
}

func TestIsBufferOverflowError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error returns false",
			err:      nil,
			expected: false,
		},
		{
			name:     "ENOBUFS syscall error returns true",
			err:      syscall.ENOBUFS,
			expected: true,
		},
		{
			name:     "error message with 'no buffer space available' returns true",
			err:      errors.New("unable to check available uevent, err: no buffer space available"),
			expected: true,
		},
		{
			name:     "generic error returns false",
			err:      errors.New("some other error"),
			expected: false,
		},
		{
			name:     "different syscall error returns false",
			err:      syscall.EINVAL,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isBufferOverflowError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMonitor_RemoveEventDebouncing(t *testing.T) {
	var mu sync.Mutex
	callCount := 0

	handler := func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	}

	monitor := NewMonitor(handler)

	monitor.handleEvent(hidrawEvent(netlink.REMOVE, "hidraw3"))
	monitor.handleEvent(hidrawEvent(netlink.REMOVE, "hidraw3"))
	monitor.handleEvent(hidrawEvent(netlink.REMOVE, "hidraw4"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, callCount, "repeated remove for the same node should be ignored")
}

func TestMonitor_ShouldDebounceRemove_Cleanup(t *testing.T) {
	monitor := NewMonitor(nil)

	monitor.mu.Lock()
	monitor.lastRemoveTime["hidraw9"] = time.Now().Add(-2 * time.Minute)
	monitor.mu.Unlock()

	assert.False(t, monitor.shouldDebounceRemove("hidraw1"))

	monitor.mu.Lock()
	_, oldExists := monitor.lastRemoveTime["hidraw9"]
	_, newExists := monitor.lastRemoveTime["hidraw1"]
	monitor.mu.Unlock()

	assert.False(t, oldExists, "old entry should be cleaned up")
	assert.True(t, newExists, "new entry should exist")
}

func TestMonitor_AddEventsNotDebounced(t *testing.T) {
	callCount := 0
	monitor := NewMonitor(func(event Event) { callCount++ })

	for i := 0; i < 3; i++ {
		monitor.handleEvent(hidrawEvent(netlink.ADD, "hidraw3"))
	}
	assert.Equal(t, 3, callCount, "ADD events should not be debounced")
}
