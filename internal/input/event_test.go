package input_test

import (
	"testing"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
	"github.com/shini4i/hdr-calibrator/internal/input"
	"github.com/stretchr/testify/assert"
)

func TestEvent_Apply(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		event    input.Event
		expected float64
		changed  bool
	}{
		{name: "increase", start: 1000, event: input.Increase(10), expected: 1010, changed: true},
		{name: "decrease", start: 1000, event: input.Decrease(10), expected: 990, changed: true},
		{name: "decrease at floor", start: 80, event: input.Decrease(10), expected: 80, changed: false},
		{name: "increase at ceiling", start: 10000, event: input.Increase(10), expected: 10000, changed: false},
		{name: "set", start: 1000, event: input.Set(600), expected: 600, changed: true},
		{name: "set out of range is clamped", start: 1000, event: input.Set(50000), expected: 10000, changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := brightness.NewTarget(tt.start)
			assert.Equal(t, tt.changed, tt.event.Apply(target))
			assert.Equal(t, tt.expected, target.Nits())
		})
	}
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "adjust +10", input.Increase(10).String())
	assert.Equal(t, "adjust -10", input.Decrease(10).String())
	assert.Equal(t, "set 400", input.Set(400).String())
}
