// Package input defines the events input collaborators feed into the frame loop.
package input

import (
	"fmt"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
)

// Kind distinguishes relative from absolute target changes.
type Kind int

const (
	// KindAdjust moves the target by Nits.
	KindAdjust Kind = iota
	// KindSet replaces the target with Nits.
	KindSet
)

// Event is a single request to change the target peak brightness.
type Event struct {
	Kind Kind
	Nits float64
}

// Increase returns an event raising the target by step nits.
func Increase(step float64) Event {
	return Event{Kind: KindAdjust, Nits: step}
}

// Decrease returns an event lowering the target by step nits.
func Decrease(step float64) Event {
	return Event{Kind: KindAdjust, Nits: -step}
}

// Set returns an event replacing the target with nits.
func Set(nits float64) Event {
	return Event{Kind: KindSet, Nits: nits}
}

// Apply applies the event to target and reports whether the target changed.
func (e Event) Apply(target *brightness.Target) bool {
	if e.Kind == KindSet {
		return target.Set(e.Nits)
	}
	return target.Adjust(e.Nits)
}

// String formats the event for logs.
func (e Event) String() string {
	if e.Kind == KindSet {
		return fmt.Sprintf("set %g", e.Nits)
	}
	return fmt.Sprintf("adjust %+g", e.Nits)
}
