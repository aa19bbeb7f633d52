// SPDX-License-Identifier: GPL-3.0-only

package brightness

// Target holds the current target peak brightness in nits.
// Every mutation clamps the value into [MinTargetNits, MaxTargetNits].
//
// Target is not safe for concurrent use; it belongs to the frame loop.
type Target struct {
	nits float64
}

// NewTarget creates a Target starting at the clamped initial value.
func NewTarget(initial float64) *Target {
	return &Target{nits: ClampNits(initial)}
}

// Nits returns the current target.
func (t *Target) Nits() float64 {
	return t.nits
}

// Set replaces the target and reports whether the value changed.
func (t *Target) Set(nits float64) bool {
	nits = ClampNits(nits)
	if nits == t.nits {
		return false
	}
	t.nits = nits
	return true
}

// Adjust moves the target by delta nits and reports whether the value changed.
func (t *Target) Adjust(delta float64) bool {
	return t.Set(t.nits + delta)
}
