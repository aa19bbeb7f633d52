// SPDX-License-Identifier: GPL-3.0-only

// Package brightness owns the calibration target peak brightness and the
// rules for changing it.
package brightness

import "math"

const (
	// MinTargetNits is the lowest target peak brightness accepted.
	MinTargetNits = 80.0

	// MaxTargetNits is the highest target peak brightness accepted (the PQ ceiling).
	MaxTargetNits = 10000.0

	// TargetRange is the difference between maximum and minimum target.
	TargetRange = MaxTargetNits - MinTargetNits

	// DefaultTargetNits is the target used when nothing else is configured.
	DefaultTargetNits = 1000.0

	// DefaultStepNits is the change applied per increase/decrease event.
	DefaultStepNits = 10.0
)

// ClampNits ensures the target value is within [MinTargetNits, MaxTargetNits].
// NaN is treated as the minimum.
func ClampNits(nits float64) float64 {
	if math.IsNaN(nits) || nits < MinTargetNits {
		return MinTargetNits
	}
	if nits > MaxTargetNits {
		return MaxTargetNits
	}
	return nits
}

// NitsToPercent converts a target in nits to a percentage (0-100) of the target range.
// Values outside the valid range are clamped before conversion.
func NitsToPercent(nits float64) uint8 {
	nits = ClampNits(nits)
	percent := (nits - MinTargetNits) / TargetRange * 100
	return uint8(math.Round(percent))
}

// PercentToNits converts a percentage (0-100) of the target range to nits.
// Percentages above 100 are treated as 100%.
func PercentToNits(percent uint8) float64 {
	if percent > 100 {
		percent = 100
	}
	return ClampNits(MinTargetNits + float64(percent)*TargetRange/100)
}
