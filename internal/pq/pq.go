// SPDX-License-Identifier: GPL-3.0-only

// Package pq implements the SMPTE ST.2084 perceptual quantizer used by HDR10
// output, converting between absolute luminance in nits and PQ code values.
//
// All functions are pure and safe for concurrent use. Out-of-domain input
// saturates to a defined value instead of producing an error.
package pq

import "math"

const (
	// M1 is the ST.2084 m1 exponent (2610 / 16384).
	M1 = 0.1593017578125

	// M2 is the ST.2084 m2 exponent (2523 / 32).
	M2 = 78.84375

	// C1 is the ST.2084 c1 constant (3424 / 4096).
	C1 = 0.8359375

	// C2 is the ST.2084 c2 constant (2413 / 128).
	C2 = 18.8515625

	// C3 is the ST.2084 c3 constant (2392 / 128).
	C3 = 18.6875

	// MaxNits is the reference luminance that maps to code value 1.0.
	MaxNits = 10000.0
)

// EncodeToPQ converts a linear luminance in nits to a PQ code value in [0, 1].
// Non-positive input returns 0 and input above MaxNits is clamped.
func EncodeToPQ(nits float64) float64 {
	// !(nits > 0) also catches NaN.
	if !(nits > 0) {
		return 0
	}
	if nits > MaxNits {
		nits = MaxNits
	}

	y := math.Pow(nits/MaxNits, M1)
	return math.Pow((C1+C2*y)/(1+C3*y), M2)
}

// DecodeFromPQ converts a PQ code value back to linear luminance in nits.
// Non-positive codes return 0, as do codes past the point where the
// inverse formula's denominator stops being positive.
func DecodeFromPQ(code float64) float64 {
	if !(code > 0) {
		return 0
	}

	p := math.Pow(code, 1/M2)
	numerator := math.Max(p-C1, 0)
	denominator := C2 - C3*p
	if denominator <= 0 {
		return 0
	}

	return math.Pow(numerator/denominator, 1/M1) * MaxNits
}
