// SPDX-License-Identifier: GPL-3.0-only

package pq

const (
	// DefaultSDRWhiteNits is the SDR white level assumed by SDRToNits and
	// NitsToSDR when no positive level is given.
	DefaultSDRWhiteNits = 80.0

	// ReferenceWhiteNits is the SDR reference white inside an HDR signal.
	ReferenceWhiteNits = 203.0
)

// RGBNits is a linear RGB triple with each channel in nits.
// Channels are independent; no gamut conversion is ever applied.
type RGBNits struct {
	R, G, B float64
}

// Gray returns a triple with all channels set to nits.
func Gray(nits float64) RGBNits {
	return RGBNits{R: nits, G: nits, B: nits}
}

// White100 returns 100 nit white.
func White100() RGBNits { return Gray(100) }

// White203 returns SDR reference white (203 nits).
func White203() RGBNits { return Gray(ReferenceWhiteNits) }

// White1000 returns 1000 nit white.
func White1000() RGBNits { return Gray(1000) }

// Black returns zero luminance on all channels.
func Black() RGBNits { return RGBNits{} }

// PQ returns the PQ code value of each channel.
func (c RGBNits) PQ() (r, g, b float64) {
	return EncodeRGB(c)
}

// EncodeRGB applies EncodeToPQ to each channel independently.
func EncodeRGB(c RGBNits) (r, g, b float64) {
	return EncodeToPQ(c.R), EncodeToPQ(c.G), EncodeToPQ(c.B)
}

// DecodeRGB applies DecodeFromPQ to each code value independently.
func DecodeRGB(r, g, b float64) RGBNits {
	return RGBNits{R: DecodeFromPQ(r), G: DecodeFromPQ(g), B: DecodeFromPQ(b)}
}

// SDRToNits scales a relative SDR value (1.0 = SDR white) to nits.
// This is a linear conversion and has nothing to do with PQ.
// A non-positive sdrWhiteNits selects DefaultSDRWhiteNits.
func SDRToNits(sdr, sdrWhiteNits float64) float64 {
	return sdr * sdrWhite(sdrWhiteNits)
}

// NitsToSDR is the inverse of SDRToNits.
func NitsToSDR(nits, sdrWhiteNits float64) float64 {
	return nits / sdrWhite(sdrWhiteNits)
}

func sdrWhite(nits float64) float64 {
	if !(nits > 0) {
		return DefaultSDRWhiteNits
	}
	return nits
}
