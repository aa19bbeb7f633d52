// SPDX-License-Identifier: GPL-3.0-only

package hdr

import (
	"math"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
)

const (
	// ChromaticityScale is the number of metadata units per CIE 1931 unit.
	ChromaticityScale = 50000

	// LuminanceScale is the number of metadata units per nit for mastering luminance.
	LuminanceScale = 10000

	// MinMasteringLuminance is the mastering display black level (0.0001 nits).
	MinMasteringLuminance uint32 = 1

	// FrameAverageRatio sets MaxFrameAverageLightLevel relative to
	// MaxContentLightLevel. This is a fixed policy of the calibrator, HDR10
	// itself does not derive one from the other.
	FrameAverageRatio = 0.5
)

// Primaries holds chromaticity coordinates in 1/ChromaticityScale units.
type Primaries struct {
	Red        [2]uint16
	Green      [2]uint16
	Blue       [2]uint16
	WhitePoint [2]uint16
}

// DCIP3Primaries are the P3 primaries with a D65 white point.
var DCIP3Primaries = Primaries{
	Red:        [2]uint16{34000, 16000},
	Green:      [2]uint16{13250, 34500},
	Blue:       [2]uint16{7500, 3000},
	WhitePoint: [2]uint16{15635, 16450},
}

// MasteringMetadata mirrors DXGI_HDR_METADATA_HDR10.
type MasteringMetadata struct {
	RedPrimary                [2]uint16
	GreenPrimary              [2]uint16
	BluePrimary               [2]uint16
	WhitePoint                [2]uint16
	MaxMasteringLuminance     uint32
	MinMasteringLuminance     uint32
	MaxContentLightLevel      uint16
	MaxFrameAverageLightLevel uint16
}

// NewMasteringMetadata derives the full HDR10 metadata block for a target peak brightness.
// The target is clamped into the accepted target range first.
func NewMasteringMetadata(targetNits float64) MasteringMetadata {
	nits := brightness.ClampNits(targetNits)

	return MasteringMetadata{
		RedPrimary:                DCIP3Primaries.Red,
		GreenPrimary:              DCIP3Primaries.Green,
		BluePrimary:               DCIP3Primaries.Blue,
		WhitePoint:                DCIP3Primaries.WhitePoint,
		MaxMasteringLuminance:     uint32(math.Round(nits * LuminanceScale)),
		MinMasteringLuminance:     MinMasteringLuminance,
		MaxContentLightLevel:      uint16(math.Round(nits)),
		MaxFrameAverageLightLevel: uint16(math.Round(nits * FrameAverageRatio)),
	}
}

// MaxLuminanceNits returns MaxMasteringLuminance in nits.
func (m MasteringMetadata) MaxLuminanceNits() float64 {
	return float64(m.MaxMasteringLuminance) / LuminanceScale
}

// MinLuminanceNits returns MinMasteringLuminance in nits.
func (m MasteringMetadata) MinLuminanceNits() float64 {
	return float64(m.MinMasteringLuminance) / LuminanceScale
}

// Chromaticity converts a quantized coordinate pair to CIE 1931 x, y.
func Chromaticity(xy [2]uint16) (x, y float64) {
	return float64(xy[0]) / ChromaticityScale, float64(xy[1]) / ChromaticityScale
}
