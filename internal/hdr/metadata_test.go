package hdr_test

import (
	"testing"

	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMasteringMetadata(t *testing.T) {
	tests := []struct {
		name    string
		nits    float64
		maxLum  uint32
		maxCLL  uint16
		maxFALL uint16
	}{
		{
			name:    "default target of 1000 nits",
			nits:    1000,
			maxLum:  10_000_000,
			maxCLL:  1000,
			maxFALL: 500,
		},
		{
			name:    "minimum target",
			nits:    80,
			maxLum:  800_000,
			maxCLL:  80,
			maxFALL: 40,
		},
		{
			name:    "maximum target",
			nits:    10000,
			maxLum:  100_000_000,
			maxCLL:  10000,
			maxFALL: 5000,
		},
		{
			name:    "target below range is clamped",
			nits:    5,
			maxLum:  800_000,
			maxCLL:  80,
			maxFALL: 40,
		},
		{
			name:    "target above range is clamped",
			nits:    20000,
			maxLum:  100_000_000,
			maxCLL:  10000,
			maxFALL: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := hdr.NewMasteringMetadata(tt.nits)
			assert.Equal(t, tt.maxLum, m.MaxMasteringLuminance)
			assert.Equal(t, uint32(1), m.MinMasteringLuminance)
			assert.Equal(t, tt.maxCLL, m.MaxContentLightLevel)
			assert.Equal(t, tt.maxFALL, m.MaxFrameAverageLightLevel)
		})
	}
}

func TestNewMasteringMetadata_Primaries(t *testing.T) {
	m := hdr.NewMasteringMetadata(1000)

	assert.Equal(t, [2]uint16{34000, 16000}, m.RedPrimary)
	assert.Equal(t, [2]uint16{13250, 34500}, m.GreenPrimary)
	assert.Equal(t, [2]uint16{7500, 3000}, m.BluePrimary)
	assert.Equal(t, [2]uint16{15635, 16450}, m.WhitePoint)
}

func TestMasteringMetadata_Luminance(t *testing.T) {
	m := hdr.NewMasteringMetadata(1000)
	assert.Equal(t, 1000.0, m.MaxLuminanceNits())
	assert.InDelta(t, 0.0001, m.MinLuminanceNits(), 1e-12)
}

func TestChromaticity(t *testing.T) {
	x, y := hdr.Chromaticity(hdr.DCIP3Primaries.WhitePoint)
	assert.InDelta(t, 0.3127, x, 1e-9)
	assert.InDelta(t, 0.329, y, 1e-9)

	x, y = hdr.Chromaticity(hdr.DCIP3Primaries.Red)
	assert.InDelta(t, 0.68, x, 1e-9)
	assert.InDelta(t, 0.32, y, 1e-9)
}

func TestColorSpace_StringAndParse(t *testing.T) {
	for _, cs := range []hdr.ColorSpace{
		hdr.ColorSpaceRGBFullG22NoneP709,
		hdr.ColorSpaceRGBFullG10NoneP709,
		hdr.ColorSpaceRGBFullG2084NoneP2020,
	} {
		parsed, err := hdr.ParseColorSpace(cs.String())
		require.NoError(t, err)
		assert.Equal(t, cs, parsed)
	}

	_, err := hdr.ParseColorSpace("RGB_STUDIO_G24_NONE_P709")
	assert.Error(t, err)
	assert.Equal(t, "ColorSpace(99)", hdr.ColorSpace(99).String())
}

func TestSupportFlags_Has(t *testing.T) {
	flags := hdr.SupportPresent | hdr.SupportOverlayPresent
	assert.True(t, flags.Has(hdr.SupportPresent))
	assert.True(t, flags.Has(hdr.SupportOverlayPresent))
	assert.False(t, hdr.SupportOverlayPresent.Has(hdr.SupportPresent))
	assert.False(t, hdr.SupportFlags(0).Has(hdr.SupportPresent))
}
