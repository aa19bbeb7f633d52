// Package hdr negotiates an HDR10 output mode with a display pipeline and
// keeps the pipeline's static mastering metadata in step with the
// calibration target.
package hdr

//go:generate mockgen -source=pipeline.go -destination=mocks/pipeline_mock.go -package=mocks

import "fmt"

// ColorSpace identifies an output color space, numbered as in DXGI_COLOR_SPACE_TYPE.
type ColorSpace uint32

const (
	// ColorSpaceRGBFullG22NoneP709 is full range sRGB/BT.709, the SDR default.
	ColorSpaceRGBFullG22NoneP709 ColorSpace = 0

	// ColorSpaceRGBFullG10NoneP709 is full range linear scRGB.
	ColorSpaceRGBFullG10NoneP709 ColorSpace = 1

	// ColorSpaceRGBFullG2084NoneP2020 is full range PQ in a BT.2020 container (HDR10).
	ColorSpaceRGBFullG2084NoneP2020 ColorSpace = 12
)

// String returns the DXGI-style name of the color space.
func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceRGBFullG22NoneP709:
		return "RGB_FULL_G22_NONE_P709"
	case ColorSpaceRGBFullG10NoneP709:
		return "RGB_FULL_G10_NONE_P709"
	case ColorSpaceRGBFullG2084NoneP2020:
		return "RGB_FULL_G2084_NONE_P2020"
	default:
		return fmt.Sprintf("ColorSpace(%d)", uint32(c))
	}
}

// ParseColorSpace parses a name produced by ColorSpace.String.
func ParseColorSpace(name string) (ColorSpace, error) {
	for _, c := range []ColorSpace{
		ColorSpaceRGBFullG22NoneP709,
		ColorSpaceRGBFullG10NoneP709,
		ColorSpaceRGBFullG2084NoneP2020,
	} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown color space %q", name)
}

// SupportFlags is the bit set returned by a capability query.
type SupportFlags uint32

const (
	// SupportPresent means the pipeline can present in the queried color space.
	SupportPresent SupportFlags = 1 << iota

	// SupportOverlayPresent means an overlay plane can present in the color space.
	SupportOverlayPresent
)

// Has reports whether all bits of flag are set.
func (f SupportFlags) Has(flag SupportFlags) bool {
	return f&flag == flag
}

// MetadataType identifies the kind of metadata submitted to the pipeline.
type MetadataType uint32

const (
	// MetadataNone clears any previously submitted metadata.
	MetadataNone MetadataType = iota

	// MetadataHDR10 is HDR10 static mastering metadata.
	MetadataHDR10

	// MetadataHDR10Plus is HDR10+ dynamic metadata. It is never submitted here.
	MetadataHDR10Plus
)

// Pipeline is the display pipeline the controller negotiates with.
// This interface allows for mocking in tests.
type Pipeline interface {
	// QueryColorSpaceSupport reports which presentation modes support colorSpace.
	QueryColorSpaceSupport(colorSpace ColorSpace) (SupportFlags, error)

	// SetColorSpace switches the output to colorSpace.
	SetColorSpace(colorSpace ColorSpace) error

	// SetMasteringMetadata submits metadata of the given type.
	SetMasteringMetadata(kind MetadataType, metadata MasteringMetadata) error
}
