package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/pipeline"
	"github.com/shini4i/hdr-calibrator/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulated_DefaultIsSDROnly(t *testing.T) {
	p := pipeline.NewSimulated()

	flags, err := p.QueryColorSpaceSupport(hdr.ColorSpaceRGBFullG2084NoneP2020)
	require.NoError(t, err)
	assert.False(t, flags.Has(hdr.SupportPresent))

	err = p.SetColorSpace(hdr.ColorSpaceRGBFullG2084NoneP2020)
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedColorSpace)
	assert.Equal(t, hdr.ColorSpaceRGBFullG22NoneP709, p.ColorSpace())
}

func TestSimulated_RejectSwitch(t *testing.T) {
	p := pipeline.NewSimulated(
		pipeline.WithSupport(hdr.ColorSpaceRGBFullG2084NoneP2020, hdr.SupportPresent),
		pipeline.WithRejectSwitch(true),
	)

	err := p.SetColorSpace(hdr.ColorSpaceRGBFullG2084NoneP2020)
	assert.ErrorIs(t, err, pipeline.ErrSwitchRejected)
}

func TestSimulated_MetadataRequiresHDR10(t *testing.T) {
	p := pipeline.NewSimulated(pipeline.WithSupport(hdr.ColorSpaceRGBFullG2084NoneP2020, hdr.SupportPresent))

	err := p.SetMasteringMetadata(hdr.MetadataHDR10, hdr.NewMasteringMetadata(1000))
	require.Error(t, err)

	require.NoError(t, p.SetColorSpace(hdr.ColorSpaceRGBFullG2084NoneP2020))
	require.NoError(t, p.SetMasteringMetadata(hdr.MetadataHDR10, hdr.NewMasteringMetadata(1000)))

	metadata, count := p.Metadata()
	assert.Equal(t, 1, count)
	assert.Equal(t, uint16(1000), metadata.MaxContentLightLevel)
}

func TestSimulated_WithController(t *testing.T) {
	p := pipeline.NewSimulated(pipeline.WithSupport(hdr.ColorSpaceRGBFullG2084NoneP2020, hdr.SupportPresent))
	controller := hdr.NewController(p)

	require.True(t, controller.Negotiate(1000))
	require.NoError(t, controller.UpdateMetadata(1500))

	metadata, count := p.Metadata()
	assert.Equal(t, 2, count)
	assert.Equal(t, uint32(15_000_000), metadata.MaxMasteringLuminance)
	assert.Equal(t, uint16(750), metadata.MaxFrameAverageLightLevel)
}

func TestSimulated_PresentWritesSnapshotAfterMetadataChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.tiff")
	p := pipeline.NewSimulated(
		pipeline.WithSupport(hdr.ColorSpaceRGBFullG2084NoneP2020, hdr.SupportPresent),
		pipeline.WithSnapshot(path),
	)
	fb, err := render.NewFramebuffer(16, 16)
	require.NoError(t, err)

	// No metadata yet: nothing written.
	require.NoError(t, p.Present(fb))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, p.SetColorSpace(hdr.ColorSpaceRGBFullG2084NoneP2020))
	require.NoError(t, p.SetMasteringMetadata(hdr.MetadataHDR10, hdr.NewMasteringMetadata(1000)))
	require.NoError(t, p.Present(fb))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, fb.Bounds(), img.Bounds())
	assert.Equal(t, uint64(2), p.Frames())
}
