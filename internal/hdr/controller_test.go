package hdr_test

import (
	"errors"
	"testing"

	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/hdr/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestController_Negotiate(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(p *mocks.MockPipeline)
		expectActive  bool
		expectedState hdr.State
		expectSynced  bool
	}{
		{
			name: "supported pipeline switches and submits metadata once",
			setupMock: func(p *mocks.MockPipeline) {
				gomock.InOrder(
					p.EXPECT().QueryColorSpaceSupport(hdr.ColorSpaceRGBFullG2084NoneP2020).Return(hdr.SupportPresent, nil),
					p.EXPECT().SetColorSpace(hdr.ColorSpaceRGBFullG2084NoneP2020).Return(nil),
					p.EXPECT().SetMasteringMetadata(hdr.MetadataHDR10, hdr.NewMasteringMetadata(1000)).Return(nil).Times(1),
				)
			},
			expectActive:  true,
			expectedState: hdr.StateActive,
			expectSynced:  true,
		},
		{
			name: "missing present flag is unsupported",
			setupMock: func(p *mocks.MockPipeline) {
				p.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportOverlayPresent, nil)
			},
			expectActive:  false,
			expectedState: hdr.StateUnsupported,
		},
		{
			name: "query error is unsupported",
			setupMock: func(p *mocks.MockPipeline) {
				p.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportFlags(0), errors.New("no swap chain"))
			},
			expectActive:  false,
			expectedState: hdr.StateUnsupported,
		},
		{
			name: "switch failure is unsupported",
			setupMock: func(p *mocks.MockPipeline) {
				p.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportPresent|hdr.SupportOverlayPresent, nil)
				p.EXPECT().SetColorSpace(gomock.Any()).Return(errors.New("switch rejected"))
			},
			expectActive:  false,
			expectedState: hdr.StateUnsupported,
		},
		{
			name: "failed initial submission stays active but out of sync",
			setupMock: func(p *mocks.MockPipeline) {
				p.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportPresent, nil)
				p.EXPECT().SetColorSpace(gomock.Any()).Return(nil)
				p.EXPECT().SetMasteringMetadata(gomock.Any(), gomock.Any()).Return(errors.New("busy"))
			},
			expectActive:  true,
			expectedState: hdr.StateActive,
			expectSynced:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			pipeline := mocks.NewMockPipeline(ctrl)
			tt.setupMock(pipeline)

			controller := hdr.NewController(pipeline)
			assert.Equal(t, hdr.StateUninitialized, controller.State())

			active := controller.Negotiate(1000)
			assert.Equal(t, tt.expectActive, active)
			assert.Equal(t, tt.expectedState, controller.State())
			assert.Equal(t, tt.expectSynced, controller.InSync(1000))
		})
	}
}

func TestController_Negotiate_OnlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	pipeline := mocks.NewMockPipeline(ctrl)
	pipeline.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportFlags(0), nil).Times(1)

	controller := hdr.NewController(pipeline)
	assert.False(t, controller.Negotiate(1000))
	// No retry without a new pipeline instance.
	assert.False(t, controller.Negotiate(1000))
}

func TestController_UpdateMetadata_UnsupportedIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	pipeline := mocks.NewMockPipeline(ctrl)
	pipeline.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportFlags(0), nil)
	pipeline.EXPECT().SetMasteringMetadata(gomock.Any(), gomock.Any()).Times(0)

	controller := hdr.NewController(pipeline)
	require.False(t, controller.Negotiate(1000))

	for _, nits := range []float64{500, 1000, 4000} {
		assert.NoError(t, controller.UpdateMetadata(nits))
	}
	_, ok := controller.Metadata()
	assert.False(t, ok)
}

func TestController_UpdateMetadata_BeforeNegotiateIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	pipeline := mocks.NewMockPipeline(ctrl)

	controller := hdr.NewController(pipeline)
	assert.NoError(t, controller.UpdateMetadata(1000))
}

func TestController_UpdateMetadata_Resubmits(t *testing.T) {
	ctrl := gomock.NewController(t)
	pipeline := mocks.NewMockPipeline(ctrl)
	pipeline.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportPresent, nil)
	pipeline.EXPECT().SetColorSpace(gomock.Any()).Return(nil)
	pipeline.EXPECT().SetMasteringMetadata(hdr.MetadataHDR10, hdr.NewMasteringMetadata(1000)).Return(nil)
	// Same value twice: always resent in full, never diffed.
	pipeline.EXPECT().SetMasteringMetadata(hdr.MetadataHDR10, hdr.NewMasteringMetadata(1010)).Return(nil).Times(2)

	controller := hdr.NewController(pipeline)
	require.True(t, controller.Negotiate(1000))

	require.NoError(t, controller.UpdateMetadata(1010))
	require.NoError(t, controller.UpdateMetadata(1010))

	metadata, ok := controller.Metadata()
	require.True(t, ok)
	assert.Equal(t, uint32(10_100_000), metadata.MaxMasteringLuminance)
	assert.True(t, controller.InSync(1010))
	assert.False(t, controller.InSync(1000))
}

func TestController_UpdateMetadata_FailureKeepsPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	pipeline := mocks.NewMockPipeline(ctrl)
	pipeline.EXPECT().QueryColorSpaceSupport(gomock.Any()).Return(hdr.SupportPresent, nil)
	pipeline.EXPECT().SetColorSpace(gomock.Any()).Return(nil)
	pipeline.EXPECT().SetMasteringMetadata(gomock.Any(), hdr.NewMasteringMetadata(1000)).Return(nil)
	pipeline.EXPECT().SetMasteringMetadata(gomock.Any(), hdr.NewMasteringMetadata(2000)).Return(errors.New("device busy")).Times(1)

	controller := hdr.NewController(pipeline)
	require.True(t, controller.Negotiate(1000))

	err := controller.UpdateMetadata(2000)
	require.Error(t, err)
	assert.ErrorIs(t, err, hdr.ErrSubmitMetadata)
	assert.Contains(t, err.Error(), "device busy")

	metadata, ok := controller.Metadata()
	require.True(t, ok)
	assert.Equal(t, hdr.NewMasteringMetadata(1000), metadata)
	assert.Equal(t, hdr.StateActive, controller.State())
	assert.False(t, controller.InSync(2000))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", hdr.StateUninitialized.String())
	assert.Equal(t, "unsupported", hdr.StateUnsupported.String())
	assert.Equal(t, "active", hdr.StateActive.String())
	assert.Equal(t, "State(7)", hdr.State(7).String())
}
