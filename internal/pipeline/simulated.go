// SPDX-License-Identifier: GPL-3.0-only

// Package pipeline provides a software display pipeline for running the
// calibrator without a real HDR swap chain.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/render"
)

// ErrUnsupportedColorSpace is returned when switching to a color space the
// pipeline was not configured to present.
var ErrUnsupportedColorSpace = errors.New("color space not supported")

// ErrSwitchRejected is returned when the pipeline is configured to refuse color space switches.
var ErrSwitchRejected = errors.New("color space switch rejected")

// Simulated implements hdr.Pipeline and render.Presenter in memory.
// All methods are thread-safe.
type Simulated struct {
	mu           sync.Mutex
	supported    map[hdr.ColorSpace]hdr.SupportFlags
	rejectSwitch bool
	snapshotPath string

	colorSpace   hdr.ColorSpace
	metadata     hdr.MasteringMetadata
	metadataKind hdr.MetadataType
	submissions  int
	frames       uint64
	dirty        bool
}

// Verify Simulated implements both collaborator interfaces.
var (
	_ hdr.Pipeline     = (*Simulated)(nil)
	_ render.Presenter = (*Simulated)(nil)
)

// Option is a functional option for configuring a Simulated pipeline.
type Option func(*Simulated)

// WithSupport marks colorSpace as presentable with the given flags.
func WithSupport(colorSpace hdr.ColorSpace, flags hdr.SupportFlags) Option {
	return func(s *Simulated) {
		s.supported[colorSpace] = flags
	}
}

// WithRejectSwitch makes every SetColorSpace call fail.
func WithRejectSwitch(reject bool) Option {
	return func(s *Simulated) {
		s.rejectSwitch = reject
	}
}

// WithSnapshot writes the first frame presented after each metadata change to path as TIFF.
func WithSnapshot(path string) Option {
	return func(s *Simulated) {
		s.snapshotPath = path
	}
}

// NewSimulated creates a pipeline that starts in SDR and only presents SDR
// unless configured otherwise.
func NewSimulated(opts ...Option) *Simulated {
	s := &Simulated{
		supported: map[hdr.ColorSpace]hdr.SupportFlags{
			hdr.ColorSpaceRGBFullG22NoneP709: hdr.SupportPresent,
		},
		colorSpace: hdr.ColorSpaceRGBFullG22NoneP709,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryColorSpaceSupport returns the configured flags for colorSpace.
func (s *Simulated) QueryColorSpaceSupport(colorSpace hdr.ColorSpace) (hdr.SupportFlags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported[colorSpace], nil
}

// SetColorSpace switches the simulated output.
func (s *Simulated) SetColorSpace(colorSpace hdr.ColorSpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectSwitch {
		return ErrSwitchRejected
	}
	if !s.supported[colorSpace].Has(hdr.SupportPresent) {
		return fmt.Errorf("%w: %s", ErrUnsupportedColorSpace, colorSpace)
	}

	s.colorSpace = colorSpace
	log.Info().Stringer("colorSpace", colorSpace).Msg("Pipeline color space changed")
	return nil
}

// SetMasteringMetadata records metadata. HDR10 metadata is only accepted
// while the output is in the HDR10 color space.
func (s *Simulated) SetMasteringMetadata(kind hdr.MetadataType, metadata hdr.MasteringMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == hdr.MetadataHDR10 && s.colorSpace != hdr.ColorSpaceRGBFullG2084NoneP2020 {
		return fmt.Errorf("HDR10 metadata requires %s, output is %s",
			hdr.ColorSpaceRGBFullG2084NoneP2020, s.colorSpace)
	}

	s.metadata = metadata
	s.metadataKind = kind
	s.submissions++
	s.dirty = true

	log.Debug().
		Uint32("maxMasteringLuminance", metadata.MaxMasteringLuminance).
		Uint16("maxCLL", metadata.MaxContentLightLevel).
		Uint16("maxFALL", metadata.MaxFrameAverageLightLevel).
		Msg("Pipeline metadata updated")
	return nil
}

// Present counts the frame and writes a snapshot when one is due.
func (s *Simulated) Present(fb *render.Framebuffer) error {
	s.mu.Lock()
	s.frames++
	due := s.dirty && s.snapshotPath != ""
	s.dirty = false
	path := s.snapshotPath
	s.mu.Unlock()

	if !due {
		return nil
	}
	return writeSnapshot(path, fb)
}

// ColorSpace returns the current output color space.
func (s *Simulated) ColorSpace() hdr.ColorSpace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorSpace
}

// Metadata returns the last submitted metadata and how many submissions were accepted.
func (s *Simulated) Metadata() (hdr.MasteringMetadata, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata, s.submissions
}

// Frames returns the number of presented frames.
func (s *Simulated) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// writeSnapshot writes through a temporary file so readers never see a partial image.
func writeSnapshot(path string, fb *render.Framebuffer) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tiff")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer func() {
		// Harmless after a successful rename.
		_ = os.Remove(tmp.Name())
	}()

	if err := fb.WriteTIFF(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	log.Debug().Str("path", path).Msg("Wrote frame snapshot")
	return nil
}
