// SPDX-License-Identifier: GPL-3.0-only

package hdr

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrSubmitMetadata wraps failures of the pipeline's metadata submission.
var ErrSubmitMetadata = errors.New("failed to submit mastering metadata")

// State is the negotiation state of a Controller.
type State int

const (
	// StateUninitialized means Negotiate has not been called yet.
	StateUninitialized State = iota
	// StateUnsupported means HDR10 output is unavailable for this pipeline. It is terminal.
	StateUnsupported
	// StateActive means the pipeline presents in HDR10 and accepts metadata.
	StateActive
)

// String returns a lower-case name for the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateUnsupported:
		return "unsupported"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller switches a Pipeline into HDR10 and keeps its mastering metadata current.
//
// Controller is not safe for concurrent use. Negotiate and UpdateMetadata
// must be called from the same goroutine, normally the frame loop.
type Controller struct {
	pipeline   Pipeline
	colorSpace ColorSpace
	state      State

	// last successful submission
	metadata  MasteringMetadata
	lastNits  float64
	submitted bool
}

// NewController creates a controller for the given pipeline.
func NewController(pipeline Pipeline) *Controller {
	return &Controller{
		pipeline:   pipeline,
		colorSpace: ColorSpaceRGBFullG2084NoneP2020,
	}
}

// State returns the current negotiation state.
func (c *Controller) State() State {
	return c.state
}

// Metadata returns the most recently submitted metadata, if any submission succeeded.
func (c *Controller) Metadata() (MasteringMetadata, bool) {
	return c.metadata, c.submitted
}

// InSync reports whether the controller is active and its last successful
// submission was derived from targetNits.
func (c *Controller) InSync(targetNits float64) bool {
	return c.state == StateActive && c.submitted && c.lastNits == targetNits
}

// Negotiate queries HDR10 support, switches the pipeline's color space and
// submits the initial metadata. It returns whether HDR10 is active.
//
// Only the first call talks to the pipeline; later calls report the
// outcome of the first one.
func (c *Controller) Negotiate(targetNits float64) bool {
	if c.state != StateUninitialized {
		return c.state == StateActive
	}

	flags, err := c.pipeline.QueryColorSpaceSupport(c.colorSpace)
	if err != nil {
		log.Warn().Err(err).Stringer("colorSpace", c.colorSpace).Msg("Color space support query failed")
		c.state = StateUnsupported
		return false
	}
	if !flags.Has(SupportPresent) {
		log.Warn().
			Stringer("colorSpace", c.colorSpace).
			Uint32("flags", uint32(flags)).
			Msg("Pipeline cannot present in HDR10 color space")
		c.state = StateUnsupported
		return false
	}

	if err := c.pipeline.SetColorSpace(c.colorSpace); err != nil {
		log.Warn().Err(err).Stringer("colorSpace", c.colorSpace).Msg("HDR10 supported but color space switch failed")
		c.state = StateUnsupported
		return false
	}

	c.state = StateActive
	log.Info().Stringer("colorSpace", c.colorSpace).Msg("HDR10 output active")

	// A failed initial submission does not undo the switch; the caller
	// sees it through InSync and can resubmit with UpdateMetadata.
	if err := c.submit(targetNits); err != nil {
		log.Error().Err(err).Float64("targetNits", targetNits).Msg("Initial metadata submission failed")
	}
	return true
}

// UpdateMetadata recomputes the full mastering metadata for targetNits and
// resubmits it. It is a no-op unless HDR10 is active, and it is safe to call
// as often as needed. Failures are returned, never retried.
func (c *Controller) UpdateMetadata(targetNits float64) error {
	if c.state != StateActive {
		return nil
	}
	return c.submit(targetNits)
}

func (c *Controller) submit(targetNits float64) error {
	metadata := NewMasteringMetadata(targetNits)

	if err := c.pipeline.SetMasteringMetadata(MetadataHDR10, metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmitMetadata, err)
	}

	c.metadata = metadata
	c.lastNits = targetNits
	c.submitted = true

	log.Debug().
		Float64("targetNits", targetNits).
		Uint32("maxMasteringLuminance", metadata.MaxMasteringLuminance).
		Uint16("maxCLL", metadata.MaxContentLightLevel).
		Uint16("maxFALL", metadata.MaxFrameAverageLightLevel).
		Msg("Submitted mastering metadata")
	return nil
}
