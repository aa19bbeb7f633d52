// SPDX-License-Identifier: GPL-3.0-only

// Package calibrator runs the per-frame HDR calibration cycle.
package calibrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/input"
	"github.com/shini4i/hdr-calibrator/internal/render"
)

// DefaultFrameRate is the number of frames per second Run produces by default.
const DefaultFrameRate = 60

// Source produces input events. Poll is called once per frame from the frame loop.
type Source interface {
	Poll() []input.Event
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() []input.Event

// Poll calls f.
func (f SourceFunc) Poll() []input.Event {
	return f()
}

// Observer receives a Status snapshot at the end of every frame.
// Observe is called on the frame loop goroutine and must not block.
type Observer interface {
	Observe(status Status)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(status Status)

// Observe calls f.
func (f ObserverFunc) Observe(status Status) {
	f(status)
}

// Status is a snapshot of the calibration session taken after a frame.
type Status struct {
	Frame       uint64
	TargetNits  float64
	State       hdr.State
	InSync      bool
	Metadata    hdr.MasteringMetadata
	HasMetadata bool
}

// Calibrator owns the target peak brightness, the HDR controller and the
// framebuffer, and ties them together once per frame.
//
// Calibrator is not safe for concurrent use; collaborators hand input in
// through Sources and read state back through Observers.
type Calibrator struct {
	target     *brightness.Target
	controller *hdr.Controller
	fb         *render.Framebuffer
	presenter  render.Presenter
	sources    []Source
	observers  []Observer
	interval   time.Duration
	frame      uint64
	status     Status
}

// Option is a functional option for configuring a Calibrator.
type Option func(*Calibrator)

// WithSource adds an input source polled every frame, in registration order.
func WithSource(source Source) Option {
	return func(c *Calibrator) {
		c.sources = append(c.sources, source)
	}
}

// WithObserver adds an observer notified after every frame.
func WithObserver(observer Observer) Option {
	return func(c *Calibrator) {
		c.observers = append(c.observers, observer)
	}
}

// WithInitialTarget sets the starting target peak brightness in nits.
func WithInitialTarget(nits float64) Option {
	return func(c *Calibrator) {
		c.target = brightness.NewTarget(nits)
	}
}

// WithFrameRate sets the number of frames per second produced by Run.
// Non-positive values are ignored.
func WithFrameRate(fps int) Option {
	return func(c *Calibrator) {
		if fps > 0 {
			c.interval = time.Second / time.Duration(fps)
		}
	}
}

// New creates a calibrator that negotiates HDR10 on pipeline and presents
// fb through presenter.
func New(pipeline hdr.Pipeline, presenter render.Presenter, fb *render.Framebuffer, opts ...Option) *Calibrator {
	c := &Calibrator{
		target:     brightness.NewTarget(brightness.DefaultTargetNits),
		controller: hdr.NewController(pipeline),
		fb:         fb,
		presenter:  presenter,
		interval:   time.Second / DefaultFrameRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start negotiates HDR10 output for the current target and reports whether it is active.
// It should be called once, before the first frame.
func (c *Calibrator) Start() bool {
	active := c.controller.Negotiate(c.target.Nits())
	if active {
		log.Info().Float64("targetNits", c.target.Nits()).Msg("Calibration session started in HDR10")
	} else {
		log.Warn().Str("state", c.controller.State().String()).Msg("HDR10 output unavailable, presenting without metadata")
	}
	return active
}

// TargetNits returns the current target peak brightness.
func (c *Calibrator) TargetNits() float64 {
	return c.target.Nits()
}

// State returns the negotiation state of the HDR controller.
func (c *Calibrator) State() hdr.State {
	return c.controller.State()
}

// Status returns the snapshot published by the last frame.
func (c *Calibrator) Status() Status {
	return c.status
}

// Frame runs one update cycle: it applies pending input, resubmits metadata
// when the target moved or the last submission failed, draws the pattern,
// presents it and notifies observers.
//
// A failed metadata submission is logged and retried on the next frame.
// The returned error is the presentation error, if any.
func (c *Calibrator) Frame() error {
	c.frame++

	changed := false
	for _, source := range c.sources {
		for _, event := range source.Poll() {
			if event.Apply(c.target) {
				changed = true
				log.Debug().Stringer("event", event).Float64("targetNits", c.target.Nits()).Msg("Target changed")
			}
		}
	}

	nits := c.target.Nits()
	if changed || !c.controller.InSync(nits) {
		if err := c.controller.UpdateMetadata(nits); err != nil {
			log.Warn().Err(err).Float64("targetNits", nits).Uint64("frame", c.frame).Msg("Metadata update failed, retrying next frame")
		}
	}

	render.DrawCalibrationPattern(c.fb, nits)

	var presentErr error
	if err := c.presenter.Present(c.fb); err != nil {
		presentErr = fmt.Errorf("failed to present frame %d: %w", c.frame, err)
	}

	metadata, ok := c.controller.Metadata()
	c.status = Status{
		Frame:       c.frame,
		TargetNits:  nits,
		State:       c.controller.State(),
		InSync:      c.controller.InSync(nits),
		Metadata:    metadata,
		HasMetadata: ok,
	}
	for _, observer := range c.observers {
		observer.Observe(c.status)
	}

	return presentErr
}

// Run produces frames at the configured rate until ctx is cancelled.
func (c *Calibrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", c.interval).Msg("Frame loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("frames", c.frame).Msg("Frame loop stopped")
			return nil
		case <-ticker.C:
			if err := c.Frame(); err != nil {
				log.Error().Err(err).Msg("Frame failed")
			}
		}
	}
}
