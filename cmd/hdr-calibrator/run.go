// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/hdr-calibrator/internal/calibrator"
	"github.com/shini4i/hdr-calibrator/internal/config"
	"github.com/shini4i/hdr-calibrator/internal/dbus"
	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/hid"
	"github.com/shini4i/hdr-calibrator/internal/pipeline"
	"github.com/shini4i/hdr-calibrator/internal/render"
	"github.com/shini4i/hdr-calibrator/internal/udev"
)

// hotplugSettleDelay gives a freshly added hidraw node time to become readable.
const hotplugSettleDelay = 500 * time.Millisecond

func newRunCmd(opts *options) *cobra.Command {
	var (
		target     float64
		noKeyboard bool
		noDBus     bool
		snapshot   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the calibration session until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("target") {
				cfg.Target.InitialNits = target
			}
			if noKeyboard {
				cfg.Keyboard.Enabled = false
			}
			if noDBus {
				cfg.DBus.Enabled = false
			}
			if snapshot != "" {
				cfg.Pipeline.Snapshot = snapshot
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().Float64VarP(&target, "target", "t", 0, "Initial target peak brightness in nits")
	cmd.Flags().BoolVar(&noKeyboard, "no-keyboard", false, "Disable HID keyboard input")
	cmd.Flags().BoolVar(&noDBus, "no-dbus", false, "Disable the D-Bus service")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Write a TIFF snapshot after every metadata change")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().Float64("targetNits", cfg.Target.InitialNits).Msg("Starting hdr-calibrator")

	fb, err := render.NewFramebuffer(cfg.Render.Width, cfg.Render.Height)
	if err != nil {
		return fmt.Errorf("failed to create framebuffer: %w", err)
	}

	pipe := newPipeline(cfg.Pipeline)
	calOpts := []calibrator.Option{
		calibrator.WithInitialTarget(cfg.Target.InitialNits),
		calibrator.WithFrameRate(cfg.Render.FrameRate),
	}

	if cfg.Keyboard.Enabled {
		manager := newKeyboardManager(cfg)
		if err := manager.Acquire(); err != nil {
			log.Warn().Err(err).Msg("No keyboard yet, waiting for one to be connected")
		}
		defer func() {
			if err := manager.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close keyboard manager")
			}
		}()
		calOpts = append(calOpts, calibrator.WithSource(manager))

		if cfg.Keyboard.Hotplug {
			monitor := udev.NewMonitor(createHotplugHandler(manager, hotplugSettleDelay))
			monitor.SetRecoveryHandler(manager.Rescan)
			if err := monitor.Start(); err != nil {
				log.Error().Err(err).Msg("Failed to start udev monitor (hot-plug detection disabled)")
			} else {
				defer func() {
					if err := monitor.Stop(); err != nil {
						log.Error().Err(err).Msg("Failed to stop udev monitor")
					}
				}()
			}
		}
	}

	if cfg.DBus.Enabled {
		server := dbus.NewServer()
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start D-Bus server (remote control disabled)")
		} else {
			defer func() {
				if err := server.Stop(); err != nil {
					log.Error().Err(err).Msg("Failed to stop D-Bus server")
				}
			}()
			calOpts = append(calOpts, calibrator.WithSource(server), calibrator.WithObserver(server))
		}
	}

	session := calibrator.New(pipe, pipe, fb, calOpts...)
	session.Start()

	log.Info().Msg("Calibrator running, press Ctrl+C to stop")
	if err := session.Run(ctx); err != nil {
		return err
	}

	status := session.Status()
	log.Info().
		Uint64("frames", status.Frame).
		Float64("targetNits", status.TargetNits).
		Stringer("state", status.State).
		Msg("Calibrator stopped")
	return nil
}

// newPipeline builds the simulated display pipeline described by cfg.
func newPipeline(cfg config.PipelineConfig) *pipeline.Simulated {
	opts := []pipeline.Option{pipeline.WithRejectSwitch(cfg.RejectSwitch)}
	for _, cs := range cfg.SupportedColorSpaces() {
		opts = append(opts, pipeline.WithSupport(cs, hdr.SupportPresent))
	}
	if cfg.Snapshot != "" {
		opts = append(opts, pipeline.WithSnapshot(cfg.Snapshot))
	}
	return pipeline.NewSimulated(opts...)
}

// newKeyboardManager creates a keyboard manager restricted to the configured device.
func newKeyboardManager(cfg config.Config) *hid.Manager {
	kb := cfg.Keyboard
	return hid.NewManager(
		hid.WithStep(cfg.Target.StepNits),
		hid.WithEnumerator(func() ([]hid.DeviceInfo, error) {
			return hid.EnumerateKeyboards(kb.VendorID, kb.ProductID, kb.Interface)
		}),
	)
}

// rescanner is implemented by hid.Manager.
type rescanner interface {
	Rescan()
}

// createHotplugHandler returns an event handler that makes r look for a keyboard again.
// Add events are delayed by settle so the new node has finished initializing.
func createHotplugHandler(r rescanner, settle time.Duration) udev.EventHandler {
	return func(event udev.Event) {
		if event.Type == udev.EventAdd && settle > 0 {
			time.AfterFunc(settle, r.Rescan)
			return
		}
		r.Rescan()
	}
}
