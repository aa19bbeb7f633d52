package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
	"github.com/shini4i/hdr-calibrator/internal/config"
	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/pq"
	"github.com/shini4i/hdr-calibrator/internal/render"
)

// maxCode10 is the largest 10-bit code value.
const maxCode10 = 1023

func parseFloats(args []string) ([]float64, error) {
	values := make([]float64, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", arg, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func newEncodeCmd() *cobra.Command {
	var (
		sdr      bool
		sdrWhite float64
	)

	cmd := &cobra.Command{
		Use:   "encode NITS...",
		Short: "Encode luminance values with the ST.2084 PQ curve",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFloats(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range values {
				nits := v
				if sdr {
					nits = pq.SDRToNits(v, sdrWhite)
				}
				code := pq.EncodeToPQ(nits)
				fmt.Fprintf(out, "%g nits\t%.6f\t%d\n", nits, code, render.Quantize10(code))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sdr, "sdr", false, "Treat arguments as linear SDR levels (1.0 = SDR white)")
	cmd.Flags().Float64Var(&sdrWhite, "sdr-white", pq.DefaultSDRWhiteNits, "SDR white level in nits")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var tenBit bool

	cmd := &cobra.Command{
		Use:   "decode CODE...",
		Short: "Decode ST.2084 PQ code values to luminance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFloats(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range values {
				code := v
				if tenBit {
					code = v / maxCode10
				}
				fmt.Fprintf(out, "%.6f\t%.4f nits\n", code, pq.DecodeFromPQ(code))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&tenBit, "10bit", false, "Treat arguments as 10-bit code values (0-1023)")
	return cmd
}

func newMetadataCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata [NITS]",
		Short: "Print the HDR10 mastering metadata derived for a target peak brightness",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nits := opts.cfg.Target.InitialNits
			if len(args) == 1 {
				values, err := parseFloats(args)
				if err != nil {
					return err
				}
				nits = values[0]
			}
			if clamped := brightness.ClampNits(nits); clamped != nits {
				log.Warn().Float64("requested", nits).Float64("clamped", clamped).Msg("Target outside range")
			}
			printMetadata(cmd.OutOrStdout(), hdr.NewMasteringMetadata(nits))
			return nil
		},
	}
}

func printMetadata(w io.Writer, m hdr.MasteringMetadata) {
	primaries := []struct {
		name string
		xy   [2]uint16
	}{
		{"red", m.RedPrimary},
		{"green", m.GreenPrimary},
		{"blue", m.BluePrimary},
		{"white", m.WhitePoint},
	}
	for _, p := range primaries {
		x, y := hdr.Chromaticity(p.xy)
		fmt.Fprintf(w, "%-6s %5d %5d  (x=%.4f y=%.4f)\n", p.name, p.xy[0], p.xy[1], x, y)
	}
	fmt.Fprintf(w, "max_mastering_luminance %d (%g nits)\n", m.MaxMasteringLuminance, m.MaxLuminanceNits())
	fmt.Fprintf(w, "min_mastering_luminance %d (%g nits)\n", m.MinMasteringLuminance, m.MinLuminanceNits())
	fmt.Fprintf(w, "max_cll %d\n", m.MaxContentLightLevel)
	fmt.Fprintf(w, "max_fall %d\n", m.MaxFrameAverageLightLevel)
}

func newPatternCmd(opts *options) *cobra.Command {
	var (
		out    string
		nits   float64
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Render the calibration pattern to a TIFF file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("nits") {
				nits = opts.cfg.Target.InitialNits
			}
			if !cmd.Flags().Changed("width") {
				width = opts.cfg.Render.Width
			}
			if !cmd.Flags().Changed("height") {
				height = opts.cfg.Render.Height
			}
			return writePattern(out, brightness.ClampNits(nits), width, height)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "pattern.tiff", "Output TIFF path")
	cmd.Flags().Float64Var(&nits, "nits", brightness.DefaultTargetNits, "Target peak brightness in nits")
	cmd.Flags().IntVar(&width, "width", config.DefaultWidth, "Pattern width in pixels")
	cmd.Flags().IntVar(&height, "height", config.DefaultHeight, "Pattern height in pixels")
	return cmd
}

func writePattern(path string, nits float64, width, height int) error {
	fb, err := render.NewFramebuffer(width, height)
	if err != nil {
		return err
	}
	render.DrawCalibrationPattern(fb, nits)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fb.WriteTIFF(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	log.Info().Str("path", path).Float64("targetNits", nits).Int("width", width).Int("height", height).Msg("Pattern written")
	return nil
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), opts.cfg)
		},
	}
}
