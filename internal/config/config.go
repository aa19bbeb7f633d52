// SPDX-License-Identifier: GPL-3.0-only

// Package config loads the calibrator configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shini4i/hdr-calibrator/internal/brightness"
	"github.com/shini4i/hdr-calibrator/internal/hdr"
	"github.com/shini4i/hdr-calibrator/internal/hid"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	// DefaultWidth is the default framebuffer width in pixels.
	DefaultWidth = 1920

	// DefaultHeight is the default framebuffer height in pixels.
	DefaultHeight = 1080

	// DefaultFrameRate is the default number of frames per second.
	DefaultFrameRate = 60

	// maxFrameRate bounds the frame loop rate.
	maxFrameRate = 1000
)

// Config is the complete calibrator configuration.
type Config struct {
	Target   TargetConfig   `yaml:"target"`
	Render   RenderConfig   `yaml:"render"`
	Keyboard KeyboardConfig `yaml:"keyboard"`
	DBus     DBusConfig     `yaml:"dbus"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// TargetConfig holds the target peak brightness settings.
type TargetConfig struct {
	InitialNits float64 `yaml:"initial_nits"`
	StepNits    float64 `yaml:"step_nits"`
}

// RenderConfig holds the framebuffer and frame loop settings.
type RenderConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FrameRate int `yaml:"frame_rate"`
}

// KeyboardConfig selects the HID keyboard used to adjust the target.
// A zero VendorID matches any device reporting the keyboard usage.
type KeyboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Interface int    `yaml:"interface"`
	Hotplug   bool   `yaml:"hotplug"`
}

// DBusConfig controls the session bus service.
type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PipelineConfig describes the simulated display pipeline.
type PipelineConfig struct {
	ColorSpaces  []ColorSpace `yaml:"color_spaces"`
	RejectSwitch bool         `yaml:"reject_switch"`
	Snapshot     string       `yaml:"snapshot"`
}

// ColorSpace wraps hdr.ColorSpace for YAML, using its DXGI-style name.
type ColorSpace hdr.ColorSpace

// UnmarshalYAML implements yaml.Unmarshaler for ColorSpace.
func (c *ColorSpace) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := hdr.ParseColorSpace(name)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = ColorSpace(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for ColorSpace.
func (c ColorSpace) MarshalYAML() (interface{}, error) {
	return hdr.ColorSpace(c).String(), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Target: TargetConfig{
			InitialNits: brightness.DefaultTargetNits,
			StepNits:    brightness.DefaultStepNits,
		},
		Render: RenderConfig{
			Width:     DefaultWidth,
			Height:    DefaultHeight,
			FrameRate: DefaultFrameRate,
		},
		Keyboard: KeyboardConfig{
			Enabled:   true,
			Interface: hid.AnyInterface,
			Hotplug:   true,
		},
		DBus: DBusConfig{
			Enabled: true,
		},
		Pipeline: PipelineConfig{
			ColorSpaces: []ColorSpace{
				ColorSpace(hdr.ColorSpaceRGBFullG22NoneP709),
				ColorSpace(hdr.ColorSpaceRGBFullG2084NoneP2020),
			},
		},
	}
}

// Load reads the configuration at path on top of the defaults.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a YAML configuration from r on top of the defaults and validates it.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write encodes cfg as YAML to w.
func Write(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	return nil
}

// Validate checks cfg for values the calibrator cannot run with.
// Out of range target values are an error rather than being clamped.
func (c Config) Validate() error {
	nits := c.Target.InitialNits
	if math.IsNaN(nits) || nits < brightness.MinTargetNits || nits > brightness.MaxTargetNits {
		return fmt.Errorf("%w: target.initial_nits %g outside [%g, %g]",
			ErrInvalid, nits, brightness.MinTargetNits, brightness.MaxTargetNits)
	}
	step := c.Target.StepNits
	if math.IsNaN(step) || step <= 0 || step > brightness.TargetRange {
		return fmt.Errorf("%w: target.step_nits %g outside (0, %g]", ErrInvalid, step, brightness.TargetRange)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("%w: render size %dx%d must be positive", ErrInvalid, c.Render.Width, c.Render.Height)
	}
	if c.Render.FrameRate <= 0 || c.Render.FrameRate > maxFrameRate {
		return fmt.Errorf("%w: render.frame_rate %d outside [1, %d]", ErrInvalid, c.Render.FrameRate, maxFrameRate)
	}
	if c.Keyboard.Interface < hid.AnyInterface {
		return fmt.Errorf("%w: keyboard.interface %d", ErrInvalid, c.Keyboard.Interface)
	}
	return nil
}

// SupportedColorSpaces returns the configured pipeline color spaces.
func (p PipelineConfig) SupportedColorSpaces() []hdr.ColorSpace {
	spaces := make([]hdr.ColorSpace, 0, len(p.ColorSpaces))
	for _, c := range p.ColorSpaces {
		spaces = append(spaces, hdr.ColorSpace(c))
	}
	return spaces
}
