// SPDX-License-Identifier: GPL-3.0-only

// Package render draws PQ-encoded calibration frames into an HDR10 framebuffer.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"

	"github.com/shini4i/hdr-calibrator/internal/pq"
)

// ErrInvalidSize is returned when a framebuffer dimension is not positive.
var ErrInvalidSize = errors.New("framebuffer dimensions must be positive")

const (
	maxCode10   = 1<<10 - 1
	alphaOpaque = 0x3
)

// Presenter shows a finished frame.
type Presenter interface {
	Present(fb *Framebuffer) error
}

// Framebuffer stores pixels as packed R10G10B10A2 values, the HDR10 swap chain format.
// Red occupies the low 10 bits, alpha the top 2.
type Framebuffer struct {
	width  int
	height int
	pix    []uint32
}

// NewFramebuffer allocates a framebuffer cleared to black.
func NewFramebuffer(width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	fb := &Framebuffer{
		width:  width,
		height: height,
		pix:    make([]uint32, width*height),
	}
	fb.Clear(pq.Black())
	return fb, nil
}

// Bounds returns the framebuffer rectangle.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.width, fb.height)
}

// Quantize10 maps a PQ code value in [0, 1] to a 10-bit code.
func Quantize10(code float64) uint32 {
	if !(code > 0) {
		return 0
	}
	if code >= 1 {
		return maxCode10
	}
	return uint32(math.Round(code * maxCode10))
}

// Pack encodes three PQ code values into one opaque R10G10B10A2 pixel.
func Pack(r, g, b float64) uint32 {
	return Quantize10(r) | Quantize10(g)<<10 | Quantize10(b)<<20 | alphaOpaque<<30
}

// Unpack returns the 10-bit channel codes of a packed pixel.
func Unpack(px uint32) (r, g, b uint32) {
	return px & maxCode10, px>>10&maxCode10, px>>20&maxCode10
}

// PackNits PQ-encodes a linear RGB value and packs it.
func PackNits(c pq.RGBNits) uint32 {
	return Pack(pq.EncodeRGB(c))
}

// Clear fills the whole framebuffer with c.
func (fb *Framebuffer) Clear(c pq.RGBNits) {
	px := PackNits(c)
	for i := range fb.pix {
		fb.pix[i] = px
	}
}

// FillRect fills the part of r that lies inside the framebuffer with c.
func (fb *Framebuffer) FillRect(r image.Rectangle, c pq.RGBNits) {
	r = r.Intersect(fb.Bounds())
	if r.Empty() {
		return
	}
	px := PackNits(c)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := fb.pix[y*fb.width : (y+1)*fb.width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = px
		}
	}
}

// At returns the packed pixel at (x, y), or 0 outside the framebuffer.
func (fb *Framebuffer) At(x, y int) uint32 {
	if !(image.Point{X: x, Y: y}.In(fb.Bounds())) {
		return 0
	}
	return fb.pix[y*fb.width+x]
}

// NitsAt decodes the pixel at (x, y) back to linear nits.
func (fb *Framebuffer) NitsAt(x, y int) pq.RGBNits {
	r, g, b := Unpack(fb.At(x, y))
	return pq.DecodeRGB(
		float64(r)/maxCode10,
		float64(g)/maxCode10,
		float64(b)/maxCode10,
	)
}

// Image expands the framebuffer to 16 bits per channel, keeping the PQ encoding.
func (fb *Framebuffer) Image() *image.RGBA64 {
	img := image.NewRGBA64(fb.Bounds())
	for y := 0; y < fb.height; y++ {
		for x := 0; x < fb.width; x++ {
			r, g, b := Unpack(fb.pix[y*fb.width+x])
			img.SetRGBA64(x, y, color.RGBA64{
				R: expand10(r),
				G: expand10(g),
				B: expand10(b),
				A: 0xffff,
			})
		}
	}
	return img
}

// WriteTIFF writes the frame as an uncompressed 16-bit TIFF.
func (fb *Framebuffer) WriteTIFF(w io.Writer) error {
	if err := tiff.Encode(w, fb.Image(), &tiff.Options{Compression: tiff.Uncompressed}); err != nil {
		return fmt.Errorf("failed to encode tiff: %w", err)
	}
	return nil
}

// expand10 replicates the top bits so 0x3ff maps to 0xffff.
func expand10(v uint32) uint16 {
	return uint16(v<<6 | v>>4)
}
