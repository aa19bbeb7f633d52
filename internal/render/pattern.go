// SPDX-License-Identifier: GPL-3.0-only

package render

import (
	"image"

	"github.com/shini4i/hdr-calibrator/internal/pq"
)

// Swatch is a rectangle drawn at a fixed luminance.
type Swatch struct {
	Rect image.Rectangle
	Nits pq.RGBNits
}

// Layout describes the calibration pattern for a given framebuffer size.
//
// The surround is drawn at the PQ ceiling and the patch at the target. On a
// display that clips at or below the target, the patch blends into the
// surround.
type Layout struct {
	Surround   image.Rectangle
	Patch      image.Rectangle
	References []Swatch
}

// PatternLayout computes the calibration pattern geometry for bounds.
func PatternLayout(bounds image.Rectangle) Layout {
	w, h := bounds.Dx(), bounds.Dy()
	center := image.Pt(bounds.Min.X+w/2, bounds.Min.Y+h/2)

	side := min(w, h) / 2
	surround := image.Rect(center.X-side/2, center.Y-side/2, center.X+side/2, center.Y+side/2)
	patch := image.Rect(center.X-side/6, center.Y-side/6, center.X+side/6, center.Y+side/6)

	presets := []pq.RGBNits{pq.White100(), pq.White203(), pq.White1000()}
	stripTop := bounds.Max.Y - h/8
	segment := w / len(presets)
	references := make([]Swatch, 0, len(presets))
	for i, c := range presets {
		x0 := bounds.Min.X + i*segment
		references = append(references, Swatch{
			Rect: image.Rect(x0, stripTop, x0+segment, bounds.Max.Y),
			Nits: c,
		})
	}

	return Layout{Surround: surround, Patch: patch, References: references}
}

// DrawCalibrationPattern renders the pattern for targetNits into fb.
func DrawCalibrationPattern(fb *Framebuffer, targetNits float64) {
	layout := PatternLayout(fb.Bounds())

	fb.Clear(pq.Black())
	fb.FillRect(layout.Surround, pq.Gray(pq.MaxNits))
	fb.FillRect(layout.Patch, pq.Gray(targetNits))
	for _, s := range layout.References {
		fb.FillRect(s.Rect, s.Nits)
	}
}
