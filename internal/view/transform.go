// Package view is the thin interactive adapter over the detection/overlay
// library: it owns the screen coordinate transform and the drag state
// machine for select/add/text editing. It is DOM-free; a UI layer feeds it
// pointer events in screen pixels and renders from the overlay store.
package view

import "github.com/fieldscope/fieldscope/internal/geometry"

// Zoom limits. The fit scale adapts the widest page to the container; the
// user zoom factor multiplies on top, and the product is clamped again.
const (
	MinScale    = 0.25
	MaxScale    = 3.0
	MaxFitScale = 2.0
)

// FitScale computes the scale that fits the widest page of the document
// into the container, clamped to [MinScale, MaxFitScale].
func FitScale(containerWidth, padding, maxPageWidth float64) float64 {
	if maxPageWidth <= 0 {
		return 1
	}
	return geometry.Clamp((containerWidth-padding)/maxPageWidth, MinScale, MaxFitScale)
}

// Transform maps between page points and screen pixels at the current
// zoom. OriginX/OriginY are the screen position of the page's top-left
// corner.
type Transform struct {
	Scale   float64
	OriginX float64
	OriginY float64
}

// NewTransform combines the fit scale with a user zoom factor.
func NewTransform(fitScale, zoomFactor, originX, originY float64) Transform {
	return Transform{
		Scale:   geometry.Clamp(fitScale*zoomFactor, MinScale, MaxScale),
		OriginX: originX,
		OriginY: originY,
	}
}

// ToPage converts a screen pixel position to page points.
func (t Transform) ToPage(sx, sy float64) (x, y float64) {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return (sx - t.OriginX) / scale, (sy - t.OriginY) / scale
}

// ToScreen converts a page point position to screen pixels.
func (t Transform) ToScreen(x, y float64) (sx, sy float64) {
	return x*t.Scale + t.OriginX, y*t.Scale + t.OriginY
}

// PixelsToPoints converts a screen pixel distance to page points.
func (t Transform) PixelsToPoints(px float64) float64 {
	if t.Scale == 0 {
		return px
	}
	return px / t.Scale
}
