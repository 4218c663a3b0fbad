// Package detect implements fillable-field detection for flat PDF
// contracts. Four independent strategies contribute candidates per page:
// AcroForm widget introspection, label-anchor inference, blank-line-marker
// extraction, and raster line-pair scanning. Candidates are deduplicated by
// source priority and committed to the overlay store as editable boxes.
//
// The package is headless: all document access goes through the collaborator
// interfaces below, so the engine runs against any rendering backend or
// against in-memory fixtures in tests.
package detect

import (
	"context"
	"image"

	"github.com/fieldscope/fieldscope/internal/geometry"
)

// PageGeometry is a page's size in PDF points.
type PageGeometry struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextRun is a logical piece of text on a page, in point space with y
// measured from the page top. Runs are ephemeral: they are produced for one
// detection pass and discarded.
type TextRun struct {
	Page     int
	X        float64
	Y        float64
	W        float64
	H        float64
	Text     string
	FontSize float64
}

// Rect returns the run's bounding rectangle.
func (r TextRun) Rect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// Widget is an AcroForm form-field annotation: a named rectangle with the
// field's current raw value, already projected into top-down point space.
type Widget struct {
	FieldName string
	Rect      geometry.Rect
	Value     string
}

// PageGeometrySource supplies page count and page sizes.
type PageGeometrySource interface {
	PageCount() (int, error)
	PageGeometry(page int) (PageGeometry, error)
}

// TextRunSource supplies merged logical text runs for a page.
type TextRunSource interface {
	TextRuns(ctx context.Context, page int) ([]TextRun, error)
}

// AnnotationSource supplies AcroForm widget annotations for a page.
type AnnotationSource interface {
	Widgets(ctx context.Context, page int) ([]Widget, error)
}

// RasterSource renders a page to an offscreen bitmap at the given scale
// (pixels per point). Implementations return ErrNoRaster when the document
// cannot be rasterized; the engine then skips the raster strategy for that
// page.
type RasterSource interface {
	RenderPage(ctx context.Context, page int, scale float64) (image.Image, error)
}

// FieldMeta is display-only provenance for an externally supplied field
// value.
type FieldMeta struct {
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	SourcePath string  `json:"sourcePath,omitempty"`
}
