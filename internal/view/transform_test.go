package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitScale(t *testing.T) {
	tests := []struct {
		name           string
		containerWidth float64
		padding        float64
		maxPageWidth   float64
		want           float64
	}{
		{name: "exact_fit", containerWidth: 644, padding: 32, maxPageWidth: 612, want: 1.0},
		{name: "narrow_container_clamps_low", containerWidth: 100, padding: 32, maxPageWidth: 612, want: 0.25},
		{name: "wide_container_clamps_high", containerWidth: 5000, padding: 32, maxPageWidth: 612, want: 2.0},
		{name: "degenerate_page_width", containerWidth: 800, padding: 32, maxPageWidth: 0, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FitScale(tt.containerWidth, tt.padding, tt.maxPageWidth), 1e-9)
		})
	}
}

func TestNewTransformClampsScale(t *testing.T) {
	tests := []struct {
		name      string
		fitScale  float64
		zoom      float64
		wantScale float64
	}{
		{name: "product_within_range", fitScale: 1.0, zoom: 1.5, wantScale: 1.5},
		{name: "zoomed_out_clamps_to_min", fitScale: 0.5, zoom: 0.1, wantScale: 0.25},
		{name: "zoomed_in_clamps_to_max", fitScale: 2.0, zoom: 4.0, wantScale: 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransform(tt.fitScale, tt.zoom, 0, 0)
			assert.InDelta(t, tt.wantScale, tr.Scale, 1e-9)
		})
	}
}

func TestTransformRoundTrip(t *testing.T) {
	tr := NewTransform(1.0, 1.5, 40, 60)

	sx, sy := tr.ToScreen(100, 200)
	assert.InDelta(t, 100*1.5+40, sx, 1e-9)
	assert.InDelta(t, 200*1.5+60, sy, 1e-9)

	x, y := tr.ToPage(sx, sy)
	assert.InDelta(t, 100, x, 1e-9)
	assert.InDelta(t, 200, y, 1e-9)
}

func TestTransformPixelsToPoints(t *testing.T) {
	tr := Transform{Scale: 2.0}
	assert.InDelta(t, 5, tr.PixelsToPoints(10), 1e-9)

	// A zero scale degrades to identity instead of dividing by zero.
	var zero Transform
	assert.InDelta(t, 10, zero.PixelsToPoints(10), 1e-9)
	x, y := zero.ToPage(7, 9)
	assert.InDelta(t, 7, x, 1e-9)
	assert.InDelta(t, 9, y, 1e-9)
}
