// Package preview renders overlay boxes onto a page image for visual QA of
// detection results.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/fogleman/gg"

	"github.com/fieldscope/fieldscope/internal/overlay"
)

var sourceFill = color.RGBA{R: 66, G: 133, B: 244, A: 40}
var sourceStroke = color.RGBA{R: 66, G: 133, B: 244, A: 255}

// Render draws the boxes for one page over the given page image. scale is
// the image's pixels-per-point factor.
func Render(pageImage image.Image, boxes []overlay.Box, page int, scale float64) image.Image {
	dc := gg.NewContextForImage(pageImage)
	dc.SetLineWidth(2)

	for _, b := range boxes {
		if b.Page != page {
			continue
		}
		x := b.X * scale
		y := b.Y * scale
		w := b.W * scale
		h := b.H * scale

		dc.SetColor(sourceFill)
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()

		dc.SetColor(sourceStroke)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()

		if label := boxLabel(b); label != "" {
			dc.SetColor(sourceStroke)
			dc.DrawStringAnchored(label, x+2, y-2, 0, 0)
		}
	}
	return dc.Image()
}

// Blank returns a white page image sized for the given page geometry.
func Blank(widthPt, heightPt, scale float64) image.Image {
	dc := gg.NewContext(int(widthPt*scale), int(heightPt*scale))
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	return dc.Image()
}

// WritePNG renders boxes over pageImage and writes the result to path.
func WritePNG(path string, pageImage image.Image, boxes []overlay.Box, page int, scale float64) error {
	out := Render(pageImage, boxes, page, scale)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return nil
}

func boxLabel(b overlay.Box) string {
	if b.Key != nil {
		return *b.Key
	}
	if b.Value != nil && *b.Value != "" {
		return *b.Value
	}
	return ""
}
