package pdffile

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/fieldscope/fieldscope/internal/detect"
)

// PageImageDir is a raster source backed by pre-rendered page images in a
// directory, named page-1.png, page-2.png, ... (jpg also accepted). This
// is how scanned contracts typically arrive: the rasterization already
// happened upstream.
type PageImageDir struct {
	dir string
	geo detect.PageGeometrySource
}

// NewPageImageDir creates a raster source reading from dir, using geo to
// rescale images to the requested render scale.
func NewPageImageDir(dir string, geo detect.PageGeometrySource) *PageImageDir {
	return &PageImageDir{dir: dir, geo: geo}
}

// RenderPage implements detect.RasterSource. Pages without an image file
// return detect.ErrNoRaster.
func (p *PageImageDir) RenderPage(ctx context.Context, pageNum int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var path string
	for _, ext := range []string{"png", "jpg", "jpeg"} {
		candidate := filepath.Join(p.dir, fmt.Sprintf("page-%d.%s", pageNum, ext))
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, detect.ErrNoRaster
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image %s: %w", path, err)
	}

	geom, err := p.geo.PageGeometry(pageNum)
	if err != nil {
		return nil, err
	}

	targetW := int(math.Round(geom.Width * scale))
	targetH := int(math.Round(geom.Height * scale))
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("page %d has degenerate geometry", pageNum)
	}

	// Already at the requested scale (within a pixel): use as-is.
	b := img.Bounds()
	if abs(b.Dx()-targetW) <= 1 && abs(b.Dy()-targetH) <= 1 {
		return img, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
