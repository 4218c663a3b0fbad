// Package pdffile adapts real PDF libraries to the detection engine's
// collaborator interfaces: page geometry and text runs through
// github.com/ledongthuc/pdf, AcroForm widget annotations through pdfcpu.
// Raster input for scanned documents comes from pre-rendered page images
// (see PageImageDir); the engine's RasterSource stays optional.
package pdffile

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/fieldscope/fieldscope/internal/detect"
)

// Document is an opened PDF exposing the engine's source interfaces.
type Document struct {
	path string

	file   *os.File
	reader *pdf.Reader

	ctxFile *os.File
	ctx     *model.Context

	merger detect.RunMerger
}

// Open opens a PDF for detection. The same file is opened twice: once for
// the text-layer reader and once for the pdfcpu context, since both keep
// their own seek position.
func Open(path string) (*Document, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}

	ctxFile, err := os.Open(path)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(ctxFile, conf)
	if err != nil {
		file.Close()
		ctxFile.Close()
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		file.Close()
		ctxFile.Close()
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	return &Document{
		path:    path,
		file:    file,
		reader:  reader,
		ctxFile: ctxFile,
		ctx:     ctx,
	}, nil
}

// Close releases the underlying file handles.
func (d *Document) Close() error {
	var first error
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			first = err
		}
		d.file = nil
	}
	if d.ctxFile != nil {
		if err := d.ctxFile.Close(); err != nil && first == nil {
			first = err
		}
		d.ctxFile = nil
	}
	return first
}

// Path returns the file path the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// PageCount implements detect.PageGeometrySource.
func (d *Document) PageCount() (int, error) {
	return d.reader.NumPage(), nil
}

// PageGeometry implements detect.PageGeometrySource via the page MediaBox.
func (d *Document) PageGeometry(pageNum int) (detect.PageGeometry, error) {
	if pageNum < 1 || pageNum > d.reader.NumPage() {
		return detect.PageGeometry{}, fmt.Errorf("invalid page number %d (document has %d pages)", pageNum, d.reader.NumPage())
	}
	page := d.reader.Page(pageNum)
	if page.V.IsNull() {
		return detect.PageGeometry{}, fmt.Errorf("page %d is null", pageNum)
	}
	w, h, err := mediaBoxSize(page)
	if err != nil {
		return detect.PageGeometry{}, fmt.Errorf("page %d: %w", pageNum, err)
	}
	return detect.PageGeometry{Page: pageNum, Width: w, Height: h}, nil
}

// mediaBoxSize reads the page size from the (possibly inherited) MediaBox.
func mediaBoxSize(page pdf.Page) (w, h float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading MediaBox: %v", r)
		}
	}()

	mediaBox := page.V.Key("MediaBox")
	if mediaBox.IsNull() || mediaBox.Kind() != pdf.Array || mediaBox.Len() != 4 {
		// US Letter fallback keeps detection usable on broken page trees.
		return 612, 792, nil
	}
	coords := make([]float64, 4)
	for i := 0; i < 4; i++ {
		val := mediaBox.Index(i)
		switch val.Kind() {
		case pdf.Integer:
			coords[i] = float64(val.Int64())
		case pdf.Real:
			coords[i] = val.Float64()
		default:
			return 0, 0, fmt.Errorf("invalid MediaBox coordinate kind at %d", i)
		}
	}
	w = coords[2] - coords[0]
	h = coords[3] - coords[1]
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid MediaBox dimensions %.2fx%.2f", w, h)
	}
	return w, h, nil
}

// TextRuns implements detect.TextRunSource: raw positioned text from the
// text layer, merged into logical line regions.
func (d *Document) TextRuns(ctx context.Context, pageNum int) (runs []detect.TextRun, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic extracting text from page %d: %v", pageNum, r)
		}
	}()

	geom, err := d.PageGeometry(pageNum)
	if err != nil {
		return nil, err
	}

	page := d.reader.Page(pageNum)
	content := page.Content()
	items := make([]detect.TextItem, 0, len(content.Text))
	for _, t := range content.Text {
		items = append(items, detect.TextItem{
			Text:      t.S,
			Transform: [6]float64{t.FontSize, 0, 0, t.FontSize, t.X, t.Y},
			Width:     t.W,
			Height:    t.FontSize,
		})
	}
	return d.merger.Merge(items, geom), nil
}

// RenderPage implements detect.RasterSource. The document itself has no
// rasterizer; pair it with a PageImageDir when scanned input is expected.
func (d *Document) RenderPage(ctx context.Context, pageNum int, scale float64) (image.Image, error) {
	return nil, detect.ErrNoRaster
}

// Sources bundles the document into a detect.Sources value, optionally
// with a raster source.
func (d *Document) Sources(raster detect.RasterSource) detect.Sources {
	return detect.Sources{
		Geometry:    d,
		Runs:        d,
		Annotations: d,
		Raster:      raster,
	}
}
