package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fieldscope/fieldscope/internal/detect"
	"github.com/fieldscope/fieldscope/internal/overlay"
	"github.com/fieldscope/fieldscope/internal/pdffile"
)

// Service runs detection passes and overlay queries for the MCP tools. Each
// call opens the document, runs against the overlay sidecar next to it, and
// closes everything before returning.
type Service struct {
	rasterDir   string
	maxFileSize int64
	tuning      detect.Tuning
}

// NewService creates a detection service.
func NewService(rasterDir string, maxFileSize int64, tuning detect.Tuning) *Service {
	return &Service{
		rasterDir:   rasterDir,
		maxFileSize: maxFileSize,
		tuning:      tuning,
	}
}

// DetectFieldsRequest asks for a detection pass over one PDF.
type DetectFieldsRequest struct {
	Path   string
	Values map[string]string
}

// DetectFieldsResult summarizes a completed detection pass.
type DetectFieldsResult struct {
	Path        string
	OverlayPath string
	Pages       int
	Added       int
	TotalBoxes  int
	Status      string
	Warnings    []string
	PageErrors  []string
	Boxes       []overlay.Box
}

// WidgetFieldsRequest asks for the AcroForm widget inventory of one PDF.
type WidgetFieldsRequest struct {
	Path string
}

// WidgetFieldInfo is one widget annotation with its page and rectangle in
// top-down points.
type WidgetFieldInfo struct {
	Page  int
	Name  string
	Value string
	X     float64
	Y     float64
	W     float64
	H     float64
}

// WidgetFieldsResult lists a document's widget fields.
type WidgetFieldsResult struct {
	Path   string
	Pages  int
	Fields []WidgetFieldInfo
}

// OverlayInfoRequest asks for a summary of the overlay sidecar of one PDF.
type OverlayInfoRequest struct {
	Path string
}

// OverlayInfoResult summarizes an overlay file.
type OverlayInfoResult struct {
	OverlayPath string
	Exists      bool
	Version     int
	TotalBoxes  int
	PerPage     map[int]int
	KeyBound    int
	ValueBound  int
	EraseBoxes  int
}

// overlaySidecar is where a document's overlay lives: next to the PDF.
func overlaySidecar(pdfPath string) string {
	return pdfPath + ".overlay.json"
}

// loadOverlay reads the sidecar tolerantly. A missing or unreadable file is
// an empty overlay, never an error.
func loadOverlay(path string) overlay.Overlay {
	data, err := os.ReadFile(path)
	if err != nil {
		return overlay.Empty()
	}
	return overlay.Parse(data)
}

// saveOverlayFunc persists an overlay to the sidecar path.
func saveOverlayFunc(path string) overlay.SaveFunc {
	return func(o overlay.Overlay) error {
		data, err := overlay.Serialize(o)
		if err != nil {
			return err
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("failed to write overlay: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("failed to replace overlay: %w", err)
		}
		return nil
	}
}

// validateFile checks that the path points at a regular file within the
// size limit.
func (s *Service) validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a PDF file", path)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return fmt.Errorf("file %s exceeds maximum size (%d > %d bytes)", path, info.Size(), s.maxFileSize)
	}
	return nil
}

// DetectFields opens the document, loads its overlay sidecar, runs one
// detection pass, and persists the result.
func (s *Service) DetectFields(ctx context.Context, req DetectFieldsRequest) (*DetectFieldsResult, error) {
	if err := s.validateFile(req.Path); err != nil {
		return nil, err
	}

	doc, err := pdffile.Open(req.Path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pages, err := doc.PageCount()
	if err != nil {
		return nil, err
	}

	sidecar := overlaySidecar(req.Path)
	store := overlay.NewStore(saveOverlayFunc(sidecar), s.tuning.MaxBoxes)
	store.Load(loadOverlay(sidecar))

	var raster detect.RasterSource
	if s.rasterDir != "" {
		raster = pdffile.NewPageImageDir(s.rasterDir, doc)
	}

	engine := detect.NewEngine(doc.Sources(raster), store, s.tuning)
	if len(req.Values) > 0 {
		engine.SetFieldValues(req.Values, nil)
	}

	pass, err := engine.Detect(ctx)
	if err != nil {
		return nil, err
	}

	result := &DetectFieldsResult{
		Path:        req.Path,
		OverlayPath: sidecar,
		Pages:       pages,
		Added:       pass.Added,
		TotalBoxes:  store.Len(),
		Status:      pass.Status,
		Warnings:    pass.Warnings,
		Boxes:       pass.Boxes,
	}
	for _, pe := range pass.PageErrors {
		result.PageErrors = append(result.PageErrors, pe.Error())
	}
	return result, nil
}

// WidgetFields lists the AcroForm widget fields of the document, page by
// page.
func (s *Service) WidgetFields(ctx context.Context, req WidgetFieldsRequest) (*WidgetFieldsResult, error) {
	if err := s.validateFile(req.Path); err != nil {
		return nil, err
	}

	doc, err := pdffile.Open(req.Path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pages, err := doc.PageCount()
	if err != nil {
		return nil, err
	}

	result := &WidgetFieldsResult{Path: req.Path, Pages: pages}
	for page := 1; page <= pages; page++ {
		widgets, err := doc.Widgets(ctx, page)
		if err != nil {
			// A broken page should not hide the rest of the form.
			continue
		}
		for _, w := range widgets {
			result.Fields = append(result.Fields, WidgetFieldInfo{
				Page:  page,
				Name:  w.FieldName,
				Value: w.Value,
				X:     w.Rect.X,
				Y:     w.Rect.Y,
				W:     w.Rect.W,
				H:     w.Rect.H,
			})
		}
	}
	return result, nil
}

// OverlayInfo summarizes the overlay sidecar for a document without opening
// the PDF itself.
func (s *Service) OverlayInfo(req OverlayInfoRequest) (*OverlayInfoResult, error) {
	sidecar := overlaySidecar(req.Path)
	result := &OverlayInfoResult{
		OverlayPath: sidecar,
		PerPage:     map[int]int{},
	}

	data, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("cannot read overlay %s: %w", sidecar, err)
	}

	o := overlay.Parse(data)
	result.Exists = true
	result.Version = o.Version
	result.TotalBoxes = len(o.Boxes)
	for _, b := range o.Boxes {
		result.PerPage[b.Page]++
		if b.Key != nil {
			result.KeyBound++
		}
		if b.Value != nil {
			result.ValueBound++
		}
		if b.Erase {
			result.EraseBoxes++
		}
	}
	return result, nil
}

// sortedPages returns the page numbers of a per-page count map in order.
func sortedPages(perPage map[int]int) []int {
	pages := make([]int, 0, len(perPage))
	for p := range perPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
