package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fieldscope/fieldscope/internal/overlay"
)

// ErrDetectionBusy is returned when a detection pass is requested while one
// is already running. Callers treat it as a benign no-op.
var ErrDetectionBusy = errors.New("detection already running")

// ErrNoRaster is returned by raster sources that cannot produce a bitmap
// for a page. The engine skips the raster strategy for that page.
var ErrNoRaster = errors.New("no raster available")

// Sources bundles the document collaborators one engine works against.
// Annotations and Raster may be nil; the corresponding strategies are then
// skipped.
type Sources struct {
	Geometry    PageGeometrySource
	Runs        TextRunSource
	Annotations AnnotationSource
	Raster      RasterSource
}

// PageError is a page-scoped failure of one strategy. It never aborts the
// pass; the remaining strategies and pages still contribute.
type PageError struct {
	Page  int
	Stage string
	Err   error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %s: %v", e.Page, e.Stage, e.Err)
}

// PassResult summarizes one completed detection pass.
type PassResult struct {
	Added      int
	Boxes      []overlay.Box
	PageErrors []PageError
	Warnings   []string
	Status     string
}

// Engine runs detection passes for a single document-editing session.
// Detection is single-flight: a second request while a pass is running is
// rejected with ErrDetectionBusy. Pages are processed strictly
// sequentially, so at most one rasterized page is alive at a time. The
// automatic pass runs exactly once, and only when the overlay is empty on
// first load; the attempted flag is session state, never shared between
// documents.
type Engine struct {
	mu        sync.Mutex
	busy      bool
	attempted bool

	src    Sources
	store  *overlay.Store
	tuning Tuning
	anchor *AnchorDetector
	widget WidgetDetector
	blank  BlankDetector
	raster *RasterDetector
	dedup  *Deduplicator

	fieldValues map[string]string
	fieldMeta   map[string]FieldMeta
}

// NewEngine creates an engine over the given sources and store.
func NewEngine(src Sources, store *overlay.Store, tuning Tuning) *Engine {
	tuning = tuning.sanitized()
	return &Engine{
		src:    src,
		store:  store,
		tuning: tuning,
		anchor: NewAnchorDetector(tuning),
		raster: NewRasterDetector(tuning),
		dedup:  NewDeduplicator(tuning),
	}
}

// SetFieldValues supplies the external value map and optional display-only
// metadata consulted by the widget detector and by box display resolution.
func (e *Engine) SetFieldValues(values map[string]string, meta map[string]FieldMeta) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fieldValues = values
	e.fieldMeta = meta
}

// FieldMeta returns the display-only provenance for a field key, if any.
func (e *Engine) FieldMeta(key string) (FieldMeta, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.fieldMeta[key]
	return m, ok
}

// Busy reports whether a pass is currently running.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// AutoDetect runs the one automatic pass: only on the first call for this
// session, and only when the overlay is empty. Subsequent passes are
// user-initiated through Detect.
func (e *Engine) AutoDetect(ctx context.Context) (*PassResult, error) {
	e.mu.Lock()
	if e.attempted {
		e.mu.Unlock()
		return nil, nil
	}
	e.attempted = true
	empty := e.store.Len() == 0
	e.mu.Unlock()
	if !empty {
		return nil, nil
	}
	return e.Detect(ctx)
}

// Detect runs one full detection pass and commits the surviving candidates
// to the overlay store as a single write. A canceled context aborts the
// pass with no overlay write and no partial results.
func (e *Engine) Detect(ctx context.Context) (*PassResult, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrDetectionBusy
	}
	e.busy = true
	e.attempted = true
	values := e.fieldValues
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	pageCount, err := e.src.Geometry.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	persisted := e.store.Boxes()
	result := &PassResult{}
	var accepted []Candidate

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		accepted = e.detectPage(ctx, page, values, persisted, accepted, result)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes := make([]overlay.Box, 0, len(accepted))
	for _, c := range accepted {
		boxes = append(boxes, c.Box())
	}
	added, warning, err := e.store.AddAll(boxes)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	result.Added = len(added)
	result.Boxes = added
	result.Status = statusString(len(added), result.PageErrors)
	return result, nil
}

// detectPage runs all strategies for one page, feeding each strategy's
// output through the deduplicator. Strategy failures are collected as
// page-scoped errors; one failing strategy never silences the others.
func (e *Engine) detectPage(
	ctx context.Context,
	page int,
	values map[string]string,
	persisted []overlay.Box,
	accepted []Candidate,
	result *PassResult,
) []Candidate {
	geom, err := e.src.Geometry.PageGeometry(page)
	if err != nil {
		result.PageErrors = append(result.PageErrors, PageError{Page: page, Stage: "geometry", Err: err})
		return accepted
	}

	var runs []TextRun
	if e.src.Runs != nil {
		runs, err = e.src.Runs.TextRuns(ctx, page)
		if err != nil {
			result.PageErrors = append(result.PageErrors, PageError{Page: page, Stage: "text", Err: err})
		}
	}

	pageStart := countPage(accepted, page)

	if e.src.Annotations != nil {
		widgets, err := e.src.Annotations.Widgets(ctx, page)
		if err != nil {
			result.PageErrors = append(result.PageErrors, PageError{Page: page, Stage: "widgets", Err: err})
		} else {
			cands := e.widget.Detect(geom, widgets, values, persisted)
			accepted = e.dedup.Filter(cands, accepted, persisted)
		}
	}

	accepted = e.dedup.Filter(e.anchor.Detect(geom, runs, persisted), accepted, persisted)
	accepted = e.dedup.Filter(e.blank.Detect(geom, runs), accepted, persisted)

	// The raster strategy is a fallback for pages whose text layer was not
	// enough, typically scanned or flattened forms.
	if e.src.Raster != nil && countPage(accepted, page)-pageStart < e.tuning.RasterTriggerCandidates {
		img, err := e.src.Raster.RenderPage(ctx, page, e.tuning.RasterScale)
		switch {
		case errors.Is(err, ErrNoRaster):
			// Nothing to scan for this page.
		case err != nil:
			result.PageErrors = append(result.PageErrors, PageError{Page: page, Stage: "raster", Err: err})
		default:
			cands := e.raster.Detect(geom, img, runs)
			accepted = e.dedup.Filter(cands, accepted, persisted)
		}
	}
	return accepted
}

func countPage(cands []Candidate, page int) int {
	n := 0
	for _, c := range cands {
		if c.Page == page {
			n++
		}
	}
	return n
}

func statusString(added int, pageErrors []PageError) string {
	var status string
	switch added {
	case 0:
		status = "No new fields detected"
	case 1:
		status = "Detected 1 field"
	default:
		status = fmt.Sprintf("Detected %d fields", added)
	}
	if len(pageErrors) > 0 {
		status += fmt.Sprintf(" (%d page errors)", len(pageErrors))
	}
	return status
}
