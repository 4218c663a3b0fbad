package view

import (
	"math"

	"github.com/google/uuid"

	"github.com/fieldscope/fieldscope/internal/detect"
	"github.com/fieldscope/fieldscope/internal/geometry"
	"github.com/fieldscope/fieldscope/internal/overlay"
)

// Mode is the controller's interaction mode.
type Mode string

const (
	// ModeSelect selects, moves and resizes existing boxes.
	ModeSelect Mode = "select"
	// ModeAdd places a new default-sized box at the click position.
	ModeAdd Mode = "add"
	// ModeText turns a detected text region into an erase-bound box, or
	// selects the box already covering it.
	ModeText Mode = "text"
)

// Handle names a resize handle by compass corner.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
)

// Interaction geometry, in screen pixels for hit tests and page points for
// box sizes.
const (
	edgeHitPx    = 10.0
	handleHitPx  = 8.0
	defaultBoxW  = 220.0
	defaultBoxH  = 22.0
	minBoxWidth  = 30.0
	minBoxHeight = 18.0
)

type dragKind int

const (
	dragNone dragKind = iota
	dragMove
	dragResize
)

type dragState struct {
	kind    dragKind
	boxID   string
	handle  Handle
	startX  float64 // page points
	startY  float64
	orig    overlay.Box
	current geometry.Rect
}

// Controller is the select/add/move/resize state machine for one document
// session. Pointer positions arrive in screen pixels; the controller maps
// them through its transform and commits finished edits to the overlay
// store synchronously.
type Controller struct {
	store     *overlay.Store
	tuning    detect.Tuning
	transform Transform
	mode      Mode

	pages      map[int]detect.PageGeometry
	regions    map[int][]detect.TextRun
	selectedID string
	pendingKey string
	drag       *dragState
}

// NewController creates a controller over the store.
func NewController(store *overlay.Store, tuning detect.Tuning) *Controller {
	return &Controller{
		store:   store,
		tuning:  tuning,
		mode:    ModeSelect,
		pages:   make(map[int]detect.PageGeometry),
		regions: make(map[int][]detect.TextRun),
	}
}

// SetTransform updates the active zoom transform.
func (c *Controller) SetTransform(t Transform) {
	c.transform = t
}

// SetMode switches the interaction mode and cancels any drag in flight.
func (c *Controller) SetMode(mode Mode) {
	c.mode = mode
	c.drag = nil
}

// Mode returns the current interaction mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// SetPageGeometry registers a page's size for clamping.
func (c *Controller) SetPageGeometry(geom detect.PageGeometry) {
	c.pages[geom.Page] = geom
}

// SetTextRegions supplies the detected text regions used by text mode.
func (c *Controller) SetTextRegions(page int, runs []detect.TextRun) {
	c.regions[page] = runs
}

// SetPendingKey pre-binds the next added box to a field key. An empty
// string clears the binding.
func (c *Controller) SetPendingKey(key string) {
	c.pendingKey = key
}

// Selected returns the id of the selected box, if any.
func (c *Controller) Selected() (string, bool) {
	return c.selectedID, c.selectedID != ""
}

// DragRect returns the provisional rectangle of a drag in flight so the UI
// can render live feedback before the edit is committed.
func (c *Controller) DragRect() (geometry.Rect, bool) {
	if c.drag == nil {
		return geometry.Rect{}, false
	}
	return c.drag.current, true
}

// MouseDown dispatches a pointer-down on the given page at screen position
// (sx, sy).
func (c *Controller) MouseDown(page int, sx, sy float64) error {
	x, y := c.transform.ToPage(sx, sy)
	switch c.mode {
	case ModeAdd:
		return c.placeDefaultBox(page, x, y)
	case ModeText:
		return c.clickTextRegion(page, x, y)
	default:
		c.beginSelectDrag(page, x, y)
		return nil
	}
}

// MouseMove advances a drag in flight.
func (c *Controller) MouseMove(sx, sy float64) {
	if c.drag == nil {
		return
	}
	x, y := c.transform.ToPage(sx, sy)
	switch c.drag.kind {
	case dragMove:
		c.drag.current = c.clampToPage(c.drag.orig.Page, geometry.Rect{
			X: c.drag.orig.X + (x - c.drag.startX),
			Y: c.drag.orig.Y + (y - c.drag.startY),
			W: c.drag.orig.W,
			H: c.drag.orig.H,
		})
	case dragResize:
		c.drag.current = c.resizeRect(c.drag.orig, c.drag.handle, x, y)
	}
}

// MouseUp commits the drag in flight, if any.
func (c *Controller) MouseUp() error {
	drag := c.drag
	c.drag = nil
	if drag == nil || drag.kind == dragNone {
		return nil
	}
	r := drag.current
	return c.store.Upsert(drag.boxID, overlay.Patch{X: &r.X, Y: &r.Y, W: &r.W, H: &r.H})
}

// DeleteSelected removes the selected box.
func (c *Controller) DeleteSelected() error {
	if c.selectedID == "" {
		return nil
	}
	id := c.selectedID
	c.selectedID = ""
	return c.store.Delete(id)
}

// beginSelectDrag hit-tests boxes on the page: a handle starts a resize
// drag, a position within the edge tolerance starts a move drag, a plain
// hit selects, and empty space deselects.
func (c *Controller) beginSelectDrag(page int, x, y float64) {
	tol := c.transform.PixelsToPoints(edgeHitPx)
	handleTol := c.transform.PixelsToPoints(handleHitPx)

	for _, b := range c.store.Boxes() {
		if b.Page != page {
			continue
		}
		rect := b.Rect()
		if h, ok := hitHandle(rect, x, y, handleTol); ok {
			c.selectedID = b.ID
			c.drag = &dragState{
				kind: dragResize, boxID: b.ID, handle: h,
				startX: x, startY: y, orig: b, current: rect,
			}
			return
		}
		if nearEdge(rect, x, y, tol) {
			c.selectedID = b.ID
			c.drag = &dragState{
				kind: dragMove, boxID: b.ID,
				startX: x, startY: y, orig: b, current: rect,
			}
			return
		}
		if rect.Contains(x, y) {
			c.selectedID = b.ID
			return
		}
	}
	c.selectedID = ""
}

// placeDefaultBox adds a 220x22pt box at the click position, optionally
// pre-bound to the pending key.
func (c *Controller) placeDefaultBox(page int, x, y float64) error {
	rect := c.clampToPage(page, geometry.Rect{
		X: x - defaultBoxW/2,
		Y: y - defaultBoxH/2,
		W: defaultBoxW,
		H: defaultBoxH,
	})
	box := overlay.Box{
		ID:   uuid.NewString(),
		Page: page,
		X:    rect.X, Y: rect.Y, W: rect.W, H: rect.H,
	}
	if c.pendingKey != "" {
		key := c.pendingKey
		box.Key = &key
	} else {
		empty := ""
		box.Value = &empty
	}
	warning, err := c.store.Add(box)
	if err != nil {
		return err
	}
	if warning == "" {
		c.selectedID = box.ID
	}
	return nil
}

// clickTextRegion either selects the box already covering the clicked text
// region or creates a new erase-bound box carrying the region's text.
// Duplicate detection reuses the candidate dedup rule.
func (c *Controller) clickTextRegion(page int, x, y float64) error {
	var region *detect.TextRun
	for i, run := range c.regions[page] {
		if run.Rect().Contains(x, y) {
			region = &c.regions[page][i]
			break
		}
	}
	if region == nil {
		c.selectedID = ""
		return nil
	}

	rect := region.Rect()
	for _, b := range c.store.Boxes() {
		if b.Page != page {
			continue
		}
		if geometry.OverlapRatio(rect, b.Rect()) >= c.tuning.IntraPassOverlap {
			c.selectedID = b.ID
			return nil
		}
	}

	text := region.Text
	fontSize := region.FontSize
	box := overlay.Box{
		ID:   uuid.NewString(),
		Page: page,
		X:    rect.X, Y: rect.Y, W: rect.W, H: rect.H,
		Value:    &text,
		FontSize: &fontSize,
		Erase:    true,
	}
	warning, err := c.store.Add(box)
	if err != nil {
		return err
	}
	if warning == "" {
		c.selectedID = box.ID
	}
	return nil
}

// resizeRect recomputes the rectangle for a resize drag: the corner
// opposite the handle stays fixed, the minimum size is enforced, and the
// dragged corner is pinned to the page so the box never leaves it. The
// pointer is clamped before the rectangle is computed; translating the
// finished rectangle would move the fixed corner.
func (c *Controller) resizeRect(orig overlay.Box, handle Handle, x, y float64) geometry.Rect {
	if geom, ok := c.pages[orig.Page]; ok {
		x = geometry.Clamp(x, 0, geom.Width)
		y = geometry.Clamp(y, 0, geom.Height)
	}

	rect := orig.Rect()
	var fixedX, fixedY float64
	switch handle {
	case HandleNW:
		fixedX, fixedY = rect.Right(), rect.Bottom()
	case HandleNE:
		fixedX, fixedY = rect.X, rect.Bottom()
	case HandleSW:
		fixedX, fixedY = rect.Right(), rect.Y
	default: // se
		fixedX, fixedY = rect.X, rect.Y
	}

	x0 := math.Min(fixedX, x)
	x1 := math.Max(fixedX, x)
	y0 := math.Min(fixedY, y)
	y1 := math.Max(fixedY, y)

	next := geometry.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
	if next.W < minBoxWidth {
		next.W = minBoxWidth
		if x < fixedX {
			next.X = fixedX - minBoxWidth
		} else {
			next.X = fixedX
		}
	}
	if next.H < minBoxHeight {
		next.H = minBoxHeight
		if y < fixedY {
			next.Y = fixedY - minBoxHeight
		} else {
			next.Y = fixedY
		}
	}
	return c.clampToPage(orig.Page, next)
}

// clampToPage keeps a rectangle fully inside its page.
func (c *Controller) clampToPage(page int, rect geometry.Rect) geometry.Rect {
	geom, ok := c.pages[page]
	if !ok {
		return rect
	}
	if rect.W > geom.Width {
		rect.W = geom.Width
	}
	if rect.H > geom.Height {
		rect.H = geom.Height
	}
	rect.X = geometry.Clamp(rect.X, 0, geom.Width-rect.W)
	rect.Y = geometry.Clamp(rect.Y, 0, geom.Height-rect.H)
	return rect
}

// hitHandle reports which corner handle, if any, contains the point.
func hitHandle(rect geometry.Rect, x, y, tol float64) (Handle, bool) {
	corners := []struct {
		h    Handle
		x, y float64
	}{
		{HandleNW, rect.X, rect.Y},
		{HandleNE, rect.Right(), rect.Y},
		{HandleSW, rect.X, rect.Bottom()},
		{HandleSE, rect.Right(), rect.Bottom()},
	}
	for _, corner := range corners {
		if math.Abs(x-corner.x) <= tol && math.Abs(y-corner.y) <= tol {
			return corner.h, true
		}
	}
	return "", false
}

// nearEdge reports whether the point lies within tol of any box edge.
func nearEdge(rect geometry.Rect, x, y, tol float64) bool {
	withinX := x >= rect.X-tol && x <= rect.Right()+tol
	withinY := y >= rect.Y-tol && y <= rect.Bottom()+tol
	if !withinX || !withinY {
		return false
	}
	nearLeft := math.Abs(x-rect.X) <= tol
	nearRight := math.Abs(x-rect.Right()) <= tol
	nearTop := math.Abs(y-rect.Y) <= tol
	nearBottom := math.Abs(y-rect.Bottom()) <= tol
	return nearLeft || nearRight || nearTop || nearBottom
}
