package detect

import (
	"image"
	"math"
	"sort"
	"strings"

	"github.com/fieldscope/fieldscope/internal/geometry"
)

// rasterLine is a logical ruled line assembled from dark pixel runs: its
// horizontal extent and the vertical center of the stroke, in bitmap
// pixels.
type rasterLine struct {
	x0, x1 float64
	y      float64
	rows   int // stroke thickness in rows
}

func (l rasterLine) width() float64 {
	return l.x1 - l.x0
}

// segment is one horizontal dark run on a single bitmap row.
type segment struct {
	y      int
	x0, x1 int
}

// RasterDetector scans a rendered page bitmap for paired ruling lines that
// form fillable boxes. It is the fallback strategy for scanned or flattened
// forms whose text layer yields too few candidates, and carries the lowest
// priority.
type RasterDetector struct {
	tuning Tuning
}

// NewRasterDetector creates a detector with the given tuning.
func NewRasterDetector(tuning Tuning) *RasterDetector {
	return &RasterDetector{tuning: tuning.sanitized()}
}

// Pairing acceptance thresholds, in bitmap pixels at the render scale.
const (
	pairMinGapPx     = 10.0
	pairMaxGapPx     = 90.0
	pairMinOverlap   = 0.86
	pairMaxWidthRate = 1.25
	edgeMinDarkFrac  = 0.25
	segmentJoinGapPx = 3
	rowJoinOverlap   = 0.55
	underlineHeight  = 18.0 // pt
	rectInsetPt      = 1.0
	maxPageFraction  = 0.95
	minRectWidthPt   = 70.0
	labelZoneFrac    = 0.45
	labelZoneMaxPt   = 180.0
)

// Detect scans img (rendered at tuning.RasterScale pixels per point) and
// returns box candidates in point space. runs supplies the page's text
// regions so a detected rectangle can be trimmed past any label printed
// inside its left edge.
func (d *RasterDetector) Detect(geom PageGeometry, img image.Image, runs []TextRun) []Candidate {
	if img == nil {
		return nil
	}
	dark := d.darkMask(img)
	lines := d.findLines(dark)
	boxes, underlines := d.pairLines(dark, lines)

	scale := d.tuning.RasterScale
	var out []Candidate
	emit := func(r geometry.Rect) {
		rect := geometry.Rect{
			X: r.X/scale + rectInsetPt,
			Y: r.Y/scale + rectInsetPt,
			W: r.W/scale - 2*rectInsetPt,
			H: r.H/scale - 2*rectInsetPt,
		}
		rect = d.trimPastLabel(geom, rect, runs)
		if !rect.IsFinite() || rect.W < minRectWidthPt || rect.W > geom.Width*maxPageFraction {
			return
		}
		if rect.X < 0 || rect.Y < 0 || rect.Right() > geom.Width || rect.Bottom() > geom.Height {
			return
		}
		out = append(out, Candidate{
			ID:     newCandidateID(),
			Page:   geom.Page,
			Rect:   rect,
			Source: SourceLine,
		})
	}
	for _, r := range boxes {
		emit(r)
	}
	for _, l := range underlines {
		emit(geometry.Rect{
			X: l.x0,
			Y: l.y - underlineHeight*scale,
			W: l.width(),
			H: underlineHeight * scale,
		})
	}
	return out
}

// darkMask classifies every pixel as dark or not. A pixel counts as dark
// when its alpha is at least DarkAlphaMin and its Rec.709 luminance is
// below DarkLuminanceMax.
func (d *RasterDetector) darkMask(img image.Image) *mask {
	bounds := img.Bounds()
	m := newMask(bounds.Dx(), bounds.Dy())

	alphaMin := uint32(d.tuning.DarkAlphaMin)
	lumMax := float64(d.tuning.DarkLuminanceMax)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < m.h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+m.w*4]
			for x := 0; x < m.w; x++ {
				p := row[x*4 : x*4+4]
				if uint32(p[3]) < alphaMin {
					continue
				}
				lum := 0.2126*float64(p[0]) + 0.7152*float64(p[1]) + 0.0722*float64(p[2])
				if lum < lumMax {
					m.set(x, y)
				}
			}
		}
		return m
	}

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if a>>8 < alphaMin {
				continue
			}
			lum := 0.2126*float64(r>>8) + 0.7152*float64(g>>8) + 0.0722*float64(b>>8)
			if lum < lumMax {
				m.set(x, y)
			}
		}
	}
	return m
}

// findLines scans each row for horizontal dark runs and assembles them into
// logical ruled lines.
func (d *RasterDetector) findLines(m *mask) []rasterLine {
	minLen := int(math.Max(float64(d.tuning.MinLinePx), d.tuning.MinLineFraction*float64(m.w)))

	var segments []segment
	for y := 0; y < m.h; y++ {
		x := 0
		for x < m.w {
			if !m.get(x, y) {
				x++
				continue
			}
			start := x
			gap := 0
			end := x
			// Tolerate sub-segmentJoinGapPx holes so dashed or slightly
			// broken rules still read as one segment.
			for x < m.w {
				if m.get(x, y) {
					end = x
					gap = 0
				} else {
					gap++
					if gap > segmentJoinGapPx {
						break
					}
				}
				x++
			}
			if end-start+1 >= minLen {
				segments = append(segments, segment{y: y, x0: start, x1: end})
			}
		}
	}

	// Fold vertically adjacent segments (a stroke is several rows thick)
	// into one logical line when their horizontal extents overlap.
	var lines []rasterLine
	for _, s := range segments {
		merged := false
		for i := range lines {
			l := &lines[i]
			bottomRow := l.y + float64(l.rows)/2
			if float64(s.y)-bottomRow > float64(segmentJoinGapPx) {
				continue
			}
			if xOverlapRatio(l.x0, l.x1, float64(s.x0), float64(s.x1)) <= rowJoinOverlap {
				continue
			}
			l.x0 = math.Min(l.x0, float64(s.x0))
			l.x1 = math.Max(l.x1, float64(s.x1))
			l.y = (l.y*float64(l.rows) + float64(s.y)) / float64(l.rows+1)
			l.rows++
			merged = true
			break
		}
		if !merged {
			lines = append(lines, rasterLine{
				x0: float64(s.x0), x1: float64(s.x1), y: float64(s.y), rows: 1,
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].y < lines[j].y })
	return lines
}

// pairLines greedily pairs each top line with the best-scoring unused lower
// line, confirming the pairing through its vertical edges. Lines that end
// up in no confirmed pair come back as underline candidates.
func (d *RasterDetector) pairLines(m *mask, lines []rasterLine) (boxes []geometry.Rect, underlines []rasterLine) {
	usedBottom := make([]bool, len(lines))
	pairedTop := make([]bool, len(lines))

	for i, top := range lines {
		bestJ := -1
		bestScore := math.Inf(-1)
		for j := i + 1; j < len(lines); j++ {
			if usedBottom[j] {
				continue
			}
			bottom := lines[j]
			gap := bottom.y - top.y
			if gap < pairMinGapPx {
				continue
			}
			if gap > pairMaxGapPx {
				break
			}
			overlap := xOverlapRatio(top.x0, top.x1, bottom.x0, bottom.x1)
			if overlap < pairMinOverlap {
				continue
			}
			wr := widthRatio(top.width(), bottom.width())
			if wr > pairMaxWidthRate {
				continue
			}
			score := overlap - 0.5*(wr-1) - math.Abs(gap-d.tuning.TargetLineGapPx)/200
			if score > bestScore {
				bestScore = score
				bestJ = j
			}
		}
		if bestJ < 0 {
			continue
		}
		bottom := lines[bestJ]
		rect := geometry.Rect{
			X: math.Max(top.x0, bottom.x0),
			Y: top.y,
			W: math.Min(top.x1, bottom.x1) - math.Max(top.x0, bottom.x0),
			H: bottom.y - top.y,
		}
		if !d.edgesConfirm(m, rect) {
			continue
		}
		usedBottom[bestJ] = true
		pairedTop[i] = true
		boxes = append(boxes, rect)
	}

	for i, l := range lines {
		if !pairedTop[i] && !usedBottom[i] {
			underlines = append(underlines, l)
		}
	}
	return boxes, underlines
}

// edgesConfirm requires both vertical edges of a candidate box to be
// independently dark along at least a quarter of the sampled rows between
// the two lines. Text blocks pair up as convincingly as real boxes on the
// horizontal test alone; their flanks give them away.
func (d *RasterDetector) edgesConfirm(m *mask, rect geometry.Rect) bool {
	y0 := int(rect.Y) + 2
	y1 := int(rect.Bottom()) - 2
	if y1 <= y0 {
		return false
	}
	left := int(rect.X)
	right := int(rect.Right())

	darkAt := func(x, y int) bool {
		for dx := -2; dx <= 2; dx++ {
			if m.get(x+dx, y) {
				return true
			}
		}
		return false
	}

	sampled, leftDark, rightDark := 0, 0, 0
	for y := y0; y <= y1; y += 2 {
		sampled++
		if darkAt(left, y) {
			leftDark++
		}
		if darkAt(right, y) {
			rightDark++
		}
	}
	if sampled == 0 {
		return false
	}
	frac := float64(sampled) * edgeMinDarkFrac
	return float64(leftDark) >= frac && float64(rightDark) >= frac
}

// trimPastLabel moves the rectangle's left edge to just after any
// non-marker label text printed inside the box's left zone at the same
// vertical band.
func (d *RasterDetector) trimPastLabel(geom PageGeometry, rect geometry.Rect, runs []TextRun) geometry.Rect {
	zone := math.Min(geom.Width*labelZoneFrac, labelZoneMaxPt)
	bandTop := rect.Y - 4
	bandBottom := rect.Bottom() + 4

	for _, run := range runs {
		if qualifies(strings.TrimSpace(run.Text)) {
			continue
		}
		mid := run.Y + run.H/2
		if mid < bandTop || mid > bandBottom {
			continue
		}
		if run.X > rect.X+zone {
			continue
		}
		right := run.X + run.W
		if right > rect.X && right < rect.Right() {
			newX := right + 4
			rect.W -= newX - rect.X
			rect.X = newX
		}
	}
	return rect
}

func xOverlapRatio(a0, a1, b0, b1 float64) float64 {
	overlap := math.Min(a1, b1) - math.Max(a0, b0)
	if overlap <= 0 {
		return 0
	}
	minW := math.Min(a1-a0, b1-b0)
	if minW <= 0 {
		return 0
	}
	return overlap / minW
}

func widthRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return math.Inf(1)
	}
	return math.Max(a, b) / math.Min(a, b)
}

// mask is a packed per-pixel boolean grid.
type mask struct {
	w, h int
	bits []uint64
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, bits: make([]uint64, (w*h+63)/64)}
}

func (m *mask) set(x, y int) {
	i := y*m.w + x
	m.bits[i>>6] |= 1 << uint(i&63)
}

func (m *mask) get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return false
	}
	i := y*m.w + x
	return m.bits[i>>6]&(1<<uint(i&63)) != 0
}
