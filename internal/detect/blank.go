package detect

import (
	"math"
	"strings"

	"github.com/fieldscope/fieldscope/internal/geometry"
)

// Marker-run qualification thresholds: a run is a visual blank line when at
// least 5 of its characters are underscores or dots and they make up at
// least half the text.
const (
	minMarkerCount    = 5
	minMarkerRatio    = 0.5
	minMarkerRun      = 3
	minBlankWidth     = 50
	blankPaddingPt    = 2.0
	rowJoinMaxDY      = 6.0
	rowJoinGapLow     = -2.0
	rowJoinGapHigh    = 14.0
)

// BlankDetector extracts the blank-line sub-rectangle from runs composed
// mostly of underscore/dot marker characters, e.g. `Name: ___________`.
type BlankDetector struct{}

func isMarkerChar(r rune) bool {
	return r == '_' || r == '.' || r == '…'
}

// qualifies reports whether the run text is a blank marker per the count,
// ratio and length thresholds.
func qualifies(text string) bool {
	runes := []rune(text)
	if len(runes) < minMarkerCount {
		return false
	}
	markers := 0
	for _, r := range runes {
		if isMarkerChar(r) {
			markers++
		}
	}
	return markers >= minMarkerCount && float64(markers)/float64(len(runes)) >= minMarkerRatio
}

// markerSpan finds the first run of minMarkerRun or more consecutive marker
// characters and returns its rune offset and length.
func markerSpan(text string) (start, length int, ok bool) {
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		if !isMarkerChar(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isMarkerChar(runes[j]) {
			j++
		}
		if j-i >= minMarkerRun {
			return i, j - i, true
		}
		i = j
	}
	return 0, 0, false
}

// Detect emits one candidate per marker run, unioning adjacent marker
// rectangles that sit on the same visual row into a single box.
func (BlankDetector) Detect(geom PageGeometry, runs []TextRun) []Candidate {
	var rects []geometry.Rect
	var sizes []float64
	for _, run := range runs {
		text := strings.TrimSpace(run.Text)
		if !qualifies(text) {
			continue
		}
		start, length, ok := markerSpan(text)
		if !ok {
			continue
		}
		total := len([]rune(text))
		if total == 0 || run.W <= 0 {
			continue
		}
		// Scale the run's average character width by the marker substring's
		// offset and length to isolate the blank itself.
		charW := run.W / float64(total)
		x := run.X + charW*float64(start) + blankPaddingPt
		w := charW*float64(length) - 2*blankPaddingPt
		if w < minBlankWidth {
			continue
		}
		rect := geometry.Rect{X: x, Y: run.Y, W: w, H: run.H}
		if !rect.IsFinite() {
			continue
		}
		rects = append(rects, rect)
		sizes = append(sizes, run.FontSize)
	}

	rects, sizes = unionSameRow(rects, sizes)

	out := make([]Candidate, 0, len(rects))
	for i, rect := range rects {
		out = append(out, Candidate{
			ID:       newCandidateID(),
			Page:     geom.Page,
			Rect:     rect,
			Source:   SourceBlank,
			FontSize: sizes[i],
		})
	}
	return out
}

// unionSameRow merges marker rectangles on the same visual row (vertical
// delta under 6pt, horizontal gap in [-2, 14)) into one box. Ruled blanks
// are often drawn as several short underscore runs.
func unionSameRow(rects []geometry.Rect, sizes []float64) ([]geometry.Rect, []float64) {
	var outRects []geometry.Rect
	var outSizes []float64
	for i, rect := range rects {
		merged := false
		for j := range outRects {
			prev := outRects[j]
			if math.Abs(prev.Y-rect.Y) >= rowJoinMaxDY {
				continue
			}
			gap := rect.X - prev.Right()
			if gap < rowJoinGapLow || gap >= rowJoinGapHigh {
				continue
			}
			outRects[j] = prev.Union(rect)
			if sizes[i] > outSizes[j] {
				outSizes[j] = sizes[i]
			}
			merged = true
			break
		}
		if !merged {
			outRects = append(outRects, rect)
			outSizes = append(outSizes, sizes[i])
		}
	}
	return outRects, outSizes
}
