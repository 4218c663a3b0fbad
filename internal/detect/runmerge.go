package detect

import (
	"math"
	"sort"
	"strings"

	"github.com/fieldscope/fieldscope/internal/geometry"
)

// TextItem is a raw text item as delivered by a rendering backend: a string
// with a text-space transform matrix [a b c d e f] and optional measured
// width/height. Origins are in the PDF's native bottom-up coordinate space.
type TextItem struct {
	Text      string
	Transform [6]float64
	Width     float64
	Height    float64
}

// Font sizes derived from glyph height are clamped to this range; projected
// transforms on degenerate content otherwise produce unusable extremes.
const (
	minFontSize = 6
	maxFontSize = 28
)

// RunMerger merges raw glyph/text items into logical text-line regions.
// The output rectangles are stable across renders and feed the anchor and
// blank-marker detectors as well as manual text-click placement.
type RunMerger struct{}

// Merge projects items into top-down point space and merges adjacent or
// re-rendered fragments into logical runs. Regions smaller than 6x6pt are
// dropped.
func (RunMerger) Merge(items []TextItem, geom PageGeometry) []TextRun {
	runs := make([]TextRun, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		run, ok := projectItem(item, geom)
		if !ok {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		yi := math.Round(runs[i].Y)
		yj := math.Round(runs[j].Y)
		if yi != yj {
			return yi < yj
		}
		return runs[i].X < runs[j].X
	})

	merged := make([]TextRun, 0, len(runs))
	for _, run := range runs {
		if len(merged) > 0 && tryMerge(&merged[len(merged)-1], run) {
			continue
		}
		merged = append(merged, run)
	}

	out := merged[:0]
	for _, run := range merged {
		if run.W > 6 && run.H > 6 {
			out = append(out, run)
		}
	}
	return out
}

// projectItem maps one raw item into top-down point space and derives its
// metrics.
func projectItem(item TextItem, geom PageGeometry) (TextRun, bool) {
	t := item.Transform
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return TextRun{}, false
		}
	}

	glyphH := math.Hypot(t[2], t[3])
	fontSize := clampFont(glyphH)

	h := item.Height
	if h <= 0 {
		h = glyphH
	}
	if h <= 0 {
		h = fontSize
	}

	w := item.Width
	if w <= 0 {
		// Length-based fallback for backends that do not measure runs.
		w = float64(len([]rune(item.Text))) * fontSize * 0.5
	}

	x := t[4]
	y := geom.Height - t[5] - h
	return TextRun{
		Page:     geom.Page,
		X:        x,
		Y:        y,
		W:        w,
		H:        h,
		Text:     item.Text,
		FontSize: fontSize,
	}, true
}

// tryMerge folds run b into a when they form one logical line. Two runs
// merge when their vertical midpoints are close relative to the smaller
// height AND they either overlap heavily (the same text re-rendered) or sit
// horizontally adjacent.
func tryMerge(a *TextRun, b TextRun) bool {
	minH := math.Min(a.H, b.H)
	midA := a.Y + a.H/2
	midB := b.Y + b.H/2
	if math.Abs(midA-midB) >= math.Max(4, minH*0.35) {
		return false
	}

	overlap := geometry.OverlapRatio(a.Rect(), b.Rect())
	gap := b.X - (a.X + a.W)
	adjacent := gap >= -2 && gap < math.Max(12, minH*1.2)
	if overlap <= 0.65 && !adjacent {
		return false
	}

	if overlap > 0.65 {
		// Same text drawn twice (e.g. fake bold); keep the longer string.
		if len(b.Text) > len(a.Text) {
			a.Text = b.Text
		}
	} else if gap > 2 {
		a.Text = a.Text + " " + b.Text
	} else {
		a.Text += b.Text
	}

	x0 := math.Min(a.X, b.X)
	y0 := math.Min(a.Y, b.Y)
	x1 := math.Max(a.X+a.W, b.X+b.W)
	y1 := math.Max(a.Y+a.H, b.Y+b.H)
	a.X, a.Y, a.W, a.H = x0, y0, x1-x0, y1-y0
	if b.FontSize > a.FontSize {
		a.FontSize = b.FontSize
	}
	return true
}

func clampFont(v float64) float64 {
	if v < minFontSize {
		return minFontSize
	}
	if v > maxFontSize {
		return maxFontSize
	}
	return v
}
