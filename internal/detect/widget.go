package detect

import (
	"github.com/fieldscope/fieldscope/internal/overlay"
)

// Minimum usable widget rectangle; anything smaller is decoration or a
// rendering artifact.
const (
	minWidgetWidth  = 18
	minWidgetHeight = 10
)

// WidgetDetector converts existing AcroForm widgets into candidates. It is
// the most authoritative strategy: the document author already declared
// these rectangles as fields.
type WidgetDetector struct{}

// Detect emits one candidate per named widget. A widget whose field name
// already has a box on the same page is skipped. The candidate binds to the
// external value map via Key when a value exists for the name; otherwise it
// carries the widget's current raw value.
func (WidgetDetector) Detect(
	geom PageGeometry,
	widgets []Widget,
	fieldValues map[string]string,
	existing []overlay.Box,
) []Candidate {
	placed := make(map[string]bool, len(existing))
	for _, b := range existing {
		if b.Page == geom.Page && b.Key != nil {
			placed[*b.Key] = true
		}
	}

	var out []Candidate
	for _, w := range widgets {
		if w.FieldName == "" {
			continue
		}
		if !w.Rect.IsFinite() || w.Rect.W < minWidgetWidth || w.Rect.H < minWidgetHeight {
			continue
		}
		if placed[w.FieldName] {
			continue
		}
		placed[w.FieldName] = true

		c := Candidate{
			ID:     newCandidateID(),
			Page:   geom.Page,
			Rect:   w.Rect,
			Source: SourceWidget,
			Key:    strptr(w.FieldName),
		}
		if _, bound := fieldValues[w.FieldName]; !bound {
			// No external value to bind; preserve what the widget holds.
			c.Value = strptr(w.Value)
		}
		out = append(out, c)
	}
	return out
}
