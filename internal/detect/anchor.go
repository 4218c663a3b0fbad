package detect

import (
	"math"
	"strings"

	"github.com/fieldscope/fieldscope/internal/geometry"
	"github.com/fieldscope/fieldscope/internal/overlay"
)

// anchorRule recognizes a label run for one well-known field key. Match
// receives the run text upper-cased and an alphabetic-only variant of it;
// prefer marks runs that look like true labels (they carry a colon).
type anchorRule struct {
	key    string
	match  func(upper, alpha string) bool
	prefer func(upper string) bool
	tokens []string // label spellings, longest first, for locating the label end
}

func hasColon(upper string) bool {
	return strings.Contains(upper, ":")
}

// defaultAnchorRules covers the field keys that appear on nearly every
// residential purchase contract.
func defaultAnchorRules() []anchorRule {
	return []anchorRule{
		{
			key: "SELLER_NAME",
			match: func(upper, alpha string) bool {
				return strings.HasPrefix(upper, "SELLER") || alpha == "SELLER" || alpha == "SELLERS" || alpha == "SELLERNAME"
			},
			prefer: hasColon,
			tokens: []string{"SELLER NAME", "SELLER(S)", "SELLERS", "SELLER"},
		},
		{
			key: "BUYER_NAME",
			match: func(upper, alpha string) bool {
				return strings.HasPrefix(upper, "BUYER") || strings.HasPrefix(upper, "PURCHASER") ||
					alpha == "BUYER" || alpha == "BUYERS" || alpha == "BUYERNAME" || alpha == "PURCHASER"
			},
			prefer: hasColon,
			tokens: []string{"BUYER NAME", "BUYER(S)", "PURCHASER", "BUYERS", "BUYER"},
		},
		{
			key: "PROPERTY_ADDRESS",
			match: func(upper, alpha string) bool {
				return strings.Contains(upper, "PROPERTY ADDRESS") || alpha == "PROPERTYADDRESS" ||
					strings.HasPrefix(upper, "ADDRESS")
			},
			prefer: hasColon,
			tokens: []string{"PROPERTY ADDRESS", "ADDRESS"},
		},
	}
}

// AnchorDetector infers a field rectangle adjacent to a recognized label
// run, e.g. the blank to the right of "Seller:".
type AnchorDetector struct {
	tuning Tuning
	rules  []anchorRule
}

// NewAnchorDetector creates a detector with the default rule table.
func NewAnchorDetector(tuning Tuning) *AnchorDetector {
	return &AnchorDetector{tuning: tuning.sanitized(), rules: defaultAnchorRules()}
}

// Detect emits at most one candidate per rule. Labels usually appear early
// in reading order, so a run whose origin falls within the left 70% and top
// 70% of the page is chosen first, then the first colon-bearing match, then
// any match.
func (d *AnchorDetector) Detect(geom PageGeometry, runs []TextRun, existing []overlay.Box) []Candidate {
	var out []Candidate
	for _, rule := range d.rules {
		run, ok := d.selectRun(rule, geom, runs)
		if !ok {
			continue
		}
		rect, ok := d.targetRect(rule, geom, run)
		if !ok {
			continue
		}
		if d.overlapsExisting(rect, geom.Page, existing) {
			continue
		}
		out = append(out, Candidate{
			ID:       newCandidateID(),
			Page:     geom.Page,
			Rect:     rect,
			Source:   SourceAnchor,
			Key:      strptr(rule.key),
			FontSize: run.FontSize,
		})
	}
	return out
}

func (d *AnchorDetector) selectRun(rule anchorRule, geom PageGeometry, runs []TextRun) (TextRun, bool) {
	var matches []TextRun
	for _, run := range runs {
		upper := strings.ToUpper(strings.TrimSpace(run.Text))
		if rule.match(upper, alphaOnly(upper)) {
			matches = append(matches, run)
		}
	}
	if len(matches) == 0 {
		return TextRun{}, false
	}
	for _, run := range matches {
		if run.X < geom.Width*0.7 && run.Y < geom.Height*0.7 {
			return run, true
		}
	}
	for _, run := range matches {
		if rule.prefer(strings.ToUpper(run.Text)) {
			return run, true
		}
	}
	return matches[0], true
}

// targetRect places the field just after the label portion of the run.
func (d *AnchorDetector) targetRect(rule anchorRule, geom PageGeometry, run TextRun) (geometry.Rect, bool) {
	total := len([]rune(run.Text))
	if total == 0 {
		return geometry.Rect{}, false
	}
	labelLen := labelLength(rule, run.Text)
	x := run.X + run.W*(float64(labelLen)/float64(total)) + 8

	w := math.Max(120, geom.Width-x-8)
	h := 20.0
	y := run.Y + run.H/2 - h/2

	rect := geometry.Rect{X: x, Y: y, W: w, H: h}
	if !rect.IsFinite() || x < 0 || y < 0 || rect.Right() > geom.Width || rect.Bottom() > geom.Height {
		return geometry.Rect{}, false
	}
	return rect, true
}

// labelLength returns the rune offset where the label text ends inside the
// run. A colon terminates the label; otherwise the longest known token
// spelling is used.
func labelLength(rule anchorRule, text string) int {
	upper := strings.ToUpper(text)
	if idx := strings.Index(upper, ":"); idx >= 0 {
		return len([]rune(upper[:idx+1]))
	}
	for _, token := range rule.tokens {
		if idx := strings.Index(upper, token); idx >= 0 {
			return len([]rune(upper[:idx])) + len([]rune(token))
		}
	}
	return len([]rune(text))
}

func (d *AnchorDetector) overlapsExisting(rect geometry.Rect, page int, existing []overlay.Box) bool {
	for _, b := range existing {
		if b.Page != page {
			continue
		}
		if geometry.OverlapRatio(rect, b.Rect()) > d.tuning.PersistedOverlap {
			return true
		}
	}
	return false
}

// alphaOnly strips everything but letters.
func alphaOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
