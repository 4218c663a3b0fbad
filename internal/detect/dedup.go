package detect

import (
	"github.com/fieldscope/fieldscope/internal/geometry"
	"github.com/fieldscope/fieldscope/internal/overlay"
)

// Deduplicator merges and discards overlapping candidates. Two thresholds
// apply: fresh candidates compete with each other at IntraPassOverlap, but
// defer conservatively to anything already persisted at the lower
// PersistedOverlap.
type Deduplicator struct {
	tuning Tuning
}

// NewDeduplicator creates a deduplicator with the given tuning.
func NewDeduplicator(tuning Tuning) *Deduplicator {
	return &Deduplicator{tuning: tuning.sanitized()}
}

// Filter folds fresh candidates into the accepted set for one page.
// Candidates with non-finite geometry are skipped. A fresh candidate that
// overlaps a persisted box beyond PersistedOverlap is dropped outright.
// Within the pass, an overlap at or beyond IntraPassOverlap keeps the
// candidate with the higher source priority, tie-broken by larger area.
func (d *Deduplicator) Filter(fresh []Candidate, accepted []Candidate, persisted []overlay.Box) []Candidate {
	for _, cand := range fresh {
		if !cand.Rect.IsFinite() || cand.Rect.Area() <= 0 {
			continue
		}
		if d.overlapsPersisted(cand, persisted) {
			continue
		}
		accepted = d.accept(cand, accepted)
	}
	return accepted
}

func (d *Deduplicator) overlapsPersisted(cand Candidate, persisted []overlay.Box) bool {
	for _, b := range persisted {
		if b.Page != cand.Page {
			continue
		}
		if geometry.OverlapRatio(cand.Rect, b.Rect()) > d.tuning.PersistedOverlap {
			return true
		}
	}
	return false
}

// accept inserts cand into accepted, resolving duplicate conflicts. A
// candidate may conflict with several accepted candidates that do not
// conflict with each other; it enters only by beating every one of them,
// and then replaces them all. Losing to any keeps the accepted set as is.
func (d *Deduplicator) accept(cand Candidate, accepted []Candidate) []Candidate {
	var conflicts []int
	for i, prev := range accepted {
		if prev.Page != cand.Page {
			continue
		}
		if geometry.OverlapRatio(cand.Rect, prev.Rect) < d.tuning.IntraPassOverlap {
			continue
		}
		if !wins(cand, prev) {
			return accepted
		}
		conflicts = append(conflicts, i)
	}
	if len(conflicts) == 0 {
		return append(accepted, cand)
	}
	kept := make([]Candidate, 0, len(accepted)-len(conflicts)+1)
	for i, prev := range accepted {
		if len(conflicts) > 0 && i == conflicts[0] {
			conflicts = conflicts[1:]
			continue
		}
		kept = append(kept, prev)
	}
	return append(kept, cand)
}

// wins reports whether a beats b: higher source priority first, larger
// area on ties.
func wins(a, b Candidate) bool {
	pa, pb := a.Source.Priority(), b.Source.Priority()
	if pa != pb {
		return pa > pb
	}
	return a.Rect.Area() > b.Rect.Area()
}
