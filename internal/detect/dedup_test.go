package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscope/fieldscope/internal/geometry"
	"github.com/fieldscope/fieldscope/internal/overlay"
)

func cand(source CandidateSource, page int, x, y, w, h float64) Candidate {
	return Candidate{
		ID:     newCandidateID(),
		Page:   page,
		Rect:   geometry.Rect{X: x, Y: y, W: w, H: h},
		Source: source,
	}
}

func TestDedupKeepsDisjointCandidates(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	accepted := d.Filter([]Candidate{
		cand(SourceBlank, 1, 0, 0, 100, 20),
		cand(SourceBlank, 1, 0, 100, 100, 20),
	}, nil, nil)
	assert.Len(t, accepted, 2)
}

func TestDedupHigherPriorityWins(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	line := cand(SourceLine, 1, 10, 10, 100, 20)
	widget := cand(SourceWidget, 1, 10, 10, 100, 20)

	// Later higher-priority candidate replaces the earlier one.
	accepted := d.Filter([]Candidate{line}, nil, nil)
	accepted = d.Filter([]Candidate{widget}, accepted, nil)
	require.Len(t, accepted, 1)
	assert.Equal(t, SourceWidget, accepted[0].Source)

	// Order independence: lower priority arriving second is discarded.
	accepted = d.Filter([]Candidate{widget}, nil, nil)
	accepted = d.Filter([]Candidate{line}, accepted, nil)
	require.Len(t, accepted, 1)
	assert.Equal(t, SourceWidget, accepted[0].Source)
}

func TestDedupWinnerReplacesAllConflicts(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	// Two blanks overlap each other by only 0.4, so both are accepted. The
	// wide widget conflicts with each of them and must replace both, not
	// just the first; otherwise the survivor and the widget would overlap
	// beyond the intra-pass threshold.
	a := cand(SourceBlank, 1, 0, 0, 100, 20)
	b := cand(SourceBlank, 1, 60, 0, 100, 20)
	require.Less(t, geometry.OverlapRatio(a.Rect, b.Rect), DefaultTuning().IntraPassOverlap)

	accepted := d.Filter([]Candidate{a, b}, nil, nil)
	require.Len(t, accepted, 2)

	wide := cand(SourceWidget, 1, 0, 0, 160, 20)
	accepted = d.Filter([]Candidate{wide}, accepted, nil)

	require.Len(t, accepted, 1)
	assert.Equal(t, SourceWidget, accepted[0].Source)

	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			ratio := geometry.OverlapRatio(accepted[i].Rect, accepted[j].Rect)
			assert.Less(t, ratio, DefaultTuning().IntraPassOverlap)
		}
	}
}

func TestDedupLoserLeavesAcceptedIntact(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	a := cand(SourceWidget, 1, 0, 0, 100, 20)
	b := cand(SourceBlank, 1, 60, 0, 100, 20)
	accepted := d.Filter([]Candidate{a, b}, nil, nil)
	require.Len(t, accepted, 2)

	// A line candidate conflicting with both loses to the widget and is
	// dropped whole; the blank it would have beaten stays.
	line := cand(SourceLine, 1, 0, 0, 160, 20)
	accepted = d.Filter([]Candidate{line}, accepted, nil)
	require.Len(t, accepted, 2)
	assert.Equal(t, SourceWidget, accepted[0].Source)
	assert.Equal(t, SourceBlank, accepted[1].Source)
}

func TestDedupEqualPriorityLargerAreaWins(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	small := cand(SourceBlank, 1, 10, 10, 100, 20)
	large := cand(SourceBlank, 1, 10, 10, 140, 20)

	accepted := d.Filter([]Candidate{small, large}, nil, nil)
	require.Len(t, accepted, 1)
	assert.InDelta(t, 140, accepted[0].Rect.W, 1e-9)
}

func TestDedupBelowThresholdKeepsBoth(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	// Half overlap is below the 0.65 intra-pass threshold.
	a := cand(SourceBlank, 1, 0, 0, 100, 20)
	b := cand(SourceBlank, 1, 50, 0, 100, 20)

	accepted := d.Filter([]Candidate{a, b}, nil, nil)
	assert.Len(t, accepted, 2)
}

func TestDedupDefersToPersisted(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	persisted := []overlay.Box{{ID: "old", Page: 1, X: 10, Y: 10, W: 100, H: 20}}

	// 50% overlap with a persisted box is above the 0.35 threshold.
	fresh := cand(SourceWidget, 1, 60, 10, 100, 20)
	accepted := d.Filter([]Candidate{fresh}, nil, persisted)
	assert.Empty(t, accepted)

	// The persisted threshold is page-scoped.
	otherPage := cand(SourceWidget, 2, 60, 10, 100, 20)
	accepted = d.Filter([]Candidate{otherPage}, nil, persisted)
	assert.Len(t, accepted, 1)
}

func TestDedupPersistedThresholdIsExclusive(t *testing.T) {
	tuning := DefaultTuning()
	d := NewDeduplicator(tuning)

	persisted := []overlay.Box{{ID: "old", Page: 1, X: 0, Y: 0, W: 100, H: 20}}

	// Exactly at the threshold survives; the drop requires strictly more.
	fresh := cand(SourceBlank, 1, 65, 0, 100, 20)
	ratio := geometry.OverlapRatio(fresh.Rect, persisted[0].Rect())
	require.InDelta(t, tuning.PersistedOverlap, ratio, 1e-9)

	accepted := d.Filter([]Candidate{fresh}, nil, persisted)
	assert.Len(t, accepted, 1)
}

func TestDedupSkipsDegenerateGeometry(t *testing.T) {
	d := NewDeduplicator(DefaultTuning())

	bad := []Candidate{
		cand(SourceBlank, 1, 10, 10, 0, 20),
		cand(SourceBlank, 1, math.NaN(), 10, 100, 20),
		{ID: "inf", Page: 1, Rect: geometry.Rect{X: 0, Y: 0, W: math.Inf(1), H: 20}, Source: SourceBlank},
	}
	assert.Empty(t, d.Filter(bad, nil, nil))
}

func TestSourcePriorityOrdering(t *testing.T) {
	assert.Greater(t, SourceWidget.Priority(), SourceAnchor.Priority())
	assert.Greater(t, SourceAnchor.Priority(), SourceBlank.Priority())
	assert.Greater(t, SourceBlank.Priority(), SourceLine.Priority())
	assert.Greater(t, SourceLine.Priority(), CandidateSource("unknown").Priority())
}
