package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscope/fieldscope/internal/overlay"
)

func anchorDetector() *AnchorDetector {
	return NewAnchorDetector(DefaultTuning())
}

func findByKey(cands []Candidate, key string) (Candidate, bool) {
	for _, c := range cands {
		if c.Key != nil && *c.Key == key {
			return c, true
		}
	}
	return Candidate{}, false
}

func TestAnchorDetectSellerLabel(t *testing.T) {
	d := anchorDetector()
	geom := letterGeom(1)

	run := TextRun{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12}
	cands := d.Detect(geom, []TextRun{run}, nil)

	c, ok := findByKey(cands, "SELLER_NAME")
	require.True(t, ok)
	assert.Equal(t, SourceAnchor, c.Source)
	assert.Equal(t, 12.0, c.FontSize)

	// The whole run is the label ("Seller:" ends with the colon), so the
	// field starts 8pt after the run.
	assert.InDelta(t, 50+42+8, c.Rect.X, 1e-9)
	assert.InDelta(t, 20, c.Rect.H, 1e-9)
	// Vertically centered on the label run.
	assert.InDelta(t, 100+7-10, c.Rect.Y, 1e-9)
	// The field stretches to the right margin.
	assert.InDelta(t, geom.Width-c.Rect.X-8, c.Rect.W, 1e-9)
	assert.GreaterOrEqual(t, c.Rect.W, 120.0)
}

func TestAnchorDetectAllThreeKeys(t *testing.T) {
	d := anchorDetector()
	geom := letterGeom(1)

	runs := []TextRun{
		{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12},
		{Page: 1, X: 50, Y: 140, W: 40, H: 14, Text: "Buyer:", FontSize: 12},
		{Page: 1, X: 50, Y: 180, W: 110, H: 14, Text: "Property Address:", FontSize: 12},
	}
	cands := d.Detect(geom, runs, nil)
	require.Len(t, cands, 3)

	for _, key := range []string{"SELLER_NAME", "BUYER_NAME", "PROPERTY_ADDRESS"} {
		_, ok := findByKey(cands, key)
		assert.True(t, ok, "expected a candidate for %s", key)
	}
}

func TestAnchorDetectAtMostOnePerKey(t *testing.T) {
	d := anchorDetector()
	geom := letterGeom(1)

	// Two seller labels on one page still yield a single candidate.
	runs := []TextRun{
		{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12},
		{Page: 1, X: 50, Y: 400, W: 42, H: 14, Text: "Seller:", FontSize: 12},
	}
	cands := d.Detect(geom, runs, nil)
	assert.Len(t, cands, 1)
}

func TestAnchorPrefersEarlyPosition(t *testing.T) {
	d := anchorDetector()
	geom := letterGeom(1)

	// A label deep in the bottom-right is passed over for one in the
	// reading zone.
	runs := []TextRun{
		{Page: 1, X: 450, Y: 700, W: 42, H: 14, Text: "Seller:", FontSize: 12},
		{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12},
	}
	cands := d.Detect(geom, runs, nil)
	require.Len(t, cands, 1)
	assert.InDelta(t, 100+7-10, cands[0].Rect.Y, 1e-9)
}

func TestAnchorPrefersColonWhenNoEarlyMatch(t *testing.T) {
	d := anchorDetector()
	geom := PageGeometry{Page: 1, Width: 612, Height: 200}

	// Both labels sit outside the early zone (y >= 70% of height); the
	// colon-bearing one wins.
	runs := []TextRun{
		{Page: 1, X: 500, Y: 150, W: 42, H: 14, Text: "Seller", FontSize: 12},
		{Page: 1, X: 50, Y: 160, W: 45, H: 14, Text: "Seller:", FontSize: 12},
	}
	cands := d.Detect(geom, runs, nil)
	require.Len(t, cands, 1)
	assert.InDelta(t, 160+7-10, cands[0].Rect.Y, 1e-9)
}

func TestAnchorSkipsWhenBoxAlreadyPresent(t *testing.T) {
	d := anchorDetector()
	geom := letterGeom(1)

	run := TextRun{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12}

	// A persisted box covering the would-be target suppresses the anchor.
	existing := []overlay.Box{{ID: "prev", Page: 1, X: 100, Y: 95, W: 480, H: 24}}
	cands := d.Detect(geom, []TextRun{run}, existing)
	assert.Empty(t, cands)

	// The same box on another page does not.
	otherPage := []overlay.Box{{ID: "prev", Page: 2, X: 100, Y: 95, W: 480, H: 24}}
	cands = d.Detect(geom, []TextRun{run}, otherPage)
	assert.Len(t, cands, 1)
}

func TestAnchorPersistedThresholdIsExclusive(t *testing.T) {
	tuning := DefaultTuning()
	tuning.PersistedOverlap = 0.5
	d := NewAnchorDetector(tuning)
	geom := letterGeom(1)

	run := TextRun{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12}

	// The target rect is (100, 97, 504, 20). A same-sized persisted box
	// shifted by half its width overlaps it exactly at the threshold;
	// suppression requires strictly more, same as the deduplicator.
	atThreshold := []overlay.Box{{ID: "prev", Page: 1, X: 352, Y: 97, W: 504, H: 20}}
	cands := d.Detect(geom, []TextRun{run}, atThreshold)
	assert.Len(t, cands, 1)

	above := []overlay.Box{{ID: "prev", Page: 1, X: 351, Y: 97, W: 504, H: 20}}
	cands = d.Detect(geom, []TextRun{run}, above)
	assert.Empty(t, cands)
}

func TestAnchorRejectsOutOfBoundsTarget(t *testing.T) {
	d := anchorDetector()
	// On a very narrow page the 120pt minimum width pushes the target past
	// the right edge.
	geom := PageGeometry{Page: 1, Width: 200, Height: 792}

	run := TextRun{Page: 1, X: 50, Y: 100, W: 42, H: 14, Text: "Seller:", FontSize: 12}
	assert.Empty(t, d.Detect(geom, []TextRun{run}, nil))
}

func TestAnchorLabelLengthWithoutColon(t *testing.T) {
	d := anchorDetector()
	geom := letterGeom(1)

	// "Buyer " followed by more text: the token spelling bounds the label.
	run := TextRun{Page: 1, X: 50, Y: 100, W: 120, H: 14, Text: "Buyer (print name)", FontSize: 12}
	cands := d.Detect(geom, []TextRun{run}, nil)

	c, ok := findByKey(cands, "BUYER_NAME")
	require.True(t, ok)
	// Label is the leading "Buyer" (5 of 18 runes).
	assert.InDelta(t, 50+120*(5.0/18.0)+8, c.Rect.X, 1e-9)
}
