package detect

// Tuning collects the empirically tuned detection thresholds. The defaults
// were calibrated against a corpus of residential purchase contracts; they
// are surfaced here as named, overridable configuration rather than
// hard-coded constants.
type Tuning struct {
	// IntraPassOverlap is the overlap ratio at or above which two fresh
	// candidates on the same page are considered duplicates of each other.
	IntraPassOverlap float64

	// PersistedOverlap is the overlap ratio above which a fresh candidate
	// defers to an already-persisted box and is dropped.
	PersistedOverlap float64

	// RasterTriggerCandidates engages the raster strategy only when a page
	// produced fewer text-layer candidates than this.
	RasterTriggerCandidates int

	// RasterScale is the offscreen render scale in pixels per point.
	RasterScale float64

	// DarkAlphaMin and DarkLuminanceMax classify a bitmap pixel as "dark"
	// (part of a ruling line).
	DarkAlphaMin     int
	DarkLuminanceMax int

	// TargetLineGapPx is the preferred vertical distance in pixels between
	// the top and bottom lines of a fillable box at RasterScale.
	TargetLineGapPx float64

	// MinLineFraction is the minimum horizontal dark-run length as a
	// fraction of the bitmap width.
	MinLineFraction float64

	// MinLinePx is the absolute minimum horizontal dark-run length.
	MinLinePx int

	// MaxBoxes caps the overlay size.
	MaxBoxes int
}

// DefaultTuning returns the tuned defaults.
func DefaultTuning() Tuning {
	return Tuning{
		IntraPassOverlap:        0.65,
		PersistedOverlap:        0.35,
		RasterTriggerCandidates: 40,
		RasterScale:             2.0,
		DarkAlphaMin:            120,
		DarkLuminanceMax:        215,
		TargetLineGapPx:         36,
		MinLineFraction:         0.12,
		MinLinePx:               70,
		MaxBoxes:                2000,
	}
}

// sanitized fills zero values with defaults so a partially populated Tuning
// from configuration still behaves.
func (t Tuning) sanitized() Tuning {
	d := DefaultTuning()
	if t.IntraPassOverlap <= 0 {
		t.IntraPassOverlap = d.IntraPassOverlap
	}
	if t.PersistedOverlap <= 0 {
		t.PersistedOverlap = d.PersistedOverlap
	}
	if t.RasterTriggerCandidates <= 0 {
		t.RasterTriggerCandidates = d.RasterTriggerCandidates
	}
	if t.RasterScale <= 0 {
		t.RasterScale = d.RasterScale
	}
	if t.DarkAlphaMin <= 0 {
		t.DarkAlphaMin = d.DarkAlphaMin
	}
	if t.DarkLuminanceMax <= 0 {
		t.DarkLuminanceMax = d.DarkLuminanceMax
	}
	if t.TargetLineGapPx <= 0 {
		t.TargetLineGapPx = d.TargetLineGapPx
	}
	if t.MinLineFraction <= 0 {
		t.MinLineFraction = d.MinLineFraction
	}
	if t.MinLinePx <= 0 {
		t.MinLinePx = d.MinLinePx
	}
	if t.MaxBoxes <= 0 {
		t.MaxBoxes = d.MaxBoxes
	}
	return t
}
