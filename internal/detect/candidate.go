package detect

import (
	"github.com/google/uuid"

	"github.com/fieldscope/fieldscope/internal/geometry"
	"github.com/fieldscope/fieldscope/internal/overlay"
)

// CandidateSource identifies which strategy produced a candidate.
type CandidateSource string

const (
	SourceWidget CandidateSource = "widget"
	SourceAnchor CandidateSource = "anchor"
	SourceBlank  CandidateSource = "blank"
	SourceLine   CandidateSource = "line"
)

// Priority orders sources from most to least authoritative. Higher wins
// dedup ties.
func (s CandidateSource) Priority() int {
	switch s {
	case SourceWidget:
		return 4
	case SourceAnchor:
		return 3
	case SourceBlank:
		return 2
	case SourceLine:
		return 1
	default:
		return 0
	}
}

// Candidate is a proposed field rectangle produced by one strategy during a
// single detection pass. Candidates are ephemeral; winners become overlay
// boxes.
type Candidate struct {
	ID       string
	Page     int
	Rect     geometry.Rect
	Source   CandidateSource
	Value    *string
	Key      *string
	FontSize float64
}

// Box converts the candidate into a persisted overlay box.
func (c Candidate) Box() overlay.Box {
	b := overlay.Box{
		ID:    c.ID,
		Page:  c.Page,
		X:     c.Rect.X,
		Y:     c.Rect.Y,
		W:     c.Rect.W,
		H:     c.Rect.H,
		Value: c.Value,
		Key:   c.Key,
	}
	if c.FontSize > 0 {
		fs := c.FontSize
		b.FontSize = &fs
	}
	return b
}

func newCandidateID() string {
	return uuid.NewString()
}

func strptr(s string) *string {
	return &s
}
