// Package geometry provides rectangle math in PDF point space.
//
// All rectangles use a top-left origin with y increasing downward, matching
// the coordinate space the detection engine works in after viewport
// projection.
package geometry

import "math"

// Rect is an axis-aligned rectangle in PDF points.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 {
	return r.X + r.W
}

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 {
	return r.Y + r.H
}

// Area returns the rectangle's area, 0 for degenerate rectangles.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// IsFinite reports whether all four components are finite numbers.
func (r Rect) IsFinite() bool {
	return isFinite(r.X) && isFinite(r.Y) && isFinite(r.W) && isFinite(r.H)
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.Right() && y >= r.Y && y <= r.Bottom()
}

// Union returns the smallest rectangle covering both r and other.
func (r Rect) Union(other Rect) Rect {
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.Right(), other.Right())
	y1 := math.Max(r.Bottom(), other.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Intersection returns the overlapping region of r and other. The result has
// non-positive width or height when the rectangles do not overlap.
func (r Rect) Intersection(other Rect) Rect {
	x0 := math.Max(r.X, other.X)
	y0 := math.Max(r.Y, other.Y)
	x1 := math.Min(r.Right(), other.Right())
	y1 := math.Min(r.Bottom(), other.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// OverlapRatio returns the intersection area divided by the smaller of the
// two rectangle areas. It is a total function: non-finite input or a
// degenerate rectangle yields 0, never NaN.
func OverlapRatio(a, b Rect) float64 {
	if !a.IsFinite() || !b.IsFinite() {
		return 0
	}
	areaA := a.Area()
	areaB := b.Area()
	if areaA <= 0 || areaB <= 0 {
		return 0
	}
	inter := a.Intersection(b)
	if inter.W <= 0 || inter.H <= 0 {
		return 0
	}
	return inter.Area() / math.Min(areaA, areaB)
}

// Clamp restricts v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
