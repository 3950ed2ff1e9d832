// Package geom provides the small set of geometric primitives shared by the
// document engines and the OCR pipeline. All values are in document points
// (1/72 inch) unless a caller states otherwise.
package geom

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle described by two corners.
type Rect struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return math.Abs(r.X2 - r.X1) }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return math.Abs(r.Y2 - r.Y1) }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Width() == 0 || r.Height() == 0 }

// Contains reports whether the point (x, y) lies within the rectangle,
// regardless of corner ordering.
func (r Rect) Contains(x, y float64) bool {
	minX, maxX := math.Min(r.X1, r.X2), math.Max(r.X1, r.X2)
	minY, maxY := math.Min(r.Y1, r.Y2), math.Max(r.Y1, r.Y2)
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

// Polygon is an ordered list of vertices describing an arbitrary outline,
// typically the quadrilateral around a detected text line.
type Polygon []Point

// Bounds returns the axis-aligned bounding box of the polygon. The input is
// not assumed to be axis-aligned; rotated quadrilaterals collapse to their
// min/max extents. The zero polygon yields the zero rect.
func (p Polygon) Bounds() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := p[0].X, p[0].Y
	for _, v := range p[1:] {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return Rect{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}
