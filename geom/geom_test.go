package geom

import "testing"

func TestRectContains(t *testing.T) {
	r := Rect{X1: 10, Y1: 20, X2: 30, Y2: 40}
	if !r.Contains(15, 25) {
		t.Fatalf("expected point inside rect")
	}
	if r.Contains(5, 25) {
		t.Fatalf("expected point outside rect")
	}
	// Corner ordering must not matter.
	flipped := Rect{X1: 30, Y1: 40, X2: 10, Y2: 20}
	if !flipped.Contains(15, 25) {
		t.Fatalf("expected flipped rect to contain point")
	}
}

func TestPolygonBounds(t *testing.T) {
	// Rotated quadrilateral: bounds must be min/max over all vertices.
	p := Polygon{{X: 10, Y: 0}, {X: 20, Y: 10}, {X: 10, Y: 20}, {X: 0, Y: 10}}
	got := p.Bounds()
	want := Rect{X1: 0, Y1: 0, X2: 20, Y2: 20}
	if got != want {
		t.Fatalf("Bounds() = %+v, want %+v", got, want)
	}
}

func TestPolygonBoundsEmpty(t *testing.T) {
	if got := (Polygon{}).Bounds(); got != (Rect{}) {
		t.Fatalf("empty polygon bounds = %+v, want zero rect", got)
	}
}
