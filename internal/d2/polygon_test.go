package d2

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func square(x0, y0, side float64) Contour {
	return Contour{
		{X: x0, Y: y0}, {X: x0 + side, Y: y0},
		{X: x0 + side, Y: y0 + side}, {X: x0, Y: y0 + side},
	}
}

func TestSignedArea(t *testing.T) {
	c := square(0, 0, 2)
	if a := c.SignedArea(); math.Abs(a-4) > 1e-12 {
		t.Errorf("ccw square area = %g, want 4", a)
	}
	// Reverse to clockwise.
	r := make(Contour, len(c))
	for i := range c {
		r[len(c)-1-i] = c[i]
	}
	if a := r.SignedArea(); math.Abs(a+4) > 1e-12 {
		t.Errorf("cw square area = %g, want -4", a)
	}
}

func TestPolygonContainsEvenOdd(t *testing.T) {
	pg := Polygon{square(0, 0, 4), square(1, 1, 2)}
	cases := []struct {
		p    r2.Vec
		want bool
	}{
		{r2.Vec{X: 0.5, Y: 0.5}, true},   // between outer and hole
		{r2.Vec{X: 2, Y: 2}, false},      // inside the hole
		{r2.Vec{X: 5, Y: 2}, false},      // outside
		{r2.Vec{X: 3.5, Y: 3.5}, true},   // corner region
		{r2.Vec{X: -0.1, Y: 2}, false},   // just outside the outer edge
		{r2.Vec{X: 0.99, Y: 2.0}, true},  // just outside the hole
		{r2.Vec{X: 1.01, Y: 2.0}, false}, // just inside the hole
	}
	for _, tc := range cases {
		if got := pg.Contains(tc.p); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestPolygonDist(t *testing.T) {
	pg := Polygon{square(0, 0, 2)}
	cases := []struct {
		p    r2.Vec
		want float64
	}{
		{r2.Vec{X: 1, Y: 1}, 1},      // center
		{r2.Vec{X: 3, Y: 1}, 1},      // right of edge
		{r2.Vec{X: 3, Y: 3}, math.Sqrt2}, // past the corner
		{r2.Vec{X: 1, Y: 0}, 0},      // on the edge
	}
	for _, tc := range cases {
		if got := pg.Dist(tc.p); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Dist(%v) = %g, want %g", tc.p, got, tc.want)
		}
	}
}

func TestSegmentsIntersect(t *testing.T) {
	a, b := r2.Vec{X: 0, Y: 0}, r2.Vec{X: 2, Y: 2}
	if !SegmentsIntersect(a, b, r2.Vec{X: 0, Y: 2}, r2.Vec{X: 2, Y: 0}) {
		t.Error("crossing diagonals not detected")
	}
	if SegmentsIntersect(a, b, r2.Vec{X: 3, Y: 0}, r2.Vec{X: 3, Y: 2}) {
		t.Error("disjoint segments reported intersecting")
	}
	// Sharing an endpoint is not a proper intersection.
	if SegmentsIntersect(a, b, b, r2.Vec{X: 4, Y: 0}) {
		t.Error("endpoint contact reported as proper intersection")
	}
}
