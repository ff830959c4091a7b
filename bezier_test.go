package brep

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestBezierEndpointInterpolation(t *testing.T) {
	pts := []r3.Vec{
		{X: 1},
		{X: 2, Y: 1},
		{Y: 3, Z: -1},
		{X: -1, Y: 2, Z: 1},
	}
	weights := []float64{1, 0.5, 2, 3}
	for deg := 1; deg <= 3; deg++ {
		b := RationalBezier(pts[:deg+1], weights[:deg+1])
		if got := b.PointAt(0); r3.Norm(r3.Sub(got, pts[0])) > 1e-12 {
			t.Errorf("degree %d: PointAt(0) = %v, want %v", deg, got, pts[0])
		}
		if got := b.PointAt(1); r3.Norm(r3.Sub(got, pts[deg])) > 1e-12 {
			t.Errorf("degree %d: PointAt(1) = %v, want %v", deg, got, pts[deg])
		}
		if got := b.Start(); got != pts[0] {
			t.Errorf("degree %d: Start() = %v, want %v", deg, got, pts[0])
		}
		if got := b.Finish(); got != pts[deg] {
			t.Errorf("degree %d: Finish() = %v, want %v", deg, got, pts[deg])
		}
	}
}

// A quadratic rational Bezier with the right middle weight traces a circular
// arc exactly. Every point of the quarter arc must lie on the unit circle.
func TestRationalQuarterCircle(t *testing.T) {
	arc := RationalBezier(
		[]r3.Vec{{X: 1}, {X: 1, Y: 1}, {Y: 1}},
		[]float64{1, math.Sqrt2 / 2, 1},
	)
	for i := 0; i <= 100; i++ {
		p := arc.PointAt(float64(i) / 100)
		if r := math.Hypot(p.X, p.Y); math.Abs(r-1) > 1e-12 {
			t.Fatalf("arc point at t=%g has radius %g", float64(i)/100, r)
		}
	}
}

func TestBezierReversed(t *testing.T) {
	b := BezierFromPoints(r3.Vec{X: 1}, r3.Vec{X: 2, Y: 1}, r3.Vec{Y: 3}, r3.Vec{Z: 1})
	if !b.Reversed().Reversed().equalWithin(b, 0) {
		t.Error("double reversal changed the curve")
	}
	r := b.Reversed()
	for _, tt := range []float64{0, 0.25, 0.5, 0.9, 1} {
		if d := r3.Norm(r3.Sub(r.PointAt(tt), b.PointAt(1-tt))); d > 1e-12 {
			t.Errorf("Reversed().PointAt(%g) differs from PointAt(%g) by %g", tt, 1-tt, d)
		}
	}
}

func TestBezierTangent(t *testing.T) {
	b := RationalBezier(
		[]r3.Vec{{X: 1}, {X: 1, Y: 1}, {Y: 1}},
		[]float64{1, math.Sqrt2 / 2, 1},
	)
	const h = 1e-7
	for _, tt := range []float64{0.1, 0.5, 0.77} {
		want := r3.Scale(1/(2*h), r3.Sub(b.PointAt(tt+h), b.PointAt(tt-h)))
		got := b.TangentAt(tt)
		if r3.Norm(r3.Sub(got, want)) > 1e-5 {
			t.Errorf("TangentAt(%g) = %v, finite difference gives %v", tt, got, want)
		}
	}
}

// A straight segment flattens to exactly its two endpoints at any tolerance.
func TestLineFlattening(t *testing.T) {
	line := BezierFromPoints(r3.Vec{X: -2, Z: 1}, r3.Vec{X: 5, Y: 3})
	for _, tol := range []float64{1e-1, 1e-6, 1e-12} {
		pts := line.AppendPwl(nil, tol)
		if len(pts) != 2 {
			t.Fatalf("tol %g: line flattened to %d points, want 2", tol, len(pts))
		}
	}
}

// Flattening tolerance: every polyline chord must stay within tol of the
// curve at its midpoint.
func TestFlatteningChordError(t *testing.T) {
	arc := RationalBezier(
		[]r3.Vec{{X: 1}, {X: 1, Y: 1}, {Y: 1}},
		[]float64{1, math.Sqrt2 / 2, 1},
	)
	const tol = 1e-3
	pts := arc.AppendPwl(nil, tol)
	if len(pts) < 4 {
		t.Fatalf("arc flattened to only %d points", len(pts))
	}
	for i := 0; i+1 < len(pts); i++ {
		mid := r3.Scale(0.5, r3.Add(pts[i], pts[i+1]))
		r := math.Hypot(mid.X, mid.Y)
		if 1-r > 2*tol {
			t.Errorf("chord %d sags %g below the arc, tol %g", i, 1-r, tol)
		}
	}
}

func TestBezierTransformedBy(t *testing.T) {
	b := BezierFromPoints(r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1})
	q := r3.NewRotation(math.Pi/2, r3.Vec{Z: 1})
	shift := r3.Vec{Z: 3}
	tr := b.TransformedBy(shift, q)
	for _, tt := range []float64{0, 0.3, 1} {
		want := r3.Add(q.Rotate(b.PointAt(tt)), shift)
		if d := r3.Norm(r3.Sub(tr.PointAt(tt), want)); d > 1e-12 {
			t.Errorf("transformed curve differs by %g at t=%g", d, tt)
		}
	}
}

func TestBernsteinPartitionOfUnity(t *testing.T) {
	for deg := 1; deg <= 3; deg++ {
		for _, u := range []float64{0, 0.2, 0.5, 0.8, 1} {
			sum, dsum := 0.0, 0.0
			for k := 0; k <= deg; k++ {
				sum += Bernstein(k, deg, u)
				dsum += BernsteinDerivative(k, deg, u)
			}
			if math.Abs(sum-1) > 1e-12 {
				t.Errorf("degree %d basis sums to %g at u=%g", deg, sum, u)
			}
			if math.Abs(dsum) > 1e-12 {
				t.Errorf("degree %d basis derivatives sum to %g at u=%g", deg, dsum, u)
			}
		}
	}
}
