package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bezier is a rational polynomial curve of degree 1 to 3 in Bezier form.
// Control points carry positive weights; all-ones weights give the ordinary
// polynomial case. The zero value is not a valid curve; use BezierFromPoints
// or RationalBezier. Bezier is a value type: derived curves (reversed,
// transformed) are new values and the original is never modified.
type Bezier struct {
	deg    int
	ctrl   [4]r3.Vec
	weight [4]float64
}

// BezierFromPoints returns the polynomial Bezier curve with the argument
// control points. The degree is len(pts)-1 and must be 1 to 3.
func BezierFromPoints(pts ...r3.Vec) Bezier {
	w := [4]float64{1, 1, 1, 1}
	return RationalBezier(pts, w[:len(pts)])
}

// RationalBezier returns the rational Bezier curve with the argument control
// points and weights. len(pts) must equal len(weights) and be 2 to 4, and
// every weight must be positive; violations panic.
func RationalBezier(pts []r3.Vec, weights []float64) Bezier {
	if len(pts) < 2 || len(pts) > 4 || len(pts) != len(weights) {
		panic("brep: rational Bezier needs 2 to 4 control points with matching weights")
	}
	b := Bezier{deg: len(pts) - 1}
	for i := range pts {
		if weights[i] <= 0 {
			panic("brep: rational Bezier weight must be positive")
		}
		b.ctrl[i] = pts[i]
		b.weight[i] = weights[i]
	}
	return b
}

// Degree returns the polynomial degree of the curve, 1 to 3.
func (b Bezier) Degree() int { return b.deg }

// Ctrl returns the i-th control point. i must be in [0, Degree()].
func (b Bezier) Ctrl(i int) r3.Vec {
	if i < 0 || i > b.deg {
		panic("brep: Bezier control point index out of range")
	}
	return b.ctrl[i]
}

// Weight returns the i-th control point weight.
func (b Bezier) Weight(i int) float64 {
	if i < 0 || i > b.deg {
		panic("brep: Bezier weight index out of range")
	}
	return b.weight[i]
}

// PointAt evaluates the curve position at parameter t in [0, 1].
func (b Bezier) PointAt(t float64) r3.Vec {
	var num r3.Vec
	den := 0.0
	for i := 0; i <= b.deg; i++ {
		bw := Bernstein(i, b.deg, t) * b.weight[i]
		num = r3.Add(num, r3.Scale(bw, b.ctrl[i]))
		den += bw
	}
	return r3.Scale(1/den, num)
}

// TangentAt evaluates the (non-normalized) curve tangent at parameter t.
func (b Bezier) TangentAt(t float64) r3.Vec {
	var num, dnum r3.Vec
	den, dden := 0.0, 0.0
	for i := 0; i <= b.deg; i++ {
		bw := Bernstein(i, b.deg, t) * b.weight[i]
		dbw := BernsteinDerivative(i, b.deg, t) * b.weight[i]
		num = r3.Add(num, r3.Scale(bw, b.ctrl[i]))
		dnum = r3.Add(dnum, r3.Scale(dbw, b.ctrl[i]))
		den += bw
		dden += dbw
	}
	// quotient rule for the rational parametrization
	return r3.Scale(1/(den*den), r3.Sub(r3.Scale(den, dnum), r3.Scale(dden, num)))
}

// Start returns the curve position at t = 0, the first control point.
func (b Bezier) Start() r3.Vec { return b.ctrl[0] }

// Finish returns the curve position at t = 1, the last control point.
func (b Bezier) Finish() r3.Vec { return b.ctrl[b.deg] }

// AppendPwl appends a piecewise linear approximation of the curve to dst and
// returns the extended slice. The polyline deviates from the true curve by
// less than tol everywhere. If dst is empty the start point is included;
// otherwise the curve is assumed to continue dst and the start is skipped.
// A degree-1 curve always flattens to exactly its two endpoints.
func (b Bezier) AppendPwl(dst []r3.Vec, tol float64) []r3.Vec {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if len(dst) == 0 {
		dst = append(dst, b.Start())
	}
	return b.appendPwl(dst, 0, 1, tol, 0)
}

// appendPwl recursively bisects [ta, tb], keeping the chord when the true
// midpoint lies within tol of it. Each leaf appends its endpoint only, so
// shared subdivision points are emitted once.
func (b Bezier) appendPwl(dst []r3.Vec, ta, tb, tol float64, depth int) []r3.Vec {
	const maxDepth = 20
	tm := (ta + tb) / 2
	pa := b.PointAt(ta)
	pb := b.PointAt(tb)
	pm := b.PointAt(tm)
	chordMid := r3.Scale(0.5, r3.Add(pa, pb))
	if depth >= maxDepth || r3.Norm(r3.Sub(pm, chordMid)) < tol {
		return append(dst, pb)
	}
	dst = b.appendPwl(dst, ta, tm, tol, depth+1)
	return b.appendPwl(dst, tm, tb, tol, depth+1)
}

// Reversed returns the curve traced with the t -> 1-t reparametrization.
// Control points and weights appear in reverse order; the geometry is
// unchanged.
func (b Bezier) Reversed() Bezier {
	r := Bezier{deg: b.deg}
	for i := 0; i <= b.deg; i++ {
		r.ctrl[i] = b.ctrl[b.deg-i]
		r.weight[i] = b.weight[b.deg-i]
	}
	return r
}

// TransformedBy returns the curve rotated by q about the origin and then
// translated by t. Weights are unchanged: rational Bezier curves are
// invariant under rigid transforms.
func (b Bezier) TransformedBy(t r3.Vec, q r3.Rotation) Bezier {
	r := b
	for i := 0; i <= b.deg; i++ {
		r.ctrl[i] = r3.Add(q.Rotate(b.ctrl[i]), t)
	}
	return r
}

// translatedBy is TransformedBy with the identity rotation.
func (b Bezier) translatedBy(t r3.Vec) Bezier {
	r := b
	for i := 0; i <= b.deg; i++ {
		r.ctrl[i] = r3.Add(b.ctrl[i], t)
	}
	return r
}

// equalWithin reports whether both curves have the same degree and control
// nets within tol.
func (b Bezier) equalWithin(c Bezier, tol float64) bool {
	if b.deg != c.deg {
		return false
	}
	for i := 0; i <= b.deg; i++ {
		d := r3.Sub(b.ctrl[i], c.ctrl[i])
		if r3.Norm(d) > tol || math.Abs(b.weight[i]-c.weight[i]) > tol {
			return false
		}
	}
	return true
}
