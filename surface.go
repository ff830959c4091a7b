package brep

import (
	"math"

	"github.com/soypat/brep/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Surface is a rational polynomial patch in Bezier form, degree 1 to 3 in
// each direction, together with the trim segments bounding its visible
// region. A surface with no trims is visible over its whole [0,1]x[0,1]
// parameter domain.
//
// Orientation convention: NormalAt points out of the solid for a shell's
// exterior-facing surfaces, and with that normal up the retained region lies
// to the left of every trim walked in its stored direction. The boolean
// engine preserves both properties.
type Surface struct {
	degm, degn int
	ctrl       [4][4]r3.Vec
	weight     [4][4]float64

	// Face tags every triangle produced from this surface, so a consumer
	// can highlight or export per-face.
	Face uint32

	trim []TrimBy
}

// SurfaceFromGrid returns the rational patch with the argument control point
// grid and weights. The grid is indexed [u][v]; both dimensions must be 2 to
// 4 and weights must be positive.
func SurfaceFromGrid(pts [][]r3.Vec, weights [][]float64) Surface {
	m := len(pts)
	if m < 2 || m > 4 {
		panic("brep: surface grid u dimension must be 2 to 4")
	}
	n := len(pts[0])
	if n < 2 || n > 4 {
		panic("brep: surface grid v dimension must be 2 to 4")
	}
	s := Surface{degm: m - 1, degn: n - 1}
	for i := 0; i < m; i++ {
		if len(pts[i]) != n || (weights != nil && len(weights[i]) != n) {
			panic("brep: ragged surface grid")
		}
		for j := 0; j < n; j++ {
			s.ctrl[i][j] = pts[i][j]
			w := 1.0
			if weights != nil {
				w = weights[i][j]
			}
			if w <= 0 {
				panic("brep: surface weight must be positive")
			}
			s.weight[i][j] = w
		}
	}
	return s
}

// PlaneSurface returns the degree-1x1 planar patch
//
//	S(u,v) = pt + u*eu + v*ev
//
// with normal along cross(eu, ev).
func PlaneSurface(pt, eu, ev r3.Vec) Surface {
	var s Surface
	s.degm, s.degn = 1, 1
	s.ctrl[0][0] = pt
	s.ctrl[1][0] = r3.Add(pt, eu)
	s.ctrl[0][1] = r3.Add(pt, ev)
	s.ctrl[1][1] = r3.Add(pt, r3.Add(eu, ev))
	s.weight[0][0], s.weight[1][0], s.weight[0][1], s.weight[1][1] = 1, 1, 1, 1
	return s
}

// PlaneSurfaceFromNormal returns a unit planar patch through pt with the
// argument outward normal and an arbitrary in-plane basis.
func PlaneSurfaceFromNormal(pt, n r3.Vec) Surface {
	// Orthonormal returns (e1, e2) with cross(e1, e2) = unit(n), so the
	// patch normal points along n.
	e1, e2 := d3.Orthonormal(n)
	return PlaneSurface(pt, e1, e2)
}

// ExtrusionSurface returns the ruled surface sweeping curve c from offset t0
// to offset t1: degree deg(c) in u along the curve, degree 1 in v along the
// sweep.
func ExtrusionSurface(c Bezier, t0, t1 r3.Vec) Surface {
	s := Surface{degm: c.deg, degn: 1}
	for i := 0; i <= c.deg; i++ {
		s.ctrl[i][0] = r3.Add(c.ctrl[i], t0)
		s.ctrl[i][1] = r3.Add(c.ctrl[i], t1)
		s.weight[i][0] = c.weight[i]
		s.weight[i][1] = c.weight[i]
	}
	return s
}

// Degrees returns the patch degrees in u and v.
func (s *Surface) Degrees() (degU, degV int) { return s.degm, s.degn }

// Trims returns the surface's trim segments in loop order. The slice is the
// surface's own; callers must not modify it.
func (s *Surface) Trims() []TrimBy { return s.trim }

// PointAt evaluates the patch position at (u, v).
func (s *Surface) PointAt(u, v float64) r3.Vec {
	var num r3.Vec
	den := 0.0
	for i := 0; i <= s.degm; i++ {
		bu := Bernstein(i, s.degm, u)
		for j := 0; j <= s.degn; j++ {
			bw := bu * Bernstein(j, s.degn, v) * s.weight[i][j]
			num = r3.Add(num, r3.Scale(bw, s.ctrl[i][j]))
			den += bw
		}
	}
	return r3.Scale(1/den, num)
}

// TangentsAt evaluates the patch's partial derivatives with respect to u and
// v at (u, v). Neither vector is normalized.
func (s *Surface) TangentsAt(u, v float64) (tu, tv r3.Vec) {
	var num, dnumU, dnumV r3.Vec
	den, ddenU, ddenV := 0.0, 0.0, 0.0
	for i := 0; i <= s.degm; i++ {
		bu := Bernstein(i, s.degm, u)
		dbu := BernsteinDerivative(i, s.degm, u)
		for j := 0; j <= s.degn; j++ {
			bv := Bernstein(j, s.degn, v)
			dbv := BernsteinDerivative(j, s.degn, v)
			w := s.weight[i][j]
			num = r3.Add(num, r3.Scale(bu*bv*w, s.ctrl[i][j]))
			dnumU = r3.Add(dnumU, r3.Scale(dbu*bv*w, s.ctrl[i][j]))
			dnumV = r3.Add(dnumV, r3.Scale(bu*dbv*w, s.ctrl[i][j]))
			den += bu * bv * w
			ddenU += dbu * bv * w
			ddenV += bu * dbv * w
		}
	}
	inv := 1 / (den * den)
	tu = r3.Scale(inv, r3.Sub(r3.Scale(den, dnumU), r3.Scale(ddenU, num)))
	tv = r3.Scale(inv, r3.Sub(r3.Scale(den, dnumV), r3.Scale(ddenV, num)))
	return tu, tv
}

// NormalAt evaluates the surface normal cross(tu, tv) at (u, v), not
// normalized.
func (s *Surface) NormalAt(u, v float64) r3.Vec {
	tu, tv := s.TangentsAt(u, v)
	return r3.Cross(tu, tv)
}

// ClosestPointTo returns the (u, v) minimizing the distance from the patch
// to p, by Newton refinement from the best of a coarse sample grid. The
// result is a local minimum: for strongly folded patches it may not be the
// global one, and for points far off the patch the parameters may fall
// slightly outside [0,1]. Callers needing a guarantee must check the
// residual distance themselves.
func (s *Surface) ClosestPointTo(p r3.Vec) (u, v float64) {
	const grid = 8
	best := math.MaxFloat64
	for i := 0; i <= grid; i++ {
		for j := 0; j <= grid; j++ {
			gu := float64(i) / grid
			gv := float64(j) / grid
			d := r3.Norm2(r3.Sub(p, s.PointAt(gu, gv)))
			if d < best {
				best, u, v = d, gu, gv
			}
		}
	}
	const maxIter = 50
	for iter := 0; iter < maxIter; iter++ {
		r := r3.Sub(p, s.PointAt(u, v))
		tu, tv := s.TangentsAt(u, v)
		// Normal equations of the 2-variable least squares step.
		a00 := r3.Dot(tu, tu)
		a01 := r3.Dot(tu, tv)
		a11 := r3.Dot(tv, tv)
		b0 := r3.Dot(tu, r)
		b1 := r3.Dot(tv, r)
		det := a00*a11 - a01*a01
		if math.Abs(det) < epsilon {
			break
		}
		du := (b0*a11 - b1*a01) / det
		dv := (b1*a00 - b0*a01) / det
		u += du
		v += dv
		// Allow modest extrapolation past the domain; trim curves may
		// graze the patch boundary.
		u = math.Max(-0.5, math.Min(1.5, u))
		v = math.Max(-0.5, math.Min(1.5, v))
		if math.Abs(du) < epsilon && math.Abs(dv) < epsilon {
			break
		}
	}
	return u, v
}

// transformedBy returns the surface rotated by q and translated by t. Trim
// segments are carried over with their cached endpoints transformed; curve
// handles are unchanged and remain meaningful only inside a shell whose
// curves were transformed alongside.
func (s *Surface) transformedBy(t r3.Vec, q r3.Rotation) Surface {
	r := *s
	for i := 0; i <= s.degm; i++ {
		for j := 0; j <= s.degn; j++ {
			r.ctrl[i][j] = r3.Add(q.Rotate(s.ctrl[i][j]), t)
		}
	}
	r.trim = make([]TrimBy, len(s.trim))
	for i, tb := range s.trim {
		tb.Start = r3.Add(q.Rotate(tb.Start), t)
		tb.Finish = r3.Add(q.Rotate(tb.Finish), t)
		r.trim[i] = tb
	}
	return r
}

// bounds returns a conservative bounding box: the convex hull property of
// Bezier patches bounds the surface by its control net.
func (s *Surface) bounds() d3.Box {
	bb := d3.Box{Min: s.ctrl[0][0], Max: s.ctrl[0][0]}
	for i := 0; i <= s.degm; i++ {
		for j := 0; j <= s.degn; j++ {
			bb = bb.Include(s.ctrl[i][j])
		}
	}
	return bb
}
