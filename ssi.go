package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/brep/internal/d3"
)

// Surface-surface intersection by marching. Seeds come from the places a
// face's trim boundary crosses the other surface, plus a coarse parameter
// grid scan that catches intersection loops not touching any boundary. From
// each seed the curve is traced along cross(nA, nB) with an
// alternating-projection correction back onto both surfaces, clipped to
// both trim regions, and finally compressed so straight runs collapse to
// their endpoints.

// intersectSurfaces returns the transversal intersection curves of two
// trimmed faces as polylines. Tangential and coincident contacts yield no
// curves; the boolean engine resolves those by point classification
// instead.
func intersectSurfaces(fa, fb *faceInfo, tol float64) [][]r3.Vec {
	weld := weldTol(tol)
	if !fa.bb.Enlarge(d3.Elem(weld)).Overlaps(fb.bb) {
		return nil
	}
	h := math.Max(0.02*math.Min(fa.scale, fb.scale), 10*weld)

	var seeds []r3.Vec
	seeds = append(seeds, boundarySeeds(fa, fb, tol)...)
	seeds = append(seeds, boundarySeeds(fb, fa, tol)...)
	seeds = append(seeds, gridSeeds(fa, fb, tol)...)
	if len(seeds) == 0 {
		return nil
	}

	var curves [][]r3.Vec
	for _, s := range seeds {
		if nearAnyCurve(curves, s, 1.5*h) {
			continue
		}
		c := marchFrom(fa, fb, s, h, tol)
		if polylineLength(c) < weld {
			continue
		}
		curves = append(curves, compressPwl(c, tol))
	}
	return curves
}

// sideSamples is the signed side function sampling density along one
// boundary segment during seed hunting.
const sideSamples = 4

// boundarySeeds finds the points where from's trim boundary crosses onto's
// surface inside onto's trim region.
func boundarySeeds(from, onto *faceInfo, tol float64) []r3.Vec {
	weld := weldTol(tol)
	var seeds []r3.Vec
	for _, pwl := range from.boundary {
		for s := 0; s+1 < len(pwl); s++ {
			a, b := pwl[s], pwl[s+1]
			if !d3.PointsBox([]r3.Vec{a, b}).Enlarge(d3.Elem(weld)).Overlaps(onto.bb) {
				continue
			}
			lerp := func(t float64) r3.Vec {
				return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
			}
			prevT := 0.0
			prevG, _, _ := sideOf(onto.srf, a)
			for k := 1; k <= sideSamples; k++ {
				t := float64(k) / sideSamples
				g, _, _ := sideOf(onto.srf, lerp(t))
				// A bracket with both ends inside the weld band is a
				// tangential graze, not a crossing.
				if (prevG < 0) != (g < 0) && (math.Abs(prevG) > weld/2 || math.Abs(g) > weld/2) {
					lo, hi := prevT, t
					for it := 0; it < 40; it++ {
						mid := (lo + hi) / 2
						gm, _, _ := sideOf(onto.srf, lerp(mid))
						if (prevG < 0) == (gm < 0) {
							lo = mid
						} else {
							hi = mid
						}
					}
					x := lerp((lo + hi) / 2)
					_, u, v := sideOf(onto.srf, x)
					if onto.uvInside(u, v, tol) {
						seeds = append(seeds, x)
					}
				}
				prevT, prevG = t, g
			}
		}
	}
	return seeds
}

// gridSeeds scans a parameter grid of fa for sign changes of the side
// function against fb. This is what finds intersection loops lying entirely
// interior to both faces.
func gridSeeds(fa, fb *faceInfo, tol float64) []r3.Vec {
	const n = 8
	var g [n + 1][n + 1]float64
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			p := fa.srf.PointAt(float64(i)/n, float64(j)/n)
			g[i][j], _, _ = sideOf(fb.srf, p)
		}
	}
	var seeds []r3.Vec
	bracket := func(u0, v0, u1, v1, g0, g1 float64) {
		if (g0 < 0) == (g1 < 0) || (math.Abs(g0) <= epsilon && math.Abs(g1) <= epsilon) {
			return
		}
		for it := 0; it < 40; it++ {
			um, vm := (u0+u1)/2, (v0+v1)/2
			gm, _, _ := sideOf(fb.srf, fa.srf.PointAt(um, vm))
			if (gm < 0) == (g0 < 0) {
				u0, v0, g0 = um, vm, gm
			} else {
				u1, v1, g1 = um, vm, gm
			}
		}
		u, v := (u0+u1)/2, (v0+v1)/2
		x := fa.srf.PointAt(u, v)
		_, ub, vb := sideOf(fb.srf, x)
		if fa.uvInside(u, v, tol) && fb.uvInside(ub, vb, tol) {
			seeds = append(seeds, x)
		}
	}
	for i := 0; i <= n; i++ {
		for j := 0; j < n; j++ {
			fi := float64(i) / n
			bracket(fi, float64(j)/n, fi, float64(j+1)/n, g[i][j], g[i][j+1])
			bracket(float64(j)/n, fi, float64(j+1)/n, fi, g[j][i], g[j+1][i])
		}
	}
	return seeds
}

// marchFrom traces the full intersection curve through one seed: forward,
// then backward if the forward trace did not close a loop.
func marchFrom(fa, fb *faceInfo, seed r3.Vec, h, tol float64) []r3.Vec {
	start, ok := projectToBoth(fa.srf, fb.srf, seed, tol)
	if !ok {
		return nil
	}
	fwd, closed := traceDir(fa, fb, start, h, tol, 1)
	if closed {
		return fwd
	}
	back, _ := traceDir(fa, fb, start, h, tol, -1)
	full := make([]r3.Vec, 0, len(fwd)+len(back)-1)
	for i := len(back) - 1; i > 0; i-- {
		full = append(full, back[i])
	}
	return append(full, fwd...)
}

// traceDir marches from start in one direction until the curve leaves
// either trim region, closes onto its start, or the surfaces go tangent.
func traceDir(fa, fb *faceInfo, start r3.Vec, h, tol float64, sign float64) (pts []r3.Vec, closed bool) {
	const maxSteps = 4096
	weld := weldTol(tol)
	pts = []r3.Vec{start}
	x := start
	for step := 0; step < maxSteps; step++ {
		ua, va := fa.srf.ClosestPointTo(x)
		ub, vb := fb.srf.ClosestPointTo(x)
		na := fa.srf.NormalAt(ua, va)
		nb := fb.srf.NormalAt(ub, vb)
		d := r3.Cross(na, nb)
		if r3.Norm(d) < epsilon {
			break // tangential contact
		}
		d = r3.Scale(sign, r3.Unit(d))
		xn, ok := projectToBoth(fa.srf, fb.srf, r3.Add(x, r3.Scale(h, d)), tol)
		if !ok || r3.Dot(r3.Sub(xn, x), d) <= 0 {
			break
		}
		if step >= 2 && r3.Norm(r3.Sub(xn, start)) < 0.75*h {
			pts = append(pts, start)
			return pts, true
		}
		ua, va = fa.srf.ClosestPointTo(xn)
		ub, vb = fb.srf.ClosestPointTo(xn)
		if !fa.uvInside(ua, va, tol) || !fb.uvInside(ub, vb, tol) {
			if e, ok := clipToRegion(fa, fb, x, xn, tol); ok && r3.Norm(r3.Sub(e, x)) > weld {
				pts = append(pts, e)
			}
			break
		}
		pts = append(pts, xn)
		x = xn
	}
	return pts, false
}

// clipToRegion bisects between an inside and an outside point of the
// marched curve for the spot where it leaves the joint trim region.
func clipToRegion(fa, fb *faceInfo, in, out r3.Vec, tol float64) (r3.Vec, bool) {
	inside := func(x r3.Vec) bool {
		ua, va := fa.srf.ClosestPointTo(x)
		ub, vb := fb.srf.ClosestPointTo(x)
		return fa.uvInside(ua, va, tol) && fb.uvInside(ub, vb, tol)
	}
	for it := 0; it < 30; it++ {
		mid, ok := projectToBoth(fa.srf, fb.srf, r3.Scale(0.5, r3.Add(in, out)), tol)
		if !ok {
			return in, true
		}
		if inside(mid) {
			in = mid
		} else {
			out = mid
		}
	}
	return in, true
}

// projectToBoth refines x onto the intersection of the two surfaces by
// alternating closest-point projection, and reports whether it converged
// onto both within tolerance.
func projectToBoth(sa, sb *Surface, x r3.Vec, tol float64) (r3.Vec, bool) {
	const maxIter = 24
	for i := 0; i < maxIter; i++ {
		ua, va := sa.ClosestPointTo(x)
		xa := sa.PointAt(ua, va)
		ub, vb := sb.ClosestPointTo(xa)
		xb := sb.PointAt(ub, vb)
		moved := r3.Norm(r3.Sub(xb, x))
		x = xb
		if moved < tol/4 {
			break
		}
	}
	ua, va := sa.ClosestPointTo(x)
	if r3.Norm(r3.Sub(x, sa.PointAt(ua, va))) > 10*tol {
		return x, false
	}
	return x, true
}

// nearAnyCurve reports whether p lies within r of a point already traced.
// Used to drop seeds on curves that another seed produced.
func nearAnyCurve(curves [][]r3.Vec, p r3.Vec, r float64) bool {
	for _, c := range curves {
		for _, q := range c {
			if r3.Norm(r3.Sub(p, q)) <= r {
				return true
			}
		}
	}
	return false
}

func polylineLength(pts []r3.Vec) float64 {
	l := 0.0
	for i := 0; i+1 < len(pts); i++ {
		l += r3.Norm(r3.Sub(pts[i+1], pts[i]))
	}
	return l
}

// compressPwl removes interior points within tol/2 of the chord through
// their neighbours, Douglas-Peucker style, so planar-planar intersections
// come out as plain segments.
func compressPwl(pts []r3.Vec, tol float64) []r3.Vec {
	if len(pts) <= 2 {
		return pts
	}
	keep := make([]bool, len(pts))
	keep[0], keep[len(pts)-1] = true, true
	var rec func(lo, hi int)
	rec = func(lo, hi int) {
		if hi-lo < 2 {
			return
		}
		a, b := pts[lo], pts[hi]
		worst, at := 0.0, -1
		for i := lo + 1; i < hi; i++ {
			if d := pointSegDist(pts[i], a, b); d > worst {
				worst, at = d, i
			}
		}
		if worst > tol/2 {
			keep[at] = true
			rec(lo, at)
			rec(at, hi)
		}
	}
	rec(0, len(pts)-1)
	out := pts[:0:0]
	for i, p := range pts {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

func pointSegDist(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	den := r3.Norm2(ab)
	t := 0.0
	if den > 0 {
		t = math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, a), ab)/den))
	}
	return r3.Norm(r3.Sub(p, r3.Add(a, r3.Scale(t, ab))))
}
