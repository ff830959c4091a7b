package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/brep/internal/d2"
)

// Triangulate converts the whole shell into a triangle mesh approximating
// every trimmed surface to within tol. Triangles are tagged with their
// surface's face and wound so their normals point out of the solid.
func (sh *Shell) Triangulate(tol float64) (m Mesh, err error) {
	defer recoverOp(&err)
	if tol <= 0 {
		tol = DefaultTolerance
	}
	for i := range sh.surfaces {
		sh.triangulateSurfaceInto(SurfaceID(i+1), &m, tol)
	}
	return m, err
}

// TriangulateSurface triangulates a single surface of the shell.
func (sh *Shell) TriangulateSurface(id SurfaceID, tol float64) (m Mesh, err error) {
	defer recoverOp(&err)
	if tol <= 0 {
		tol = DefaultTolerance
	}
	sh.triangulateSurfaceInto(id, &m, tol)
	return m, err
}

// AppendEdges appends the shell's boundary as straight wireframe segments:
// every owned curve flattened once to within tol.
func (sh *Shell) AppendEdges(dst []Edge, tol float64) []Edge {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	for id := CurveID(1); int(id) <= sh.NumCurves(); id++ {
		pts := sh.Curve(id).AppendPwl(nil, tol)
		for i := 0; i+1 < len(pts); i++ {
			dst = append(dst, Edge{A: pts[i], B: pts[i+1]})
		}
	}
	return dst
}

// AppendSurfaceEdges appends one surface's trim boundary as wireframe
// segments. With asUV the segments are emitted in the surface's parameter
// domain, embedded at z = 0, instead of in 3D.
func (sh *Shell) AppendSurfaceEdges(dst []Edge, id SurfaceID, asUV bool, tol float64) []Edge {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	srf := sh.Surface(id)
	for _, tb := range srf.trim {
		pts := sh.trimPwl(tb, tol)
		if asUV {
			for i, p := range pts {
				u, v := srf.ClosestPointTo(p)
				pts[i] = r3.Vec{X: u, Y: v}
			}
		}
		for i := 0; i+1 < len(pts); i++ {
			dst = append(dst, Edge{A: pts[i], B: pts[i+1]})
		}
	}
	return dst
}

// triangulateSurfaceInto triangulates one trimmed surface: trim loops are
// mapped to the parameter domain, ear-clipped (holes bridged into their
// outer loop), and the resulting triangles refined until the surface chord
// error is below tol. Malformed trim loops panic.
func (sh *Shell) triangulateSurfaceInto(id SurfaceID, m *Mesh, tol float64) {
	srf := sh.Surface(id)
	loops, flipped := sh.surfaceUVLoops(id, tol)
	if len(loops) == 0 {
		return
	}
	for _, rg := range partitionRegions(loops) {
		for _, t := range earcut(rg.outer, rg.holes) {
			srf.refineEmit(m, t, flipped, tol, 0)
		}
	}
}

// uvRegion is one connected piece of a trim region: a counterclockwise
// outer contour and the clockwise holes inside it.
type uvRegion struct {
	outer d2.Contour
	holes []d2.Contour
}

// partitionRegions groups normalized trim contours into regions, assigning
// each hole to the smallest outer loop containing it. After surfaceUVLoops
// normalization outers wind counterclockwise.
func partitionRegions(loops []d2.Contour) []uvRegion {
	var regions []uvRegion
	var holes []d2.Contour
	for _, c := range loops {
		if c.SignedArea() > 0 {
			regions = append(regions, uvRegion{outer: c})
		} else {
			holes = append(holes, c)
		}
	}
	if len(regions) == 0 {
		panic("brep: trim loops enclose no region")
	}
	for _, h := range holes {
		bestArea := math.MaxFloat64
		best := -1
		for i, rg := range regions {
			if a := rg.outer.SignedArea(); a < bestArea &&
				(d2.Polygon{rg.outer}).Contains(h[0]) {
				bestArea, best = a, i
			}
		}
		if best < 0 {
			panic("brep: trim hole outside every outer loop")
		}
		regions[best].holes = append(regions[best].holes, h)
	}
	return regions
}

// surfaceUVLoops assembles the surface's trim segments into closed loops in
// the parameter domain. Segments are chained by their cached 3D endpoints;
// a chain that consumes its segments without closing panics with a
// loopError. The second result reports whether the surface's loops run
// reversed (a cavity face): in that case all contours are reversed so
// outers are counterclockwise again, and emitted triangles must be flipped.
// An untrimmed surface yields its full unit parameter square.
func (sh *Shell) surfaceUVLoops(id SurfaceID, tol float64) (loops []d2.Contour, flipped bool) {
	srf := sh.Surface(id)
	if len(srf.trim) == 0 {
		return []d2.Contour{{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		}}, false
	}
	weld := weldTol(tol)
	var cur d2.Contour
	var loopStart, at r3.Vec
	open := false
	for _, tb := range srf.trim {
		if open && r3.Norm(r3.Sub(tb.Start, at)) > weld {
			panic(&loopError{Surface: id, Gap: at})
		}
		pts := sh.trimPwl(tb, tol)
		if open {
			pts = pts[1:]
		} else {
			loopStart = tb.Start
			open = true
		}
		for _, p := range pts {
			u, v := srf.ClosestPointTo(p)
			cur = append(cur, r2.Vec{X: u, Y: v})
		}
		at = tb.Finish
		if r3.Norm(r3.Sub(at, loopStart)) <= weld {
			cur = cur[:len(cur)-1] // drop the closing duplicate
			if len(cur) >= 3 {
				loops = append(loops, cur)
			}
			cur = nil
			open = false
		}
	}
	if open {
		panic(&loopError{Surface: id, Gap: at})
	}
	total := 0.0
	for _, c := range loops {
		total += c.SignedArea()
	}
	if total < 0 {
		flipped = true
		for _, c := range loops {
			for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
				c[i], c[j] = c[j], c[i]
			}
		}
	}
	return loops, flipped
}

// weldTol is the endpoint matching tolerance used when threading segments
// into loops. Marched intersection curves land within the step tolerance of
// each other, so welding must be looser than flattening.
func weldTol(tol float64) float64 {
	return 50*tol + 1e-9
}

// refineEmit recursively splits a parameter-space triangle while the
// surface deviates from the triangle's straight edges by more than tol,
// sampling the surface where it bends. Leaves are emitted with the winding
// matching the surface normal, swapped for cavity faces.
func (srf *Surface) refineEmit(m *Mesh, t [3]r2.Vec, flip bool, tol float64, depth int) {
	const maxDepth = 10
	if depth < maxDepth {
		worst, at := -1.0, 0
		var mid r2.Vec
		for e := 0; e < 3; e++ {
			a, b := t[e], t[(e+1)%3]
			uvMid := r2.Scale(0.5, r2.Add(a, b))
			pMid := r3.Scale(0.5, r3.Add(srf.PointAt(a.X, a.Y), srf.PointAt(b.X, b.Y)))
			err := r3.Norm(r3.Sub(srf.PointAt(uvMid.X, uvMid.Y), pMid))
			if err > worst {
				worst, at, mid = err, e, uvMid
			}
		}
		if worst > tol {
			a, b, c := t[at], t[(at+1)%3], t[(at+2)%3]
			srf.refineEmit(m, [3]r2.Vec{a, mid, c}, flip, tol, depth+1)
			srf.refineEmit(m, [3]r2.Vec{mid, b, c}, flip, tol, depth+1)
			return
		}
	}
	tri := Triangle{Face: srf.Face}
	tri.V[0] = srf.PointAt(t[0].X, t[0].Y)
	tri.V[1] = srf.PointAt(t[1].X, t[1].Y)
	tri.V[2] = srf.PointAt(t[2].X, t[2].Y)
	if flip {
		tri.V[1], tri.V[2] = tri.V[2], tri.V[1]
	}
	if tri.Area() < epsilon {
		return
	}
	m.Triangles = append(m.Triangles, tri)
}

// earcut triangulates a counterclockwise outer contour with clockwise holes
// by bridging each hole into the outer contour and then clipping ears.
func earcut(outer d2.Contour, holes []d2.Contour) [][3]r2.Vec {
	poly := mergeHoles(outer, holes)
	var out [][3]r2.Vec
	idx := make([]int, len(poly))
	for i := range idx {
		idx[i] = i
	}
	const eps = 1e-12
	for len(idx) > 3 {
		clipped := false
		for k := 0; k < len(idx); k++ {
			i0 := idx[(k+len(idx)-1)%len(idx)]
			i1 := idx[k]
			i2 := idx[(k+1)%len(idx)]
			a, b, c := poly[i0], poly[i1], poly[i2]
			cross := d2.Cross(r2.Sub(b, a), r2.Sub(c, a))
			if cross < -eps {
				continue // reflex
			}
			if cross <= eps {
				// Collinear sliver; clipping it emits nothing.
				idx = append(idx[:k], idx[k+1:]...)
				clipped = true
				break
			}
			ear := true
			for _, j := range idx {
				if j == i0 || j == i1 || j == i2 {
					continue
				}
				if pointInTriangle(poly[j], a, b, c, eps) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			out = append(out, [3]r2.Vec{a, b, c})
			idx = append(idx[:k], idx[k+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Numerically stuck polygon; clip the most convex corner to
			// guarantee progress.
			bestK, bestCross := 0, math.Inf(-1)
			for k := 0; k < len(idx); k++ {
				a := poly[idx[(k+len(idx)-1)%len(idx)]]
				b := poly[idx[k]]
				c := poly[idx[(k+1)%len(idx)]]
				if cr := d2.Cross(r2.Sub(b, a), r2.Sub(c, a)); cr > bestCross {
					bestK, bestCross = k, cr
				}
			}
			a := poly[idx[(bestK+len(idx)-1)%len(idx)]]
			b := poly[idx[bestK]]
			c := poly[idx[(bestK+1)%len(idx)]]
			out = append(out, [3]r2.Vec{a, b, c})
			idx = append(idx[:bestK], idx[bestK+1:]...)
		}
	}
	if len(idx) == 3 {
		out = append(out, [3]r2.Vec{poly[idx[0]], poly[idx[1]], poly[idx[2]]})
	}
	return out
}

// mergeHoles splices every hole contour into the outer contour through a
// bridge edge, yielding a single simple polygon. Bridges run from each
// hole's rightmost vertex to the nearest outer vertex they can reach
// without crossing any contour.
func mergeHoles(outer d2.Contour, holes []d2.Contour) d2.Contour {
	poly := append(d2.Contour(nil), outer...)
	for _, hole := range holes {
		hk := 0
		for i, p := range hole {
			if p.X > hole[hk].X {
				hk = i
			}
		}
		hv := hole[hk]
		all := append([]d2.Contour{poly}, holes...)
		bridge := -1
		bestDist := math.MaxFloat64
		for i, ov := range poly {
			d := r2.Norm(r2.Sub(ov, hv))
			if d >= bestDist {
				continue
			}
			if bridgeBlocked(hv, ov, all) {
				continue
			}
			bridge, bestDist = i, d
		}
		if bridge < 0 {
			panic("brep: cannot bridge trim hole into outer loop")
		}
		merged := make(d2.Contour, 0, len(poly)+len(hole)+2)
		merged = append(merged, poly[:bridge+1]...)
		for k := 0; k <= len(hole); k++ {
			merged = append(merged, hole[(hk+k)%len(hole)])
		}
		merged = append(merged, poly[bridge:]...)
		poly = merged
	}
	return poly
}

// bridgeBlocked reports whether the candidate bridge from a to b properly
// crosses any contour edge.
func bridgeBlocked(a, b r2.Vec, contours []d2.Contour) bool {
	for _, c := range contours {
		for i, p := range c {
			q := c[(i+1)%len(c)]
			if d2.SegmentsIntersect(a, b, p, q) {
				return true
			}
		}
	}
	return false
}

func pointInTriangle(p, a, b, c r2.Vec, eps float64) bool {
	d1 := d2.Cross(r2.Sub(b, a), r2.Sub(p, a))
	d2v := d2.Cross(r2.Sub(c, b), r2.Sub(p, b))
	d3 := d2.Cross(r2.Sub(a, c), r2.Sub(p, c))
	return d1 > eps && d2v > eps && d3 > eps
}
