package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/brep/internal/d2"
	"github.com/soypat/brep/internal/d3"
)

// Op selects the boolean combination computed by Combine.
type Op int

const (
	OpUnion Op = iota
	OpDifference
	OpIntersection
)

func (op Op) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpDifference:
		return "difference"
	case OpIntersection:
		return "intersection"
	}
	return "op(invalid)"
}

// Union returns a new shell enclosing the volume of a or b. Neither input is
// mutated.
func Union(a, b *Shell) (*Shell, error) { return Combine(a, b, OpUnion, DefaultTolerance) }

// Difference returns a new shell enclosing the volume of a with b's volume
// removed. Neither input is mutated.
func Difference(a, b *Shell) (*Shell, error) { return Combine(a, b, OpDifference, DefaultTolerance) }

// Intersection returns a new shell enclosing the volume common to a and b.
// Neither input is mutated.
func Intersection(a, b *Shell) (*Shell, error) { return Combine(a, b, OpIntersection, DefaultTolerance) }

// Combine computes the boolean combination of two shells at the given
// flatness/intersection tolerance and returns a freshly allocated result:
// every curve and surface handle in it is independent of a and b.
//
// Near-tangent contacts are resolved by tolerance collapse. A combination
// whose trim loops cannot be closed back up fails with an error identifying
// the surface involved; the inputs are left intact either way.
func Combine(a, b *Shell, op Op, tol float64) (sh *Shell, err error) {
	defer recoverOp(&err)
	if tol <= 0 {
		tol = DefaultTolerance
	}
	sh = combine(a, b, op, tol)
	return sh, err
}

// pointClass is the relation of a point to a shell's boundary. The on
// classes compare the queried face's normal against the boundary's normal
// at the contact.
type pointClass int

const (
	classOutside pointClass = iota
	classInside
	classOnSame
	classOnOpposite
)

// regionKept is the boolean engine's keep table: whether a face region with
// the given relation to the other shell survives into the result. ownerA
// marks regions on the first operand's surfaces.
func regionKept(op Op, ownerA bool, c pointClass) bool {
	switch op {
	case OpUnion:
		if c == classOutside {
			return true
		}
		// One copy of coincident boundary is kept, a's by convention.
		return ownerA && c == classOnSame
	case OpDifference:
		if ownerA {
			return c == classOutside || c == classOnOpposite
		}
		return c == classInside
	case OpIntersection:
		if c == classInside {
			return true
		}
		return ownerA && c == classOnSame
	}
	panic("brep: invalid boolean operation")
}

// faceInfo caches per-surface data used throughout one combination: the
// trim region as a parameter-space polygon and the control net bounds.
type faceInfo struct {
	srf      *Surface
	id       SurfaceID
	poly     d2.Polygon
	boundary [][]r3.Vec // flattened trim polylines, walking direction
	bb       d3.Box
	scale    float64 // rough 3D size per parameter unit, for UV tolerances
}

func buildFaceInfos(sh *Shell, tol float64) []faceInfo {
	infos := make([]faceInfo, sh.NumSurfaces())
	for i := range infos {
		id := SurfaceID(i + 1)
		srf := sh.Surface(id)
		loops, _ := sh.surfaceUVLoops(id, tol)
		poly := make(d2.Polygon, len(loops))
		copy(poly, loops)
		boundary := make([][]r3.Vec, len(srf.trim))
		for k, tb := range srf.trim {
			boundary[k] = sh.trimPwl(tb, tol)
		}
		bb := srf.bounds()
		infos[i] = faceInfo{
			srf:      srf,
			id:       id,
			poly:     poly,
			boundary: boundary,
			bb:       bb,
			scale:    math.Max(r3.Norm(bb.Size()), epsilon),
		}
	}
	return infos
}

// uvInside reports whether (u,v) lies in the face's trim region, treating
// points within the welding tolerance of the boundary as inside. Boundary
// inclusivity is what lets intersection curves running along a face's edge
// survive clipping.
func (fi *faceInfo) uvInside(u, v, tol float64) bool {
	p := r2.Vec{X: u, Y: v}
	if fi.poly.Contains(p) {
		return true
	}
	return fi.poly.Dist(p) <= weldTol(tol)/fi.scale+1e-9
}

// classifier answers point-against-shell queries for boundary
// classification: exact on-boundary detection against the rational surfaces
// first, then a ray-parity containment test against the shell's
// triangulated boundary. The kd-tree nearest-triangle lookup prunes the
// exact test: a point farther from the nearest centroid's triangle than the
// mesh diameter bound cannot lie on the boundary.
type classifier struct {
	faces   []faceInfo
	mesh    *d3.MeshIndex
	maxDiam float64
	tol     float64
}

func newClassifier(sh *Shell, faces []faceInfo, tol float64) *classifier {
	var m Mesh
	for i := range sh.surfaces {
		sh.triangulateSurfaceInto(SurfaceID(i+1), &m, tol)
	}
	if len(m.Triangles) == 0 {
		panic("brep: boolean operand triangulates to an empty mesh")
	}
	tris := make([]d3.Triangle, len(m.Triangles))
	maxDiam := 0.0
	for i, t := range m.Triangles {
		tris[i] = d3.Triangle(t.V)
		for e := 0; e < 3; e++ {
			maxDiam = math.Max(maxDiam, r3.Norm(r3.Sub(t.V[e], t.V[(e+1)%3])))
		}
	}
	return &classifier{
		faces:   faces,
		mesh:    d3.NewMeshIndex(tris),
		maxDiam: maxDiam,
		tol:     tol,
	}
}

// classify relates p to the shell. refN is the unit normal of the face the
// query is made for; it decides between the coincident classes.
func (c *classifier) classify(p, refN r3.Vec) pointClass {
	onTol := weldTol(c.tol)
	_, d := c.mesh.Nearest(p)
	if d <= onTol+c.maxDiam {
		for i := range c.faces {
			fi := &c.faces[i]
			if !fi.bb.Enlarge(d3.Elem(2 * onTol)).Contains(p) {
				continue
			}
			u, v := fi.srf.ClosestPointTo(p)
			if r3.Norm(r3.Sub(p, fi.srf.PointAt(u, v))) > onTol {
				continue
			}
			if !fi.uvInside(u, v, c.tol) {
				continue
			}
			if r3.Dot(refN, fi.srf.NormalAt(u, v)) >= 0 {
				return classOnSame
			}
			return classOnOpposite
		}
	}
	if c.mesh.Contains(p) {
		return classInside
	}
	return classOutside
}

// bEdge is one directed boundary piece during face rebuilding: a polyline
// walked with the kept region on its left. exact is set when the piece
// spans a whole exact curve in walking direction, so the result can keep
// the closed form.
type bEdge struct {
	pts   []r3.Vec
	exact *Bezier
}

func (e *bEdge) start() r3.Vec  { return e.pts[0] }
func (e *bEdge) finish() r3.Vec { return e.pts[len(e.pts)-1] }

func (e *bEdge) arcLength() float64 {
	l := 0.0
	for i := 0; i+1 < len(e.pts); i++ {
		l += r3.Norm(r3.Sub(e.pts[i+1], e.pts[i]))
	}
	return l
}

func (e *bEdge) centroid() r3.Vec {
	var s r3.Vec
	for _, p := range e.pts {
		s = r3.Add(s, p)
	}
	return r3.Scale(1/float64(len(e.pts)), s)
}

func (e *bEdge) reversed() bEdge {
	r := bEdge{pts: make([]r3.Vec, len(e.pts))}
	for i, p := range e.pts {
		r.pts[len(e.pts)-1-i] = p
	}
	if e.exact != nil {
		rb := e.exact.Reversed()
		r.exact = &rb
	}
	return r
}

// sameGeometry reports whether two directed edges trace the same point set
// in either direction.
func (e *bEdge) sameGeometry(o *bEdge, weld float64) bool {
	if r3.Norm(r3.Sub(e.centroid(), o.centroid())) > weld {
		return false
	}
	fwd := r3.Norm(r3.Sub(e.start(), o.start())) <= weld &&
		r3.Norm(r3.Sub(e.finish(), o.finish())) <= weld
	bwd := r3.Norm(r3.Sub(e.start(), o.finish())) <= weld &&
		r3.Norm(r3.Sub(e.finish(), o.start())) <= weld
	return fwd || bwd
}

// segEntry records a curve already entered into the result shell so that
// the second face bounded by the same edge reuses the handle. Shared handles
// are what keep the combined shell watertight.
type segEntry struct {
	id                    CurveID
	start, centro, finish r3.Vec
}

type booleanCtx struct {
	op       Op
	tol      float64
	off      float64 // in-face offset used for region sampling
	join     float64 // endpoint snapping radius, looser than welding
	out      *Shell
	segs     []segEntry
	verts    []r3.Vec // canonical endpoint coordinates of the result
	kept     int
	dropped  int
	curveCnt int
}

// snapPoint returns the canonical coordinate for p: the first endpoint
// registered within the joining radius, or p itself as a new canonical
// vertex. Original trim vertices and cut points register before marched
// intersection endpoints do, so the approximate endpoints land exactly on
// the coordinates the split original edges already use.
func (ctx *booleanCtx) snapPoint(p r3.Vec) r3.Vec {
	for _, v := range ctx.verts {
		if r3.Norm(r3.Sub(p, v)) <= ctx.join {
			return v
		}
	}
	ctx.verts = append(ctx.verts, p)
	return p
}

// snapEnds snaps both endpoints of the edge and reports whether either one
// moved.
func (ctx *booleanCtx) snapEnds(e *bEdge) bool {
	first, last := &e.pts[0], &e.pts[len(e.pts)-1]
	s0, s1 := ctx.snapPoint(*first), ctx.snapPoint(*last)
	moved := s0 != *first || s1 != *last
	*first, *last = s0, s1
	return moved
}

// curveFor enters the edge's geometry into the result shell, or finds the
// matching curve already entered, and returns the handle together with
// whether the edge walks the stored curve backwards.
func (ctx *booleanCtx) curveFor(e *bEdge) (CurveID, bool) {
	weld := weldTol(ctx.tol)
	cen := e.centroid()
	for _, s := range ctx.segs {
		if r3.Norm(r3.Sub(cen, s.centro)) > weld {
			continue
		}
		if r3.Norm(r3.Sub(e.start(), s.start)) <= weld &&
			r3.Norm(r3.Sub(e.finish(), s.finish)) <= weld {
			return s.id, false
		}
		if r3.Norm(r3.Sub(e.start(), s.finish)) <= weld &&
			r3.Norm(r3.Sub(e.finish(), s.start)) <= weld {
			return s.id, true
		}
	}
	var c Curve
	if e.exact != nil {
		c = ExactCurve(*e.exact)
	} else {
		c = ApproxCurve(append([]r3.Vec(nil), e.pts...))
	}
	id := ctx.out.AddCurve(c)
	ctx.curveCnt++
	ctx.segs = append(ctx.segs, segEntry{id: id, start: e.start(), centro: cen, finish: e.finish()})
	return id, false
}

func combine(a, b *Shell, op Op, tol float64) *Shell {
	facesA := buildFaceInfos(a, tol)
	facesB := buildFaceInfos(b, tol)
	clsA := newClassifier(a, facesA, tol)
	clsB := newClassifier(b, facesB, tol)

	diag := r3.Norm(d3.Box(a.Bounds()).Extend(d3.Box(b.Bounds())).Size())
	ctx := &booleanCtx{
		op:   op,
		tol:  tol,
		off:  1e-3*diag + 100*tol,
		join: 4 * weldTol(tol),
		out:  &Shell{},
	}

	// Step 1: pairwise surface intersection curves.
	ssi := make(map[[2]int][][]r3.Vec)
	marched := 0
	for i := range facesA {
		for j := range facesB {
			curves := intersectSurfaces(&facesA[i], &facesB[j], tol)
			if len(curves) > 0 {
				ssi[[2]int{i, j}] = curves
				marched += len(curves)
			}
		}
	}

	// Steps 2-4: classify, reassemble and emit each operand's faces.
	for i := range facesA {
		var curves [][]r3.Vec
		for j := range facesB {
			curves = append(curves, ssi[[2]int{i, j}]...)
		}
		ctx.rebuildFace(a, &facesA[i], true, clsB, curves)
	}
	for j := range facesB {
		var curves [][]r3.Vec
		for i := range facesA {
			curves = append(curves, ssi[[2]int{i, j}]...)
		}
		ctx.rebuildFace(b, &facesB[j], false, clsA, curves)
	}

	logger().Debug("brep: boolean combine",
		"op", op.String(),
		"surfacesA", len(facesA), "surfacesB", len(facesB),
		"intersectionCurves", marched,
		"facesKept", ctx.kept, "facesDropped", ctx.dropped,
		"resultCurves", ctx.curveCnt)
	return ctx.out
}

// rebuildFace runs boundary classification and loop reassembly for one
// surface of an operand and, when any region survives, enters the rebuilt
// face into the result shell.
func (ctx *booleanCtx) rebuildFace(sh *Shell, fi *faceInfo, ownerA bool, other *classifier, curves [][]r3.Vec) {
	weld := weldTol(ctx.tol)
	var edges []bEdge
	untouched := true

	// Original trim edges, split where they cross the other shell's
	// boundary, classified by the face region on their left.
	for _, tb := range fi.srf.trim {
		pwl := sh.trimPwl(tb, ctx.tol)
		splits := splitAgainst(pwl, other, ctx.tol)
		if len(splits) > 1 {
			untouched = false
		}
		for _, sub := range splits {
			e := bEdge{pts: sub}
			if len(splits) == 1 {
				if c := sh.Curve(tb.Curve); c.exact {
					bez := c.bez
					if tb.Backwards {
						bez = bez.Reversed()
					}
					e.exact = &bez
				}
			}
			if e.arcLength() < weld {
				// Degenerate sliver; its neighbours weld across it.
				continue
			}
			if ctx.snapEnds(&e) && e.exact != nil {
				// The closed form no longer ends where the polyline does.
				e.exact = nil
			}
			if ctx.keepRegion(fi, &e, ownerA, other) {
				edges = append(edges, e)
			} else {
				untouched = false
			}
		}
	}

	// Intersection curves become new boundary edges wherever exactly one
	// side of them is kept. The kept side goes on the left. Endpoints are
	// snapped onto the vertices the split original edges registered, so the
	// pieces meet at identical coordinates.
	for _, pts := range curves {
		e := bEdge{pts: append([]r3.Vec(nil), pts...)}
		if e.arcLength() < weld {
			continue
		}
		ctx.snapEnds(&e)
		dup := false
		for i := range edges {
			if e.sameGeometry(&edges[i], ctx.join) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		keepL := ctx.keepRegion(fi, &e, ownerA, other)
		rev := e.reversed()
		keepR := ctx.keepRegion(fi, &rev, ownerA, other)
		switch {
		case keepL && !keepR:
			untouched = false
			edges = append(edges, e)
		case keepR && !keepL:
			untouched = false
			edges = append(edges, rev)
		default:
			// Tangent grazing or coincident contact; not a boundary.
		}
	}

	if len(edges) == 0 {
		// Nothing of the boundary survives: the face is kept or dropped
		// whole by an interior sample.
		if !ctx.keepWholeFace(fi, ownerA, other) {
			ctx.dropped++
			return
		}
		edges = ctx.originalEdges(sh, fi)
	} else if untouched && len(fi.srf.trim) > 0 {
		// Every original edge survived unsplit and no intersection curve
		// bounds anything new; re-emit the original trims so exact curve
		// geometry is preserved.
		edges = ctx.originalEdges(sh, fi)
	}
	for i := range edges {
		if ctx.snapEnds(&edges[i]) && edges[i].exact != nil {
			edges[i].exact = nil
		}
	}

	loops := ctx.threadLoops(fi, edges)
	flip := ctx.op == OpDifference && !ownerA

	srf := *fi.srf
	if flip {
		srf = srf.flippedU()
	}
	srf.trim = nil
	for _, loop := range loops {
		if flip {
			rev := make([]bEdge, len(loop))
			for i := range loop {
				rev[len(loop)-1-i] = loop[i].reversed()
			}
			loop = rev
		}
		for i := range loop {
			id, backwards := ctx.curveFor(&loop[i])
			srf.AddTrim(TrimBy{
				Curve:     id,
				Backwards: backwards,
				Start:     loop[i].start(),
				Finish:    loop[i].finish(),
			})
		}
	}
	ctx.out.AddSurface(srf)
	ctx.kept++
}

// originalEdges returns the face's trims unchanged as directed edges.
func (ctx *booleanCtx) originalEdges(sh *Shell, fi *faceInfo) []bEdge {
	edges := make([]bEdge, 0, len(fi.srf.trim))
	for _, tb := range fi.srf.trim {
		e := bEdge{pts: sh.trimPwl(tb, ctx.tol)}
		if c := sh.Curve(tb.Curve); c.exact {
			bez := c.bez
			if tb.Backwards {
				bez = bez.Reversed()
			}
			e.exact = &bez
		}
		edges = append(edges, e)
	}
	return edges
}

// keepRegion samples the face region immediately left of the edge's
// midpoint and asks the keep table whether it survives.
func (ctx *booleanCtx) keepRegion(fi *faceInfo, e *bEdge, ownerA bool, other *classifier) bool {
	mid, tan := e.midAndTangent()
	u, v := fi.srf.ClosestPointTo(mid)
	n := r3.Unit(fi.srf.NormalAt(u, v))
	left := r3.Unit(r3.Cross(n, tan))
	probe := r3.Add(mid, r3.Scale(ctx.off, left))
	// Re-project so the probe lies on the face even when it curves.
	pu, pv := fi.srf.ClosestPointTo(probe)
	probe = fi.srf.PointAt(pu, pv)
	n = r3.Unit(fi.srf.NormalAt(pu, pv))
	return regionKept(ctx.op, ownerA, other.classify(probe, n))
}

// keepWholeFace classifies an interior sample of a face none of whose
// boundary was touched by the combination.
func (ctx *booleanCtx) keepWholeFace(fi *faceInfo, ownerA bool, other *classifier) bool {
	u, v := interiorUV(fi.poly)
	p := fi.srf.PointAt(u, v)
	n := r3.Unit(fi.srf.NormalAt(u, v))
	return regionKept(ctx.op, ownerA, other.classify(p, n))
}

// interiorUV returns a parameter-space point interior to the trim region:
// the centroid of the largest triangle in the ear decomposition of the
// largest region, with only that region's own holes bridged in.
func interiorUV(poly d2.Polygon) (u, v float64) {
	regions := partitionRegions(poly)
	sample := regions[0]
	for _, rg := range regions[1:] {
		if rg.outer.SignedArea() > sample.outer.SignedArea() {
			sample = rg
		}
	}
	tris := earcut(sample.outer, sample.holes)
	best := -1.0
	var at r2.Vec
	for _, t := range tris {
		a := math.Abs(d2.Cross(r2.Sub(t[1], t[0]), r2.Sub(t[2], t[0]))) / 2
		if a > best {
			best = a
			at = r2.Scale(1./3., r2.Add(t[0], r2.Add(t[1], t[2])))
		}
	}
	return at.X, at.Y
}

// midAndTangent returns the polyline's midpoint and unit tangent there.
func (e *bEdge) midAndTangent() (mid, tan r3.Vec) {
	half := e.arcLength() / 2
	run := 0.0
	for i := 0; i+1 < len(e.pts); i++ {
		seg := r3.Sub(e.pts[i+1], e.pts[i])
		l := r3.Norm(seg)
		if run+l >= half && l > 0 {
			t := (half - run) / l
			return r3.Add(e.pts[i], r3.Scale(t, seg)), r3.Scale(1/l, seg)
		}
		run += l
	}
	last := r3.Sub(e.pts[len(e.pts)-1], e.pts[len(e.pts)-2])
	return e.pts[len(e.pts)-1], r3.Unit(last)
}

// threadLoops re-threads directed edges into closed loops by endpoint
// matching. Endpoints were snapped onto shared vertices, so matches are
// exact; the joining radius only absorbs unsnapped exact-curve endpoints.
// Leftover edges that close no loop are a non-manifold result and fatal for
// the combination.
func (ctx *booleanCtx) threadLoops(fi *faceInfo, edges []bEdge) [][]bEdge {
	join := ctx.join
	used := make([]bool, len(edges))
	var loops [][]bEdge
	for first := range edges {
		if used[first] {
			continue
		}
		used[first] = true
		loop := []bEdge{edges[first]}
		start := edges[first].start()
		at := edges[first].finish()
		for r3.Norm(r3.Sub(at, start)) > join {
			found := -1
			flip := false
			for j := range edges {
				if used[j] {
					continue
				}
				if r3.Norm(r3.Sub(edges[j].start(), at)) <= join {
					found = j
					break
				}
				if r3.Norm(r3.Sub(edges[j].finish(), at)) <= join {
					// Direction disagreement within tolerance; accept the
					// edge reversed rather than fail the loop.
					found, flip = j, true
					break
				}
			}
			if found < 0 {
				err := &loopError{Surface: fi.id, Gap: at}
				logger().Error("brep: boolean loop reassembly failed",
					"op", ctx.op.String(), "surface", int(fi.id),
					"gapX", at.X, "gapY", at.Y, "gapZ", at.Z)
				panic(err)
			}
			used[found] = true
			e := edges[found]
			if flip {
				e = e.reversed()
			}
			loop = append(loop, e)
			at = e.finish()
		}
		loops = append(loops, loop)
	}
	return loops
}

// flippedU returns the surface with its u direction reversed, negating the
// normal. Used to turn a kept piece of the subtrahend into an
// outward-facing cavity wall.
func (s *Surface) flippedU() Surface {
	r := *s
	for i := 0; i <= s.degm; i++ {
		for j := 0; j <= s.degn; j++ {
			r.ctrl[i][j] = s.ctrl[s.degm-i][j]
			r.weight[i][j] = s.weight[s.degm-i][j]
		}
	}
	r.trim = nil
	return r
}

// sideOf returns the signed offset of p from the surface along its normal
// at the closest point, and that closest point's parameters.
func sideOf(s *Surface, p r3.Vec) (g, u, v float64) {
	u, v = s.ClosestPointTo(p)
	q := s.PointAt(u, v)
	n := r3.Unit(s.NormalAt(u, v))
	return r3.Dot(r3.Sub(p, q), n), u, v
}

// splitAgainst splits a boundary polyline at the points where it crosses
// the other shell's surfaces, so every returned piece lies entirely on one
// side of (or on) the other boundary.
func splitAgainst(pwl []r3.Vec, other *classifier, tol float64) [][]r3.Vec {
	weld := weldTol(tol)
	var cuts []r3.Vec
	for i := range other.faces {
		fi := &other.faces[i]
		segbb := d3.PointsBox(pwl).Enlarge(d3.Elem(weld))
		if !segbb.Overlaps(fi.bb) {
			continue
		}
		for s := 0; s+1 < len(pwl); s++ {
			cuts = append(cuts, segmentSurfaceCrossings(pwl[s], pwl[s+1], fi, tol)...)
		}
	}
	if len(cuts) == 0 {
		return [][]r3.Vec{pwl}
	}
	return splitPolyline(pwl, cuts, weld)
}

// segmentSurfaceCrossings finds where segment ab crosses the trimmed
// surface, by bracketing sign changes of the signed side function and
// bisecting each bracket to tolerance.
func segmentSurfaceCrossings(a, b r3.Vec, fi *faceInfo, tol float64) []r3.Vec {
	const samples = 8
	var out []r3.Vec
	lerp := func(t float64) r3.Vec {
		return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
	}
	prevT := 0.0
	prevG, _, _ := sideOf(fi.srf, a)
	for k := 1; k <= samples; k++ {
		t := float64(k) / samples
		g, _, _ := sideOf(fi.srf, lerp(t))
		if (prevG < 0) != (g < 0) && math.Abs(prevG) > epsilon {
			lo, hi := prevT, t
			for it := 0; it < 40; it++ {
				mid := (lo + hi) / 2
				gm, _, _ := sideOf(fi.srf, lerp(mid))
				if (prevG < 0) == (gm < 0) {
					lo = mid
				} else {
					hi = mid
				}
			}
			x := lerp((lo + hi) / 2)
			_, u, v := sideOf(fi.srf, x)
			if fi.uvInside(u, v, tol) {
				out = append(out, x)
			}
		}
		prevT, prevG = t, g
	}
	return out
}

// splitPolyline cuts a polyline at the given points, dropping cuts that
// coincide with existing endpoints within the weld tolerance.
func splitPolyline(pwl []r3.Vec, cuts []r3.Vec, weld float64) [][]r3.Vec {
	pieces := [][]r3.Vec{}
	cur := []r3.Vec{pwl[0]}
	for s := 0; s+1 < len(pwl); s++ {
		a, b := pwl[s], pwl[s+1]
		seg := r3.Sub(b, a)
		l2 := r3.Norm2(seg)
		// Order this segment's cuts by their projection onto it.
		type cut struct {
			t float64
			p r3.Vec
		}
		var here []cut
		for _, c := range cuts {
			if l2 == 0 {
				continue
			}
			t := r3.Dot(r3.Sub(c, a), seg) / l2
			if t <= 0 || t >= 1 {
				continue
			}
			p := r3.Add(a, r3.Scale(t, seg))
			if r3.Norm(r3.Sub(p, c)) > weld {
				continue // cut belongs to another segment
			}
			if r3.Norm(r3.Sub(p, a)) <= weld || r3.Norm(r3.Sub(p, b)) <= weld {
				continue
			}
			here = append(here, cut{t: t, p: p})
		}
		for i := 1; i < len(here); i++ {
			for j := i; j > 0 && here[j].t < here[j-1].t; j-- {
				here[j], here[j-1] = here[j-1], here[j]
			}
		}
		for _, c := range here {
			cur = append(cur, c.p)
			pieces = append(pieces, cur)
			cur = []r3.Vec{c.p}
		}
		cur = append(cur, b)
	}
	pieces = append(pieces, cur)
	return pieces
}
