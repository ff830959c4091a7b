package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/brep/internal/d2"
	"github.com/soypat/brep/internal/d3"
)

// CurveID is a stable handle to a curve owned by a Shell. The zero value is
// invalid. Handles remain valid for the owning shell's lifetime and are
// meaningless in any other shell.
type CurveID uint32

// SurfaceID is a stable handle to a surface owned by a Shell.
type SurfaceID uint32

// Curve is a 3D curve owned by a shell: either exact, wrapping one Bezier,
// or approximate, an ordered polyline. Approximate curves are produced by
// the boolean engine for intersections with no closed form.
type Curve struct {
	exact bool
	bez   Bezier
	pts   []r3.Vec
}

// ExactCurve returns a curve wrapping b.
func ExactCurve(b Bezier) Curve {
	return Curve{exact: true, bez: b}
}

// ApproxCurve returns a polyline curve through pts. At least two points are
// required.
func ApproxCurve(pts []r3.Vec) Curve {
	if len(pts) < 2 {
		panic("brep: approximate curve needs at least two points")
	}
	return Curve{pts: pts}
}

// Exact returns the wrapped Bezier and true for exact curves.
func (c *Curve) Exact() (Bezier, bool) { return c.bez, c.exact }

// Start returns the curve's first point.
func (c *Curve) Start() r3.Vec {
	if c.exact {
		return c.bez.Start()
	}
	return c.pts[0]
}

// Finish returns the curve's last point.
func (c *Curve) Finish() r3.Vec {
	if c.exact {
		return c.bez.Finish()
	}
	return c.pts[len(c.pts)-1]
}

// AppendPwl appends the curve flattened to within tol to dst. Approximate
// curves are emitted verbatim; their stored points already satisfy the
// tolerance they were marched at.
func (c *Curve) AppendPwl(dst []r3.Vec, tol float64) []r3.Vec {
	if c.exact {
		return c.bez.AppendPwl(dst, tol)
	}
	if len(dst) == 0 {
		return append(dst, c.pts...)
	}
	return append(dst, c.pts[1:]...)
}

func (c *Curve) transformedBy(t r3.Vec, q r3.Rotation) Curve {
	r := Curve{exact: c.exact}
	if c.exact {
		r.bez = c.bez.TransformedBy(t, q)
		return r
	}
	r.pts = make([]r3.Vec, len(c.pts))
	for i, p := range c.pts {
		r.pts[i] = r3.Add(q.Rotate(p), t)
	}
	return r
}

// TrimBy is a segment of a curve by which a surface is trimmed: which curve,
// by handle, whether the trim runs backwards along the curve's stored
// parametrization, and the trim's own start and finish points. The endpoints
// are redundant with the referenced curve and cached for fast boundary
// checks; when Backwards they appear in reverse order in the curve.
//
// A trim never owns its curve. Two surfaces referencing one curve share an
// edge, which is what keeps a solid shell watertight.
type TrimBy struct {
	Curve     CurveID
	Backwards bool
	Start     r3.Vec
	Finish    r3.Vec
}

// EntireTrim returns a trim segment spanning the whole of curve hc in the
// given direction, the common case for freshly constructed faces that no
// boolean has clipped yet.
func EntireTrim(sh *Shell, hc CurveID, backwards bool) TrimBy {
	c := sh.Curve(hc)
	tb := TrimBy{Curve: hc, Backwards: backwards}
	if backwards {
		tb.Start, tb.Finish = c.Finish(), c.Start()
	} else {
		tb.Start, tb.Finish = c.Start(), c.Finish()
	}
	return tb
}

// AddTrim appends a trim segment to the surface's boundary. Trims taken in
// order must eventually form closed loops; closure is validated lazily when
// the surface is triangulated or combined, since loops are built
// incrementally.
func (s *Surface) AddTrim(tb TrimBy) {
	s.trim = append(s.trim, tb)
}

// Shell is an aggregate of surfaces and the curves trimming them, bounding
// one or more solids or open surface patches. Curves and surfaces live in
// arenas addressed by stable handles; surfaces reference curves only by
// handle, so a shared edge is stored once.
//
// Shells are built by Extrude, Union, Difference, Intersection, Copy and
// Transformed, and are not mutated afterwards.
type Shell struct {
	curves   []Curve
	surfaces []Surface
}

// AddCurve enters c into the shell's curve arena and returns its handle.
func (sh *Shell) AddCurve(c Curve) CurveID {
	sh.curves = append(sh.curves, c)
	return CurveID(len(sh.curves))
}

// AddSurface enters s into the shell's surface arena and returns its handle.
func (sh *Shell) AddSurface(s Surface) SurfaceID {
	sh.surfaces = append(sh.surfaces, s)
	return SurfaceID(len(sh.surfaces))
}

// Curve resolves a curve handle. Invalid handles panic.
func (sh *Shell) Curve(id CurveID) *Curve {
	if id == 0 || int(id) > len(sh.curves) {
		panic("brep: invalid curve handle")
	}
	return &sh.curves[id-1]
}

// Surface resolves a surface handle. Invalid handles panic.
func (sh *Shell) Surface(id SurfaceID) *Surface {
	if id == 0 || int(id) > len(sh.surfaces) {
		panic("brep: invalid surface handle")
	}
	return &sh.surfaces[id-1]
}

// NumCurves returns the number of curves owned by the shell. Valid curve
// handles are 1 through NumCurves.
func (sh *Shell) NumCurves() int { return len(sh.curves) }

// NumSurfaces returns the number of surfaces owned by the shell. Valid
// surface handles are 1 through NumSurfaces.
func (sh *Shell) NumSurfaces() int { return len(sh.surfaces) }

// Bounds returns the shell's bounding box from its surfaces' control nets.
func (sh *Shell) Bounds() r3.Box {
	if len(sh.surfaces) == 0 {
		return r3.Box{}
	}
	bb := sh.surfaces[0].bounds()
	for i := range sh.surfaces[1:] {
		bb = bb.Extend(sh.surfaces[i+1].bounds())
	}
	return r3.Box(bb)
}

// Copy returns a deep copy of the shell: fully independent arenas with the
// same handles. Boolean combination never mutates its inputs, so Copy is how
// a caller keeps a result alive independently of intermediate shells.
func (sh *Shell) Copy() *Shell {
	r := &Shell{
		curves:   make([]Curve, len(sh.curves)),
		surfaces: make([]Surface, len(sh.surfaces)),
	}
	for i, c := range sh.curves {
		if !c.exact {
			c.pts = append([]r3.Vec(nil), c.pts...)
		}
		r.curves[i] = c
	}
	for i, s := range sh.surfaces {
		s.trim = append([]TrimBy(nil), s.trim...)
		r.surfaces[i] = s
	}
	return r
}

// Transformed returns a copy of the shell rotated by q about the origin and
// then translated by t. Handles are preserved: curve i in the copy is the
// transform of curve i in the source, so trim references carry over without
// remapping.
func (sh *Shell) Transformed(t r3.Vec, q r3.Rotation) *Shell {
	r := &Shell{
		curves:   make([]Curve, len(sh.curves)),
		surfaces: make([]Surface, len(sh.surfaces)),
	}
	for i := range sh.curves {
		r.curves[i] = sh.curves[i].transformedBy(t, q)
	}
	for i := range sh.surfaces {
		r.surfaces[i] = sh.surfaces[i].transformedBy(t, q)
	}
	return r
}

// trimPwl returns the trim's polyline in walking order: the referenced curve
// flattened to tol, reversed when the trim runs backwards.
func (sh *Shell) trimPwl(tb TrimBy, tol float64) []r3.Vec {
	pts := sh.Curve(tb.Curve).AppendPwl(nil, tol)
	if tb.Backwards {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

// Extrude sweeps a set of closed profile loops along the segment from offset
// t0 to offset t1 and returns the resulting solid shell: one ruled lateral
// surface per profile curve, two planar caps trimmed by the profile loops,
// and the shared curves joining them. face tags every surface of the solid.
func Extrude(ls LoopSet, t0, t1 r3.Vec, face uint32) (sh *Shell, err error) {
	defer recoverOp(&err)
	sh = makeExtrusion(ls, t0, t1, face, DefaultTolerance)
	return sh, err
}

func makeExtrusion(ls LoopSet, t0, t1 r3.Vec, face uint32, tol float64) *Shell {
	dir := r3.Sub(t1, t0)
	if r3.Norm(dir) < epsilon {
		panic("brep: extrusion sweep vector is zero")
	}
	if len(ls.Loops) == 0 {
		panic("brep: extrusion of empty loop set")
	}

	// Caps lie in the profile's plane, which for an oblique sweep is not
	// normal to dir. nf is the profile plane normal oriented along the
	// sweep; a sweep parallel to the profile plane encloses no volume.
	nf := ls.Normal
	if r3.Norm(nf) < epsilon {
		nf = ls.Loops[0].normal(tol)
	}
	nf = r3.Unit(nf)
	if s := r3.Dot(nf, r3.Unit(dir)); math.Abs(s) < 1e-9 {
		panic("brep: extrusion sweep lies in the profile plane")
	} else if s < 0 {
		nf = r3.Scale(-1, nf)
	}

	// Orient every loop about the sweep: outer loops counterclockwise,
	// loops nested inside an odd number of others (holes) clockwise.
	// Lateral and cap normals then all face out of the solid.
	e1, e2 := d3.Orthonormal(nf)
	flat := make([]d2.Contour, len(ls.Loops))
	for i, l := range ls.Loops {
		pts := l.AppendPwl(nil, tol)
		c := make(d2.Contour, len(pts))
		for j, p := range pts {
			rel := r3.Sub(p, ls.Point)
			c[j] = r2.Vec{X: r3.Dot(rel, e1), Y: r3.Dot(rel, e2)}
		}
		flat[i] = c
	}
	loops := make([]Loop, len(ls.Loops))
	for i, l := range ls.Loops {
		depth := 0
		for j := range flat {
			if j != i && (d2.Polygon{flat[j]}).Contains(flat[i][0]) {
				depth++
			}
		}
		ccw := flat[i].SignedArea() > 0
		hole := depth%2 == 1
		if ccw == hole {
			loops[i] = l.Reversed()
		} else {
			loops[i] = l
		}
	}

	sh := &Shell{}

	// Caps span the profile's exact in-plane bounding box, so the shell's
	// control-net bounds coincide with the solid's.
	bb := flat[0].Box()
	for _, c := range flat[1:] {
		bb = bb.Extend(c.Box())
	}
	span := func(at r3.Vec) r3.Vec {
		return r3.Add(at, r3.Add(r3.Scale(bb.Min.X, e1), r3.Scale(bb.Min.Y, e2)))
	}
	su := r3.Scale(bb.Size().X, e1)
	sv := r3.Scale(bb.Size().Y, e2)
	botOrigin := span(r3.Add(ls.Point, t0))
	topOrigin := span(r3.Add(ls.Point, t1))
	// cross(su, sv) is along +nf; the bottom cap swaps the basis so its
	// normal faces against the sweep, out of the solid.
	bot := PlaneSurface(botOrigin, sv, su)
	top := PlaneSurface(topOrigin, su, sv)
	bot.Face = face
	top.Face = face

	for _, l := range loops {
		n := len(l.Curves)
		cb := make([]CurveID, n) // bottom edge copies
		ct := make([]CurveID, n) // top edge copies
		cl := make([]CurveID, n) // lateral lines, one per loop vertex
		for j, c := range l.Curves {
			cb[j] = sh.AddCurve(ExactCurve(c.translatedBy(t0)))
			ct[j] = sh.AddCurve(ExactCurve(c.translatedBy(t1)))
			v := c.Start()
			cl[j] = sh.AddCurve(ExactCurve(BezierFromPoints(r3.Add(v, t0), r3.Add(v, t1))))
		}
		for j, c := range l.Curves {
			lat := ExtrusionSurface(c, t0, t1)
			lat.Face = face
			lat.AddTrim(EntireTrim(sh, cb[j], false))
			lat.AddTrim(EntireTrim(sh, cl[(j+1)%n], false))
			lat.AddTrim(EntireTrim(sh, ct[j], true))
			lat.AddTrim(EntireTrim(sh, cl[j], true))
			sh.AddSurface(lat)
		}
		// Bottom cap walks the loop against its stored direction so the
		// retained region is on the left under the -dir normal.
		for j := n - 1; j >= 0; j-- {
			bot.AddTrim(EntireTrim(sh, cb[j], true))
		}
		for j := 0; j < n; j++ {
			top.AddTrim(EntireTrim(sh, ct[j], false))
		}
	}
	sh.AddSurface(bot)
	sh.AddSurface(top)
	return sh
}
