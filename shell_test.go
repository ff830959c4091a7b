package brep

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// rectLoops builds a rectangular profile loop in the z=0 plane.
func rectLoops(t testing.TB, x0, y0, x1, y1 float64) LoopSet {
	t.Helper()
	pts := []r3.Vec{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}
	curves := make([]Bezier, 4)
	for i := range pts {
		curves[i] = BezierFromPoints(pts[i], pts[(i+1)%4])
	}
	ls, err := Loops(curves, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	return ls
}

func cube(t testing.TB, x0, y0, z0, side float64) *Shell {
	t.Helper()
	ls := rectLoops(t, x0, y0, x0+side, y0+side)
	sh, err := Extrude(ls, r3.Vec{Z: z0}, r3.Vec{Z: z0 + side}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return sh
}

func shellVolume(t testing.TB, sh *Shell) float64 {
	t.Helper()
	m, err := sh.Triangulate(1e-4)
	if err != nil {
		t.Fatal(err)
	}
	return m.Volume()
}

func TestExtrudeCube(t *testing.T) {
	sh := cube(t, 0, 0, 0, 1)
	if n := sh.NumSurfaces(); n != 6 {
		t.Errorf("cube has %d surfaces, want 6", n)
	}
	if n := sh.NumCurves(); n != 12 {
		t.Errorf("cube has %d curves, want 12", n)
	}
	// Watertightness: every curve is the shared edge of exactly two trims.
	refs := make(map[CurveID]int)
	for i := 1; i <= sh.NumSurfaces(); i++ {
		for _, tb := range sh.Surface(SurfaceID(i)).Trims() {
			refs[tb.Curve]++
		}
	}
	for id := CurveID(1); int(id) <= sh.NumCurves(); id++ {
		if refs[id] != 2 {
			t.Errorf("curve %d referenced by %d trims, want 2", id, refs[id])
		}
	}
	m, err := sh.Triangulate(1e-4)
	if err != nil {
		t.Fatal(err)
	}
	if v := m.Volume(); math.Abs(v-1) > 1e-9 {
		t.Errorf("cube volume = %g, want 1", v)
	}
	if a := m.Area(); math.Abs(a-6) > 1e-9 {
		t.Errorf("cube area = %g, want 6", a)
	}
	// The cap patches span the profile box exactly, so the control-net
	// bounds are the solid's bounds.
	bb := sh.Bounds()
	if r3.Norm(bb.Min) > 1e-9 || r3.Norm(r3.Sub(bb.Max, r3.Vec{X: 1, Y: 1, Z: 1})) > 1e-9 {
		t.Errorf("cube bounds = %v..%v, want origin..(1,1,1)", bb.Min, bb.Max)
	}
}

func TestExtrudeWithHole(t *testing.T) {
	outer := rectLoops(t, 0, 0, 2, 2)
	inner := rectLoops(t, 0.5, 0.5, 1.5, 1.5)
	ls := LoopSet{
		Loops:  append(outer.Loops, inner.Loops...),
		Normal: outer.Normal,
		Point:  outer.Point,
	}
	sh, err := Extrude(ls, r3.Vec{}, r3.Vec{Z: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n := sh.NumSurfaces(); n != 10 {
		t.Errorf("tube has %d surfaces, want 10", n)
	}
	if n := sh.NumCurves(); n != 24 {
		t.Errorf("tube has %d curves, want 24", n)
	}
	if v := shellVolume(t, sh); math.Abs(v-3) > 1e-9 {
		t.Errorf("tube volume = %g, want 3", v)
	}
}

// Profile winding must not matter: Extrude orients loops itself.
func TestExtrudeWindingInsensitive(t *testing.T) {
	ls := rectLoops(t, 0, 0, 1, 1)
	for i, l := range ls.Loops {
		ls.Loops[i] = l.Reversed()
	}
	sh, err := Extrude(ls, r3.Vec{}, r3.Vec{Z: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v := shellVolume(t, sh); math.Abs(v-1) > 1e-9 {
		t.Errorf("reversed profile extrusion volume = %g, want 1", v)
	}
}

func TestExtrudeObliqueSweep(t *testing.T) {
	// Shear the sweep: volume is base area times the normal component of
	// the sweep vector.
	ls := rectLoops(t, 0, 0, 1, 1)
	sh, err := Extrude(ls, r3.Vec{}, r3.Vec{X: 0.5, Z: 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v := shellVolume(t, sh); math.Abs(v-2) > 1e-9 {
		t.Errorf("sheared extrusion volume = %g, want 2", v)
	}
}

func TestLoopsThreading(t *testing.T) {
	// Curves given out of order and partially reversed still assemble.
	a := BezierFromPoints(r3.Vec{}, r3.Vec{X: 1})
	b := BezierFromPoints(r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1})
	c := BezierFromPoints(r3.Vec{Y: 1}, r3.Vec{X: 1, Y: 1}) // reversed
	d := BezierFromPoints(r3.Vec{}, r3.Vec{Y: 1})           // reversed
	ls, err := Loops([]Bezier{a, c, d, b}, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	if len(ls.Loops) != 1 {
		t.Fatalf("got %d loops, want 1", len(ls.Loops))
	}
	if len(ls.Loops[0].Curves) != 4 {
		t.Fatalf("loop has %d curves, want 4", len(ls.Loops[0].Curves))
	}
	if r3.Norm(r3.Sub(ls.Normal, r3.Vec{Z: 1})) > 1e-9 && r3.Norm(r3.Sub(ls.Normal, r3.Vec{Z: -1})) > 1e-9 {
		t.Errorf("loop normal = %v, want +-z", ls.Normal)
	}
}

func TestLoopsGapError(t *testing.T) {
	a := BezierFromPoints(r3.Vec{}, r3.Vec{X: 1})
	b := BezierFromPoints(r3.Vec{X: 2}, r3.Vec{X: 2, Y: 1})
	_, err := Loops([]Bezier{a, b}, 1e-9)
	if err == nil {
		t.Fatal("expected an error for a profile that cannot close")
	}
	var lerr *loopError
	if !errors.As(err, &lerr) {
		t.Fatalf("error %v does not unwrap to a loop error", err)
	}
}

func TestShellCopyIndependent(t *testing.T) {
	sh := cube(t, 0, 0, 0, 1)
	cp := sh.Copy()
	if cp.NumCurves() != sh.NumCurves() || cp.NumSurfaces() != sh.NumSurfaces() {
		t.Fatal("copy has different arena sizes")
	}
	// Mutating the original's trims must not leak into the copy.
	sh.Surface(1).trim[0].Start = r3.Vec{X: 99}
	if cp.Surface(1).trim[0].Start.X == 99 {
		t.Error("copy shares trim storage with the original")
	}
}

func TestShellTransformed(t *testing.T) {
	sh := cube(t, 0, 0, 0, 1)
	q := r3.NewRotation(math.Pi/2, r3.Vec{Z: 1})
	shift := r3.Vec{X: 10, Y: -5, Z: 2}
	tr := sh.Transformed(shift, q)
	if v := shellVolume(t, tr); math.Abs(v-1) > 1e-9 {
		t.Errorf("transformed cube volume = %g, want 1", v)
	}
	bb := tr.Bounds()
	// Rotating the unit cube a quarter turn about z maps [0,1]x[0,1] to
	// [-1,0]x[0,1] before translation.
	wantMin := r3.Vec{X: 9, Y: -5, Z: 2}
	wantMax := r3.Vec{X: 10, Y: -4, Z: 3}
	if r3.Norm(r3.Sub(bb.Min, wantMin)) > 1e-9 || r3.Norm(r3.Sub(bb.Max, wantMax)) > 1e-9 {
		t.Errorf("transformed bounds = %v..%v, want %v..%v", bb.Min, bb.Max, wantMin, wantMax)
	}
}

func TestEntireTrimEndpoints(t *testing.T) {
	sh := &Shell{}
	b := BezierFromPoints(r3.Vec{X: 1}, r3.Vec{Y: 2})
	id := sh.AddCurve(ExactCurve(b))
	fwd := EntireTrim(sh, id, false)
	if fwd.Start != b.Start() || fwd.Finish != b.Finish() {
		t.Error("forward trim endpoints do not match curve")
	}
	bwd := EntireTrim(sh, id, true)
	if bwd.Start != b.Finish() || bwd.Finish != b.Start() {
		t.Error("backward trim endpoints not swapped")
	}
}
