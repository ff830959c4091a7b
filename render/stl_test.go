package render_test

import (
	"bytes"
	"io"
	"math"
	"os"
	"testing"

	hstl "github.com/hschendel/stl"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/brep"
	"github.com/soypat/brep/render"
)

func TestSTLCreateWriteRead(t *testing.T) {
	sh := boxShell(t, 3, 2, 1)
	err := render.CreateSTL("box.stl", render.NewShellRenderer(sh, 1e-3))
	if err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open("box.stl")
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	bfile, err := io.ReadAll(fp)
	if err != nil {
		t.Fatal(err)
	}
	model, err := render.RenderAll(render.NewShellRenderer(sh, 1e-3))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	err = render.WriteSTL(&b, model)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != len(bfile) {
		t.Fatal("WriteSTL and CreateSTL output length mismatch")
	}
	if b.String() != string(bfile) {
		t.Fatal("WriteSTL and CreateSTL output mismatch")
	}

	got, err := render.ReadSTL(bytes.NewReader(bfile))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(model) {
		t.Fatalf("read %d triangles, wrote %d", len(got), len(model))
	}
	for i := range got {
		if got[i].Face != model[i].Face {
			t.Fatalf("triangle %d: face tag %d read back as %d", i, model[i].Face, got[i].Face)
		}
	}
	if !t.Failed() {
		os.Remove("box.stl")
	}
}

// The STL output must be readable by third-party tooling, with the face
// tags surviving in the attribute words.
func TestSTLThirdPartyRead(t *testing.T) {
	sh := boxShell(t, 1, 1, 1)
	model, err := render.RenderAll(render.NewShellRenderer(sh, 1e-3))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := render.WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	solid, err := hstl.ReadAll(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(solid.Triangles) != len(model) {
		t.Fatalf("third party reader got %d triangles, want %d", len(solid.Triangles), len(model))
	}
	for i, tri := range solid.Triangles {
		if uint32(tri.Attributes) != model[i].Face {
			t.Errorf("triangle %d: attribute %d, want face %d", i, tri.Attributes, model[i].Face)
		}
		for v := 0; v < 3; v++ {
			want := model[i].V[v]
			got := r3.Vec{
				X: float64(tri.Vertices[v][0]),
				Y: float64(tri.Vertices[v][1]),
				Z: float64(tri.Vertices[v][2]),
			}
			if r3.Norm(r3.Sub(got, want)) > 1e-5 {
				t.Fatalf("triangle %d vertex %d: got %v, want %v", i, v, got, want)
			}
		}
	}
}

// STL records carry unit normals regardless of triangle area; a reader that
// validates them against the vertices must accept every record. The 3x2x1
// box has triangle areas well away from 0.5, where a normal scaled by twice
// the area would not happen to have unit length.
func TestSTLUnitNormals(t *testing.T) {
	sh := boxShell(t, 3, 2, 1)
	model, err := render.RenderAll(render.NewShellRenderer(sh, 1e-3))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := render.WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	solid, err := hstl.ReadAll(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	for i, tri := range solid.Triangles {
		n := r3.Vec{
			X: float64(tri.Normal[0]),
			Y: float64(tri.Normal[1]),
			Z: float64(tri.Normal[2]),
		}
		if math.Abs(r3.Norm(n)-1) > 1e-5 {
			t.Fatalf("triangle %d: stored normal has length %g, want 1", i, r3.Norm(n))
		}
		if want := r3.Unit(model[i].Normal()); r3.Norm(r3.Sub(n, want)) > 1e-5 {
			t.Fatalf("triangle %d: stored normal %v, want %v", i, n, want)
		}
	}
}

// boxShell extrudes an x by y rectangle to height z.
func boxShell(t testing.TB, x, y, z float64) *brep.Shell {
	t.Helper()
	pts := []r3.Vec{
		{}, {X: x}, {X: x, Y: y}, {Y: y},
	}
	curves := make([]brep.Bezier, 4)
	for i := range pts {
		curves[i] = brep.BezierFromPoints(pts[i], pts[(i+1)%4])
	}
	ls, err := brep.Loops(curves, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	sh, err := brep.Extrude(ls, r3.Vec{}, r3.Vec{Z: z}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return sh
}

func TestShellRendererVolume(t *testing.T) {
	sh := boxShell(t, 2, 3, 4)
	model, err := render.RenderAll(render.NewShellRenderer(sh, 1e-3))
	if err != nil {
		t.Fatal(err)
	}
	m := brep.Mesh{Triangles: model}
	if v := m.Volume(); math.Abs(v-24) > 1e-6 {
		t.Errorf("streamed box volume = %g, want 24", v)
	}
}
