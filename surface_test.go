package brep

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestPlaneSurfaceEval(t *testing.T) {
	pt := r3.Vec{X: 1, Y: 2, Z: 3}
	eu := r3.Vec{X: 2}
	ev := r3.Vec{Y: 3}
	s := PlaneSurface(pt, eu, ev)
	for _, uv := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {0.5, 0.25}} {
		want := r3.Add(pt, r3.Add(r3.Scale(uv[0], eu), r3.Scale(uv[1], ev)))
		got := s.PointAt(uv[0], uv[1])
		if r3.Norm(r3.Sub(got, want)) > 1e-12 {
			t.Errorf("PointAt(%g,%g) = %v, want %v", uv[0], uv[1], got, want)
		}
	}
	n := r3.Unit(s.NormalAt(0.5, 0.5))
	if r3.Norm(r3.Sub(n, r3.Vec{Z: 1})) > 1e-12 {
		t.Errorf("plane normal = %v, want +z", n)
	}
}

func TestPlaneSurfaceFromNormal(t *testing.T) {
	for _, n := range []r3.Vec{{Z: 1}, {X: -1}, {X: 1, Y: 2, Z: -3}} {
		s := PlaneSurfaceFromNormal(r3.Vec{}, n)
		got := r3.Unit(s.NormalAt(0.3, 0.7))
		want := r3.Unit(n)
		if r3.Norm(r3.Sub(got, want)) > 1e-12 {
			t.Errorf("normal %v: surface normal came out %v", want, got)
		}
	}
}

func TestSurfaceFromGridDegrees(t *testing.T) {
	pts := make([][]r3.Vec, 3)
	for i := range pts {
		pts[i] = make([]r3.Vec, 4)
		for j := range pts[i] {
			pts[i][j] = r3.Vec{X: float64(i), Y: float64(j), Z: float64(i * j)}
		}
	}
	s := SurfaceFromGrid(pts, nil)
	du, dv := s.Degrees()
	if du != 2 || dv != 3 {
		t.Fatalf("Degrees() = %d,%d, want 2,3", du, dv)
	}
	if got := s.PointAt(0, 0); got != pts[0][0] {
		t.Errorf("corner (0,0) = %v, want %v", got, pts[0][0])
	}
	if got := s.PointAt(1, 1); got != pts[2][3] {
		t.Errorf("corner (1,1) = %v, want %v", got, pts[2][3])
	}
}

func TestExtrusionSurfaceNormal(t *testing.T) {
	// Edge y=0 of a counterclockwise unit square profile, swept up +z. The
	// outward lateral normal is -y.
	c := BezierFromPoints(r3.Vec{}, r3.Vec{X: 1})
	s := ExtrusionSurface(c, r3.Vec{}, r3.Vec{Z: 1})
	n := r3.Unit(s.NormalAt(0.5, 0.5))
	if r3.Norm(r3.Sub(n, r3.Vec{Y: -1})) > 1e-12 {
		t.Errorf("lateral normal = %v, want -y", n)
	}
}

func TestTangentsMatchFiniteDifference(t *testing.T) {
	s := biquadraticDome()
	const h = 1e-7
	for _, uv := range [][2]float64{{0.2, 0.3}, {0.5, 0.5}, {0.9, 0.1}} {
		u, v := uv[0], uv[1]
		tu, tv := s.TangentsAt(u, v)
		fdU := r3.Scale(1/(2*h), r3.Sub(s.PointAt(u+h, v), s.PointAt(u-h, v)))
		fdV := r3.Scale(1/(2*h), r3.Sub(s.PointAt(u, v+h), s.PointAt(u, v-h)))
		if r3.Norm(r3.Sub(tu, fdU)) > 1e-5 || r3.Norm(r3.Sub(tv, fdV)) > 1e-5 {
			t.Errorf("tangents at (%g,%g) disagree with finite differences", u, v)
		}
	}
}

func TestClosestPointToRecoversParameters(t *testing.T) {
	s := biquadraticDome()
	for _, uv := range [][2]float64{{0.1, 0.1}, {0.5, 0.5}, {0.25, 0.8}, {0.95, 0.4}} {
		p := s.PointAt(uv[0], uv[1])
		u, v := s.ClosestPointTo(p)
		if d := r3.Norm(r3.Sub(s.PointAt(u, v), p)); d > 1e-9 {
			t.Errorf("closest point to surface point (%g,%g) lies %g away", uv[0], uv[1], d)
		}
	}
	// An off-surface point projects to the nearest surface point; the
	// residual must be no worse than the sampled true distance.
	p := r3.Vec{X: 0.5, Y: 0.5, Z: 5}
	u, v := s.ClosestPointTo(p)
	got := r3.Norm(r3.Sub(p, s.PointAt(u, v)))
	best := math.MaxFloat64
	for i := 0; i <= 64; i++ {
		for j := 0; j <= 64; j++ {
			d := r3.Norm(r3.Sub(p, s.PointAt(float64(i)/64, float64(j)/64)))
			best = math.Min(best, d)
		}
	}
	if got > best+1e-6 {
		t.Errorf("projected distance %g exceeds sampled minimum %g", got, best)
	}
}

func TestSurfaceBoundsContainSamples(t *testing.T) {
	s := biquadraticDome()
	bb := s.bounds()
	for i := 0; i <= 8; i++ {
		for j := 0; j <= 8; j++ {
			p := s.PointAt(float64(i)/8, float64(j)/8)
			if !bb.Contains(p) {
				t.Fatalf("surface point %v escapes control net bounds", p)
			}
		}
	}
}

// biquadraticDome is a curved patch over the unit square, bulging +z.
func biquadraticDome() Surface {
	pts := make([][]r3.Vec, 3)
	for i := range pts {
		pts[i] = make([]r3.Vec, 3)
		for j := range pts[i] {
			z := 0.0
			if i == 1 && j == 1 {
				z = 1
			}
			pts[i][j] = r3.Vec{X: float64(i) / 2, Y: float64(j) / 2, Z: z}
		}
	}
	return SurfaceFromGrid(pts, nil)
}
