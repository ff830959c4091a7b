package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a 3d triangle given by its vertices.
type Triangle [3]r3.Vec

// Normal returns the triangle's non-normalized normal vector by the
// right-hand rule about the vertex order.
func (t Triangle) Normal() r3.Vec {
	return r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
}

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(t.Normal())
}

// Centroid returns the triangle's center of mass.
func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1./3., r3.Add(t[0], r3.Add(t[1], t[2])))
}

// Box returns the triangle's bounding box.
func (t Triangle) Box() Box {
	return PointsBox(t[:])
}

// Degenerate reports whether the triangle's area vanishes within tol.
func (t Triangle) Degenerate(tol float64) bool {
	return t.Area() <= tol*tol
}

// RayHit reports whether the ray from origin along dir strikes the triangle,
// and the distance along the ray where it does. Möller-Trumbore with an eps
// guard against rays parallel to the triangle plane; grazing hits near
// edges are reported so callers can jitter and retry.
func (t Triangle) RayHit(origin, dir r3.Vec, eps float64) (dist float64, hit, grazing bool) {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	p := r3.Cross(dir, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < eps {
		return 0, false, false
	}
	inv := 1 / det
	tv := r3.Sub(origin, t[0])
	u := r3.Dot(tv, p) * inv
	if u < -eps || u > 1+eps {
		return 0, false, false
	}
	q := r3.Cross(tv, e1)
	v := r3.Dot(dir, q) * inv
	if v < -eps || u+v > 1+eps {
		return 0, false, false
	}
	dist = r3.Dot(e2, q) * inv
	if dist <= eps {
		return 0, false, false
	}
	grazing = u < eps || v < eps || u+v > 1-eps
	return dist, true, grazing
}
