package d2

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Contour is a closed polyline; the segment from the last point back to the
// first is implied.
type Contour []r2.Vec

// Polygon is a set of contours interpreted with the even-odd fill rule, so
// contour orientation does not affect containment.
type Polygon []Contour

// SignedArea returns the area enclosed by the contour, positive for
// counterclockwise winding.
func (c Contour) SignedArea() float64 {
	area := 0.0
	for i, p := range c {
		q := c[(i+1)%len(c)]
		area += Cross(p, q)
	}
	return area / 2
}

// Box returns the contour's bounding box.
func (c Contour) Box() Box {
	return PointsBox(c)
}

// Contains reports whether p lies inside the polygon under the even-odd
// rule, using a crossing count along the +X ray from p.
func (pg Polygon) Contains(p r2.Vec) bool {
	crossings := 0
	for _, c := range pg {
		for i, a := range c {
			b := c[(i+1)%len(c)]
			if (a.Y > p.Y) == (b.Y > p.Y) {
				continue
			}
			x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if x > p.X {
				crossings++
			}
		}
	}
	return crossings%2 == 1
}

// Dist returns the distance from p to the nearest polygon edge.
func (pg Polygon) Dist(p r2.Vec) float64 {
	d := math.MaxFloat64
	for _, c := range pg {
		for i, a := range c {
			b := c[(i+1)%len(c)]
			d = math.Min(d, segDist(p, a, b))
		}
	}
	return d
}

// segDist returns the distance from p to segment ab.
func segDist(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	t := r2.Dot(r2.Sub(p, a), ab)
	den := r2.Norm2(ab)
	if den > 0 {
		t = clamp(t/den, 0, 1)
	} else {
		t = 0
	}
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

// SegmentsIntersect reports whether segments ab and cd properly intersect,
// endpoints excluded.
func SegmentsIntersect(a, b, c, d r2.Vec) bool {
	d1 := Cross(r2.Sub(b, a), r2.Sub(c, a))
	d2 := Cross(r2.Sub(b, a), r2.Sub(d, a))
	d3 := Cross(r2.Sub(d, c), r2.Sub(a, c))
	d4 := Cross(r2.Sub(d, c), r2.Sub(b, c))
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
