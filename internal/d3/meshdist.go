package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface = kdTriangles{}
	_ kdtree.Bounder   = kdTriangles{}
)

// MeshIndex answers proximity and containment queries against a triangle
// mesh approximating a closed shell boundary. Nearest-triangle lookups run
// on a kd-tree over triangle centroids; containment is a ray parity test.
type MeshIndex struct {
	tree kdtree.Tree
	tris kdTriangles
	bb   Box
}

// NewMeshIndex builds the index for the given triangles.
func NewMeshIndex(tris []Triangle) *MeshIndex {
	if len(tris) == 0 {
		panic("d3: mesh index of empty mesh")
	}
	kd := make(kdTriangles, len(tris))
	bb := tris[0].Box()
	for i, t := range tris {
		kd[i] = kdTriangle(t)
		bb = bb.Extend(t.Box())
	}
	tree := kdtree.New(kd, true)
	return &MeshIndex{tree: *tree, tris: kd, bb: bb}
}

// Bounds returns the bounding box of the indexed mesh.
func (m *MeshIndex) Bounds() Box { return m.bb }

// Nearest returns the triangle whose centroid is closest to p together with
// the exact distance from p to that triangle. The centroid metric makes the
// distance approximate near large triangles; callers use it as a prefilter
// and refine against the exact surfaces.
func (m *MeshIndex) Nearest(p r3.Vec) (Triangle, float64) {
	got, _ := m.tree.Nearest(kdTriangle{p, p, p})
	t := Triangle(got.(kdTriangle))
	return t, r3.Norm(r3.Sub(p, t.Closest(p)))
}

// Contains reports whether p lies inside the closed mesh by casting a ray
// and counting crossings. Rays that graze a triangle edge or run parallel to
// a face are retried in a different direction.
func (m *MeshIndex) Contains(p r3.Vec) bool {
	if !Box(m.bb).Contains(p) {
		return false
	}
	// A fixed irrational-direction family so retries are deterministic.
	dirs := []r3.Vec{
		{X: 0.7378632, Y: 0.5403023, Z: 0.4048499},
		{X: -0.3741732, Y: 0.8414710, Z: 0.3894183},
		{X: 0.5155013, Y: -0.2151200, Z: 0.8293623},
		{X: -0.6733445, Y: -0.5512001, Z: -0.4930020},
	}
	const eps = 1e-9
retry:
	for _, dir := range dirs {
		crossings := 0
		for _, kt := range m.tris {
			_, hit, grazing := Triangle(kt).RayHit(p, dir, eps)
			if grazing {
				continue retry
			}
			if hit {
				crossings++
			}
		}
		return crossings%2 == 1
	}
	// Every direction grazed; fall back to the last direction's best effort.
	crossings := 0
	for _, kt := range m.tris {
		if _, hit, _ := Triangle(kt).RayHit(p, dirs[0], eps); hit {
			crossings++
		}
	}
	return crossings%2 == 1
}

// Closest returns the closest point on the triangle to p.
func (t Triangle) Closest(p r3.Vec) r3.Vec {
	ab := r3.Sub(t[1], t[0])
	ac := r3.Sub(t[2], t[0])
	ap := r3.Sub(p, t[0])
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return t[0]
	}
	bp := r3.Sub(p, t[1])
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return t[1]
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(t[0], r3.Scale(v, ab))
	}
	cp := r3.Sub(p, t[2])
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return t[2]
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(t[0], r3.Scale(w, ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(t[1], r3.Scale(w, r3.Sub(t[2], t[1])))
	}
	den := 1 / (va + vb + vc)
	v := vb * den
	w := vc * den
	return r3.Add(t[0], r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

type kdTriangles []kdTriangle

type kdTriangle Triangle

func (k kdTriangles) Index(i int) kdtree.Comparable {
	return k[i]
}

// Len returns the length of the list.
func (k kdTriangles) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdTriangles) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), triangles: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdTriangles) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

func (k kdTriangles) Bounds() *kdtree.Bounding {
	max := r3.Vec{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	min := r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	for _, tri := range k {
		min = MinElem(min, MinElem(tri[2], MinElem(tri[0], tri[1])))
		max = MaxElem(max, MaxElem(tri[2], MaxElem(tri[0], tri[1])))
	}
	return &kdtree.Bounding{
		Min: kdTriangle{min, min, min},
		Max: kdTriangle{max, max, max},
	}
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdTriangle) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdTriangle), int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdTriangle) Dims() int {
	return 3
}

// Distance returns the squared Euclidean distance between the receiver's and
// the parameter's centroids.
func (a kdTriangle) Distance(b kdtree.Comparable) float64 {
	return kdDist(a, b.(kdTriangle))
}

func (a kdTriangle) Bounds() *kdtree.Bounding {
	min := MinElem(a[2], MinElem(a[0], a[1]))
	max := MaxElem(a[2], MaxElem(a[0], a[1]))
	return &kdtree.Bounding{
		Min: kdTriangle{min, min, min},
		Max: kdTriangle{max, max, max},
	}
}

// c = a.dim - b.dim
func kdComp(a, b kdTriangle, dim int) (c float64) {
	switch dim {
	case 0:
		c = (a[0].X + a[1].X + a[2].X) - (b[0].X + b[1].X + b[2].X)
	case 1:
		c = (a[0].Y + a[1].Y + a[2].Y) - (b[0].Y + b[1].Y + b[2].Y)
	case 2:
		c = (a[0].Z + a[1].Z + a[2].Z) - (b[0].Z + b[1].Z + b[2].Z)
	}
	return c / 3
}

// returns euclidean squared norm distance between triangle centroids.
func kdDist(a, b kdTriangle) (c float64) {
	ac := Triangle(a).Centroid()
	bc := Triangle(b).Centroid()
	return r3.Norm2(r3.Sub(ac, bc))
}

type kdPlane struct {
	dim       int
	triangles kdTriangles
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.triangles[i], p.triangles[j], p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.triangles[i], p.triangles[j] = p.triangles[j], p.triangles[i]
}
func (p kdPlane) Len() int {
	return len(p.triangles)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.triangles = p.triangles[start:end]
	return p
}
