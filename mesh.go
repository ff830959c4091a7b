package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is one triangle of a shell's display mesh, tagged with the face
// of the surface that produced it.
type Triangle struct {
	V    [3]r3.Vec
	Face uint32
}

// Normal returns the triangle's non-normalized normal by the right-hand
// rule about the vertex order. Triangulation orients triangles so this
// points out of the solid.
func (t Triangle) Normal() r3.Vec {
	return r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0]))
}

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(t.Normal())
}

// Mesh is an unordered triangle collection produced by triangulating a
// surface or shell. It is a finished output for rendering or export, not
// part of the kernel's own state.
type Mesh struct {
	Triangles []Triangle
}

// Area returns the total triangle area.
func (m *Mesh) Area() float64 {
	area := 0.0
	for _, t := range m.Triangles {
		area += t.Area()
	}
	return area
}

// Volume returns the volume enclosed by the mesh by the divergence theorem,
// positive when triangles wind outward. The result is meaningful only for
// closed meshes.
func (m *Mesh) Volume() float64 {
	vol := 0.0
	for _, t := range m.Triangles {
		vol += r3.Dot(t.V[0], r3.Cross(t.V[1], t.V[2]))
	}
	return vol / 6
}

// Bounds returns the mesh bounding box.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Triangles) == 0 {
		return r3.Box{}
	}
	min := m.Triangles[0].V[0]
	max := min
	for _, t := range m.Triangles {
		for _, v := range t.V {
			min.X = math.Min(min.X, v.X)
			min.Y = math.Min(min.Y, v.Y)
			min.Z = math.Min(min.Z, v.Z)
			max.X = math.Max(max.X, v.X)
			max.Y = math.Max(max.Y, v.Y)
			max.Z = math.Max(max.Z, v.Z)
		}
	}
	return r3.Box{Min: min, Max: max}
}

// Edge is one straight segment of a wireframe edge list.
type Edge struct {
	A, B r3.Vec
}
