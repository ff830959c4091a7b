// Package render streams shell triangulations into display meshes and
// mesh files.
package render

import (
	"io"

	"github.com/soypat/brep"
)

// Renderer is a stream of display triangles. ReadTriangles returns io.EOF
// when the stream is exhausted, following the io.Reader convention.
type Renderer interface {
	ReadTriangles(t []brep.Triangle) (int, error)
}

// shellRenderer streams one shell's triangulation surface by surface, so a
// consumer never needs the whole mesh resident unless it asks for it.
type shellRenderer struct {
	sh   *brep.Shell
	tol  float64
	next int // 1-based surface id of next surface to triangulate
	buf  triangleBuffer
}

// NewShellRenderer returns a Renderer that triangulates sh at the argument
// chord tolerance. A non-positive tolerance uses brep.DefaultTolerance.
func NewShellRenderer(sh *brep.Shell, tol float64) Renderer {
	if tol <= 0 {
		tol = brep.DefaultTolerance
	}
	return &shellRenderer{sh: sh, tol: tol, next: 1}
}

func (r *shellRenderer) ReadTriangles(t []brep.Triangle) (int, error) {
	if len(t) == 0 {
		return 0, nil
	}
	for r.buf.Len() < len(t) && r.next <= r.sh.NumSurfaces() {
		m, err := r.sh.TriangulateSurface(brep.SurfaceID(r.next), r.tol)
		if err != nil {
			return r.buf.Read(t), err
		}
		r.buf.Write(m.Triangles)
		r.next++
	}
	n := r.buf.Read(t)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
