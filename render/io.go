package render

import (
	"io"

	"github.com/soypat/brep"
)

// RenderAll reads a Renderer to exhaustion and returns the slice read.
// It does not return io.EOF.
func RenderAll(r Renderer) ([]brep.Triangle, error) {
	var err error
	var nt int
	result := make([]brep.Triangle, 0, 1<<12)
	buf := make([]brep.Triangle, 1024)
	for {
		nt, err = r.ReadTriangles(buf)
		if err != nil {
			break
		}
		result = append(result, buf[:nt]...)
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

type triangleBuffer struct {
	buf []brep.Triangle
}

// Read reads from this buffer.
func (b *triangleBuffer) Read(t []brep.Triangle) int {
	n := copy(t, b.buf)
	b.buf = b.buf[n:]
	return n
}

// Write appends triangles to this buffer.
func (b *triangleBuffer) Write(t []brep.Triangle) int {
	b.buf = append(b.buf, t...)
	return len(t)
}

func (b *triangleBuffer) Len() int { return len(b.buf) }
