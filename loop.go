package brep

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Loop is a closed sequence of Bezier curves: each curve's finish coincides
// with the next curve's start, and the last curve closes back to the first.
type Loop struct {
	Curves []Bezier
}

// LoopSet is a set of closed profile loops lying in a common plane, the
// input to Extrude. Normal is the plane normal computed from the outermost
// loop's winding; Point is a point on the plane.
type LoopSet struct {
	Loops  []Loop
	Normal r3.Vec
	Point  r3.Vec
}

// Loops assembles a bag of Bezier curves into closed loops by matching
// endpoints within tol, reversing curves as needed. It returns an error if
// any curve chain fails to close or leftover curves remain.
func Loops(curves []Bezier, tol float64) (ls LoopSet, err error) {
	defer recoverOp(&err)
	ls = makeLoops(curves, tol)
	return ls, err
}

func makeLoops(curves []Bezier, tol float64) LoopSet {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if len(curves) == 0 {
		panic("brep: no profile curves")
	}
	pool := make([]Bezier, len(curves))
	copy(pool, curves)

	var ls LoopSet
	for len(pool) > 0 {
		loop := Loop{Curves: []Bezier{pool[0]}}
		pool = pool[1:]
		start := loop.Curves[0].Start()
		at := loop.Curves[0].Finish()
		for r3.Norm(r3.Sub(at, start)) > tol {
			found := -1
			reversed := false
			for i, c := range pool {
				if r3.Norm(r3.Sub(c.Start(), at)) <= tol {
					found = i
					break
				}
				if r3.Norm(r3.Sub(c.Finish(), at)) <= tol {
					found, reversed = i, true
					break
				}
			}
			if found < 0 {
				panic(&loopError{Gap: at})
			}
			c := pool[found]
			if reversed {
				c = c.Reversed()
			}
			pool = append(pool[:found], pool[found+1:]...)
			loop.Curves = append(loop.Curves, c)
			at = c.Finish()
		}
		ls.Loops = append(ls.Loops, loop)
	}
	ls.Point = ls.Loops[0].Curves[0].Start()
	ls.Normal = ls.Loops[0].normal(tol)
	return ls
}

// Reversed returns the loop traced in the opposite direction.
func (l Loop) Reversed() Loop {
	r := Loop{Curves: make([]Bezier, len(l.Curves))}
	for i, c := range l.Curves {
		r.Curves[len(l.Curves)-1-i] = c.Reversed()
	}
	return r
}

// AppendPwl appends the loop's piecewise linear outline to dst. The final
// point closes back to the first within the flattening tolerance and is not
// repeated.
func (l Loop) AppendPwl(dst []r3.Vec, tol float64) []r3.Vec {
	for _, c := range l.Curves {
		dst = c.AppendPwl(dst, tol)
	}
	if len(dst) > 1 {
		dst = dst[:len(dst)-1] // closing point duplicates the start
	}
	return dst
}

// normal computes the loop's plane normal by Newell's method. The normal
// follows the right-hand rule about the loop's winding direction.
func (l Loop) normal(tol float64) r3.Vec {
	pts := l.AppendPwl(nil, tol)
	var n r3.Vec
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	nrm := r3.Norm(n)
	if nrm < epsilon {
		panic("brep: degenerate profile loop")
	}
	return r3.Scale(1/nrm, n)
}
