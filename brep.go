// Package brep implements a boundary-representation solid modeling kernel.
//
// Solids and open surface sets are modeled as shells: collections of trimmed
// rational Bezier patches of degree 1 to 3 whose boundary curves are shared
// between adjacent faces. Shells are built by extruding closed profile loops
// and combined with the boolean operations Union, Difference and Intersection.
// Finished shells are converted to triangle meshes or wireframe edge lists
// for display and export; see the render subpackage for STL output.
//
// Shells are never mutated after construction. Boolean, copy and transform
// operations always allocate a new shell, so a shell may be read from any
// number of goroutines as long as nobody mutates it.
package brep

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const (
	// DefaultTolerance is the flatness and intersection tolerance used by
	// the convenience entry points. Smaller values increase triangle and
	// segment counts, larger values risk missing thin features.
	DefaultTolerance = 1e-6

	// epsilon guards divisions and degeneracy checks. Same order as the
	// closest-point solver's convergence threshold.
	epsilon = 1e-12
)

// Bernstein evaluates the k-th Bernstein basis polynomial of degree deg at t.
// Degrees above 3 are a precondition violation.
func Bernstein(k, deg int, t float64) float64 {
	s := 1 - t
	switch deg {
	case 0:
		return 1
	case 1:
		switch k {
		case 0:
			return s
		case 1:
			return t
		}
	case 2:
		switch k {
		case 0:
			return s * s
		case 1:
			return 2 * s * t
		case 2:
			return t * t
		}
	case 3:
		switch k {
		case 0:
			return s * s * s
		case 1:
			return 3 * s * s * t
		case 2:
			return 3 * s * t * t
		case 3:
			return t * t * t
		}
	}
	panic("brep: Bernstein basis of unsupported degree")
}

// BernsteinDerivative evaluates the derivative of the k-th Bernstein basis
// polynomial of degree deg at t.
func BernsteinDerivative(k, deg int, t float64) float64 {
	s := 1 - t
	switch deg {
	case 0:
		return 0
	case 1:
		switch k {
		case 0:
			return -1
		case 1:
			return 1
		}
	case 2:
		switch k {
		case 0:
			return -2 * s
		case 1:
			return 2 * (s - t)
		case 2:
			return 2 * t
		}
	case 3:
		switch k {
		case 0:
			return -3 * s * s
		case 1:
			return 3 * (s*s - 2*s*t)
		case 2:
			return 3 * (2*s*t - t*t)
		case 3:
			return 3 * t * t
		}
	}
	panic("brep: Bernstein basis of unsupported degree")
}

// nopHandler discards all log records so that disabled logging costs nothing.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by the kernel. By default brep
// produces no log output. The boolean engine logs per-combination
// diagnostics at Debug level and loop reassembly failures at Error level.
// Pass nil to restore the default silent behavior.
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

func logger() *slog.Logger { return loggerPtr.Load() }
