package brep

import (
	"fmt"
	"runtime/debug"

	"gonum.org/v1/gonum/spatial/r3"
)

// opErr wraps a panic raised inside a kernel operation. Construction and
// combination code panics on precondition violations and unrecoverable
// geometric failures; the exported entry points recover those panics into an
// opErr so a failed operation aborts cleanly without corrupting its inputs.
type opErr struct {
	panicObj interface{}
	stack    string
}

func (e *opErr) Error() string {
	return fmt.Sprintf("%v", e.panicObj)
}

// Stack returns the stack trace captured at the point of failure.
func (e *opErr) Stack() string { return e.stack }

func (e *opErr) Unwrap() error {
	err, _ := e.panicObj.(error)
	return err
}

// recoverOp converts a panic in flight into an *opErr stored at err.
// Use in a defer from public API functions.
func recoverOp(err *error) {
	if a := recover(); a != nil {
		*err = &opErr{
			panicObj: a,
			stack:    string(debug.Stack()),
		}
	}
}

// loopError reports a trim loop that could not be closed during boolean
// reassembly or profile threading. Gap is the dangling endpoint that found
// no continuation.
type loopError struct {
	Surface SurfaceID
	Gap     r3.Vec
}

func (e *loopError) Error() string {
	if e.Surface != 0 {
		return fmt.Sprintf("brep: unclosable trim loop on surface %d, gap at (%g, %g, %g)",
			e.Surface, e.Gap.X, e.Gap.Y, e.Gap.Z)
	}
	return fmt.Sprintf("brep: unclosable profile loop, gap at (%g, %g, %g)",
		e.Gap.X, e.Gap.Y, e.Gap.Z)
}
