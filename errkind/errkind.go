// Package errkind defines the typed error kinds used across procgroup, and a small
// panic/recover helper used only for synchronous argument validation.
//
// The rest of the module returns plain errors; panic is reserved for the narrow case
// of deep validation helpers (see internal/validate) that would otherwise need to thread
// an error return through many small assertions. Every exported entry point recovers and
// converts back to a normal error before returning to the caller.
package errkind

import "github.com/pkg/errors"

// ArgumentError reports a synchronous validation failure: bad rank, mismatched shape or
// dtype, non-dense or non-contiguous buffer, negative tag, and similar caller mistakes.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return "procgroup: argument error: " + e.Msg }

// TransportError wraps a failure raised by the collective transport: connect, collective,
// send/recv, or a timeout.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "procgroup: transport error: " + e.Msg + ": " + e.Err.Error()
	}
	return "procgroup: transport error: " + e.Msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnsupportedError reports a call that has no meaning for this implementation, such as
// GetGroupRank.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string { return "procgroup: unsupported operation: " + e.Op }

// FatalError reports a condition that leaves the Group unusable: empty device list,
// invalid reduce op, unrecognized scalar type. A failed fullmesh connect is reported as a
// TransportError.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return "procgroup: fatal: " + e.Msg }

// Argf builds an *ArgumentError with a formatted message.
func Argf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Msg: errors.Errorf(format, args...).Error()}
}

// Fatalf builds a *FatalError with a formatted message.
func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Msg: errors.Errorf(format, args...).Error()}
}

// Transportf builds a *TransportError wrapping err with a formatted message.
func Transportf(err error, format string, args ...any) *TransportError {
	return &TransportError{Msg: errors.Errorf(format, args...).Error(), Err: err}
}

// Throw panics with err. Used by internal/validate so that a long chain of assertions
// can bail out from arbitrary depth without threading an error return through each call.
//
// Only ever call Throw with one of the typed errors in this package: Catch only recovers
// those, anything else re-panics.
func Throw(err error) {
	panic(err)
}

// Catch recovers a panic raised via Throw and assigns it to *errOut. It must be called
// from a deferred statement. Panics whose value is not one of this package's typed
// errors are re-raised.
//
// Example:
//
//	func (g *Group) Broadcast(...) (_ Handle, err error) {
//		defer errkind.Catch(&err)
//		validate.RootRank(...)
//		...
//	}
func Catch(errOut *error) {
	r := recover()
	if r == nil {
		return
	}
	switch r.(type) {
	case *ArgumentError, *TransportError, *UnsupportedError, *FatalError:
		*errOut = r.(error)
	default:
		panic(r)
	}
}
