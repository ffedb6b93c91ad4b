// Package classify maps the kernel- and transport-level errors nettrace
// can encounter onto the boundary error taxonomy: ok, max_hops_exceeded,
// resolution_failed, permission_denied, host_unreachable.
package classify

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Code is one of the boundary result codes.
type Code string

const (
	// CodeOK means the trace reached its destination.
	CodeOK Code = "ok"
	// CodeMaxHopsExceeded means the hop cap was reached without a
	// destination-reached hop.
	CodeMaxHopsExceeded Code = "max_hops_exceeded"
	// CodeResolutionFailed means the target name could not be resolved.
	CodeResolutionFailed Code = "resolution_failed"
	// CodePermissionDenied means the kernel refused to open the socket
	// this probe kind needs.
	CodePermissionDenied Code = "permission_denied"
	// CodeHostUnreachable means the initial bind or transmit failed with
	// a host/network-unreachable kernel error.
	CodeHostUnreachable Code = "host_unreachable"
	// CodeUnknown is the catch-all for errors this classifier does not
	// recognize.
	CodeUnknown Code = "unknown"
)

// Error is a classified error from a trace.Run call.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ResolutionError is a sentinel wrapper for name-resolution failures so
// they classify as CodeResolutionFailed regardless of the underlying
// resolver error's shape.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return "failed to resolve host " + e.Host + ": " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Classify classifies err, returning nil if err is nil. An err that already
// is or wraps an *Error keeps that classification.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var resolutionErr *ResolutionError
	if errors.As(err, &resolutionErr) {
		return &Error{Code: CodeResolutionFailed, Message: err.Error(), Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Code: CodeResolutionFailed, Message: err.Error(), Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Code: CodeUnknown, Message: err.Error(), Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var errno syscall.Errno
		if errors.As(opErr.Err, &errno) {
			return classifySyscallError(errno, err)
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classifySyscallError(errno, err)
	}

	return &Error{Code: CodeUnknown, Message: err.Error(), Err: err}
}

func classifySyscallError(errno syscall.Errno, original error) *Error {
	switch errno {
	case syscall.EHOSTUNREACH, syscall.ENETUNREACH:
		return &Error{Code: CodeHostUnreachable, Message: original.Error(), Err: original}
	case syscall.EACCES, syscall.EPERM:
		return &Error{Code: CodePermissionDenied, Message: original.Error(), Err: original}
	default:
		return &Error{Code: CodeUnknown, Message: original.Error(), Err: original}
	}
}
