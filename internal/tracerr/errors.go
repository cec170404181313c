/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package tracerr defines the error kinds shared across the tracer drivers,
// the trace parsers, the path utilities, and the orchestrator.
package tracerr

import "fmt"

// Kind identifies one of the error categories shared across drivers,
// parsers, and the orchestrator.
type Kind int

const (
	// KindTracerSpawnFailed means the kernel tracer itself could not be
	// started (e.g. strace/dtrace/logman.exe not found, sudo rejected).
	KindTracerSpawnFailed Kind = iota
	// KindTracerExit means the tracer process (not the traced child)
	// exited non-zero, e.g. dtrace failing before the child ever ran.
	KindTracerExit
	// KindChildExit means the traced child exited non-zero.
	KindChildExit
	// KindLogParseError means a trace log line did not match any known
	// grammar for its flavor.
	KindLogParseError
	// KindUnknownSyscall means a line named a syscall or event the parser
	// has no handler for. Returned by the strace parser; the dtrace and
	// ETW parsers log unknown names and ignore them.
	KindUnknownSyscall
	// KindPathMissing means realpath() was asked to canonicalize a path
	// that does not exist on disk.
	KindPathMissing
	// KindPathNotAbsolute means an orchestrator precondition on an
	// absolute path was violated.
	KindPathNotAbsolute
	// KindBlacklistAssertion is reserved for classifier invariant
	// violations surfaced during development/testing.
	KindBlacklistAssertion
	// KindUnsupportedPlatform means the host OS has no tracer flavor.
	KindUnsupportedPlatform
)

func (k Kind) String() string {
	switch k {
	case KindTracerSpawnFailed:
		return "tracer spawn failed"
	case KindTracerExit:
		return "tracer exit"
	case KindChildExit:
		return "child exit"
	case KindLogParseError:
		return "log parse error"
	case KindUnknownSyscall:
		return "unknown syscall"
	case KindPathMissing:
		return "path missing"
	case KindPathNotAbsolute:
		return "path not absolute"
	case KindBlacklistAssertion:
		return "blacklist assertion"
	case KindUnsupportedPlatform:
		return "unsupported platform"
	default:
		return "unknown error"
	}
}

// Error is a typed error carrying one of the Kind values above plus an
// optional exit code (for KindTracerExit / KindChildExit) and the
// underlying cause, if any.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Wrapped)
	}
	return e.Kind.String()
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New builds an *Error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an existing error.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Wrapped: err}
}

// WithCode builds an *Error that also carries a process exit code, for
// KindTracerExit and KindChildExit.
func WithCode(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is lets errors.Is(err, tracerr.Sentinel(tracerr.KindPathMissing)) work
// by comparing Kind; Kind itself isn't an error, so the target must be an
// *Error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel builds a zero-value *Error of a given kind, suitable for use
// with errors.Is(err, tracerr.Sentinel(tracerr.KindPathMissing)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
