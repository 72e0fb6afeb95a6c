// Package errors defines the typed error kinds caustic surfaces to callers,
// following the typed-struct-with-Error()-method style of the backend's own
// error set (tikv/errors.go) rather than a flat string-based scheme.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error the way execute() must report it: as one of the
// machine-readable kinds spec.md §7 names.
type Kind int

const (
	KindUnknown Kind = iota
	KindParseError
	KindTypeError
	KindInvariantViolation
	KindBackendTransient
	KindBackendFatal
	KindRetriesExhausted
)

func (k Kind) String() string {
	switch k {
	case KindParseError:
		return "ParseError"
	case KindTypeError:
		return "TypeError"
	case KindInvariantViolation:
		return "InvariantViolation"
	case KindBackendTransient:
		return "BackendTransient"
	case KindBackendFatal:
		return "BackendFatal"
	case KindRetriesExhausted:
		return "RetriesExhausted"
	}
	return "Unknown"
}

// Error is a structured, kind-tagged error. It wraps an underlying cause
// (often from a backend adapter) with errors.Wrap so the original stack
// trace and message survive, per pkg/errors.Cause conventions.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

// Cause exposes the wrapped error so github.com/pkg/errors.Cause(e) unwraps
// through this type, matching the backend's own error-cause dispatch.
func (e *Error) Cause() error { return e.err }

func (e *Error) Unwrap() error { return e.err }

// Kind reports the machine-readable error kind, used by callers that branch
// on outcome (e.g. retry BackendTransient, surface BackendFatal).
func (e *Error) Kind() Kind { return e.kind }

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

func wrap(kind Kind, err error, msg string) *Error {
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

// ParseErrorf reports a malformed IDL document (spec.md §7).
func ParseErrorf(format string, args ...interface{}) *Error {
	return newf(KindParseError, format, args...)
}

// TypeErrorf reports an impossible coercion the caller asked for explicitly
// rather than let the total evaluator absorb (spec.md §7 notes most
// coercions are total; this kind is for callers that demand strictness).
func TypeErrorf(format string, args ...interface{}) *Error {
	return newf(KindTypeError, format, args...)
}

// InvariantViolationf reports a user-key containing a reserved delimiter, or
// another DSL-time structural violation (spec.md §6).
func InvariantViolationf(format string, args ...interface{}) *Error {
	return newf(KindInvariantViolation, format, args...)
}

// WrapTransient tags err as a retryable backend failure (network hiccup,
// lock contention) that the outer Schema backoff loop should retry.
func WrapTransient(err error) *Error {
	return wrap(KindBackendTransient, err, "backend transient error")
}

// WrapFatal tags err as a non-retryable backend failure (auth, schema
// mismatch) that must surface to the caller immediately.
func WrapFatal(err error) *Error {
	return wrap(KindBackendFatal, err, "backend fatal error")
}

// RetriesExhausted reports that a Schema-wrapped call ran out of its
// backoff budget; lastErr is the most recent attempt's failure.
func RetriesExhausted(lastErr error) *Error {
	return wrap(KindRetriesExhausted, lastErr, "retries exhausted")
}

// Is reports whether err is a *Error of the given kind, walking the
// Cause() chain the same way the backend inspects error kinds. Chain
// walking uses Cause() rather than the standard library's Unwrap(),
// since the pinned pkg/errors release predates its Unwrap support.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			if ce.kind == kind {
				return true
			}
			err = ce.Cause()
			continue
		}
		causer, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = causer.Cause()
	}
	return false
}
