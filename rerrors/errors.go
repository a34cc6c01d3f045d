// Package rerrors defines the taxonomy of errors surfaced by the repolex
// engine. Every error that crosses a component boundary carries a Kind, a
// human-readable message, and a list of suggested remediations, the way
// semantic.SetErrorOnAction attached structured status to failed actions in
// the teacher service -- generalized here from HTTP status codes to the
// CLI exit-code taxonomy.
package rerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for recovery and exit-code purposes.
type Kind string

const (
	// Validation covers malformed input: bad repository identifiers,
	// oversized arguments, whitespace in a version tag.
	Validation Kind = "validation"
	// Security covers path escapes, SPARQL update forms, disallowed
	// characters in an identifier. Never recoverable.
	Security Kind = "security"
	// Source covers a parser failure on a single file. Recoverable: the
	// file is skipped and the caller continues.
	Source Kind = "source"
	// Git covers history read, clone, or checkout failures.
	Git Kind = "git"
	// Store covers transaction or query failures against the triple store.
	Store Kind = "store"
	// Network covers remote fetch failures.
	Network Kind = "network"
	// Export covers writer or disk failures during an export.
	Export Kind = "export"
	// Configuration covers invalid configuration values.
	Configuration Kind = "configuration"
)

// recoverable reports whether a Kind is handled locally and summarized at
// end-of-operation rather than surfaced immediately to the caller.
var recoverable = map[Kind]bool{
	Source: true,
	// Store and Network are recoverable only while Error.Transient is set
	// (still inside their retry budget); see Recoverable.
}

// Error is the concrete error type returned across every component
// boundary named in spec.md section 7.
type Error struct {
	Kind         Kind
	Message      string
	Remediations []string
	Transient    bool // set for Store/Network errors still inside their retry budget
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Recoverable reports whether the caller may continue after logging the
// error rather than aborting the operation in progress.
func (e *Error) Recoverable() bool {
	if e.Transient {
		return true
	}
	return recoverable[e.Kind]
}

// New constructs an Error of the given Kind.
func New(kind Kind, message string, remediations ...string) *Error {
	return &Error{Kind: kind, Message: message, Remediations: remediations}
}

// Wrap constructs an Error of the given Kind around a cause.
func Wrap(kind Kind, cause error, message string, remediations ...string) *Error {
	return &Error{Kind: kind, Message: message, Remediations: remediations, cause: cause}
}

// WrapTransient is like Wrap but marks the error as still within its retry
// budget (used for Store and Network failures, per section 7).
func WrapTransient(kind Kind, cause error, message string, remediations ...string) *Error {
	e := Wrap(kind, cause, message, remediations...)
	e.Transient = true
	return e
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err is not (or does not wrap)
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
