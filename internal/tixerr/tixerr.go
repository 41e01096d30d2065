// Package tixerr defines the error kind taxonomy of spec.md 7,
// generalizing the teacher's sqlite.wrapDBError / errors.Is(ErrNotFound)
// convention across every package instead of leaving it sqlite-specific.
package tixerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArg
	KindNotFound
	KindIO
	KindGit
	KindDB
	KindOverflow
	KindParse
	KindDuplicate
	KindState
	KindDependency
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArg:
		return "invalid-arg"
	case KindNotFound:
		return "not-found"
	case KindIO:
		return "io"
	case KindGit:
		return "git"
	case KindDB:
		return "db"
	case KindOverflow:
		return "overflow"
	case KindParse:
		return "parse"
	case KindDuplicate:
		return "duplicate"
	case KindState:
		return "state"
	case KindDependency:
		return "dependency"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind to a process exit code for cmd/tix.
func (k Kind) ExitCode() int {
	switch k {
	case KindUnknown:
		return 1
	default:
		// 10 + ordinal keeps each kind distinguishable on the shell
		// without colliding with the reserved 0-2 codes.
		return 10 + int(k)
	}
}

// Error wraps an underlying cause with a Kind and operation context.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tixerr of the given kind with a formatted message.
func New(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and operation to an existing error. If err is
// nil, Wrap returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown if err was never
// wrapped by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
