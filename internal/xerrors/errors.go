// Package xerrors defines the small error taxonomy shared by the port-state
// engine. Recoverable conditions (stale echoes, missing config, cycles) are
// logged and contained by the caller; only MalformedKey is expected to ever
// propagate out of the package boundary as a Go error.
package xerrors

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

// Kind enumerates the recoverable and non-recoverable error conditions
// described in spec section 7.
type Kind int

const (
	// MalformedKey indicates fromKey was called on a string with no ':'.
	MalformedKey Kind = iota
	// MissingConfig indicates a parent or child config was absent when needed.
	MissingConfig
	// InvalidArrayIndex indicates a non-numeric array element portId.
	InvalidArrayIndex
	// CycleInHierarchy indicates the descendants walk revisited a key.
	CycleInHierarchy
	// StaleEcho indicates an echo was dropped because a newer pending mutation exists.
	StaleEcho
	// PendingExpired indicates a pending mutation aged out of the ledger.
	PendingExpired
	// BufferOverflow indicates a buffered batch queue exceeded its configured maximum.
	BufferOverflow
)

func (k Kind) String() string {
	switch k {
	case MalformedKey:
		return "MalformedKey"
	case MissingConfig:
		return "MissingConfig"
	case InvalidArrayIndex:
		return "InvalidArrayIndex"
	case CycleInHierarchy:
		return "CycleInHierarchy"
	case StaleEcho:
		return "StaleEcho"
	case PendingExpired:
		return "PendingExpired"
	case BufferOverflow:
		return "BufferOverflow"
	default:
		return "Unknown"
	}
}

// Code maps a Kind to the grpc status code a hosting RPC layer would use to
// report it across a process boundary.
func (k Kind) Code() codes.Code {
	switch k {
	case MalformedKey:
		return codes.InvalidArgument
	case MissingConfig, CycleInHierarchy:
		return codes.FailedPrecondition
	case InvalidArrayIndex:
		return codes.OutOfRange
	case StaleEcho, PendingExpired, BufferOverflow:
		return codes.OK
	default:
		return codes.Unknown
	}
}

// Error is the concrete error type returned for the Kinds above.
type Error struct {
	Kind    Kind
	Subject string // the key, portId, or other offending identifier
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Detail)
}

// New builds an *Error of the given kind.
func New(kind Kind, subject, detail string) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: detail}
}

// Errors aggregates multiple errors so best-effort loops (child-decode,
// cascade removal) can keep going and report everything that went wrong at
// the end.
type Errors []error

func (e Errors) Error() string { return ToString(e) }

// NewErrs returns a slice of error with a single element err, or nil if err is nil.
func NewErrs(err error) Errors {
	if err == nil {
		return nil
	}
	return Errors{err}
}

// AppendErr appends err to errs if err is non-nil.
func AppendErr(errs Errors, err error) Errors {
	if err == nil {
		return errs
	}
	return append(errs, err)
}

// ToString renders a slice of errors as a single comma-joined string, skipping nils.
func ToString(errs []error) string {
	var out string
	for _, e := range errs {
		if e == nil {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += e.Error()
	}
	return out
}
