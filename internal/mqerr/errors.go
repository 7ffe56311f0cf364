// Package mqerr defines the broker-wide error taxonomy from the design spec:
// kinds, not concrete types, so every layer can classify a failure the same
// way regardless of which component raised it.
package mqerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure so callers can decide whether to retry,
// refresh routing, or surface the error to a human.
type Kind int

const (
	// Transport covers RPC channel and timeout failures.
	Transport Kind = iota
	// NotFound covers unknown topic, partition, broker, or consumer owner.
	NotFound
	// Conflict covers duplicate consumer_id or double partition assignment.
	Conflict
	// NoBootstrap covers exhaustion of the bootstrap broker list.
	NoBootstrap
	// Backend covers underlying append-only store failures.
	Backend
	// WrongBroker covers a produce addressed to a non-leader broker.
	WrongBroker
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "Transport"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case NoBootstrap:
		return "NoBootstrap"
	case Backend:
		return "Backend"
	case WrongBroker:
		return "WrongBroker"
	default:
		return "Unknown"
	}
}

// Error is a kind-tagged error. WrongBroker errors additionally carry the
// redirect address of the broker that does hold the partition.
type Error struct {
	Kind          Kind
	Redirect      string // only meaningful for Kind == WrongBroker
	cause         error
}

func (e *Error) Error() string {
	if e.Redirect != "" {
		return fmt.Sprintf("%s: %v (redirect=%s)", e.Kind, e.cause, e.Redirect)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New wraps msg as a kind-tagged error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// WrongBrokerRedirect builds a WrongBroker error carrying the address a
// caller should retry against.
func WrongBrokerRedirect(redirect string, msg string) error {
	return &Error{Kind: WrongBroker, Redirect: redirect, cause: errors.New(msg)}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is a
// *Error. The zero value Transport is returned otherwise, alongside false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Transport, false
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
