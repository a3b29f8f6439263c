package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindRequest covers protocol failures: bad status, malformed or empty
	// response bodies and transport errors that are neither timeouts nor
	// connection failures.
	KindRequest Kind = iota
	KindTimeout
	KindConnection
	// KindUnexpected is a failure raised outside the request path, such as
	// a recovered panic.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindUnexpected:
		return "unexpected"
	default:
		return "request"
	}
}

// Error is returned by clients when a call cannot produce translations.
// Its message is meant to be shown to users as is.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "API request timed out (possible sleep/hibernation)"
	case KindConnection:
		return fmt.Sprintf("Connection error: %v", e.Err)
	case KindUnexpected:
		return fmt.Sprintf("Unexpected error: %v", e.Err)
	default:
		return fmt.Sprintf("API request failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps a transport error with its Kind.
func classify(provider string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	kind := KindRequest
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		kind = KindConnection
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// Unexpected wraps an arbitrary failure as KindUnexpected.
func Unexpected(provider string, err error) *Error {
	return &Error{Kind: KindUnexpected, Provider: provider, Err: err}
}

func requestError(provider string, format string, args ...any) *Error {
	return &Error{Kind: KindRequest, Provider: provider, Err: fmt.Errorf(format, args...)}
}
