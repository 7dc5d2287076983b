package domain

import (
	"context"
	"errors"
	"net"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrRateLimited          = errors.New("rate limited")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrBadRequest           = errors.New("bad request")
	ErrOrderRejected        = errors.New("order rejected")
	ErrServer               = errors.New("exchange server error")
	ErrTimeout              = errors.New("request timed out")
	ErrInvalidOrder         = errors.New("invalid order parameters")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrLockHeld             = errors.New("lock held by another instance")
)

// FailureKind is the coarse category used when logging collaborator errors.
type FailureKind string

const (
	FailureTimeout FailureKind = "timeout"
	FailureClient  FailureKind = "client_error"
	FailureServer  FailureKind = "server_error"
	FailureOther   FailureKind = "other"
)

// Classify maps an error returned by the exchange adapter to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	switch {
	case errors.Is(err, ErrServer):
		return FailureServer
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrOrderRejected),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrRateLimited):
		return FailureClient
	}
	return FailureOther
}

// IsPrecondition reports whether err was raised before any exchange call
// was attempted.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientPosition) ||
		errors.Is(err, ErrNotAuthenticated)
}
