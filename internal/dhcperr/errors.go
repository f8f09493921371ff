// Package dhcperr defines the error-kind taxonomy shared by the store,
// engine and HTTP layers so callers can branch on kind with errors.Is
// instead of parsing messages.
package dhcperr

import "errors"

var (
	// ErrInvalidAddress is returned for malformed dotted-quad strings, MACs
	// or pool/subnet configuration.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrPoolExhausted is returned when no free address remains in a pool.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrMacBlocked is returned when a blocked device attempts to allocate.
	ErrMacBlocked = errors.New("mac blocked")

	// ErrIPConflict is returned when a requested IP is already held by a
	// different live lease.
	ErrIPConflict = errors.New("ip conflict")

	// ErrNotFound is returned when a lease or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned for state transitions the store
	// refuses (e.g. deleting a lease that still holds an address).
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStoreUnavailable wraps underlying persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCodec is returned by the packet codec on malformed frames.
	ErrCodec = errors.New("codec error")

	// ErrUpstreamTimeout is returned by the proxy when an upstream call
	// exceeds its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamUnavailable is returned by the proxy for any other
	// upstream transport failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUnauthorized is returned by the read API on a bad bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)
