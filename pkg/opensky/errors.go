package opensky

import (
	"errors"
	"fmt"
)

// ErrNotImplemented is returned for the /tracks endpoint, which the upstream
// documents but has never implemented.
var ErrNotImplemented = errors.New("track retrieval is not implemented by the upstream API")

// InvalidArgumentError indicates the caller passed out-of-range coordinates or
// an over-long interval. It is always returned before any network I/O.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// TransportError indicates a network-level failure (connection, timeout, DNS)
// and wraps the underlying cause.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RateLimitError indicates the server responded with HTTP 429. It carries the
// advertised retry delay; backing off is the caller's responsibility.
type RateLimitError struct {
	// RetryAfterSeconds is the server-requested delay before the next request.
	// Zero when the server did not advertise one.
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfterSeconds > 0 {
		return fmt.Sprintf("rate limited: retry in %ds", e.RetryAfterSeconds)
	}
	return "rate limited"
}

// UpstreamError indicates any non-200, non-429 HTTP status.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %s", e.Status)
}

// IsInvalidArgument checks if an error is an InvalidArgumentError.
func IsInvalidArgument(err error) (*InvalidArgumentError, bool) {
	var iae *InvalidArgumentError
	if errors.As(err, &iae) {
		return iae, true
	}
	return nil, false
}

// IsRateLimited checks if an error is a RateLimitError.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// IsTransport checks if an error is a TransportError.
func IsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsUpstream checks if an error is an UpstreamError.
func IsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
