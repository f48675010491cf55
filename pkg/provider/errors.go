package provider

import (
	"errors"
	"fmt"
)

// ErrRateLimitExceeded is returned when the outbound request budget is
// exhausted, before any request is sent
var ErrRateLimitExceeded = errors.New("provider rate limit exceeded")

// TransportError wraps a network-level failure: the request never produced an
// HTTP response
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a non-success HTTP response from the provider
type ProtocolError struct {
	StatusCode int
	Message    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// AuthenticationError is a 401 or 403 from the provider. It is never retried;
// a bad signature will not get better on the next attempt.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("provider rejected credentials (%d): %s", e.StatusCode, e.Message)
}

// IsAuthenticationError reports whether err is an AuthenticationError
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsProtocolError reports whether err is a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTransportError reports whether err is a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
