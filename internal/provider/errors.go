// Package provider defines the uniform failure contract for external
// provider adapters. Adapters translate transport-level failures into a
// ServiceError at the boundary, so services never inspect HTTP details.
package provider

import (
	"errors"
	"fmt"
)

// Code classifies a provider failure.
type Code string

const (
	// CodeAuthenticationFailed: the provider rejected our credentials
	// (expired/revoked token, bad client secret, invalid code).
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"

	// CodeRequestFailed: network failure, timeout, or 5xx from the provider.
	CodeRequestFailed Code = "REQUEST_FAILED"

	// CodeInvalidResponse: the provider answered with something we could
	// not parse or that is missing required fields.
	CodeInvalidResponse Code = "INVALID_RESPONSE"
)

// ServiceError is a failure reported by an external provider, tagged with
// the provider name and a classification code. It wraps the underlying cause.
type ServiceError struct {
	Provider string
	Code     Code
	Cause    error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Code)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// NewServiceError builds a ServiceError.
func NewServiceError(provider string, code Code, cause error) *ServiceError {
	return &ServiceError{Provider: provider, Code: code, Cause: cause}
}

// IsAuthenticationFailed reports whether err is a provider authentication
// failure. The connection service uses this to decide refresh-and-retry.
func IsAuthenticationFailed(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Code == CodeAuthenticationFailed
}

// AsServiceError extracts the ServiceError from an error chain, if any.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	ok := errors.As(err, &se)
	return se, ok
}
