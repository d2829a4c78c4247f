package app

import (
	"fmt"
	"net/http"
)

// DomainError is a workflow failure that already knows how it should leave
// the API: the HTTP status, a stable machine-readable code, and the
// user-facing message. Services return these and the handler boundary
// serializes them verbatim; anything else surfaces as a generic 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Shorthands for the four outcomes the workflows produce constantly. Less
// common mappings (invalid credentials, asset host outage) spell out
// domainError at the call site.

func badRequest(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func conflict(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}
