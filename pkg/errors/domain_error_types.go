package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainAuthenticationError indicates authentication failure
	DomainAuthenticationError DomainErrorType = "AUTHENTICATION_ERROR"

	// DomainConsistencyError indicates the local cache disagrees with itself
	DomainConsistencyError DomainErrorType = "CONSISTENCY_ERROR"

	// DomainInfrastructureError indicates an infrastructure-level failure
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// WithRetryable sets whether the error is retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// Is matches on type and code so predefined errors work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Because returns a copy of e caused by cause. Use it on the predefined
// errors below, which must not be mutated.
func (e *DomainError) Because(cause error) *DomainError {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	c.Cause = cause
	return &c
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return http.StatusBadRequest
	case DomainNotFoundError:
		return http.StatusNotFound
	case DomainAuthenticationError:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var (
	// Post errors
	ErrPostNotFound = NewDomainError(
		DomainNotFoundError,
		"POST_NOT_FOUND",
		"The requested post does not exist",
	)

	ErrPostTitleTooShort = NewDomainError(
		DomainValidationError,
		"POST_TITLE_TOO_SHORT",
		"Title must be at least 3 characters",
	)

	ErrPostTitleTooLong = NewDomainError(
		DomainValidationError,
		"POST_TITLE_TOO_LONG",
		"Title must be at most 200 characters",
	)

	ErrPostBodyTooShort = NewDomainError(
		DomainValidationError,
		"POST_BODY_TOO_SHORT",
		"Body must be at least 10 characters",
	)

	ErrPostBodyTooLong = NewDomainError(
		DomainValidationError,
		"POST_BODY_TOO_LONG",
		"Body must be at most 50000 characters",
	)

	// Session errors
	ErrNotSignedIn = NewDomainError(
		DomainAuthenticationError,
		"NOT_SIGNED_IN",
		"You must be signed in to perform this action",
	)

	ErrInvalidCredentials = NewDomainError(
		DomainAuthenticationError,
		"INVALID_CREDENTIALS",
		"Invalid email or password",
	)

	// Cache errors
	ErrDanglingReference = NewDomainError(
		DomainConsistencyError,
		"DANGLING_REFERENCE",
		"A cached reference points at a missing record",
	)

	// Infrastructure errors
	ErrEventPublishFailed = NewDomainError(
		DomainInfrastructureError,
		"EVENT_PUBLISH_FAILED",
		"Failed to publish domain event",
	).WithRetryable(true)
)

// ValidationErrors aggregates multiple validation errors
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]*DomainError, 0),
	}
}

// Add adds a validation error
func (v *ValidationErrors) Add(field string, message string) {
	err := NewDomainError(DomainValidationError, "FIELD_VALIDATION_ERROR", message).
		WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

// AddFieldError records a predefined error against a field. The predefined
// value is copied so its details are never shared.
func (v *ValidationErrors) AddFieldError(field string, err *DomainError) {
	cp := NewDomainError(err.Type, err.Code, err.Message).WithDetail("field", field)
	v.Errors = append(v.Errors, cp)
}

// Merge appends the entries of another *ValidationErrors, or records err
// as a general error when it is anything else.
func (v *ValidationErrors) Merge(err error) {
	if err == nil {
		return
	}
	if other, ok := err.(*ValidationErrors); ok {
		v.Errors = append(v.Errors, other.Errors...)
		return
	}
	v.Add("general", err.Error())
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return fmt.Sprintf("Validation failed: %s", strings.Join(messages, "; "))
}

// ToMap converts validation errors to a map for JSON serialization
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)

	for _, err := range v.Errors {
		field, ok := err.Details["field"].(string)
		if !ok {
			field = "general"
		}
		result[field] = append(result[field], err.Message)
	}

	return result
}
