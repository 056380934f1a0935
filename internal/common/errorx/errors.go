package errorx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryQuota          ErrorCategory = "quota"
	CategoryInternal       ErrorCategory = "internal"
)

// APIError represents a structured API error
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"category"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// JSON returns the error as a JSON string
func (e *APIError) JSON() string {
	out, _ := json.Marshal(e)
	return string(out)
}

// WithDetail returns a copy of the error with the detail attached, so the
// catalog entries below stay immutable.
func (e *APIError) WithDetail(key string, value any) *APIError {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

var (
	ErrInvalidInput = &APIError{
		Code:       "E1001",
		Message:    "Invalid input provided",
		Category:   CategoryValidation,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &APIError{
		Code:       "E2001",
		Message:    "Authentication required",
		Category:   CategoryAuthentication,
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &APIError{
		Code:       "E2002",
		Message:    "Invalid credentials provided",
		Category:   CategoryAuthentication,
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAccessDenied = &APIError{
		Code:       "E3001",
		Message:    "Access denied",
		Category:   CategoryAuthorization,
		HTTPStatus: http.StatusForbidden,
	}

	ErrAdministratorRequired = &APIError{
		Code:       "E3002",
		Message:    "Operation restricted to data room administrators",
		Category:   CategoryAuthorization,
		HTTPStatus: http.StatusForbidden,
	}

	ErrNoActiveTenant = &APIError{
		Code:       "E3003",
		Message:    "No active tenant selected for this session",
		Category:   CategoryAuthorization,
		HTTPStatus: http.StatusForbidden,
	}

	ErrResourceNotFound = &APIError{
		Code:       "E4001",
		Message:    "Requested resource not found",
		Category:   CategoryNotFound,
		HTTPStatus: http.StatusNotFound,
	}

	ErrResourceExists = &APIError{
		Code:       "E4091",
		Message:    "Resource already exists",
		Category:   CategoryConflict,
		HTTPStatus: http.StatusConflict,
	}

	ErrLastAdministratorGroup = &APIError{
		Code:       "E4093",
		Message:    "A data room must retain at least one administrator group",
		Category:   CategoryConflict,
		HTTPStatus: http.StatusConflict,
	}

	ErrQuotaExceeded = &APIError{
		Code:       "E4291",
		Message:    "Plan quota exceeded",
		Category:   CategoryQuota,
		HTTPStatus: http.StatusForbidden,
	}

	ErrTenantInvalid = &APIError{
		Code:       "E4031",
		Message:    "Tenant cannot be used",
		Category:   CategoryAuthorization,
		HTTPStatus: http.StatusForbidden,
	}

	ErrInternalServer = &APIError{
		Code:       "E5001",
		Message:    "Internal server error occurred",
		Category:   CategoryInternal,
		HTTPStatus: http.StatusInternalServerError,
	}
)
