package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of application errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeInternal       ErrorType = "internal"
)

// Error codes surfaced to clients alongside the error type
const (
	CodeInsufficientOptions  = "INSUFFICIENT_OPTIONS"
	CodeProposalNotFound     = "PROPOSAL_NOT_FOUND"
	CodeBallotOptionNotFound = "BALLOT_OPTION_NOT_FOUND"
	CodeNotCreator           = "NOT_CREATOR"
	CodeNotMember            = "NOT_MEMBER"
	CodeNotAdmin             = "NOT_ADMIN"
	CodeProposalNotDraft     = "PROPOSAL_NOT_DRAFT"
	CodeProposalNotOpen      = "PROPOSAL_NOT_OPEN"
	CodeProposalNotPassed    = "PROPOSAL_NOT_PASSED"
	CodeProposalPassed       = "PROPOSAL_ALREADY_PASSED"
	CodeProposalExpired      = "PROPOSAL_EXPIRED"
	CodeAlreadyExecuted      = "ALREADY_EXECUTED"
	CodeInvalidStrategy      = "INVALID_STRATEGY"
	CodeInvalidWeight        = "INVALID_WEIGHT"
	CodeInvalidRanking       = "INVALID_RANKING"
	CodeDecisionInProgress   = "DECISION_IN_PROGRESS"
	CodeInvalidOptions       = "INVALID_BALLOT_OPTIONS"
	CodeNoWinner             = "NO_WINNER"
	CodeMissingKickTarget    = "MISSING_KICK_TARGET"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code,omitempty"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// AsAppError extracts an *AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewForbiddenError creates a new authorization error
func NewForbiddenError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthorization,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates an error for status-incompatible operations
func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// ErrorResponse represents the JSON error response
type ErrorResponse struct {
	Error struct {
		Type      ErrorType              `json:"type"`
		Code      string                 `json:"code,omitempty"`
		Message   string                 `json:"message"`
		Details   map[string]interface{} `json:"details,omitempty"`
		RequestID string                 `json:"request_id,omitempty"`
		Timestamp string                 `json:"timestamp"`
	} `json:"error"`
}
