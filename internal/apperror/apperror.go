// Package apperror defines the error envelope returned to API clients.
//
// Every failure a client can observe carries a fixed triple: a machine readable
// errorType, a human readable errorMessage and the httpStatus it was sent with.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Type string

const (
	TypeFailedFieldValidation   Type = "FAILED_FIELD_VALIDATION"
	TypeUnauthorized            Type = "UNAUTHORIZED"
	TypeForbidden               Type = "FORBIDDEN"
	TypeNotFound                Type = "NOT_FOUND"
	TypeUserNotFound            Type = "USER_NOT_FOUND"
	TypeUserAlreadyExists       Type = "USER_ALREADY_EXISTS"
	TypeOccupationNotFound      Type = "OCCUPATION_NOT_FOUND"
	TypeOccupationExists        Type = "OCCUPATION_ALREADY_EXISTS"
	TypeCareActivityNotFound    Type = "CARE_ACTIVITY_NOT_FOUND"
	TypeCareActivityExists      Type = "CARE_ACTIVITY_ALREADY_EXISTS"
	TypePlanningSessionNotFound Type = "PLANNING_SESSION_NOT_FOUND"
	TypeUnitNotFound            Type = "UNIT_NOT_FOUND"
	TypeBundleNotFound          Type = "BUNDLE_NOT_FOUND"
	TypeBulkUploadInvalid       Type = "BULK_UPLOAD_INVALID"
	TypeUnsupportedFile         Type = "UNSUPPORTED_FILE"
	TypeNotAcceptable           Type = "NOT_ACCEPTABLE"
	TypeTooManyRequests         Type = "TOO_MANY_REQUESTS"
	TypeInternal                Type = "INTERNAL_ERROR"
	TypeGatewayTimeout          Type = "GATEWAY_TIMEOUT"
)

// Error is the JSON body of every failed request.
type Error struct {
	Type    Type   `json:"errorType"`
	Message string `json:"errorMessage"`
	Status  int    `json:"httpStatus"`
	Details any    `json:"errorDetails,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(t Type, status int, message string) *Error {
	return &Error{Type: t, Message: message, Status: status}
}

func Validation(message string, details any) *Error {
	return &Error{Type: TypeFailedFieldValidation, Message: message, Status: http.StatusBadRequest, Details: details}
}

func NotFound(t Type, message string) *Error {
	return New(t, http.StatusNotFound, message)
}

func Unauthorized(message string) *Error {
	return New(TypeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(TypeForbidden, http.StatusForbidden, message)
}

func Conflict(t Type, message string) *Error {
	return New(t, http.StatusConflict, message)
}

func Internal() *Error {
	return New(TypeInternal, http.StatusInternalServerError, "Internal server error")
}

func GatewayTimeout() *Error {
	return New(TypeGatewayTimeout, http.StatusGatewayTimeout, "The request timed out")
}

// From maps any error onto the envelope. The boolean reports whether err was
// already an *Error; unknown errors collapse into INTERNAL_ERROR.
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return GatewayTimeout(), false
	}
	return Internal(), false
}

// FromStatus builds an envelope for errors that only carry an HTTP status,
// such as routing errors raised by the web framework.
func FromStatus(status int, message string) *Error {
	switch status {
	case http.StatusBadRequest:
		return Validation(message, nil)
	case http.StatusUnauthorized:
		return Unauthorized(message)
	case http.StatusForbidden:
		return Forbidden(message)
	case http.StatusNotFound:
		return New(TypeNotFound, status, message)
	case http.StatusNotAcceptable:
		return New(TypeNotAcceptable, status, message)
	case http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return New(TypeUnsupportedFile, status, message)
	case http.StatusTooManyRequests:
		return New(TypeTooManyRequests, status, message)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return GatewayTimeout()
	}
	if status >= 500 {
		return Internal()
	}
	return New(TypeFailedFieldValidation, status, message)
}
