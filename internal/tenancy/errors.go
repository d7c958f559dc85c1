package tenancy

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names an error class that clients can branch on
type Kind string

const (
	KindMissingTenantIdentifier    Kind = "MissingTenantIdentifier"
	KindTenantNotFound             Kind = "TenantNotFound"
	KindTenantDisabled             Kind = "TenantDisabled"
	KindTenantExpired              Kind = "TenantExpired"
	KindTenantLookupFailed         Kind = "TenantLookupFailed"
	KindCrossTenantAccessDenied    Kind = "CrossTenantAccessDenied"
	KindInsufficientRole           Kind = "InsufficientRole"
	KindUnauthenticated            Kind = "Unauthenticated"
	KindRenewalTargetNotFound      Kind = "RenewalTargetNotFound"
	KindInvalidRenewal             Kind = "InvalidRenewal"
	KindInvalidPlan                Kind = "InvalidPlan"
	KindInvalidRequest             Kind = "InvalidRequest"
	KindConflict                   Kind = "Conflict"
	KindTenantHasDependents        Kind = "TenantHasDependents"
	KindUserNotFound               Kind = "UserNotFound"
	KindNotificationDeliveryFailed Kind = "NotificationDeliveryFailed"
	KindInternal                   Kind = "Internal"
)

var statusByKind = map[Kind]int{
	KindMissingTenantIdentifier:    http.StatusBadRequest,
	KindTenantNotFound:             http.StatusNotFound,
	KindTenantDisabled:             http.StatusForbidden,
	KindTenantExpired:              http.StatusForbidden,
	KindTenantLookupFailed:         http.StatusInternalServerError,
	KindCrossTenantAccessDenied:    http.StatusForbidden,
	KindInsufficientRole:           http.StatusForbidden,
	KindUnauthenticated:            http.StatusUnauthorized,
	KindRenewalTargetNotFound:      http.StatusNotFound,
	KindInvalidRenewal:             http.StatusBadRequest,
	KindInvalidPlan:                http.StatusBadRequest,
	KindInvalidRequest:             http.StatusBadRequest,
	KindConflict:                   http.StatusConflict,
	KindTenantHasDependents:        http.StatusConflict,
	KindUserNotFound:               http.StatusNotFound,
	KindNotificationDeliveryFailed: http.StatusBadGateway,
	KindInternal:                   http.StatusInternalServerError,
}

// Error is a classified tenancy failure
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds an Error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Status returns the HTTP status for the error kind
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Sentinels for errors.Is checks
var (
	ErrMissingTenantIdentifier = NewError(KindMissingTenantIdentifier, "tenant identifier header is required")
	ErrTenantNotFound          = NewError(KindTenantNotFound, "tenant not found")
	ErrTenantDisabled          = NewError(KindTenantDisabled, "tenant is disabled")
	ErrTenantExpired           = NewError(KindTenantExpired, "tenant subscription has expired")
	ErrCrossTenantAccess       = NewError(KindCrossTenantAccessDenied, "access to this tenant is denied")
	ErrInsufficientRole        = NewError(KindInsufficientRole, "insufficient role")
	ErrUnauthenticated         = NewError(KindUnauthenticated, "authentication required")
	ErrRenewalTargetNotFound   = NewError(KindRenewalTargetNotFound, "tenant to renew not found")
	ErrUserNotFound            = NewError(KindUserNotFound, "user not found")
)

// KindOf returns the kind carried by err, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError converts any error into an *Error, defaulting to KindInternal
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, "internal error", err)
}
