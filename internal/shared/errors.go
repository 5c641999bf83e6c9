package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")

	ErrValidation          = errors.New("validation error")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrTranscription       = errors.New("transcription failure")
	ErrCancelled           = errors.New("cancelled")
	ErrInternal            = errors.New("internal error")

	// ErrServerUnavailable is an internal error: the transcription server
	// could not be reached at all.
	ErrServerUnavailable = fmt.Errorf("transcription server unavailable: %w", ErrInternal)
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindTranscription       Kind = "transcription_failure"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindProviderUnavailable:
		return ErrProviderUnavailable
	case KindTranscription:
		return ErrTranscription
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrInternal
	}
}

// ParseKind maps a wire value back to a Kind, falling back to KindTranscription.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindValidation, KindProviderUnavailable, KindTranscription, KindCancelled, KindInternal:
		return Kind(s)
	default:
		return KindTranscription
	}
}

// KindOf classifies err into the error taxonomy.
func KindOf(err error) Kind {
	var f *Failure
	switch {
	case err == nil:
		return ""
	case errors.As(err, &f):
		return f.Kind
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}

// Failure is an expected failure carried as data rather than thrown.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func NewFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.Kind.sentinel()
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func (e *APIError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func BadRequest(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadRequest)
}

func Forbidden(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusForbidden)
}

func NotFound(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusNotFound)
}

func InternalError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusInternalServerError)
}
