package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes knowledge/link persistence failures.
	StorageErrorMessage = "storage operation failed"
	// RetrievalErrorMessage describes embedding or index failures.
	RetrievalErrorMessage = "knowledge retrieval failed"
	// ExtractionErrorMessage describes malformed structured model output.
	ExtractionErrorMessage = "structured output could not be parsed"
	// AuthErrorMessage describes an expired or rejected platform credential.
	AuthErrorMessage = "messaging platform authentication failed"
	// DeliveryErrorMessage describes a failed outbound send.
	DeliveryErrorMessage = "message delivery failed"
)

// Error kinds. Match them with errors.Is on any error returned by this package.
var (
	ErrExtractionParse = errors.New("extraction parse error")
	ErrRetrieval       = errors.New("retrieval error")
	ErrAuth            = errors.New("auth error")
	ErrDelivery        = errors.New("delivery error")
	ErrStorage         = errors.New("storage error")
)

// AppError wraps an underlying error with an HTTP status, a safe message and
// an optional kind sentinel.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target is the error kind or matches the underlying error.
func (e *AppError) Is(target error) bool {
	if e.Kind != nil && target == e.Kind {
		return true
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

func wrapKind(err error, kind error, status int, message string) error {
	if err == nil {
		return nil
	}
	// keep the innermost classification
	var existing *AppError
	if errors.As(err, &existing) && existing.Kind == kind {
		return err
	}
	return &AppError{Err: err, Status: status, Message: message, Kind: kind}
}

// WrapStorage marks err as a persistence failure.
func WrapStorage(err error) error {
	return wrapKind(err, ErrStorage, http.StatusServiceUnavailable, StorageErrorMessage)
}

// WrapRetrieval marks err as an embedding or vector index failure.
func WrapRetrieval(err error) error {
	return wrapKind(err, ErrRetrieval, http.StatusBadGateway, RetrievalErrorMessage)
}

// WrapExtraction marks err as malformed structured model output.
func WrapExtraction(err error) error {
	return wrapKind(err, ErrExtractionParse, http.StatusUnprocessableEntity, ExtractionErrorMessage)
}

// WrapAuth marks err as a credential failure against the messaging platform.
func WrapAuth(err error) error {
	return wrapKind(err, ErrAuth, http.StatusUnauthorized, AuthErrorMessage)
}

// WrapDelivery marks err as an outbound send failure.
func WrapDelivery(err error) error {
	return wrapKind(err, ErrDelivery, http.StatusBadGateway, DeliveryErrorMessage)
}

// StatusOf returns the HTTP status attached to err, or 500.
func StatusOf(err error) int {
	var app *AppError
	if errors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	return http.StatusInternalServerError
}
