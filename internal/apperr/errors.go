package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gmbtravels/gmbservice/pkg"

	log "github.com/sirupsen/logrus"
)

type Kind int

const (
	KindPersistence Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindMalformed
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindValidation, KindMalformed:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	default:
		return "PersistenceError"
	}
}

var (
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrAuthorization  = &Error{Kind: KindAuthorization, Message: "insufficient permissions"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrPersistence    = &Error{Kind: KindPersistence, Message: "internal server error"}
)

// Error is the error type surfaced to API clients. Message is safe to show, Err is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works for every not found error.
// Malformed bodies are a flavor of validation errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == KindMalformed && t.Kind == KindValidation {
		return true
	}
	return e.Kind == t.Kind
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Malformed(message string, err error) *Error {
	return &Error{Kind: KindMalformed, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "internal server error", Err: err}
}

// HTTPStatus maps an error to the status code returned to the client.
// Errors outside of the taxonomy are treated as persistence failures.
func HTTPStatus(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindMalformed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client facing message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrPersistence.Message
}

// WriteHTTP writes err as a JSON error body.
func WriteHTTP(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	switch {
	case status >= http.StatusInternalServerError:
		log.Errorf("request failed: %s", err)
	case status == http.StatusUnauthorized:
		log.Tracef("request not authenticated: %s", err)
	default:
		log.Debugf("request rejected: %s", err)
	}
	pkg.WriteJSONError(w, status, Message(err))
}
