package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error independently of its transport.
type Kind string

const (
	KindInvalidArgument   Kind = "InvalidArgument"
	KindNotFound          Kind = "NotFound"
	KindForbidden         Kind = "Forbidden"
	KindUnauthenticated   Kind = "Unauthenticated"
	KindConflict          Kind = "Conflict"
	KindPaymentIncomplete Kind = "PaymentIncomplete"
	KindDataIntegrity     Kind = "DataIntegrity"
	KindUpstream          Kind = "Upstream"
	KindInternal          Kind = "Internal"
)

var statusByKind = map[Kind]int{
	KindInvalidArgument:   http.StatusBadRequest,
	KindNotFound:          http.StatusNotFound,
	KindForbidden:         http.StatusForbidden,
	KindUnauthenticated:   http.StatusUnauthorized,
	KindConflict:          http.StatusConflict,
	KindPaymentIncomplete: http.StatusPaymentRequired,
	KindDataIntegrity:     http.StatusInternalServerError,
	KindUpstream:          http.StatusBadGateway,
	KindInternal:          http.StatusInternalServerError,
}

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error of the given kind. The HTTP code is derived from the kind.
func New(kind Kind, message string, err error) *Error {
	code, ok := statusByKind[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func InvalidArgument(format string, args ...any) *Error {
	return New(KindInvalidArgument, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

// Forbidden never says whether the resource exists.
func Forbidden() *Error {
	return New(KindForbidden, "Not authorized", nil)
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message, nil)
}

func Conflict(message string, err error) *Error {
	return New(KindConflict, message, err)
}

func PaymentIncomplete(message string) *Error {
	return New(KindPaymentIncomplete, message, nil)
}

func DataIntegrity(message string, err error) *Error {
	return New(KindDataIntegrity, message, err)
}

func Upstream(message string, err error) *Error {
	return New(KindUpstream, message, err)
}

func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As converts any error into an application error. Foreign errors become Internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Respond writes err as {"error": message}. Causes are never exposed.
func Respond(c *gin.Context, err error) {
	appErr := As(err)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
