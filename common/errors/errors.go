// Package errors carries HTTP-aware application errors from services to
// handlers. Services return *Error; handlers render it as {"error": message}.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Err is logged but never sent to the client.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by status code, so errors.Is(err, NotFound(""))
// holds for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message, nil) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message, nil) }
func Forbidden(message string) *Error    { return New(http.StatusForbidden, message, nil) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message, nil) }
func Conflict(message string) *Error     { return New(http.StatusConflict, message, nil) }

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}

func Unavailable(message string, err error) *Error {
	return New(http.StatusServiceUnavailable, message, err)
}

// Upstream reports a payment provider failure. Its message reaches the client.
func Upstream(message string, err error) *Error {
	return New(http.StatusBadGateway, message, err)
}

// From returns err as an *Error, treating anything unknown as a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Respond aborts the request with err. The error is also attached to the
// gin context so the request logger records the underlying cause.
func Respond(c *gin.Context, err *Error) {
	if err.Err != nil || err.Code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

// ErrorMiddleware renders the last c.Error for handlers that did not write a
// response themselves.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := From(c.Errors.Last().Err)
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
	}
}
