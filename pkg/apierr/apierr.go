package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error carries the HTTP status a handler should answer with.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthorized(err error) *Error { return New(http.StatusUnauthorized, "unauthorized", err) }
func Forbidden(err error) *Error    { return New(http.StatusForbidden, "forbidden", err) }
func BadRequest(err error) *Error   { return New(http.StatusBadRequest, "bad_request", err) }
func NotFound(err error) *Error     { return New(http.StatusNotFound, "not_found", err) }
func Internal(err error) *Error     { return New(http.StatusInternalServerError, "internal", err) }

// Badf is shorthand for a 400 with a formatted message.
func Badf(format string, args ...any) *Error {
	return BadRequest(fmt.Errorf(format, args...))
}

// Write renders err as {"error": "..."} and aborts the chain. Errors that are
// not *Error become 500s.
func Write(c *gin.Context, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = Internal(err)
	}
	c.AbortWithStatusJSON(ae.Status, gin.H{"error": ae.Error()})
}
