package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

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
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }
func NotFound(err error) *Error                { return New(http.StatusNotFound, "not_found", err) }
func Unauthorized() *Error {
	return New(http.StatusUnauthorized, "unauthorized", errors.New("login required"))
}
func Forbidden() *Error {
	return New(http.StatusForbidden, "forbidden", errors.New("admin access required"))
}

// Internal hides err from the client; log it before responding.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "internal", err)
}

type body struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type envelope struct {
	Error body `json:"error"`
}

// WantsJSON reports whether the client asked for JSON rather than a page.
func WantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// Respond aborts the request with err rendered as JSON or as the "error" page.
// Internal errors never expose their message.
func Respond(c *gin.Context, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = Internal(err)
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := ae.Error()
	if status >= 500 {
		msg = http.StatusText(status)
	}
	if WantsJSON(c) {
		c.AbortWithStatusJSON(status, envelope{Error: body{Message: msg, Code: ae.Code}})
		return
	}
	c.HTML(status, "error", gin.H{"Title": http.StatusText(status), "Status": status, "Message": msg})
	c.Abort()
}
