package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error kinds surfaced to API consumers. Parse-level problems never
// become an Error; they are absorbed into ingestion counters.
const (
	CodeStructural  = "structural"   // archive unreadable / no recognizable layout
	CodeStorageFull = "storage_full" // uploads volume out of space
	CodeCommit      = "commit"       // primary-store transaction failed
	CodeBusy        = "busy"         // global operation already in flight
	CodeUnavailable = "unavailable"  // optional subsystem disabled or unreachable
	CodeUpstream    = "upstream"     // external model call failed
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeInternal    = "internal"
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

func Structural(err error) *Error  { return New(http.StatusBadRequest, CodeStructural, err) }
func StorageFull(err error) *Error { return New(http.StatusInsufficientStorage, CodeStorageFull, err) }
func Commit(err error) *Error      { return New(http.StatusInternalServerError, CodeCommit, err) }
func Busy(err error) *Error        { return New(http.StatusConflict, CodeBusy, err) }
func Unavailable(err error) *Error { return New(http.StatusServiceUnavailable, CodeUnavailable, err) }
func Upstream(err error) *Error    { return New(http.StatusBadGateway, CodeUpstream, err) }
func BadRequest(err error) *Error  { return New(http.StatusBadRequest, CodeBadRequest, err) }
func NotFound(err error) *Error    { return New(http.StatusNotFound, CodeNotFound, err) }
func Internal(err error) *Error    { return New(http.StatusInternalServerError, CodeInternal, err) }

// StatusAndCode resolves any error to an HTTP status and stable code.
func StatusAndCode(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := ae.Code
		if code == "" {
			code = CodeInternal
		}
		return status, code
	}
	return http.StatusInternalServerError, CodeInternal
}
