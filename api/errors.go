package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vocdoni/starkvote/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error
// code and the HTTP status of the response.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns {"error": Err.Error(), "code": Code}. HTTPstatus is
// not part of the body.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}{
		Err:  e.Err.Error(),
		Code: e.Code,
	})
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Write sends the error as a JSON body with its HTTP status.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warnw("failed to marshal api error", "error", err.Error())
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	log.Debugw("api error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(append(msg, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err.Error())
	}
}

// Withf returns a copy of e with the formatted string appended to Err.
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of e with s appended to Err.
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %s", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of e with err appended to Err.
func (e Error) WithErr(err error) Error {
	return e.With(err.Error())
}
