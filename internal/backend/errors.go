package backend

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable   = errors.New("backend: host unreachable or transport failure")
	ErrRequestFailed = errors.New("backend: request failed")
	ErrBadResponse   = errors.New("backend: invalid response")
)

// RequestError wraps a sentinel with the operation and upstream details.
type RequestError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("backend: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}
