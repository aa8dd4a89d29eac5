package terminal

import (
	"errors"
	"fmt"
)

// Error codes reported by the SDK.
const (
	CodeCanceled          = "canceled"
	CodeCardDeclined      = "card_declined"
	CodeCardReadFailed    = "card_read_failed"
	CodeNoReader          = "no_reader_connected"
	CodeAlreadyConnected  = "already_connected"
	CodeConnectionToken   = "connection_token_failed"
	CodeNoCollectPending  = "no_active_collect_payment_method"
	CodeCollectInProgress = "collect_in_progress"
	CodeInvalidArgument   = "invalid_argument"
	CodeTimeout           = "timeout"
)

// Error is the error half of the SDK's `{ error }` results.
type Error struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	DeclineCode string `json:"decline_code,omitempty"`
	Err         error  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("terminal: %s: %s", e.Code, e.Message)
	if e.DeclineCode != "" {
		msg = fmt.Sprintf("%s (decline_code=%s)", msg, e.DeclineCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsCode reports whether err is an SDK error with the given code.
func IsCode(err error, code string) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == code
}
