package controller

import (
	"errors"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

var (
	ErrNotInitialized      = errors.New("controller: backend url not set")
	ErrAlreadyInitialized  = errors.New("controller: backend url already set")
	ErrInvalidBackendURL   = errors.New("controller: invalid backend url")
	ErrNoReader            = errors.New("controller: no reader connected")
	ErrBusy                = errors.New("controller: operation already in progress")
	ErrNotCancelable       = errors.New("controller: no cancelable payment")
	ErrNoReadersDiscovered = errors.New("controller: no readers discovered")
	ErrUnknownReader       = errors.New("controller: reader not in the last discovery")
)

// message returns the text shown to the operator for err.
func message(err error) string {
	var te *terminal.Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}
