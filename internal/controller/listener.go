package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/session"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// sdkListener feeds the SDK's notifications back into the session.
type sdkListener struct {
	c *Controller
}

var _ terminal.Listener = (*sdkListener)(nil)

func (l *sdkListener) FetchConnectionToken(ctx context.Context) (string, error) {
	api := l.c.backendAPI()
	if api == nil {
		return "", errors.New("backend client not configured")
	}
	tok, err := api.CreateConnectionToken(ctx)
	if err != nil {
		return "", fmt.Errorf("create connection token: %w", err)
	}
	return tok.Secret, nil
}

func (l *sdkListener) UnexpectedReaderDisconnect() {
	l.c.apply(session.UnexpectedDisconnect{})
	l.c.alert(context.Background(), "Unexpected disconnect from the reader!")
}

func (l *sdkListener) ConnectionStatusChanged(status terminal.ConnectionStatus) {
	l.c.apply(session.ConnectionStatusChanged{Status: status})
}
