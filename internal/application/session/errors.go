package session

import "errors"

var (
	ErrInvalidTransition = errors.New("session: action not allowed in current state")
	ErrBusy              = errors.New("session: analysis already in progress")
	ErrSessionNotFound   = errors.New("session: not found")
)
