package chat

import "errors"

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrTurnInProgress  = errors.New("a message is already being processed")
	ErrSessionNotFound = errors.New("chat session not found")
)
