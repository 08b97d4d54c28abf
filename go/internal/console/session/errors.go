package session

import "errors"

var (
	// ErrInvalidTransition is returned when a command does not apply to the
	// current status.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrRoundNotFound is returned when selecting a round that is not in the
	// selectable list.
	ErrRoundNotFound = errors.New("round not found")
	// ErrCredentialRequired is returned when starting without a credential.
	ErrCredentialRequired = errors.New("start credential required")
	// ErrNotRunning is returned when stopping a round that is not running.
	ErrNotRunning = errors.New("round is not running")
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("session closed")
)
