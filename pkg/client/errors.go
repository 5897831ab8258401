package client

import "errors"

// Sentinel kinds for client errors.
var (
	ErrNoSnapshot    = errors.New("no persisted snapshot")
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyActive = errors.New("client already started")
	ErrClosed        = errors.New("client closed")
	ErrInvalidUpdate = errors.New("invalid progress update")
)
