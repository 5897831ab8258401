package ws

import "errors"

// Sentinel kinds for websocket transport errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timed out")
	ErrEncodeMessage    = errors.New("encode message failed")
)
