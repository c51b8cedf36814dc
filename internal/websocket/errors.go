package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("connection send buffer full")
)

// Registry-related errors
var (
	ErrNilConnection    = errors.New("connection cannot be nil")
	ErrNotAuthenticated = errors.New("connection must be authenticated before registration")
)
