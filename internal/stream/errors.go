package stream

import "errors"

var (
	// ErrNotReady is returned when a command needs a state the connection has not reached
	ErrNotReady = errors.New("connection not ready")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("manager already started")
	// ErrAlreadyDisposed is returned by Start and the command methods after Close
	ErrAlreadyDisposed = errors.New("manager already disposed")
	// ErrConnectFailed wraps the last dial error once a connect cycle gives up
	ErrConnectFailed = errors.New("connect failed")
	// ErrTransport wraps mid-stream read and write failures
	ErrTransport = errors.New("transport error")
	// ErrInvalidChannel is returned for malformed channel-prefixed symbols
	ErrInvalidChannel = errors.New("invalid channel")
)
