package transport

import "errors"

// Domain-specific errors for receiver transports.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrClosed is returned by a Stream after Close has been called.
	ErrClosed = errors.New("transport: stream closed")

	// ErrOpenFailed is returned when the serial port or WebSocket cannot be opened.
	ErrOpenFailed = errors.New("transport: open failed")

	// ErrUnsupportedType is returned for a transport type other than serial or websocket.
	ErrUnsupportedType = errors.New("transport: unsupported type")

	// ErrInvalidParity is returned for a parity setting other than N, E or O.
	ErrInvalidParity = errors.New("transport: invalid parity")
)
