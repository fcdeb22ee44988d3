package cul

import "errors"

// Domain errors for the CUL bridge package.
var (
	// ErrInvalidDigit is returned when a frame contains a character that is
	// not a hexadecimal digit.
	ErrInvalidDigit = errors.New("cul: invalid hex digit")

	// ErrFrameTooShort is returned when a frame is shorter than the fixed
	// field layout requires.
	ErrFrameTooShort = errors.New("cul: frame too short")

	// ErrUnknownStateCode is returned when the state slice of a decoded
	// telegram is not in the known-states table.
	ErrUnknownStateCode = errors.New("cul: unknown state code")

	// ErrTransportLost is returned by Bridge.Run when the transport reports
	// a hard failure. The bridge does not retry; the supervisor decides.
	ErrTransportLost = errors.New("cul: transport lost")

	// ErrInvalidRegistry is returned when registry entries are malformed
	// or contain duplicate addresses.
	ErrInvalidRegistry = errors.New("cul: invalid device registry")
)
