package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/nerrad567/cul-bridge/internal/infrastructure/config"
)

// parseParity maps the configured parity letter to a serial.Parity.
func parseParity(p string) (serial.Parity, error) {
	switch strings.ToUpper(p) {
	case "", "N":
		return serial.NoParity, nil
	case "E":
		return serial.EvenParity, nil
	case "O":
		return serial.OddParity, nil
	default:
		return serial.NoParity, fmt.Errorf("%w: %q", ErrInvalidParity, p)
	}
}

// OpenSerial opens the receiver's serial port (8 data bits, 1 stop bit).
func OpenSerial(cfg config.SerialConfig) (*Stream, error) {
	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   parity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: serial port %s: %w", ErrOpenFailed, cfg.Device, err)
	}

	return NewStream(port, fmt.Sprintf("serial %s @ %d baud", cfg.Device, cfg.BaudRate)), nil
}
