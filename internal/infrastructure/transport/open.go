package transport

import (
	"context"
	"fmt"

	"github.com/nerrad567/cul-bridge/internal/infrastructure/config"
)

// Open opens the transport selected by cfg.Type and sends the serial
// init command once the receiver is ready.
//
// The init command is written for both transports; a WebSocket relay
// forwards it to the stick unchanged.
func Open(ctx context.Context, cfg config.TransportConfig) (*Stream, error) {
	var (
		stream *Stream
		err    error
	)

	switch cfg.Type {
	case config.TransportSerial, "":
		stream, err = OpenSerial(cfg.Serial)
	case config.TransportWebSocket:
		stream, err = OpenWebSocket(ctx, cfg.WebSocket)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := stream.Initialize(ctx, cfg.Serial.InitDelay, cfg.Serial.InitCommand); err != nil {
		stream.Close()
		return nil, fmt.Errorf("initialising %s: %w", stream.Description(), err)
	}

	return stream, nil
}
