package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// readChunkSize is the buffer handed to each Read on the connection.
	readChunkSize = 256

	// chunkQueueDepth bounds how many unread chunks the reader goroutine
	// may queue before it blocks.
	chunkQueueDepth = 64
)

// Stream turns a blocking connection into a pollable byte source.
//
// A goroutine reads the connection continuously and queues chunks.
// Available drains that queue without blocking, so the bridge can poll
// on a fixed interval regardless of whether the connection is a serial
// port or a WebSocket.
//
// Thread Safety:
//   - Available and ReadAvailable are meant for a single polling goroutine.
//   - Write and Close are safe to call concurrently with polling.
type Stream struct {
	conn        io.ReadWriteCloser
	description string

	chunks chan []byte
	done   chan struct{}

	mu      sync.Mutex
	pending []byte
	readErr error
	closed  bool

	writeMu sync.Mutex
}

// NewStream wraps conn and starts its reader goroutine.
// description is used in log messages (e.g. "serial /dev/ttyUSB0 @ 38400 baud").
func NewStream(conn io.ReadWriteCloser, description string) *Stream {
	s := &Stream{
		conn:        conn,
		description: description,
		chunks:      make(chan []byte, chunkQueueDepth),
		done:        make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// readLoop copies connection reads into the chunk queue until the
// connection fails or is closed.
func (s *Stream) readLoop() {
	defer close(s.chunks)

	buf := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
	}
}

// Description identifies the underlying connection for logs.
func (s *Stream) Description() string {
	return s.description
}

// Available reports how many bytes can be read without blocking.
//
// Queued data is returned before any read error, so bytes that arrived
// just before a disconnect are not lost. Once the queue is empty a
// failed connection reports its error.
func (s *Stream) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

drain:
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				break drain
			}
			s.pending = append(s.pending, chunk...)
		default:
			break drain
		}
	}

	return s.availableLocked()
}

func (s *Stream) availableLocked() (int, error) {
	if len(s.pending) > 0 {
		return len(s.pending), nil
	}
	if s.readErr != nil {
		if s.readErr == io.EOF {
			return 0, fmt.Errorf("%s: %w", s.description, io.ErrUnexpectedEOF)
		}
		return 0, fmt.Errorf("%s: %w", s.description, s.readErr)
	}
	return 0, nil
}

// ReadAvailable returns the bytes gathered by the last Available call
// and clears them.
func (s *Stream) ReadAvailable() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	data := s.pending
	s.pending = nil
	return data, nil
}

// Write sends p to the receiver.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(p)
}

// Initialize waits delay and then writes command followed by CRLF.
// An empty command is a no-op. Data received during the delay stays
// queued for the next Available call.
func (s *Stream) Initialize(ctx context.Context, delay time.Duration, command string) error {
	if command == "" {
		return nil
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if _, err := s.Write([]byte(command + "\r\n")); err != nil {
		return fmt.Errorf("writing init command %q: %w", command, err)
	}
	return nil
}

// Close closes the connection and stops the reader goroutine.
// Closing twice is not an error.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	close(s.done)
	s.mu.Unlock()

	return s.conn.Close()
}
