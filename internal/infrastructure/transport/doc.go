// Package transport connects the bridge to the CUL receiver.
//
// Two connections are supported: a locally attached USB stick opened
// with go.bug.st/serial, and a stick relayed over WebSocket (for example
// ser2net behind a reverse proxy) dialled with gorilla/websocket. Both
// are wrapped in a Stream, which reads in a background goroutine and
// exposes a non-blocking Available/ReadAvailable pair for the bridge's
// polling loop.
//
// # Usage
//
//	stream, err := transport.Open(ctx, cfg.Transport)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	n, err := stream.Available()
//	if n > 0 {
//	    data, _ := stream.ReadAvailable()
//	    framer.Push(data)
//	}
package transport
