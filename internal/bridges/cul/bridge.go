package cul

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bridge operation constants.
const (
	// DefaultPollInterval is the delay between transport checks.
	DefaultPollInterval = time.Second

	// stateQoS is the QoS for state publishes.
	stateQoS byte = 0
)

// Transport is the byte-stream boundary the bridge consumes. Implementations
// bound blocking reads themselves; Available must return promptly.
type Transport interface {
	// Available returns the number of bytes ready to be read.
	// An error means the transport is gone for good.
	Available() (int, error)

	// ReadAvailable returns all bytes currently buffered.
	ReadAvailable() ([]byte, error)
}

// Publisher is the bus publish capability. It must be safe to call while the
// bus client's own background activity is running.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTClient is the bus capability used for discovery and health.
type MQTTClient interface {
	Publisher

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger is the structured logging interface used by this package.
// Satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bridge pulls frames from the transport, decodes them, filters them through
// the registry and publishes one state message per accepted telegram.
//
// Run executes on a single goroutine and processes one frame at a time.
// Stats and SetLogger may be called concurrently with Run.
type Bridge struct {
	registry     *Registry
	transport    Transport
	publisher    Publisher
	prefix       string
	pollInterval time.Duration
	stateRetain  bool
	onEvent      func(StateEvent)

	framer Framer

	running atomic.Bool

	framesReceived  atomic.Uint64
	decodeErrors    atomic.Uint64
	framesIgnored   atomic.Uint64
	eventsPublished atomic.Uint64
	publishErrors   atomic.Uint64
	lastFrameAt     atomic.Int64 // unix nanoseconds, 0 = never

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Registry is the immutable device registry. Required.
	Registry *Registry

	// Transport is the receiver byte stream. Required.
	Transport Transport

	// Publisher is the bus publish capability. Required.
	Publisher Publisher

	// Prefix is the bus context prefix. Default: DefaultDiscoveryPrefix.
	Prefix string

	// PollInterval is the delay between transport checks.
	// Default: DefaultPollInterval.
	PollInterval time.Duration

	// RetainState publishes state messages retained.
	RetainState bool

	// OnEvent, if set, is called on the Run goroutine for every accepted
	// event after its publish attempt. It must not block.
	OnEvent func(StateEvent)

	// Logger is an optional structured logger.
	Logger Logger
}

// NewBridge creates a bridge. Call Run to start the loop.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Bridge{
		registry:     opts.Registry,
		transport:    opts.Transport,
		publisher:    opts.Publisher,
		prefix:       prefix,
		pollInterval: interval,
		stateRetain:  opts.RetainState,
		onEvent:      opts.OnEvent,
		logger:       opts.Logger,
	}, nil
}

// Run polls the transport until ctx is cancelled or the transport fails.
// Decode failures and unknown devices never stop the loop.
//
// Returns:
//   - nil when ctx is cancelled
//   - an error wrapping ErrTransportLost on hard transport failure
func (b *Bridge) Run(ctx context.Context) error {
	b.running.Store(true)
	defer b.running.Store(false)

	b.logInfo("bridge loop started",
		"devices", b.registry.Len(),
		"poll_interval", b.pollInterval.String())

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logInfo("bridge loop stopped")
			return nil
		case <-ticker.C:
			if err := b.poll(); err != nil {
				return err
			}
		}
	}
}

// poll performs one Idle → FrameReady → Dispatched pass.
func (b *Bridge) poll() error {
	n, err := b.transport.Available()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportLost, err)
	}
	if n == 0 {
		return nil
	}

	data, err := b.transport.ReadAvailable()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportLost, err)
	}

	for _, frame := range b.framer.Push(data) {
		b.handleFrame(frame)
	}
	return nil
}

// handleFrame decodes, filters and dispatches a single frame.
func (b *Bridge) handleFrame(raw []byte) {
	b.framesReceived.Add(1)
	b.lastFrameAt.Store(time.Now().UnixNano())

	t, err := ParseFrame(string(raw))
	if err != nil {
		b.decodeErrors.Add(1)
		b.logDebug("dropping frame",
			"frame", strings.TrimSpace(string(raw)),
			"error", err.Error())
		return
	}

	entry, ok := b.registry.Lookup(t.DeviceAddress)
	if !ok {
		b.framesIgnored.Add(1)
		b.logDebug("ignoring unknown device",
			"housecode", t.HouseCode,
			"deviceaddress", t.DeviceAddress)
		return
	}

	b.dispatch(NewStateEvent(t, entry))
}

// dispatch publishes a state event. Publish failures are counted and logged;
// the event is not queued for retry.
func (b *Bridge) dispatch(ev StateEvent) {
	b.logInfo("sending state change",
		"housecode", ev.HouseCode,
		"deviceaddress", ev.DeviceAddress,
		"commonname", ev.DisplayName,
		"state", string(ev.State),
		"rssi", ev.RSSI)

	if b.onEvent != nil {
		defer b.onEvent(ev)
	}

	topic := StateTopic(b.prefix, ev.DisplayName)
	if err := b.publisher.Publish(topic, []byte(ev.State), stateQoS, b.stateRetain); err != nil {
		b.publishErrors.Add(1)
		b.logError("failed to publish state", "topic", topic, "error", err)
		return
	}
	b.eventsPublished.Add(1)
}

// Running reports whether Run is active.
func (b *Bridge) Running() bool {
	return b.running.Load()
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() BridgeStatistics {
	s := BridgeStatistics{
		FramesReceived:  b.framesReceived.Load(),
		DecodeErrors:    b.decodeErrors.Load(),
		FramesIgnored:   b.framesIgnored.Load(),
		EventsPublished: b.eventsPublished.Load(),
		PublishErrors:   b.publishErrors.Load(),
	}
	if ns := b.lastFrameAt.Load(); ns != 0 {
		at := time.Unix(0, ns).UTC()
		s.LastFrameAt = &at
	}
	return s
}

// DeviceCount returns the number of registered devices.
func (b *Bridge) DeviceCount() int {
	return b.registry.Len()
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
