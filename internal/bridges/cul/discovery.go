package cul

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// discoveryQoS is the QoS for discovery clear and config messages.
const discoveryQoS byte = 1

// Discovery announces every registered device as a retained configuration
// message. Each device's old registration is cleared with an empty retained
// message before the new one is set, so renamed or reclassified devices do
// not show up twice on the consuming side.
type Discovery struct {
	registry *Registry
	client   MQTTClient
	prefix   string

	logger   Logger
	loggerMu sync.RWMutex
}

// NewDiscovery creates a discovery publisher.
// An empty prefix selects DefaultDiscoveryPrefix.
func NewDiscovery(registry *Registry, client MQTTClient, prefix string) *Discovery {
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return &Discovery{
		registry: registry,
		client:   client,
		prefix:   prefix,
	}
}

// HandleConnect is the bus on-connect callback. It subscribes to the prefix
// wildcard for debug visibility and re-announces all devices. It runs on
// every connect, including reconnects.
func (d *Discovery) HandleConnect() {
	topic := SubscribeTopic(d.prefix)
	if err := d.client.Subscribe(topic, discoveryQoS, d.handleMessage); err != nil {
		d.logWarn("failed to subscribe", "topic", topic, "error", err)
	}

	if err := d.Announce(); err != nil {
		d.logError("discovery incomplete", "error", err)
		return
	}
	d.logInfo("discovery published", "devices", d.registry.Len())
}

// Announce publishes clear-then-set for each device in registry order.
// A device whose clear message fails is skipped so that a config message is
// never published without its preceding clear.
//
// Returns:
//   - error: all per-device failures joined, or nil
func (d *Discovery) Announce() error {
	var errs []error

	for _, entry := range d.registry.Entries() {
		if err := d.announceDevice(entry); err != nil {
			errs = append(errs, fmt.Errorf("device %q: %w", entry.Name, err))
		}
	}

	return errors.Join(errs...)
}

// announceDevice publishes the clear and config messages for one device.
func (d *Discovery) announceDevice(entry RegistryEntry) error {
	topic := ConfigTopic(d.prefix, entry.Name)

	if err := d.client.Publish(topic, nil, discoveryQoS, true); err != nil {
		return fmt.Errorf("clearing config: %w", err)
	}

	payload, err := json.Marshal(DiscoveryConfig{
		Name:        entry.Name,
		DeviceClass: entry.DeviceClass,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := d.client.Publish(topic, payload, discoveryQoS, true); err != nil {
		return fmt.Errorf("publishing config: %w", err)
	}
	return nil
}

// handleMessage logs traffic seen under the prefix.
func (d *Discovery) handleMessage(topic string, payload []byte) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug("bus message", "topic", topic, "payload", string(payload))
	}
}

// SetLogger sets the logger for the discovery publisher.
func (d *Discovery) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Discovery) logInfo(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (d *Discovery) logWarn(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (d *Discovery) logError(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
