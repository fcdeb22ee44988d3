package cul

import (
	"time"
)

// Default topic settings.
const (
	// DefaultDiscoveryPrefix is the bus context prefix for state and
	// discovery topics. Only binary sensors are announced.
	DefaultDiscoveryPrefix = "homeassistant/binary_sensor/"

	// DefaultHealthTopic is where the bridge publishes its health status.
	DefaultHealthTopic = "culbridge/health"
)

// StateEvent is the record handed to the bus for each accepted telegram.
type StateEvent struct {
	HouseCode     string `json:"housecode"`
	DeviceAddress string `json:"deviceaddress"`
	DisplayName   string `json:"commonname"`
	State         State  `json:"state"`
	RSSI          int    `json:"rssi"`
}

// NewStateEvent builds the event for a telegram from a registered device.
func NewStateEvent(t Telegram, entry RegistryEntry) StateEvent {
	return StateEvent{
		HouseCode:     t.HouseCode,
		DeviceAddress: t.DeviceAddress,
		DisplayName:   entry.Name,
		State:         t.State,
		RSSI:          t.RSSI,
	}
}

// DiscoveryConfig is the retained payload that lets a consumer
// auto-register a device as an entity.
type DiscoveryConfig struct {
	Name        string `json:"name"`
	DeviceClass string `json:"device_class"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	DevicesManaged int               `json:"devices_managed"`
	Reason         string            `json:"reason,omitempty"`
}

// BridgeStatistics contains the bridge loop counters.
type BridgeStatistics struct {
	// FramesReceived counts every complete frame taken from the transport.
	FramesReceived uint64 `json:"frames_received"`

	// DecodeErrors counts frames dropped by the codec.
	DecodeErrors uint64 `json:"decode_errors"`

	// FramesIgnored counts telegrams from devices not in the registry.
	FramesIgnored uint64 `json:"frames_ignored"`

	// EventsPublished counts state events handed to the bus.
	EventsPublished uint64 `json:"events_published"`

	// PublishErrors counts state events the bus client rejected.
	PublishErrors uint64 `json:"publish_errors"`

	// LastFrameAt is when the last frame was received, if any.
	LastFrameAt *time.Time `json:"last_frame_at,omitempty"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats BridgeStatistics, deviceCount int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Statistics:     &stats,
		DevicesManaged: deviceCount,
	}
}

// StateTopic returns the state topic for a device.
// Example: homeassistant/binary_sensor/doorbell/state
func StateTopic(prefix, name string) string {
	return prefix + name + "/state"
}

// ConfigTopic returns the discovery topic for a device.
// Example: homeassistant/binary_sensor/doorbell/config
func ConfigTopic(prefix, name string) string {
	return prefix + name + "/config"
}

// SubscribeTopic returns the wildcard pattern covering the prefix.
// Example: homeassistant/binary_sensor/#
func SubscribeTopic(prefix string) string {
	return prefix + "#"
}
