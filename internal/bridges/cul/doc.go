// Package cul implements the bridge between a CUL-style 868 MHz receiver
// and an MQTT bus.
//
// The receiver reports each RF telegram as one ASCII line of hex digits.
// The bridge decodes it into house code, device address and on/off state,
// drops telegrams from devices it does not know, and publishes the state
// of known devices for a home-automation consumer.
//
// # Architecture
//
//	┌──────────┐  bytes  ┌────────┐ frames ┌───────┐ telegram ┌──────────┐  MQTT
//	│ transport│────────►│ Framer │───────►│ codec │─────────►│ registry │───────►
//	└──────────┘         └────────┘        └───────┘          └──────────┘
//
// # Frame Encoding
//
// A frame such as "F12340011A2\r\n" carries a protocol marker, 4 hex digits
// of house code, 2 of device address, 2 of command and 2 of RSSI. Every hex
// digit d of the payload is rewritten as two digits (d/4)%4+1 and d%4+1,
// giving the 1-4 notation printed on the transmitters:
//
//	"1234" "00" "11"  →  "12131421" "1111" "1212"
//	house  addr cmd       house      addr   ON
//
// The RSSI is read from the raw frame: value - 256 - 74 dBm.
//
// # Discovery
//
// On every broker (re)connect each device is announced on
// <prefix><name>/config: first an empty retained message clears any old
// registration, then the retained {"name","device_class"} config is set.
// State changes go to <prefix><name>/state as "ON" or "OFF".
//
// # Registry Sources
//
// The device registry comes from the devices section of the config file,
// a standalone YAML file (LoadRegistryFile) or the cul_devices SQLite table
// (LoadRegistryFromDB). It is immutable once built.
package cul
