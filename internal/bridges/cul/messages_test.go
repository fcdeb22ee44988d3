package cul

import (
	"encoding/json"
	"testing"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", StateTopic(DefaultDiscoveryPrefix, "doorbell"), "homeassistant/binary_sensor/doorbell/state"},
		{"config", ConfigTopic(DefaultDiscoveryPrefix, "doorbell"), "homeassistant/binary_sensor/doorbell/config"},
		{"subscribe", SubscribeTopic(DefaultDiscoveryPrefix), "homeassistant/binary_sensor/#"},
		{"custom prefix", StateTopic("site/a/", "gate"), "site/a/gate/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewStateEvent(t *testing.T) {
	tg := Telegram{HouseCode: "12131421", DeviceAddress: "1111", State: StateOn, RSSI: -168}
	entry := RegistryEntry{Address: "1111", Name: "doorbell", DeviceClass: "sound"}

	ev := NewStateEvent(tg, entry)

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := map[string]any{
		"housecode":     "12131421",
		"deviceaddress": "1111",
		"commonname":    "doorbell",
		"state":         "ON",
		"rssi":          float64(-168),
	}
	for k, v := range want {
		if raw[k] != v {
			t.Errorf("%s = %v, want %v", k, raw[k], v)
		}
	}
}
