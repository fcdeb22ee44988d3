package cul

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// mockStatsSource implements StatsSource for testing.
type mockStatsSource struct {
	running bool
	stats   BridgeStatistics
	devices int
}

func (m *mockStatsSource) Stats() BridgeStatistics { return m.stats }
func (m *mockStatsSource) Running() bool { return m.running }
func (m *mockStatsSource) DeviceCount() int { return m.devices }

func decodeHealth(t *testing.T, p mockPublish) HealthMessage {
	t.Helper()
	var msg HealthMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		t.Fatalf("health payload is not JSON: %v", err)
	}
	return msg
}

func TestHealthReporter_PublishNow(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		running    bool
		wantStatus HealthStatus
		wantReason string
	}{
		{"healthy", true, true, HealthHealthy, ""},
		{"mqtt down", false, true, HealthDegraded, "MQTT disconnected"},
		{"loop stopped", true, false, HealthDegraded, "bridge loop not running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			client.SetConnected(tt.connected)
			source := &mockStatsSource{
				running: tt.running,
				stats:   BridgeStatistics{FramesReceived: 10, EventsPublished: 7},
				devices: 3,
			}

			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "culbridge-test",
				Version:   "1.2.3",
				Publisher: client,
				Source:    source,
			})

			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}

			published := client.GetPublished()
			if len(published) != 1 {
				t.Fatalf("published %d messages, want 1", len(published))
			}
			if published[0].Topic != DefaultHealthTopic {
				t.Errorf("topic = %q, want %q", published[0].Topic, DefaultHealthTopic)
			}
			if !published[0].Retained || published[0].QoS != 1 {
				t.Error("health must be retained with QoS 1")
			}

			msg := decodeHealth(t, published[0])
			if msg.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", msg.Status, tt.wantStatus)
			}
			if msg.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", msg.Reason, tt.wantReason)
			}
			if msg.Bridge != "culbridge-test" || msg.Version != "1.2.3" {
				t.Errorf("identity = %s/%s", msg.Bridge, msg.Version)
			}
			if msg.DevicesManaged != 3 {
				t.Errorf("DevicesManaged = %d, want 3", msg.DevicesManaged)
			}
			if msg.Statistics == nil || msg.Statistics.EventsPublished != 7 {
				t.Errorf("Statistics = %+v", msg.Statistics)
			}
		})
	}
}

func TestHealthReporter_StartingAndStopping(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "culbridge-test",
		Topic:     "test/health",
		Interval:  time.Hour,
		Publisher: client,
		Source:    &mockStatsSource{running: true},
	})

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}

	h.Start(context.Background())
	h.Stop()
	h.Stop() // second Stop is a no-op

	published := client.GetPublished()
	if len(published) != 3 {
		t.Fatalf("published %d messages, want 3 (starting, initial, stopping)", len(published))
	}

	statuses := []HealthStatus{HealthStarting, HealthHealthy, HealthStopping}
	for i, want := range statuses {
		if published[i].Topic != "test/health" {
			t.Errorf("message %d topic = %q", i, published[i].Topic)
		}
		if got := decodeHealth(t, published[i]).Status; got != want {
			t.Errorf("message %d status = %q, want %q", i, got, want)
		}
	}
}

func TestHealthReporter_PeriodicPublish(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "culbridge-test",
		Interval:  10 * time.Millisecond,
		Publisher: client,
		Source:    &mockStatsSource{running: true},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for len(client.GetPublished()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d messages, want at least 3", len(client.GetPublished()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Stop()
}

func TestHealthReporter_NilPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "culbridge-test"})

	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() with nil publisher error = %v", err)
	}
	if h.interval != DefaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.interval, DefaultHealthInterval)
	}
}

func TestHealthReporter_WithBridge(t *testing.T) {
	b, client := newTestBridge(t, newMockTransport("F12340011A2\r\n"))
	if err := b.poll(); err != nil {
		t.Fatalf("poll() error = %v", err)
	}
	client.ClearPublished()

	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "culbridge-test",
		Publisher: client,
		Source:    b,
	})
	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msg := decodeHealth(t, client.GetPublished()[0])
	if msg.Status != HealthDegraded {
		t.Errorf("Status = %q, want degraded while Run is not active", msg.Status)
	}
	if msg.Statistics.EventsPublished != 1 || msg.Statistics.LastFrameAt == nil {
		t.Errorf("Statistics = %+v", msg.Statistics)
	}
	if msg.DevicesManaged != 3 {
		t.Errorf("DevicesManaged = %d, want 3", msg.DevicesManaged)
	}
}
