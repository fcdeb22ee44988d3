//go:build integration

package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// Integration tests against a live broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConnect(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	cfg.StatusTopic = "culbridge/int/status/" + clientID

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_OnConnectBeforeConnect(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "culbridge-int-onconnect"

	client := NewClient(cfg)
	called := make(chan struct{}, 1)
	client.SetOnConnect(func() {
		select {
		case called <- struct{}{}:
		default:
		}
	})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("on-connect callback registered before Connect() was not invoked")
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := integrationConnect(t, "culbridge-int-sub-track")

	topics := []string{
		"culbridge/int/a/state",
		"culbridge/int/b/state",
		"culbridge/int/#",
	}
	handler := func(string, []byte) error { return nil }

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	pub := integrationConnect(t, "culbridge-int-pub")
	sub := integrationConnect(t, "culbridge-int-sub")

	topic := "culbridge/int/doorbell/state"
	received := make(chan string, 1)
	var once sync.Once

	err := sub.Subscribe("culbridge/int/+/state", 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topic, []byte("ON"), 0, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != "ON" {
			t.Errorf("Received = %q, want ON", msg)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestIntegration_RetainedClear(t *testing.T) {
	pub := integrationConnect(t, "culbridge-int-retain")
	topic := "culbridge/int/retained/config"

	if err := pub.Publish(topic, []byte(`{"name":"doorbell"}`), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.ClearRetained(topic, 1); err != nil {
		t.Fatalf("ClearRetained() error = %v", err)
	}

	sub := integrationConnect(t, "culbridge-int-retain-sub")
	received := make(chan []byte, 1)
	if err := sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		received <- p
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case p := <-received:
		t.Errorf("received retained payload %q after clear", p)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestIntegration_OnlineStatus(t *testing.T) {
	client := integrationConnect(t, "culbridge-int-status")
	statusTopic := client.cfg.StatusTopic

	watcher := integrationConnect(t, "culbridge-int-status-watch")
	received := make(chan StatusPayload, 1)
	if err := watcher.Subscribe(statusTopic, 1, func(_ string, p []byte) error {
		var payload StatusPayload
		if err := json.Unmarshal(p, &payload); err != nil {
			return err
		}
		select {
		case received <- payload:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload.Status != StatusOnline {
			t.Errorf("Status = %q, want online", payload.Status)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for retained status")
	}
}
