// Package mqtt provides the broker connection used by the CUL bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing, including retained-message clearing
//   - Topic subscriptions with wildcard support, restored after reconnects
//   - Last Will and Testament (LWT) on a configurable status topic
//
// # Connection Lifecycle
//
// NewClient builds the client without connecting so callers can register
// the on-connect callback first. The bridge uses that callback to
// re-announce Home Assistant discovery after every (re)connect:
//
//	client := mqtt.NewClient(cfg.MQTT)
//	client.SetOnConnect(discovery.HandleConnect)
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//	defer client.Close()
//
// # Status Topic
//
// The status topic carries a retained JSON StatusPayload. The broker
// publishes "offline" with reason "unexpected_disconnect" as the LWT;
// Close publishes "offline" with reason "graceful_shutdown".
package mqtt
