// Package main is the entry point for the CUL bridge.
//
// The bridge reads 868 MHz sensor telegrams from a CUL receiver (attached
// over serial or relayed over WebSocket), decodes them and publishes each
// registered device's state to MQTT, together with retained discovery
// configuration and periodic health reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/cul-bridge/internal/api"
	"github.com/nerrad567/cul-bridge/internal/bridges/cul"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/config"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/database"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/transport"

	_ "github.com/nerrad567/cul-bridge/migrations" // registers the embedded schema
)

// Version information (set at build time via ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor CULBRIDGE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, wires the transport, MQTT client and bridge
// loop, and blocks until ctx is cancelled or the transport is lost.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting CUL bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, err := loadRegistry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry loaded", "devices", registry.Len())

	stream, err := transport.Open(ctx, cfg.Transport)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer func() {
		log.Info("closing transport")
		if closeErr := stream.Close(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()
	log.Info("transport opened", "transport", stream.Description())

	mqttClient := mqtt.NewClient(cfg.MQTT)
	mqttClient.SetLogger(log)
	adapter := &mqttBridgeAdapter{client: mqttClient}

	// Discovery must be registered before Connect so that the first
	// connection announces the devices, not just reconnects.
	discovery := cul.NewDiscovery(registry, adapter, cfg.Bridge.DiscoveryPrefix)
	discovery.SetLogger(log)
	mqttClient.SetOnConnect(discovery.HandleConnect)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := mqttClient.Connect(); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Assigned before Run starts; the event hook runs on the Run goroutine.
	var apiServer *api.Server

	bridge, err := cul.NewBridge(cul.BridgeOptions{
		Registry:     registry,
		Transport:    stream,
		Publisher:    mqttClient,
		Prefix:       cfg.Bridge.DiscoveryPrefix,
		PollInterval: cfg.Bridge.PollInterval,
		RetainState:  cfg.Bridge.RetainState,
		OnEvent: func(ev cul.StateEvent) {
			if apiServer != nil {
				apiServer.PublishEvent(ev)
			}
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: registry,
			Bridge:   bridge,
			MQTT:     mqttClient,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "address", apiServer.Addr())
	} else {
		log.Info("API server disabled")
	}

	health := cul.NewHealthReporter(cul.HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   version,
		Topic:     cfg.Bridge.HealthTopic,
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Source:    bridge,
	})
	health.SetLogger(log)
	if err := health.PublishStarting(); err != nil {
		log.Warn("failed to publish starting health", "error", err)
	}
	health.Start(ctx)
	defer func() {
		log.Info("stopping health reporter")
		health.Stop()
	}()

	log.Info("initialisation complete, bridging telegrams")

	if err := bridge.Run(ctx); err != nil {
		return fmt.Errorf("bridge loop: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Health reporter
	// 2. API server (if enabled)
	// 3. MQTT
	// 4. Transport

	log.Info("CUL bridge stopped")
	return nil
}

// loadRegistry builds the device registry from the configured source:
// the cul_devices table when registry.database.path is set, otherwise the
// devices section of the config file.
func loadRegistry(ctx context.Context, cfg *config.Config, log *logging.Logger) (*cul.Registry, error) {
	if cfg.Registry.Database.Path == "" {
		return cul.RegistryFromConfig(cfg.Devices)
	}

	db, err := openRegistryDB(ctx, cfg.Registry.Database, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	return cul.LoadRegistryFromDB(ctx, db)
}

// openRegistryDB opens the registry database and applies pending migrations.
func openRegistryDB(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Path)

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database migrations complete", "applied", len(applied), "pending", len(pending))

	return db, nil
}

// getConfigPath returns the configuration file path.
// An explicit flag wins, then CULBRIDGE_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("CULBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the CUL bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - CUL bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements cul.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements cul.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements cul.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
