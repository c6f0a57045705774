// wiimote-bridge aggregates up to four Wii Remotes (with optional Nunchuk)
// into fixed button, analog and tracker channels once per tick and
// publishes them over MQTT.
//
// Configuration is read from configs/config.yaml, or the path in
// WIIMOTE_CONFIG.
//
// Usage:
//
//	wiimote-bridge                # run the bridge
//	wiimote-bridge migrate-down   # roll back the latest schema migration
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/nerrad567/wiimote-bridge/internal/api"
	"github.com/nerrad567/wiimote-bridge/internal/bridges/wiimote"
	"github.com/nerrad567/wiimote-bridge/internal/history"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/database"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/otel"
	"github.com/nerrad567/wiimote-bridge/internal/process"
	"github.com/nerrad567/wiimote-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// cmdMigrateDown is the subcommand rolling back one schema migration.
const cmdMigrateDown = "migrate-down"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := run
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case cmdMigrateDown:
			command = migrateDown
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", os.Args[1])
			os.Exit(2)
		}
	}

	if err := command(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge together and blocks until ctx is cancelled.
// Cleanup happens in the deferred closes, in reverse order of startup.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting wiimote bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"bridge_id", cfg.Bridge.ID,
		"source", cfg.Source.Type,
	)

	// Instruments, collected by the metrics endpoint
	meters, err := otel.New(otel.Config{ServiceName: logging.ServiceName, Version: version, Global: true})
	if err != nil {
		return fmt.Errorf("creating meter provider: %w", err)
	}
	defer func() {
		if shutdownErr := meters.Shutdown(context.Background()); shutdownErr != nil {
			log.Error("error shutting down meter provider", "error", shutdownErr)
		}
	}()

	// Slot history
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	historyRepo := history.NewSQLiteRepository(db.DB, cfg.Bridge.ID)
	log.Info("database ready", "path", cfg.Database.Path)

	// MQTT, with the bridge health topic as LWT
	lwt, err := json.Marshal(wiimote.NewLWTMessage(cfg.Bridge.ID))
	if err != nil {
		return fmt.Errorf("building LWT payload: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(wiimote.HealthTopic(cfg.Bridge.ID), lwt))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
			"sample_every", cfg.InfluxDB.SampleEvery,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	bus := &mqttBridgeAdapter{client: mqttClient}

	src, err := buildSource(cfg, bus, log.Component("source"))
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := src.Stop(); stopErr != nil {
			log.Error("error stopping source", "error", stopErr)
		}
	}()

	// Hardware helper (optional), started once the source is subscribed
	var helper *process.Supervisor
	if cfg.Source.Helper.Enabled {
		helper, err = startHelper(ctx, cfg.Source.Helper, log.Component("helper"))
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping hardware helper")
			helper.Stop()
		}()
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	listeners := []wiimote.FrameListener{hub}
	if influxClient != nil {
		listeners = append(listeners, wiimote.NewTelemetryRecorder(influxClient, cfg.Bridge.ID, cfg.InfluxDB.SampleEvery))
	}

	meter := meters.Meter(wiimote.InstrumentationName)
	bridge, err := startBridge(ctx, cfg, bus, src, historyRepo, listeners, meter, log.Component("bridge"))
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Bridge:  bridge,
		History: historyRepo,
		MQTT:    mqttClient,
		Influx:  optionalInflux(influxClient),
		DB:      db,
		Helper:  optionalHelper(helper),
		OTel:    meters,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// migrateDown rolls back the most recent schema migration of the
// configured database, then exits.
func migrateDown(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Process exits next

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("migration rolled back",
		"path", cfg.Database.Path,
		"applied", len(applied),
		"pending", len(pending),
	)
	return nil
}

// sampleSource is what the aggregator polls and the bridge initialises.
type sampleSource interface {
	wiimote.Poller
	wiimote.Initializer
	Slots() wiimote.Slots
	Stop() error
}

// buildSource creates the configured raw sample source.
func buildSource(cfg *config.Config, bus wiimote.MQTTClient, log *logging.Logger) (sampleSource, error) {
	switch cfg.Source.Type {
	case config.SourceSim:
		log.Info("using simulated controllers",
			"connected", cfg.Source.Sim.Connected,
			"nunchuk_slots", cfg.Source.Sim.NunchukSlots,
		)
		return wiimote.NewSimSource(wiimote.SimSourceConfig{
			Connected:    cfg.Source.Sim.Connected,
			NunchukSlots: cfg.Source.Sim.NunchukSlots,
		}), nil
	default:
		src, err := wiimote.NewMQTTSource(wiimote.MQTTSourceConfig{
			Client:     bus,
			QoS:        byte(cfg.MQTT.QoS),
			StaleAfter: cfg.StaleAfter(),
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating MQTT source: %w", err)
		}
		if err := src.Start(); err != nil {
			return nil, fmt.Errorf("starting MQTT source: %w", err)
		}
		log.Info("subscribed to raw samples", "topic", wiimote.RawSampleSubscribeTopic())
		return src, nil
	}
}

// startHelper launches the hardware helper under supervision.
func startHelper(ctx context.Context, cfg config.HelperConfig, log *logging.Logger) (*process.Supervisor, error) {
	sup := process.NewSupervisor(process.Config{
		Name:            "wiimote-helper",
		Binary:          cfg.Binary,
		Args:            cfg.Args,
		RestartDelay:    time.Duration(cfg.RestartDelay) * time.Second,
		MaxRestartDelay: time.Duration(cfg.MaxRestartDelay) * time.Second,
		MaxRestarts:     cfg.MaxRestarts,
	})
	sup.SetLogger(log)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting hardware helper: %w", err)
	}
	return sup, nil
}

// startBridge builds the aggregator over the source and starts the tick loop.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	bus wiimote.MQTTClient,
	src sampleSource,
	recorder wiimote.EventRecorder,
	listeners []wiimote.FrameListener,
	meter metric.Meter,
	log *logging.Logger,
) (*wiimote.Bridge, error) {
	// #nosec G115 -- QoS validated to 0-2 by config.Validate
	sink, err := wiimote.NewMQTTSink(bus, cfg.Bridge.ID, byte(cfg.Bridge.QoS))
	if err != nil {
		return nil, fmt.Errorf("creating MQTT sink: %w", err)
	}

	agg, err := wiimote.NewAggregator(wiimote.AggregatorOptions{
		Slots:  src.Slots(),
		Poller: src,
		Sink:   sink,
		Meter:  meter,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aggregator: %w", err)
	}

	bridge, err := wiimote.NewBridge(wiimote.BridgeOptions{
		Config: wiimote.BridgeConfig{
			ID:                cfg.Bridge.ID,
			Version:           version,
			TickInterval:      cfg.TickInterval(),
			HealthInterval:    cfg.HealthInterval(),
			PublishDescriptor: cfg.Bridge.PublishDescriptor,
		},
		Aggregator:  agg,
		MQTTClient:  bus,
		Initializer: src,
		Recorder:    recorder,
		Listeners:   listeners,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started", "tick_interval", cfg.TickInterval().String())

	return bridge, nil
}

// optionalInflux avoids handing the API a typed-nil provider.
func optionalInflux(c *influxdb.Client) api.InfluxStatsProvider {
	if c == nil {
		return nil
	}
	return c
}

func optionalHelper(s *process.Supervisor) api.HelperStatsProvider {
	if s == nil {
		return nil
	}
	return s
}

// getConfigPath returns the configuration file path.
// Uses WIIMOTE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WIIMOTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when telemetry is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - wiimote bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements wiimote.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements wiimote.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements wiimote.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements wiimote.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
