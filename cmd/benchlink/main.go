// BenchLink Core - lab instrument server
//
// This is the main entry point for BenchLink Core. It loads the bench
// configuration, builds every declared instrument, and exposes the rotary
// valves over HTTP, WebSocket and MQTT.
//
// Startup order matters: every event sink is subscribed to the bus before
// devices connect, so the initial position sync reaches history, metrics,
// MQTT and WebSocket clients alike.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/benchlink-core/internal/api"
	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/drivers"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/database"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/benchlink-core/internal/telemetry"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
	"github.com/nerrad567/benchlink-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// historyPruneInterval is how often old position history is deleted when
// database.history_retention is set.
const historyPruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting BenchLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"devices", len(cfg.Devices),
	)

	// Position history store
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: time.Duration(cfg.Database.BusyTimeout) * time.Second,
	})
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
	log.Info("database ready", "path", cfg.Database.Path)

	history := device.NewSQLiteHistoryRepository(db.DB)
	if cfg.Database.HistoryRetention > 0 {
		// Runs before the database close deferred above.
		defer startHistoryPruner(ctx, history, cfg.Database.HistoryRetention, log)()
	}

	// Valve model catalog
	catalog, err := models.NewCatalog()
	if err != nil {
		return fmt.Errorf("loading built-in valve models: %w", err)
	}
	catalog.SetLogger(log.Component("models"))
	loaded, err := catalog.LoadPaths(cfg.Valves.ModelPaths)
	if err != nil {
		return fmt.Errorf("loading valve models: %w", err)
	}
	log.Info("valve models loaded", "from_files", loaded, "total", len(catalog.List()))

	// Event bus and its sinks
	bus := device.NewBus()
	bus.SetLogger(log.Component("events"))
	bus.Subscribe("history", device.HistorySink(history, log.Component("history")))

	var gatherer prometheus.Gatherer
	if cfg.Telemetry.Prometheus {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector, promErr := telemetry.NewPrometheusCollector(promReg)
		if promErr != nil {
			return fmt.Errorf("registering metrics: %w", promErr)
		}
		bus.Subscribe("prometheus", telemetry.Sink(collector))
		gatherer = promReg
	}

	var mqttClient *mqtt.Client
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge = mqtt.NewBridge(mqttClient, mqttClient.QoS())
		bridge.SetLogger(log.Component("mqtt-bridge"))
		bus.Subscribe("mqtt", bridge)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
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
		bus.Subscribe("influxdb", influxClient.Sink())
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Instruments
	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))
	defer func() {
		log.Info("closing devices")
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error closing devices", "error", closeErr)
		}
	}()
	if regErr := drivers.RegisterAll(registry, cfg.Devices, drivers.Deps{
		Catalog:            catalog,
		Publisher:          bus,
		Logger:             log.Component("drivers"),
		DefaultMoveTimeout: cfg.Valves.DefaultMoveTimeout,
	}); regErr != nil {
		return fmt.Errorf("building devices: %w", regErr)
	}

	// API server; its hub joins the bus before devices connect.
	var brokerStatus api.ConnectionChecker
	if mqttClient != nil {
		brokerStatus = mqttClient
	}
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Telemetry: cfg.Telemetry,
		Logger:    log.Component("api"),
		Registry:  registry,
		Catalog:   catalog,
		History:   history,
		MQTT:      brokerStatus,
		Gatherer:  gatherer,
		DB:        db.DB,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	bus.Subscribe("websocket", server.Hub())

	// A device that cannot be reached stays registered with a stale cache;
	// its next request retries the transport.
	if connErr := registry.ConnectAll(ctx); connErr != nil {
		log.Warn("some devices failed to connect", "error", connErr)
	}

	if bridge != nil {
		if subErr := bridge.ServeCommands(mqttClient, registry); subErr != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", subErr)
		}
		// Moves already started finish and are acked before devices close.
		defer bridge.Wait()
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"devices", registry.Len(),
	)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadLogLevel(ctx, hup, configPath, log)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred cleanup runs in reverse order: API, devices, InfluxDB,
	// MQTT, database.
	return nil
}

// healthCheck verifies every enabled infrastructure dependency.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// historyPruner is the slice of the history repository the prune loop needs.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// startHistoryPruner runs pruneHistoryLoop in the background. The returned
// stop function cancels it and returns only once any prune in progress has
// finished, so the caller can close the database afterwards.
func startHistoryPruner(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pruneHistoryLoop(ctx, repo, retention, log)
	}()
	return func() {
		cancel()
		<-done
	}
}

// pruneHistoryLoop deletes expired position history once at startup and
// then every historyPruneInterval until ctx is cancelled.
func pruneHistoryLoop(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("history prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("history pruned", "deleted", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// reloadLogLevel re-reads logging.level from the config file on every
// signal. Nothing else is reloaded; a bad file keeps the current level.
func reloadLogLevel(ctx context.Context, signals <-chan os.Signal, path string, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Warn("config reload failed, log level unchanged", "path", path, "error", err)
			continue
		}
		if !log.SetLevel(cfg.Logging.Level) {
			log.Warn("unknown log level, keeping current", "level", cfg.Logging.Level)
			continue
		}
		log.Info("log level reloaded", "level", log.Level().String())
	}
}
