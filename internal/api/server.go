package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/wiimote-bridge/internal/bridges/wiimote"
	"github.com/nerrad567/wiimote-bridge/internal/history"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/database"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/otel"
	"github.com/nerrad567/wiimote-bridge/internal/process"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthBroadcastInterval is how often bridge status is pushed on the
// "health" WebSocket channel.
const healthBroadcastInterval = 5 * time.Second

// BridgeView is the read side of the running bridge. Implemented by
// *wiimote.Bridge.
type BridgeView interface {
	LatestFrame() *wiimote.Frame
	SlotStatuses() [wiimote.SlotCount]wiimote.DeviceSlot
	HealthStatus() (wiimote.HealthStatus, string)
	GetMetrics() wiimote.BridgeMetrics
}

// MQTTStatsProvider reports MQTT client counters. Implemented by *mqtt.Client.
type MQTTStatsProvider interface {
	Stats() mqtt.Stats
}

// InfluxStatsProvider reports telemetry write counters. Implemented by *influxdb.Client.
type InfluxStatsProvider interface {
	Stats() influxdb.Stats
}

// DBStatsProvider reports connection pool and schema statistics.
// Implemented by *database.DB.
type DBStatsProvider interface {
	Stats() sql.DBStats
	SchemaStatus(ctx context.Context) (database.SchemaStatus, error)
}

// InstrumentsProvider collects the OTel instruments. Implemented by
// *otel.Provider.
type InstrumentsProvider interface {
	Snapshot(ctx context.Context) ([]otel.Reading, error)
}

// HelperStatsProvider reports the supervised hardware helper.
// Implemented by *process.Supervisor.
type HelperStatsProvider interface {
	Stats() process.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  BridgeView
	History history.Repository  // optional: slot events return 503 without it
	MQTT    MQTTStatsProvider   // optional
	Influx  InfluxStatsProvider // optional
	DB      DBStatsProvider     // optional
	Helper  HelperStatsProvider // optional
	OTel    InstrumentsProvider // optional
	Hub     *Hub                // optional: created by New if nil
	Version string
}

// Server is the HTTP API server for the bridge.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    BridgeView
	history   history.Repository
	mqtt      MQTTStatsProvider
	influx    InfluxStatsProvider
	db        DBStatsProvider
	helper    HelperStatsProvider
	otel      InstrumentsProvider
	hub       *Hub
	version   string
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		history:   deps.History,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		db:        deps.DB,
		helper:    deps.Helper,
		otel:      deps.OTel,
		hub:       hub,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Hub returns the WebSocket hub so it can be registered as a bridge listener.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.healthLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// healthLoop pushes the bridge status to "health" subscribers.
func (s *Server) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(healthBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.Broadcast(ChannelHealth, s.healthPayload())
		}
	}
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
