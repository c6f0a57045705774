package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/wiimote-bridge/internal/infrastructure/otel"
	"github.com/nerrad567/wiimote-bridge/internal/process"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Bridge        BridgeMetrics    `json:"bridge"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	InfluxDB      *InfluxMetrics   `json:"influxdb,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Helper        *process.Stats   `json:"helper,omitempty"`
	Instruments   []otel.Reading   `json:"instruments,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BridgeMetrics contains tick loop statistics.
type BridgeMetrics struct {
	Running        bool   `json:"running"`
	Status         string `json:"status"`
	SlotsConnected int    `json:"slots_connected"`
	Ticks          uint64 `json:"ticks"`
	FramesSent     uint64 `json:"frames_sent"`
	TrackerSends   uint64 `json:"tracker_sends"`
	Errors         uint64 `json:"errors"`
	LastSequence   uint64 `json:"last_sequence"`
	LastTick       string `json:"last_tick,omitempty"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected     bool   `json:"connected"`
	Published     uint64 `json:"published"`
	Received      uint64 `json:"received"`
	PublishErrors uint64 `json:"publish_errors"`
	Subscriptions int    `json:"subscriptions"`
}

// InfluxMetrics contains telemetry write statistics.
type InfluxMetrics struct {
	Connected   bool   `json:"connected"`
	Points      uint64 `json:"points"`
	WriteErrors uint64 `json:"write_errors"`
}

// DatabaseMetrics contains connection pool and schema statistics.
type DatabaseMetrics struct {
	OpenConnections   int    `json:"open_connections"`
	InUse             int    `json:"in_use"`
	Idle              int    `json:"idle"`
	WaitCount         int64  `json:"wait_count"`
	MigrationsApplied int    `json:"migrations_applied"`
	MigrationsPending int    `json:"migrations_pending"`
	SchemaVersion     string `json:"schema_version,omitempty"`
}

// handleMetrics returns runtime, bridge and infrastructure metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	bm := s.bridge.GetMetrics()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Bridge: BridgeMetrics{
			Running:        bm.Running,
			Status:         bm.Status,
			SlotsConnected: bm.SlotsConnected,
			Ticks:          bm.Ticks,
			FramesSent:     bm.FramesSent,
			TrackerSends:   bm.TrackerSends,
			Errors:         bm.Errors,
			LastSequence:   bm.LastSequence,
		},
	}
	if !bm.LastTick.IsZero() {
		metrics.Bridge.LastTick = bm.LastTick.UTC().Format(time.RFC3339Nano)
	}

	if s.mqtt != nil {
		st := s.mqtt.Stats()
		metrics.MQTT = &MQTTMetrics{
			Connected:     st.Connected,
			Published:     st.Published,
			Received:      st.Received,
			PublishErrors: st.PublishErrors,
			Subscriptions: st.Subscriptions,
		}
	}

	if s.influx != nil {
		st := s.influx.Stats()
		metrics.InfluxDB = &InfluxMetrics{
			Connected:   st.Connected,
			Points:      st.Points,
			WriteErrors: st.WriteErrors,
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if schema, err := s.db.SchemaStatus(r.Context()); err != nil {
			s.logger.Warn("schema status unavailable", "error", err)
		} else {
			metrics.Database.MigrationsApplied = schema.Applied
			metrics.Database.MigrationsPending = schema.Pending
			metrics.Database.SchemaVersion = schema.Latest
		}
	}

	if s.helper != nil {
		st := s.helper.Stats()
		metrics.Helper = &st
	}

	if s.otel != nil {
		readings, err := s.otel.Snapshot(r.Context())
		if err != nil {
			s.logger.Warn("instrument snapshot failed", "error", err)
		} else {
			metrics.Instruments = readings
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
