package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

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

// fakeBridge is a fixed BridgeView.
type fakeBridge struct {
	mu      sync.Mutex
	frame   *wiimote.Frame
	slots   [wiimote.SlotCount]wiimote.DeviceSlot
	status  wiimote.HealthStatus
	reason  string
	metrics wiimote.BridgeMetrics
}

func (f *fakeBridge) LatestFrame() *wiimote.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

func (f *fakeBridge) SlotStatuses() [wiimote.SlotCount]wiimote.DeviceSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots
}

func (f *fakeBridge) HealthStatus() (wiimote.HealthStatus, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.reason
}

func (f *fakeBridge) GetMetrics() wiimote.BridgeMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// fakeHistory records the last filter and returns a canned result.
type fakeHistory struct {
	mu      sync.Mutex
	filter  history.Filter
	result  *history.ListResult
	listErr error
}

func (f *fakeHistory) Record(_ context.Context, _ wiimote.SlotEvent) error {
	return nil
}

func (f *fakeHistory) List(_ context.Context, filter history.Filter) (*history.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &history.ListResult{Events: []history.Event{}, Limit: 50}, nil
}

type fakeMQTTStats struct{ stats mqtt.Stats }

func (f fakeMQTTStats) Stats() mqtt.Stats { return f.stats }

type fakeInfluxStats struct{ stats influxdb.Stats }

func (f fakeInfluxStats) Stats() influxdb.Stats { return f.stats }

type fakeHelperStats struct{ stats process.Stats }

func (f fakeHelperStats) Stats() process.Stats { return f.stats }

type fakeDBStats struct {
	pool   sql.DBStats
	schema database.SchemaStatus
	err    error
}

func (f fakeDBStats) Stats() sql.DBStats { return f.pool }

func (f fakeDBStats) SchemaStatus(context.Context) (database.SchemaStatus, error) {
	return f.schema, f.err
}

type fakeInstruments struct {
	readings []otel.Reading
	err      error
}

func (f fakeInstruments) Snapshot(context.Context) ([]otel.Reading, error) {
	return f.readings, f.err
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
		FrameEvery:     1,
	}
}

// testServer creates a Server over a healthy fake bridge with two connected slots.
func testServer(t *testing.T, mutate func(*Deps)) (*Server, *fakeBridge) {
	t.Helper()

	bridge := &fakeBridge{
		status: wiimote.HealthHealthy,
		metrics: wiimote.BridgeMetrics{
			Running:        true,
			Status:         string(wiimote.HealthHealthy),
			SlotsConnected: 2,
			Ticks:          120,
			FramesSent:     118,
			LastSequence:   118,
			LastTick:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	for i := range bridge.slots {
		bridge.slots[i].Index = i
	}
	bridge.slots[0].Connected = true
	bridge.slots[0].Ready = true
	bridge.slots[1].Connected = true
	bridge.slots[1].ExtensionType = wiimote.ExtensionNunchuk

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:      testWSConfig(),
		Logger:  testLogger(),
		Bridge:  bridge,
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, bridge
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Constructor Tests ─────────────────────────────────────────────

func TestNew_RequiresLoggerAndBridge(t *testing.T) {
	if _, err := New(Deps{Bridge: &fakeBridge{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without bridge should fail")
	}
}

func TestNew_UsesProvidedHub(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	srv, _ := testServer(t, func(d *Deps) { d.Hub = hub })
	if srv.Hub() != hub {
		t.Error("Hub() should return the injected hub")
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status wiimote.HealthStatus
		reason string
	}{
		{"healthy", wiimote.HealthHealthy, ""},
		{"degraded still answers 200", wiimote.HealthDegraded, "no controllers connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bridge := testServer(t, nil)
			bridge.status = tt.status
			bridge.reason = tt.reason

			w := doGet(t, srv, "/api/v1/health")
			if w.Code != http.StatusOK {
				t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var resp healthResponse
			decodeBody(t, w, &resp)
			if resp.Status != string(tt.status) || resp.Reason != tt.reason {
				t.Errorf("status/reason = %q/%q, want %q/%q", resp.Status, resp.Reason, tt.status, tt.reason)
			}
			if resp.Version != "test" {
				t.Errorf("version = %q, want test", resp.Version)
			}
			if resp.SlotsConnected != 2 {
				t.Errorf("slots_connected = %d, want 2", resp.SlotsConnected)
			}
		})
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := doGet(t, srv, "/api/v1/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestRequestID_RejectsOversizedClientID(t *testing.T) {
	srv, _ := testServer(t, nil)

	long := strings.Repeat("x", maxRequestIDLen+1)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", long)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	got := w.Header().Get("X-Request-ID")
	if got == "" || got == long {
		t.Errorf("X-Request-ID = %q, want a generated ID", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("ACAM = %q, want default methods", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty for disallowed origin", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t, nil)

	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp Error
	decodeBody(t, w, &resp)
	if resp.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeInternal)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t, nil)

	if w := doGet(t, srv, "/api/v1/nonexistent"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Frame and Slot Tests ──────────────────────────────────────────

func TestLatestFrame_NoneYet(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := doGet(t, srv, "/api/v1/frame")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp Error
	decodeBody(t, w, &resp)
	if resp.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeNotFound)
	}
}

func TestLatestFrame(t *testing.T) {
	srv, bridge := testServer(t, nil)

	frame := &wiimote.Frame{Sequence: 42, Timestamp: time.Now().UTC()}
	frame.Buttons[wiimote.ButtonIndex(1, wiimote.OffsetA)] = 1
	frame.Analog[wiimote.AnalogIndex(0, wiimote.OffsetIRZ)] = 1
	bridge.frame = frame

	w := doGet(t, srv, "/api/v1/frame")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got struct {
		Sequence uint64    `json:"sequence"`
		Buttons  []int     `json:"buttons"`
		Analog   []float64 `json:"analog"`
	}
	decodeBody(t, w, &got)
	if got.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", got.Sequence)
	}
	if len(got.Buttons) != wiimote.ButtonChannelCount || len(got.Analog) != wiimote.AnalogChannelCount {
		t.Fatalf("channel sizes = %d/%d", len(got.Buttons), len(got.Analog))
	}
	if got.Buttons[wiimote.ButtonIndex(1, wiimote.OffsetA)] != 1 {
		t.Error("slot 1 A button should be pressed")
	}
	if got.Analog[wiimote.AnalogIndex(0, wiimote.OffsetIRZ)] != 1 {
		t.Error("slot 0 ir/z should be 1")
	}
}

func TestListSlots(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := doGet(t, srv, "/api/v1/slots/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Slots []struct {
			Index         int    `json:"index"`
			Connected     bool   `json:"connected"`
			Ready         bool   `json:"ready"`
			ExtensionType string `json:"extension_type"`
		} `json:"slots"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Slots) != wiimote.SlotCount {
		t.Fatalf("slots = %d, want %d", len(resp.Slots), wiimote.SlotCount)
	}
	if !resp.Slots[0].Connected || !resp.Slots[0].Ready {
		t.Error("slot 0 should be connected and ready")
	}
	if resp.Slots[1].ExtensionType != "nunchuk" {
		t.Errorf("slot 1 extension = %q, want nunchuk", resp.Slots[1].ExtensionType)
	}
	if resp.Slots[3].Connected || resp.Slots[3].Index != 3 {
		t.Errorf("slot 3 = %+v, want idle index 3", resp.Slots[3])
	}
}

func TestDescriptor(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := doGet(t, srv, "/api/v1/descriptor")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var d wiimote.Descriptor
	decodeBody(t, w, &d)
	if d.Interfaces.Button.Count != wiimote.ButtonChannelCount {
		t.Errorf("button count = %d, want %d", d.Interfaces.Button.Count, wiimote.ButtonChannelCount)
	}
	if d.Interfaces.Analog.Count != wiimote.AnalogChannelCount {
		t.Errorf("analog count = %d, want %d", d.Interfaces.Analog.Count, wiimote.AnalogChannelCount)
	}
	if d.Interfaces.Tracker.Count != wiimote.TrackerChannelCount {
		t.Errorf("tracker count = %d, want %d", d.Interfaces.Tracker.Count, wiimote.TrackerChannelCount)
	}
}

// ─── Slot History Tests ────────────────────────────────────────────

func TestSlotEvents_NoHistory(t *testing.T) {
	srv, _ := testServer(t, nil)

	if w := doGet(t, srv, "/api/v1/slots/0/events"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestSlotEvents_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"non-numeric slot", "/api/v1/slots/abc/events"},
		{"slot too high", "/api/v1/slots/4/events"},
		{"negative slot", "/api/v1/slots/-1/events"},
		{"unknown kind", "/api/v1/slots/0/events?kind=exploded"},
		{"bad limit", "/api/v1/slots/0/events?limit=ten"},
		{"negative offset", "/api/v1/slots/0/events?offset=-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, func(d *Deps) { d.History = &fakeHistory{} })

			w := doGet(t, srv, tt.path)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp Error
			decodeBody(t, w, &resp)
			if resp.Code != ErrCodeBadRequest {
				t.Errorf("code = %q, want %q", resp.Code, ErrCodeBadRequest)
			}
		})
	}
}

func TestSlotEvents_PassesFilter(t *testing.T) {
	hist := &fakeHistory{
		result: &history.ListResult{
			Events: []history.Event{{
				ID:        "ev-1",
				BridgeID:  "wiimote-01",
				Slot:      2,
				Kind:      wiimote.SlotDisconnected,
				Extension: "none",
			}},
			Total: 1,
			Limit: 10,
		},
	}
	srv, _ := testServer(t, func(d *Deps) { d.History = hist })

	w := doGet(t, srv, "/api/v1/slots/2/events?kind=disconnected&limit=10&offset=3")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	hist.mu.Lock()
	filter := hist.filter
	hist.mu.Unlock()
	if filter.Slot == nil || *filter.Slot != 2 {
		t.Errorf("filter slot = %v, want 2", filter.Slot)
	}
	if filter.Kind != wiimote.SlotDisconnected || filter.Limit != 10 || filter.Offset != 3 {
		t.Errorf("filter = %+v", filter)
	}

	var resp history.ListResult
	decodeBody(t, w, &resp)
	if resp.Total != 1 || len(resp.Events) != 1 || resp.Events[0].ID != "ev-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSlotEvents_RepositoryError(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.History = &fakeHistory{listErr: errors.New("disk I/O error")}
	})

	if w := doGet(t, srv, "/api/v1/slots/1/events"); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestParseNonNegative(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"25", 25, false},
		{"-1", 0, true},
		{"1.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseNonNegative(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseNonNegative(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseNonNegative(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ─── Metrics Tests ─────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.MQTT = fakeMQTTStats{mqtt.Stats{Connected: true, Published: 900, Subscriptions: 1}}
		d.Influx = fakeInfluxStats{influxdb.Stats{Connected: true, Points: 300}}
		d.Helper = fakeHelperStats{process.Stats{Name: "wiimote-helper", Status: process.StatusRunning, Restarts: 1}}
	})

	w := doGet(t, srv, "/api/v1/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var m SystemMetrics
	decodeBody(t, w, &m)
	if m.Version != "test" {
		t.Errorf("version = %q, want test", m.Version)
	}
	if !m.Bridge.Running || m.Bridge.Ticks != 120 || m.Bridge.SlotsConnected != 2 {
		t.Errorf("bridge metrics = %+v", m.Bridge)
	}
	if m.Bridge.LastTick != "2026-03-01T12:00:00Z" {
		t.Errorf("last_tick = %q", m.Bridge.LastTick)
	}
	if m.MQTT == nil || m.MQTT.Published != 900 {
		t.Errorf("mqtt metrics = %+v", m.MQTT)
	}
	if m.InfluxDB == nil || m.InfluxDB.Points != 300 {
		t.Errorf("influxdb metrics = %+v", m.InfluxDB)
	}
	if m.Helper == nil || m.Helper.Status != process.StatusRunning || m.Helper.Restarts != 1 {
		t.Errorf("helper metrics = %+v", m.Helper)
	}
	if m.Database != nil {
		t.Error("database metrics should be omitted without a database")
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime goroutines should be reported")
	}
	if m.Instruments != nil {
		t.Error("instruments should be omitted without a provider")
	}
}

func TestMetrics_DatabaseAndInstruments(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.DB = fakeDBStats{
			pool:   sql.DBStats{OpenConnections: 1, Idle: 1},
			schema: database.SchemaStatus{Applied: 1, Pending: 0, Latest: "20260301_120000"},
		}
		d.OTel = fakeInstruments{readings: []otel.Reading{
			{Name: "wiimote.ticks", Attributes: map[string]string{"outcome": "emitted"}, Value: 118},
			{Name: "wiimote.ticks", Attributes: map[string]string{"outcome": "idle"}, Value: 2},
		}}
	})

	var m SystemMetrics
	decodeBody(t, doGet(t, srv, "/api/v1/metrics"), &m)

	if m.Database == nil {
		t.Fatal("database metrics missing")
	}
	if m.Database.OpenConnections != 1 || m.Database.MigrationsApplied != 1 ||
		m.Database.MigrationsPending != 0 || m.Database.SchemaVersion != "20260301_120000" {
		t.Errorf("database metrics = %+v", m.Database)
	}
	if len(m.Instruments) != 2 || m.Instruments[0].Attributes["outcome"] != "emitted" || m.Instruments[0].Value != 118 {
		t.Errorf("instruments = %+v", m.Instruments)
	}
}

func TestMetrics_SourceErrorsDegradeGracefully(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.DB = fakeDBStats{pool: sql.DBStats{OpenConnections: 1}, err: errors.New("database is locked")}
		d.OTel = fakeInstruments{err: errors.New("reader is shutdown")}
	})

	w := doGet(t, srv, "/api/v1/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var m SystemMetrics
	decodeBody(t, w, &m)
	if m.Database == nil || m.Database.OpenConnections != 1 || m.Database.SchemaVersion != "" {
		t.Errorf("database metrics = %+v", m.Database)
	}
	if m.Instruments != nil {
		t.Errorf("instruments = %+v, want omitted", m.Instruments)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

func receive(t *testing.T, client *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return WSMessage{}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelSlotEvent)
	hub.Register(client)

	hub.OnSlotEvent(wiimote.SlotEvent{Slot: 1, Kind: wiimote.SlotConnected, Extension: "none"})

	msg := receive(t, client)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelSlotEvent {
		t.Errorf("message = %+v, want slot.event", msg)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelHealth)
	hub.Register(client)

	hub.OnFrame(&wiimote.Frame{Sequence: 1})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_FrameSampling(t *testing.T) {
	cfg := testWSConfig()
	cfg.FrameEvery = 3
	hub := NewHub(cfg, testLogger())
	client := newTestClient(hub, ChannelFrame)
	hub.Register(client)

	for seq := uint64(1); seq <= 7; seq++ {
		hub.OnFrame(&wiimote.Frame{Sequence: seq})
	}

	// Frames 1, 4 and 7 are forwarded.
	if got := len(client.send); got != 3 {
		t.Errorf("forwarded frames = %d, want 3", got)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newTestClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// A second unregister must not panic on the closed channel.
	hub.Unregister(client)
}

func TestHub_RunClosesClientsOnCancel(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelFrame)
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed")
	}

	// Broadcasting after shutdown must not panic.
	hub.Broadcast(ChannelFrame, map[string]int{"sequence": 1})
}

func TestWSClient_HandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong},
		{"subscribe", `{"type":"subscribe","id":"s1","payload":{"channels":["frame","health"]}}`, WSTypeResponse},
		{"unknown channel", `{"type":"subscribe","payload":{"channels":["device.state"]}}`, WSTypeError},
		{"empty channels", `{"type":"subscribe","payload":{"channels":[]}}`, WSTypeError},
		{"unknown type", `{"type":"command"}`, WSTypeError},
		{"invalid json", `{not json`, WSTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(NewHub(testWSConfig(), testLogger()))
			client.handleMessage([]byte(tt.message))

			if msg := receive(t, client); msg.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func TestWSClient_SubscribeThenUnsubscribe(t *testing.T) {
	client := newTestClient(NewHub(testWSConfig(), testLogger()))

	client.handleMessage([]byte(`{"type":"subscribe","payload":{"channels":["frame","slot.event"]}}`))
	receive(t, client)
	if !client.isSubscribed(ChannelFrame) || !client.isSubscribed(ChannelSlotEvent) {
		t.Fatal("expected frame and slot.event subscriptions")
	}

	client.handleMessage([]byte(`{"type":"unsubscribe","payload":{"channels":["frame"]}}`))
	receive(t, client)
	if client.isSubscribed(ChannelFrame) {
		t.Error("frame should be unsubscribed")
	}
	if !client.isSubscribed(ChannelSlotEvent) {
		t.Error("slot.event should remain subscribed")
	}
}

// ─── WebSocket Integration Tests ───────────────────────────────────

func TestWebSocket_SubscribeAndReceiveFrame(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.Body != nil {
		resp.Body.Close()
	}

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelFrame}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v", ack)
	}

	srv.Hub().OnFrame(&wiimote.Frame{Sequence: 7})

	var event struct {
		Type      string `json:"type"`
		EventType string `json:"event_type"`
		Payload   struct {
			Sequence uint64 `json:"sequence"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelFrame {
		t.Errorf("event = %+v, want frame event", event)
	}
	if event.Payload.Sequence != 7 {
		t.Errorf("sequence = %d, want 7", event.Payload.Sequence)
	}
}

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := testServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck before Start should fail")
	}
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck after Start: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
