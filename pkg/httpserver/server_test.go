package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/feed"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/healthprobe"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

func testMarket() types.Market {
	return types.Market{ConditionID: "cond-1", YesTokenID: "yes-1", NoTokenID: "no-1", Asset: types.AssetBTC, Active: true}
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	healthChecker := healthprobe.New()

	cfg := &Config{Port: "8080", Logger: logger, HealthChecker: healthChecker}
	server := New(cfg)

	if server == nil {
		t.Fatal("New() returned nil server")
	}
	if server.server == nil {
		t.Error("New() server.server is nil")
	}
	if server.logger != cfg.Logger {
		t.Error("New() logger not set correctly")
	}
	if server.healthChecker != cfg.HealthChecker {
		t.Error("New() healthChecker not set correctly")
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg := &Config{Port: "0", Logger: zap.NewNop(), HealthChecker: healthprobe.New()}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health endpoint status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name           string
		setReady       bool
		expectedStatus int
	}{
		{"ready_when_set", true, http.StatusOK},
		{"not_ready_initially", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := healthprobe.New()
			if tt.setReady {
				hc.SetReady(true)
			}

			cfg := &Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc}
			server := New(cfg)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			server.server.Handler.ServeHTTP(w, req)

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Ready endpoint status = %d, want %d", resp.StatusCode, tt.expectedStatus)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := &Config{Port: "0", Logger: zap.NewNop(), HealthChecker: healthprobe.New()}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Metrics endpoint status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if resp.Header.Get("Content-Type") == "" {
		t.Error("Metrics endpoint missing Content-Type header")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read metrics response body: %v", err)
	}
	if len(body) == 0 {
		t.Error("Metrics endpoint returned empty body")
	}
}

func TestOrderbookHandler_MarketNotFound(t *testing.T) {
	cfg := &Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Registry:      feed.NewRegistry(),
		Markets:       []types.Market{testMarket()},
	}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook?condition_id=nonexistent", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("market not found status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error == "" {
		t.Error("error response missing error message")
	}
}

func TestOrderbookHandler_MissingConditionID(t *testing.T) {
	cfg := &Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Registry:      feed.NewRegistry(),
		Markets:       []types.Market{testMarket()},
	}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing condition_id status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestOrderbookHandler_MethodNotAllowed(t *testing.T) {
	cfg := &Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Registry:      feed.NewRegistry(),
		Markets:       []types.Market{testMarket()},
	}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/orderbook?condition_id=cond-1", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("method not allowed status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestOrderbookHandler_ReturnsRecordedQuote(t *testing.T) {
	registry := feed.NewRegistry()
	mid := 0.5
	bid := 0.49
	ask := 0.51
	upd, err := types.NewPriceUpdate("cond-1", "yes-1", &bid, &ask, &mid, &bid, &ask, 1, 1000)
	if err != nil {
		t.Fatalf("build price update: %v", err)
	}
	registry.Record(upd)

	cfg := &Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Registry:      registry,
		Markets:       []types.Market{testMarket()},
	}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook?condition_id=cond-1", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out OrderbookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Yes.Mid == nil || *out.Yes.Mid != mid {
		t.Errorf("yes.mid = %v, want %v", out.Yes.Mid, mid)
	}
	if out.No.Mid != nil {
		t.Error("no.mid should be unset; registry has no record for no-1")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	cfg := &Config{Port: "0", Logger: zap.NewNop(), HealthChecker: healthprobe.New()}
	server := New(cfg)

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Start() }()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after shutdown")
	}
}

func TestServer_Timeouts(t *testing.T) {
	cfg := &Config{Port: "8080", Logger: zap.NewNop(), HealthChecker: healthprobe.New()}
	server := New(cfg)

	if server.server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want %v", server.server.ReadTimeout, 15*time.Second)
	}
	if server.server.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("ReadHeaderTimeout = %v, want %v", server.server.ReadHeaderTimeout, 10*time.Second)
	}
	if server.server.WriteTimeout != 15*time.Second {
		t.Errorf("WriteTimeout = %v, want %v", server.server.WriteTimeout, 15*time.Second)
	}
	if server.server.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want %v", server.server.IdleTimeout, 60*time.Second)
	}
}

func TestServer_RouteNotFound(t *testing.T) {
	cfg := &Config{Port: "0", Logger: zap.NewNop(), HealthChecker: healthprobe.New()}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("non-existent route status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestOrderbookEndpoint_OnlyWithRegistry(t *testing.T) {
	cfg := &Config{Port: "0", Logger: zap.NewNop(), HealthChecker: healthprobe.New()}
	server := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook?condition_id=cond-1", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("route without registry status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
