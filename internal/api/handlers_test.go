package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trend-engine/config"
	"trend-engine/internal/engine"
	"trend-engine/internal/market"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	eng, err := engine.New(config.DefaultTrendConfig())
	if err != nil {
		t.Fatalf("engine.New returned error: %v", err)
	}
	cfg := config.ServerConfig{Enabled: true, Host: "127.0.0.1", Port: 8090}
	return NewServer(cfg, eng, market.NewMockProvider(), nil, zerolog.Nop())
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

// TestHealthEndpoint verifies the liveness probe.
func TestHealthEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
}

// TestAnalyzeEndpoint verifies a full analysis round trip against the mock
// provider.
func TestAnalyzeEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodPost, "/api/v1/analyze", map[string]interface{}{
		"symbol":    "BTCUSDT",
		"timeframe": "15m",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Success bool           `json:"success"`
		Data    *engine.Result `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !body.Success || body.Data == nil {
		t.Fatal("Expected a successful analysis payload")
	}
	if body.Data.Symbol != "BTCUSDT" {
		t.Errorf("Expected symbol BTCUSDT, got %s", body.Data.Symbol)
	}
	if body.Data.ID == "" {
		t.Error("Expected a non-empty result ID")
	}
}

// TestAnalyzeEndpointValidation covers the request-shape rejections.
func TestAnalyzeEndpointValidation(t *testing.T) {
	srv := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/analyze", map[string]interface{}{
		"timeframe": "15m",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing symbol, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/v1/analyze", map[string]interface{}{
		"symbol":    "BTCUSDT",
		"timeframe": "7m",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown timeframe, got %d", w.Code)
	}
}

// TestDecisionEndpoint verifies the should-trade decision surface.
func TestDecisionEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/analyze/BTCUSDT/decision?direction=bullish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Symbol     string  `json:"symbol"`
			Accept     bool    `json:"accept"`
			Confidence float64 `json:"confidence"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Data.Symbol != "BTCUSDT" {
		t.Errorf("Expected symbol BTCUSDT, got %s", body.Data.Symbol)
	}
	if body.Data.Confidence < 0 || body.Data.Confidence > 1 {
		t.Errorf("Expected confidence in [0,1], got %f", body.Data.Confidence)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/analyze/BTCUSDT/decision?direction=sideways", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown direction, got %d", w.Code)
	}
}

// TestTrendlinesEndpoint verifies registry inspection for a fresh symbol.
func TestTrendlinesEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/api/v1/trendlines/BTCUSDT", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Data.Count != 0 {
		t.Errorf("Expected no lines before any analysis, got %d", body.Data.Count)
	}
}

// TestScannerEndpointsDisabled verifies 404s when no scanner is wired.
func TestScannerEndpointsDisabled(t *testing.T) {
	srv := testServer(t)
	if w := doRequest(t, srv, http.MethodGet, "/api/v1/scanner/status", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for status without a scanner, got %d", w.Code)
	}
	if w := doRequest(t, srv, http.MethodPost, "/api/v1/scanner/scan", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for scan without a scanner, got %d", w.Code)
	}
}

// TestRateLimiterWindow verifies the per-key sliding window.
func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatal("Expected the first two requests allowed")
	}
	if rl.Allow("k") {
		t.Error("Expected the third request within the window rejected")
	}
	if !rl.Allow("other") {
		t.Error("Expected an independent key to have its own budget")
	}
}
