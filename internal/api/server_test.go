package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"spot-trader/internal/account"
	"spot-trader/internal/ledger"
	"spot-trader/internal/risk"
	"spot-trader/pkg/cache"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	led := ledger.New(nil)
	if _, err := led.ApplyBuy(context.Background(), "KRW-BTC", 0.01, 50_000_000, 500_000); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	prices := cache.NewPriceCache()
	prices.Set("KRW-BTC", 51_000_000)

	return NewServer(nil, led, account.New(1_000_000), risk.NewInMemory(risk.DefaultConfig()), prices, nil, SystemMeta{
		Mode:    "paper",
		Venue:   "upbit",
		Symbols: []string{"KRW-BTC"},
		Version: "test",
	})
}

func doGet(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, w.Body.String())
	}
	return w.Code, body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := doGet(t, s, "/health")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestStatusReportsTotalValue(t *testing.T) {
	s := newTestServer(t)
	code, body := doGet(t, s, "/api/status")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	// cash 1,000,000 + 0.01 BTC marked at 51,000,000
	if got := body["total_value"].(float64); got != 1_510_000 {
		t.Errorf("total_value = %v, want 1510000", got)
	}
}

func TestPositionsIncludeProfitRate(t *testing.T) {
	s := newTestServer(t)
	code, body := doGet(t, s, "/api/positions")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	positions := body["positions"].([]any)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	row := positions[0].(map[string]any)
	if rate := row["profit_rate"].(float64); rate != 0.02 {
		t.Errorf("profit_rate = %v, want 0.02", rate)
	}
}

func TestRiskConfigEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, body := doGet(t, s, "/api/risk/config")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if got := body["max_positions"].(float64); got != 5 {
		t.Errorf("max_positions = %v, want 5", got)
	}
	if got := body["halt_policy"].(string); got != "allow-sells" {
		t.Errorf("halt_policy = %v", got)
	}
}
