package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tradesim-core/internal/advisor"
	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/engine"
	"tradesim-core/internal/events"
	"tradesim-core/internal/ledger"
	"tradesim-core/internal/market"
	"tradesim-core/internal/monitor"
	"tradesim-core/internal/rank"
	"tradesim-core/internal/settlement"
	"tradesim-core/pkg/instruments"
)

func newTestAPIServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	store := candles.NewStore()
	catalog := instruments.Builtin()
	wallet := balance.NewWallet(1000)
	book := ledger.NewLedger(wallet, store, bus)
	ranks := rank.NewTracker(bus)
	metrics := monitor.NewSystemMetrics()

	eng := engine.NewImpl(engine.Config{
		Store:   store,
		Feed:    market.NewFeed(store, bus, nil, catalog, 5*time.Second),
		Wallet:  wallet,
		Book:    book,
		Settler: settlement.NewSettler(store, wallet, ranks, bus),
		Ranks:   ranks,
		Advisor: advisor.NewAdvisor(book, wallet, bus),
		Bus:     bus,
		Catalog: catalog,
		Metrics: metrics,
		Meta:    engine.SystemStatus{Version: "test", SyntheticFeed: true},
	})
	if err := eng.OpenInstrument(context.Background(), "EUR/USD"); err != nil {
		t.Fatalf("OpenInstrument: %v", err)
	}

	server := NewServer(eng, bus, metrics, "test-session", "test-secret")
	httpServer := httptest.NewServer(server.Router)
	return httpServer, httpServer.Close
}

func doJSONRequest(t *testing.T, method, url, token string, payload any, out any) int {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func getToken(t *testing.T, baseURL string) string {
	t.Helper()
	var resp struct {
		Token     string `json:"token"`
		SessionID string `json:"session_id"`
	}
	if code := doJSONRequest(t, http.MethodPost, baseURL+"/api/session", "", nil, &resp); code != http.StatusOK {
		t.Fatalf("create session status = %d", code)
	}
	if resp.Token == "" || resp.SessionID != "test-session" {
		t.Fatalf("session response: %+v", resp)
	}
	return resp.Token
}

func TestHealthAndStatus(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()

	var health map[string]string
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/health", "", nil, &health); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}

	var status engine.SystemStatus
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/system/status", "", nil, &status); code != http.StatusOK {
		t.Fatalf("system status = %d", code)
	}
	if status.ActiveInstrument != "EUR/USD" || !status.SyntheticFeed {
		t.Fatalf("status: %+v", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()

	var errResp struct {
		Code string `json:"code"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/positions", "", nil, &errResp); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if errResp.Code != "MISSING_TOKEN" {
		t.Fatalf("code = %q", errResp.Code)
	}

	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/positions", "garbage-token", nil, &errResp); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if errResp.Code != "INVALID_TOKEN" {
		t.Fatalf("code = %q", errResp.Code)
	}
}

func TestOpenPositionFlow(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()
	token := getToken(t, srv.URL)

	var pos ledger.Position
	code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/positions", token, map[string]any{
		"instrument_id": "EUR/USD",
		"direction":     "buy",
		"stake":         100,
	}, &pos)
	if code != http.StatusCreated {
		t.Fatalf("open position status = %d", code)
	}
	if pos.ID == "" || pos.Stake != 100 || pos.SecondsLeft != ledger.ExpirySeconds {
		t.Fatalf("position: %+v", pos)
	}

	var list struct {
		Positions []ledger.Position `json:"positions"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/positions?instrument=EUR/USD", token, nil, &list); code != http.StatusOK {
		t.Fatalf("list positions status = %d", code)
	}
	if len(list.Positions) != 1 || list.Positions[0].ID != pos.ID {
		t.Fatalf("positions: %+v", list.Positions)
	}
	if list.Positions[0].LiveState != ledger.LiveStateUnset {
		t.Fatalf("live state before first tick = %q", list.Positions[0].LiveState)
	}

	var player engine.PlayerStatus
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/player", token, nil, &player); code != http.StatusOK {
		t.Fatalf("player status = %d", code)
	}
	if player.Balance != 900 {
		t.Fatalf("balance = %v, want 900", player.Balance)
	}
}

func TestOpenPositionErrorTaxonomy(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()
	token := getToken(t, srv.URL)

	tests := []struct {
		name     string
		payload  map[string]any
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown instrument",
			payload:  map[string]any{"instrument_id": "NOPE/USD", "direction": "buy", "stake": 10},
			wantCode: http.StatusNotFound,
			wantErr:  "UNKNOWN_INSTRUMENT",
		},
		{
			name:     "insufficient balance",
			payload:  map[string]any{"instrument_id": "EUR/USD", "direction": "buy", "stake": 5000},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "INSUFFICIENT_BALANCE",
		},
		{
			name:     "bad direction",
			payload:  map[string]any{"instrument_id": "EUR/USD", "direction": "sideways", "stake": 10},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_ORDER",
		},
		{
			name:     "no price",
			payload:  map[string]any{"instrument_id": "GBP/USD", "direction": "buy", "stake": 10},
			wantCode: http.StatusConflict,
			wantErr:  "NO_PRICE_AVAILABLE",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var errResp struct {
				Code string `json:"code"`
			}
			code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/positions", token, tc.payload, &errResp)
			if code != tc.wantCode || errResp.Code != tc.wantErr {
				t.Fatalf("status/code = %d/%q, want %d/%q", code, errResp.Code, tc.wantCode, tc.wantErr)
			}
		})
	}
}

func TestCandlesEndpoint(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()

	var resp struct {
		InstrumentID string           `json:"instrument_id"`
		Candles      []candles.Candle `json:"candles"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/market/EUR%2FUSD/candles?limit=10", "", nil, &resp); code != http.StatusOK {
		t.Fatalf("candles status = %d", code)
	}
	if len(resp.Candles) != 10 {
		t.Fatalf("candles length = %d, want 10", len(resp.Candles))
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/market/NOPE/candles", "", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("unknown candles status = %d", code)
	}
}

func TestInstrumentTabRoutes(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()
	token := getToken(t, srv.URL)

	if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/instruments/BTC-USD/open", token, nil, nil); code != http.StatusOK {
		t.Fatalf("open instrument status = %d", code)
	}
	if code := doJSONRequest(t, http.MethodPut, srv.URL+"/api/instruments/BTC-USD/activate", token, nil, nil); code != http.StatusOK {
		t.Fatalf("activate status = %d", code)
	}

	var tabs struct {
		Tabs []engine.Tab `json:"tabs"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/instruments/tabs", token, nil, &tabs); code != http.StatusOK {
		t.Fatalf("tabs status = %d", code)
	}
	if len(tabs.Tabs) != 2 {
		t.Fatalf("tabs: %+v", tabs.Tabs)
	}
	for _, tab := range tabs.Tabs {
		if tab.InstrumentID == "BTC-USD" && !tab.Active {
			t.Fatalf("BTC-USD not active: %+v", tabs.Tabs)
		}
	}

	if code := doJSONRequest(t, http.MethodDelete, srv.URL+"/api/instruments/BTC-USD", token, nil, nil); code != http.StatusOK {
		t.Fatalf("close instrument status = %d", code)
	}
	var errResp struct {
		Code string `json:"code"`
	}
	if code := doJSONRequest(t, http.MethodDelete, srv.URL+"/api/instruments/BTC-USD", token, nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("double close status = %d", code)
	}
}

func TestSignalRoutes(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()
	token := getToken(t, srv.URL)

	var sigs struct {
		Signals []advisor.Signal `json:"signals"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/signals", token, nil, &sigs); code != http.StatusOK {
		t.Fatalf("signals status = %d", code)
	}
	if len(sigs.Signals) != 0 {
		t.Fatalf("signals: %+v", sigs.Signals)
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/signals/missing/follow", token, nil, &errResp); code != http.StatusConflict {
		t.Fatalf("follow missing status = %d", code)
	}
	if errResp.Code != "INVALID_SIGNAL_ACTION" {
		t.Fatalf("code = %q", errResp.Code)
	}
}

func TestSettingsRoutes(t *testing.T) {
	srv, cleanup := newTestAPIServer(t)
	defer cleanup()
	token := getToken(t, srv.URL)

	if code := doJSONRequest(t, http.MethodPut, srv.URL+"/api/settings/pro-mode", token, map[string]any{"enabled": true}, nil); code != http.StatusOK {
		t.Fatalf("pro-mode status = %d", code)
	}
	if code := doJSONRequest(t, http.MethodPut, srv.URL+"/api/settings/tutorial-seen", token, nil, nil); code != http.StatusOK {
		t.Fatalf("tutorial-seen status = %d", code)
	}

	var player engine.PlayerStatus
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/player", token, nil, &player); code != http.StatusOK {
		t.Fatalf("player status = %d", code)
	}
	if !player.ProMode || !player.TutorialSeen {
		t.Fatalf("player: %+v", player)
	}
}
