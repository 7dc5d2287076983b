package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/emojibot/internal/config"
	"github.com/alanyoungcy/emojibot/internal/domain"
)

// fakeExchange serves a fixed TACO book with a 0.50 spread and deep asks.
type fakeExchange struct {
	orders atomic.Int64

	mu     sync.Mutex
	bodies []map[string]any
}

func (f *fakeExchange) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orderbook/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "team-1", r.Header.Get("X-Team-Id"))
		_, _ = io.WriteString(w, `{"symbol":"TACO",
			"bids":[{"price":"10.00","quantity":20,"orderCount":1}],
			"asks":[{"price":"10.50","quantity":20,"orderCount":1}]}`)
	})
	mux.HandleFunc("GET /api/portfolio", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"cash":"1000","positions":{"TACO":0},"equity":"1000"}`)
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()
		f.orders.Add(1)
		_, _ = io.WriteString(w, `{"orderId":"x-1","status":"NEW"}`)
	})
	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rockets", body["teamName"])
		_, _ = io.WriteString(w, `{"teamId":"t-77","apiKey":"k-77"}`)
	})
	return mux
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Exchange.BaseURL = baseURL
	cfg.Exchange.TeamID = "team-1"
	cfg.Exchange.APIKey = "key-1"
	cfg.Exchange.RequestsPerSecond = 0
	cfg.Trading.Symbols = []string{"TACO"}
	cfg.Trading.PollInterval.Duration = 10 * time.Millisecond
	cfg.Trading.OrdersPerSecond = 0
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterMode(t *testing.T) {
	ex := &fakeExchange{}
	srv := httptest.NewServer(ex.handler(t))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Mode = "register"
	cfg.Exchange.TeamName = "rockets"
	cfg.Exchange.TeamID, cfg.Exchange.APIKey = "", ""

	var out bytes.Buffer
	a := New(cfg, discardLogger()).WithOutput(&out)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, "EMOJIBOT_EXCHANGE_TEAM_ID=t-77\nEMOJIBOT_EXCHANGE_API_KEY=k-77\n", out.String())
}

func TestTradeMode_SubmitsSpreadBuy(t *testing.T) {
	ex := &fakeExchange{}
	srv := httptest.NewServer(ex.handler(t))
	defer srv.Close()

	a := New(testConfig(srv.URL), discardLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return ex.orders.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("trade mode did not stop after cancellation")
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	first := ex.bodies[0]
	assert.Equal(t, "TACO", first["symbol"])
	assert.Equal(t, "BUY", first["side"])
	assert.Equal(t, 10.15, first["limitPrice"])
	assert.Equal(t, float64(10), first["quantity"])
}

func TestMonitorMode_NeverSubmits(t *testing.T) {
	ex := &fakeExchange{}
	srv := httptest.NewServer(ex.handler(t))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Mode = "monitor"

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	decisions, err := deps.SignalBus.Subscribe(ctx, domain.ChannelDecisions)
	require.NoError(t, err)

	a := New(cfg, discardLogger())
	done := make(chan error, 1)
	go func() { done <- a.MonitorMode(ctx, deps) }()

	select {
	case payload := <-decisions:
		var d map[string]any
		require.NoError(t, json.Unmarshal(payload, &d))
		assert.Equal(t, "TACO", d["symbol"])
		assert.Equal(t, "buy", d["action"])
		assert.Equal(t, false, d["submitted"])
	case <-time.After(5 * time.Second):
		t.Fatal("no decision published")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, ex.orders.Load())
}
