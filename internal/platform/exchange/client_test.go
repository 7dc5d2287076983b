package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

var testCreds = domain.Credentials{TeamID: "team-7", APIKey: "secret"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, testCreds, 2*time.Second)
}

func TestFetchOrderBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/orderbook/ROCKET", r.URL.Path)
		assert.Equal(t, "team-7", r.Header.Get(headerTeamID))
		assert.Equal(t, "secret", r.Header.Get(headerAPIKey))
		_, _ = io.WriteString(w, `{
			"symbol": "ROCKET",
			"bids": [{"price": 10.00, "quantity": 20, "orderCount": 1}],
			"asks": [{"price": "10.50", "quantity": 250, "orderCount": 2}, {"price": 11, "quantity": -1, "orderCount": 1}],
			"timestamp": "2026-01-02T03:04:05Z"
		}`)
	})

	snap, err := c.FetchOrderBook(context.Background(), "ROCKET")
	require.NoError(t, err)
	assert.Equal(t, "ROCKET", snap.Symbol)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, int64(250), snap.Asks[0].Quantity)
	assert.Equal(t, int64(2), snap.Asks[0].OrderCount)
	assert.Equal(t, 2026, snap.Timestamp.Year())
}

func TestFetchPortfolio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/portfolio", r.URL.Path)
		_, _ = io.WriteString(w, `{"cash": 1000.25, "positions": {"ROCKET": 12}, "equity": "1200"}`)
	})

	p, err := c.FetchPortfolio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.25", p.Cash.String())
	assert.Equal(t, int64(12), p.Position("ROCKET"))
	assert.Equal(t, int64(0), p.Position("TACO"))
	assert.False(t, p.FetchedAt.IsZero())
}

func TestSubmitOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cid-1", body["clientOrderId"])
		assert.Equal(t, "ROCKET", body["symbol"])
		assert.Equal(t, "BUY", body["side"])
		assert.Equal(t, float64(10), body["quantity"])
		assert.Equal(t, 10.15, body["limitPrice"])
		assert.Equal(t, "GTC", body["timeInForce"])

		_, _ = io.WriteString(w, `{"orderId": "o-1", "status": "PARTIALLY_FILLED", "filledQuantity": 4, "avgFillPrice": 10.14}`)
	})

	ack, err := c.SubmitOrder(context.Background(), domain.OrderRequest{
		ClientOrderID: "cid-1",
		Symbol:        "ROCKET",
		Side:          domain.OrderSideBuy,
		Quantity:      10,
		LimitPrice:    decimal.RequireFromString("10.15"),
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", ack.OrderID)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, ack.Status)
	assert.Equal(t, int64(4), ack.FilledQuantity)
}

func TestSubmitOrder_RejectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"orderId": "o-2", "status": "REJECTED", "error": "market closed"}`)
	})

	ack, err := c.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "ROCKET", Side: domain.OrderSideSell, Quantity: 1, LimitPrice: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.Contains(t, err.Error(), "market closed")
	assert.Equal(t, "o-2", ack.OrderID)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		order  bool
		want   error
		kind   domain.FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, false, domain.ErrUnauthorized, domain.FailureClient},
		{"forbidden", http.StatusForbidden, false, domain.ErrUnauthorized, domain.FailureClient},
		{"not found", http.StatusNotFound, false, domain.ErrNotFound, domain.FailureClient},
		{"rate limited", http.StatusTooManyRequests, false, domain.ErrRateLimited, domain.FailureClient},
		{"bad request", http.StatusBadRequest, false, domain.ErrBadRequest, domain.FailureClient},
		{"order rejected", http.StatusUnprocessableEntity, true, domain.ErrOrderRejected, domain.FailureClient},
		{"server error", http.StatusBadGateway, false, domain.ErrServer, domain.FailureServer},
		{"server error on order", http.StatusInternalServerError, true, domain.ErrServer, domain.FailureServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error": "nope"}`)
			})

			var err error
			if tt.order {
				_, err = c.SubmitOrder(context.Background(), domain.OrderRequest{
					Symbol: "ROCKET", Side: domain.OrderSideBuy, Quantity: 1, LimitPrice: decimal.NewFromInt(1),
				})
			} else {
				_, err = c.FetchOrderBook(context.Background(), "ROCKET")
			}
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
			assert.Equal(t, tt.kind, domain.Classify(err))
		})
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, testCreds, 50*time.Millisecond)
	_, err := c.FetchPortfolio(context.Background())
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.FailureTimeout, domain.Classify(err))
}

func TestMissingCredentials_NoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, domain.Credentials{TeamID: "team-7"}, time.Second)

	_, err := c.FetchPortfolio(context.Background())
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = c.SubmitOrder(context.Background(), domain.OrderRequest{Symbol: "ROCKET", Side: domain.OrderSideBuy, Quantity: 1})
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.True(t, domain.IsPrecondition(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestRegister(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		assert.Empty(t, r.Header.Get(headerAPIKey))

		var body APIRegisterRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rocketeers", body.TeamName)
		_, _ = io.WriteString(w, `{"teamId": "t-1", "apiKey": "k-1"}`)
	})
	c.creds = domain.Credentials{}

	creds, err := c.Register(context.Background(), "rocketeers")
	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{TeamID: "t-1", APIKey: "k-1"}, creds)

	_, err = c.Register(context.Background(), "  ")
	require.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"cash": 1}`)
	})
	c.WithRateLimit(20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchPortfolio(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}
