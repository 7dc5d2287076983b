package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

type fakeExchange struct {
	mu           sync.Mutex
	portfolio    domain.PortfolioSnapshot
	portfolioErr error
	ack          domain.OrderAck
	submitErr    error

	portfolioCalls int
	submitted      []domain.OrderRequest
}

func (f *fakeExchange) FetchPortfolio(context.Context) (domain.PortfolioSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portfolioCalls++
	return f.portfolio, f.portfolioErr
}

func (f *fakeExchange) SubmitOrder(_ context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.ack, f.submitErr
}

type fakeOrderStore struct {
	records []domain.OrderRecord
}

func (f *fakeOrderStore) Create(_ context.Context, rec domain.OrderRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeOrderStore) ListRecent(context.Context, domain.ListOpts) ([]domain.OrderRecord, error) {
	return f.records, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeBus struct {
	published map[string][][]byte
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if f.published == nil {
		f.published = map[string][][]byte{}
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(ex *fakeExchange) *OrderService {
	logger := testLogger()
	return NewOrderService(ex, NewRiskService(logger), logger)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubmitBuy_InvalidParamsNeverCallExchange(t *testing.T) {
	tests := []struct {
		name  string
		price decimal.Decimal
		qty   int64
	}{
		{"zero quantity", price("10"), 0},
		{"negative quantity", price("10"), -3},
		{"zero price", decimal.Zero, 5},
		{"negative price", price("-1"), 5},
		{"sub-cent price", price("10.005"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExchange{portfolio: domain.PortfolioSnapshot{Cash: price("1000")}}
			res, err := newService(ex).SubmitBuy(context.Background(), "ROCKET", tt.price, tt.qty)

			require.ErrorIs(t, err, domain.ErrInvalidOrder)
			assert.False(t, res.Success)
			assert.Zero(t, ex.portfolioCalls)
			assert.Empty(t, ex.submitted)
		})
	}
}

func TestSubmitBuy_InsufficientFunds(t *testing.T) {
	ex := &fakeExchange{portfolio: domain.PortfolioSnapshot{Cash: price("99.99")}}

	res, err := newService(ex).SubmitBuy(context.Background(), "ROCKET", price("10.00"), 10)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.False(t, res.Success)
	assert.Equal(t, 1, ex.portfolioCalls)
	assert.Empty(t, ex.submitted)
}

func TestSubmitBuy_SubCentPriceRejectedBeforeFundsCheck(t *testing.T) {
	ex := &fakeExchange{portfolio: domain.PortfolioSnapshot{Cash: price("10.005")}}

	res, err := newService(ex).SubmitBuy(context.Background(), "ROCKET", price("10.005"), 1)
	require.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.False(t, res.Success)
	assert.Zero(t, ex.portfolioCalls)
	assert.Empty(t, ex.submitted)
}

func TestSubmitBuy_ExactCashAccepted(t *testing.T) {
	ex := &fakeExchange{
		portfolio: domain.PortfolioSnapshot{Cash: price("100.00")},
		ack:       domain.OrderAck{OrderID: "o-1", Status: domain.OrderStatusNew},
	}

	res, err := newService(ex).SubmitBuy(context.Background(), "ROCKET", price("10.00"), 10)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "o-1", res.Ack.OrderID)
	require.Len(t, ex.submitted, 1)

	req := ex.submitted[0]
	assert.Equal(t, domain.OrderSideBuy, req.Side)
	assert.Equal(t, "ROCKET", req.Symbol)
	assert.Equal(t, int64(10), req.Quantity)
	assert.True(t, req.LimitPrice.Equal(price("10.00")))
	assert.NotEmpty(t, req.ClientOrderID)
}

func TestSubmitSell_PositionCheck(t *testing.T) {
	ex := &fakeExchange{portfolio: domain.PortfolioSnapshot{
		Cash:      decimal.Zero,
		Positions: map[string]int64{"ROCKET": 4},
	}}
	svc := newService(ex)

	_, err := svc.SubmitSell(context.Background(), "ROCKET", price("10.35"), 5)
	require.ErrorIs(t, err, domain.ErrInsufficientPosition)
	_, err = svc.SubmitSell(context.Background(), "TACO", price("1"), 1)
	require.ErrorIs(t, err, domain.ErrInsufficientPosition)
	assert.Empty(t, ex.submitted)

	res, err := svc.SubmitSell(context.Background(), "ROCKET", price("10.35"), 4)
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, ex.submitted, 1)
	assert.Equal(t, domain.OrderSideSell, ex.submitted[0].Side)
}

func TestSubmit_PreservesIntent(t *testing.T) {
	ex := &fakeExchange{
		portfolio: domain.PortfolioSnapshot{Cash: price("10000")},
		ack:       domain.OrderAck{OrderID: "o-9", Status: domain.OrderStatusFilled, FilledQuantity: 50},
	}
	intent := domain.TradeIntent{
		ID:       "intent-1",
		Side:     domain.OrderSideBuy,
		Symbol:   "ROCKET",
		Price:    price("10.50"),
		Quantity: 50,
		Source:   domain.SourceIndustrial,
	}

	res, err := newService(ex).Submit(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, intent, res.Intent)
	require.Len(t, ex.submitted, 1)
	assert.Equal(t, "intent-1", ex.submitted[0].ClientOrderID)
	assert.True(t, ex.submitted[0].LimitPrice.Equal(intent.Price))
	assert.Equal(t, intent.Quantity, ex.submitted[0].Quantity)
}

func TestSubmit_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name string
		ex   *fakeExchange
		want error
	}{
		{
			name: "portfolio timeout",
			ex:   &fakeExchange{portfolioErr: domain.ErrTimeout},
			want: domain.ErrTimeout,
		},
		{
			name: "order rejected",
			ex: &fakeExchange{
				portfolio: domain.PortfolioSnapshot{Cash: price("1000")},
				submitErr: domain.ErrOrderRejected,
			},
			want: domain.ErrOrderRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newService(tt.ex).SubmitBuy(context.Background(), "ROCKET", price("10"), 1)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestSubmit_JournalAndEvents(t *testing.T) {
	ex := &fakeExchange{
		portfolio: domain.PortfolioSnapshot{Cash: price("50")},
		ack:       domain.OrderAck{OrderID: "o-1", Status: domain.OrderStatusNew},
	}
	orders := &fakeOrderStore{}
	audit := &fakeAudit{}
	bus := &fakeBus{}
	svc := newService(ex).WithJournal(orders, audit).WithEventBus(bus)

	_, err := svc.SubmitBuy(context.Background(), "ROCKET", price("10"), 2)
	require.NoError(t, err)
	_, err = svc.SubmitBuy(context.Background(), "ROCKET", price("10"), 20)
	require.Error(t, err)

	require.Len(t, orders.records, 2)
	assert.Equal(t, "o-1", orders.records[0].OrderID)
	assert.Equal(t, domain.OrderStatusRejected, orders.records[1].Status)
	assert.Contains(t, orders.records[1].Error, "insufficient funds")
	assert.Equal(t, []string{"order_placed", "order_rejected"}, audit.events)

	msgs := bus.published[domain.ChannelOrders]
	require.Len(t, msgs, 2)
	var evt OrderEvent
	require.NoError(t, json.Unmarshal(msgs[1], &evt))
	assert.Equal(t, "order_rejected", evt.Event)
	assert.Equal(t, "10.00", evt.Price)
	assert.Equal(t, int64(20), evt.Quantity)
}

func TestSubmit_RateLimited(t *testing.T) {
	ex := &fakeExchange{portfolio: domain.PortfolioSnapshot{Cash: price("1000")}}
	limiter := &fakeLimiter{allow: false}
	svc := newService(ex).WithRateLimiter(limiter, "team-7", 5)

	_, err := svc.SubmitBuy(context.Background(), "ROCKET", price("10"), 1)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, []string{"orders:team-7"}, limiter.keys)
	assert.Zero(t, ex.portfolioCalls)
	assert.Empty(t, ex.submitted)
}

func TestRiskService_ValidateIntent(t *testing.T) {
	risk := NewRiskService(testLogger())

	assert.ErrorIs(t, risk.ValidateIntent(domain.TradeIntent{Side: domain.OrderSideBuy, Price: price("1"), Quantity: 1}), domain.ErrInvalidOrder)
	assert.ErrorIs(t, risk.ValidateIntent(domain.TradeIntent{Symbol: "X", Side: "HOLD", Price: price("1"), Quantity: 1}), domain.ErrInvalidOrder)
	assert.ErrorIs(t, risk.ValidateIntent(domain.TradeIntent{Symbol: "X", Side: domain.OrderSideSell, Price: price("0.001"), Quantity: 1}), domain.ErrInvalidOrder)
	assert.NoError(t, risk.ValidateIntent(domain.TradeIntent{Symbol: "X", Side: domain.OrderSideSell, Price: price("1"), Quantity: 1}))
	assert.NoError(t, risk.ValidateIntent(domain.TradeIntent{Symbol: "X", Side: domain.OrderSideSell, Price: price("10.150"), Quantity: 1}))
}
