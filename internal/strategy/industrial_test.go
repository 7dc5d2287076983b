package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

func TestDetectIndustrialOrder_LargeAsk(t *testing.T) {
	p := DefaultParams()
	snap := book(nil, []domain.OrderBookLevel{level("10.50", 250, 1)})

	intent, ok := p.DetectIndustrialOrder(snap)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSideBuy, intent.Side)
	assert.Equal(t, "10.50", intent.Price.StringFixed(2))
	assert.Equal(t, int64(50), intent.Quantity)
	assert.Equal(t, domain.SourceIndustrial, intent.Source)
	assert.Contains(t, intent.Reason, "250")
}

func TestDetectIndustrialOrder_AskWinsOverBid(t *testing.T) {
	p := DefaultParams()
	snap := book(
		[]domain.OrderBookLevel{level("9.00", 500, 1)},
		[]domain.OrderBookLevel{level("10.50", 120, 1)},
	)

	intent, ok := p.DetectIndustrialOrder(snap)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSideBuy, intent.Side)
	assert.Equal(t, "10.50", intent.Price.StringFixed(2))
}

func TestDetectIndustrialOrder_BidSideSell(t *testing.T) {
	p := DefaultParams()
	snap := book(
		[]domain.OrderBookLevel{level("9.80", 5, 1), level("9.90", 30, 3)},
		[]domain.OrderBookLevel{level("10.50", 20, 1)},
	)

	intent, ok := p.DetectIndustrialOrder(snap)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSideSell, intent.Side)
	assert.Equal(t, "9.90", intent.Price.StringFixed(2))
	// Quantity below the cap is kept as is.
	assert.Equal(t, int64(30), intent.Quantity)
}

func TestDetectIndustrialOrder_BestPriceFirst(t *testing.T) {
	p := DefaultParams()
	snap := book(nil, []domain.OrderBookLevel{
		level("11.00", 300, 1),
		level("10.60", 150, 1),
		level("10.40", 5, 1),
	})

	intent, ok := p.DetectIndustrialOrder(snap)
	require.True(t, ok)
	assert.Equal(t, "10.60", intent.Price.StringFixed(2))
}

func TestDetectIndustrialOrder_ThresholdIsExclusive(t *testing.T) {
	p := DefaultParams()
	snap := book(
		[]domain.OrderBookLevel{level("10.00", 100, 1)},
		[]domain.OrderBookLevel{level("10.50", 100, 1)},
	)

	_, ok := p.DetectIndustrialOrder(snap)
	assert.False(t, ok)
}

func TestDetectIndustrialOrder_RoundsPrice(t *testing.T) {
	p := DefaultParams()
	snap := book(nil, []domain.OrderBookLevel{level("10.505", 101, 1)})

	intent, ok := p.DetectIndustrialOrder(snap)
	require.True(t, ok)
	assert.Equal(t, "10.51", intent.Price.StringFixed(2))
}
