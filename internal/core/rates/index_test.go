package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-arbitrage-monitor/internal/core/model"
)

func tick(ex model.Exchange, base, quote string, bid, ask float64) model.Tick {
	return model.Tick{
		Exchange:    ex,
		BaseSymbol:  base,
		QuoteSymbol: quote,
		BidPrice:    decimal.NewFromFloat(bid),
		AskPrice:    decimal.NewFromFloat(ask),
	}
}

func TestIndex_UpdateAndLookup(t *testing.T) {
	idx := NewIndex()
	idx.Update(tick(model.ExchangeBinance, "ETH", "USDT", 1999, 2000))
	idx.Update(tick(model.ExchangeBinance, "ETH", "BTC", 0.0332, 0.0333))
	idx.Update(tick(model.ExchangeOKX, "ETH", "USDT", 1998, 2001))

	r, ok := idx.Lookup(model.ExchangeBinance, "ETH")
	require.True(t, ok)
	assert.Equal(t, 2, r.Quotes())
	ask, ok := r.Ask("USDT")
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromInt(2000)))
	bid, ok := r.Bid("BTC")
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.NewFromFloat(0.0332)))

	_, ok = r.Ask("USDC")
	assert.False(t, ok)

	okx, ok := idx.Lookup(model.ExchangeOKX, "ETH")
	require.True(t, ok)
	ask, _ = okx.Ask("USDT")
	assert.True(t, ask.Equal(decimal.NewFromInt(2001)))

	_, ok = idx.Lookup(model.ExchangeBybit, "ETH")
	assert.False(t, ok)
	assert.Equal(t, 2, idx.Len())
}

func TestIndex_LatestValueWins(t *testing.T) {
	idx := NewIndex()
	idx.Update(tick(model.ExchangeBinance, "BTC", "USDT", 59990, 60000))
	before, _ := idx.Lookup(model.ExchangeBinance, "BTC")

	idx.Update(tick(model.ExchangeBinance, "BTC", "USDT", 61000, 61010))
	after, _ := idx.Lookup(model.ExchangeBinance, "BTC")

	old, _ := before.Bid("USDT")
	cur, _ := after.Bid("USDT")
	assert.True(t, old.Equal(decimal.NewFromInt(59990)), "已返回的拷贝不受后续更新影响")
	assert.True(t, cur.Equal(decimal.NewFromInt(61000)))
}
