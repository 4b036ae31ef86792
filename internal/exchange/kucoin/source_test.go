package kucoin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/exchange"
)

func TestToPair(t *testing.T) {
	p, ok := ToPair(&Symbol{Symbol: "ETH3S-USDT", BaseCurrency: "ETH3S", QuoteCurrency: "USDT", EnableTrading: true})
	require.True(t, ok)
	assert.Equal(t, "ETH3SUSDT", p.Unified())
	assert.Equal(t, "ETH3S-USDT", p.ExchangeSymbol)
	assert.True(t, p.Active)

	p, ok = ToPair(&Symbol{Symbol: "OLD-USDT", BaseCurrency: "OLD", QuoteCurrency: "USDT"})
	require.True(t, ok)
	assert.False(t, p.Active)

	_, ok = ToPair(&Symbol{BaseCurrency: "A", QuoteCurrency: "B"})
	assert.False(t, ok)
}

func TestToRaw(t *testing.T) {
	raw := ToRaw(Ticker{Symbol: "BTC-USDT", Buy: "59999", Sell: "60001", Last: ""})
	assert.Equal(t, "BTC-USDT", raw.Symbol)
	assert.True(t, raw.Bid.Equal(decimal.NewFromInt(59999)))
	assert.True(t, raw.Ask.Equal(decimal.NewFromInt(60001)))
	assert.True(t, raw.Last.IsZero())
}

func TestSource_HTTP(t *testing.T) {
	var bookPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/symbols":
			_, _ = w.Write([]byte(`{"code":"200000","data":[
				{"symbol":"BTC-USDT","name":"BTC-USDT","baseCurrency":"BTC","quoteCurrency":"USDT","enableTrading":true}]}`))
		case "/api/v1/market/allTickers":
			_, _ = w.Write([]byte(`{"code":"200000","data":{"time":1700000000000,"ticker":[
				{"symbol":"BTC-USDT","buy":"59999","sell":"60001","last":"60000"}]}}`))
		case "/api/v1/market/orderbook/level2_20", "/api/v1/market/orderbook/level2_100":
			bookPath = r.URL.Path
			if r.URL.Query().Get("symbol") != "BTC-USDT" {
				_, _ = w.Write([]byte(`{"code":"400100","msg":"symbol not exists"}`))
				return
			}
			_, _ = w.Write([]byte(`{"code":"200000","data":{"time":1700000000000,"sequence":"1",
				"asks":[["60001","0.3"]],"bids":[["59999","0.7"],["59998","0"]]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := config.KuCoinConfig{
		PollConfig: config.PollConfig{Enabled: true, TimeoutMs: 2000},
		BaseURL:    srv.URL,
	}
	var src exchange.Source = NewSource(cfg, zap.NewNop())
	ctx := context.Background()
	assert.Equal(t, model.ExchangeKuCoin, src.Exchange())

	pairs, err := src.FetchPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "BTCUSDT", pairs[0].Unified())

	raws, err := src.FetchTickers(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.True(t, raws[0].Bid.Equal(decimal.NewFromInt(59999)))

	asks, bids, err := src.FetchOrderBook(ctx, "BTC-USDT", 50)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/market/orderbook/level2_100", bookPath)
	require.Len(t, asks, 1)
	require.Len(t, bids, 1, "数量为 0 的档位应被丢弃")

	_, _, err = src.FetchOrderBook(ctx, "BTC-USDT", 20)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/market/orderbook/level2_20", bookPath)

	_, _, err = src.FetchOrderBook(ctx, "NOPE-USDT", 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400100", "非 200000 响应码应返回错误")
}
