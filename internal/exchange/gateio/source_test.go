package gateio

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
	p, ok := ToPair(&CurrencyPair{ID: "BTC3L_USDT", Base: "BTC3L", Quote: "USDT", TradeStatus: "tradable"})
	require.True(t, ok)
	assert.Equal(t, "BTC3LUSDT", p.Unified())
	assert.Equal(t, "BTC3L_USDT", p.ExchangeSymbol)
	assert.True(t, p.Active)

	p, ok = ToPair(&CurrencyPair{ID: "OLD_USDT", Base: "OLD", Quote: "USDT", TradeStatus: "untradable"})
	require.True(t, ok)
	assert.False(t, p.Active)

	_, ok = ToPair(&CurrencyPair{ID: "X_USDT", Quote: "USDT"})
	assert.False(t, ok)
}

func TestToRaw(t *testing.T) {
	raw := ToRaw(Ticker{CurrencyPair: "ETH_USDT", HighestBid: "1999.9", LowestAsk: "", Last: "2000"})
	assert.Equal(t, "ETH_USDT", raw.Symbol)
	assert.True(t, raw.Bid.Equal(decimal.RequireFromString("1999.9")))
	assert.True(t, raw.Ask.IsZero(), "无卖盘时卖一价记为 0")
	assert.True(t, raw.Last.Equal(decimal.NewFromInt(2000)))
}

// newTestServer 模拟 Gate.io 公共接口，lastLimit 记录最近一次深度请求的 limit
func newTestServer(lastLimit *string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/spot/currency_pairs":
			_, _ = w.Write([]byte(`[
				{"id":"BTC_USDT","base":"BTC","quote":"USDT","fee":"0.2","trade_status":"tradable"},
				{"id":"","base":"","quote":"USDT","trade_status":"tradable"}]`))
		case "/api/v4/spot/tickers":
			_, _ = w.Write([]byte(`[
				{"currency_pair":"BTC_USDT","last":"60000","lowest_ask":"60001","highest_bid":"59999","change_percentage":"0.1"}]`))
		case "/api/v4/spot/order_book":
			*lastLimit = r.URL.Query().Get("limit")
			if r.URL.Query().Get("currency_pair") != "BTC_USDT" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"label":"INVALID_CURRENCY_PAIR","message":"invalid currency pair"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":1,"current":1700000000000,"update":1700000000000,
				"asks":[["60001","0.3"],["60002","1"]],"bids":[["59999","0.7"],["59998","0"]]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSource_HTTP(t *testing.T) {
	var limit string
	srv := newTestServer(&limit)
	defer srv.Close()

	cfg := config.GateIOConfig{
		PollConfig: config.PollConfig{Enabled: true, TimeoutMs: 2000},
		BaseURL:    srv.URL,
	}
	var src exchange.Source = NewSource(cfg, zap.NewNop())
	ctx := context.Background()
	assert.Equal(t, model.ExchangeGateIO, src.Exchange())

	pairs, err := src.FetchPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1, "字段不全的交易对应被跳过")
	assert.Equal(t, "BTCUSDT", pairs[0].Unified())

	raws, err := src.FetchTickers(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "BTC_USDT", raws[0].Symbol)
	assert.True(t, raws[0].Ask.Equal(decimal.NewFromInt(60001)))

	asks, bids, err := src.FetchOrderBook(ctx, "BTC_USDT", 500)
	require.NoError(t, err)
	assert.Equal(t, "100", limit, "深度档数上限为 100")
	require.Len(t, asks, 2)
	require.Len(t, bids, 1, "数量为 0 的档位应被丢弃")
	assert.True(t, bids[0].Price.Equal(decimal.NewFromInt(59999)))

	_, _, err = src.FetchOrderBook(ctx, "BTC_USDT", 20)
	require.NoError(t, err)
	assert.Equal(t, "20", limit)

	_, _, err = src.FetchOrderBook(ctx, "NOPE_USDT", 20)
	assert.Error(t, err, "未知交易对应返回错误")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.FetchTickers(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
