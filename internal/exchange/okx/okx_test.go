package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/metadata"
)

// **Feature: crypto-arbitrage-monitor, Property 13: Ticker Push Parsing Preserves Prices**

// TestParsePush_Property 推送解析保留价格
func TestParsePush_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("解析保留买卖价", prop.ForAll(
		func(bidCents, spreadCents int64) bool {
			bid := decimal.New(bidCents, -2)
			ask := decimal.New(bidCents+spreadCents, -2)
			msg := PushMessage{
				Arg: SubscribeArg{Channel: ChannelTickers, InstId: "ETH-USDT"},
				Data: []Ticker{{
					InstId: "ETH-USDT",
					Last:   bid.String(),
					BidPx:  bid.String(),
					AskPx:  ask.String(),
				}},
			}
			data, err := sonnet.Marshal(msg)
			if err != nil {
				return false
			}
			tickers, err := ParsePush(data)
			if err != nil || len(tickers) != 1 {
				return false
			}
			raw := ToRaw(tickers[0])
			return raw.Symbol == "ETH-USDT" && raw.Bid.Equal(bid) && raw.Ask.Equal(ask)
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.Int64Range(0, 10_000),
	))

	properties.TestingRun(t)
}

func TestParsePush_Events(t *testing.T) {
	tickers, err := ParsePush([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT"}}`))
	require.NoError(t, err)
	assert.Nil(t, tickers)

	_, err = ParsePush([]byte(`{"event":"error","code":"60012","msg":"Invalid request"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "60012")

	tickers, err = ParsePush([]byte(`{"arg":{"channel":"books5","instId":"BTC-USDT"},"data":[]}`))
	require.NoError(t, err)
	assert.Nil(t, tickers)

	_, err = ParsePush([]byte(`{broken`))
	assert.Error(t, err)

	assert.True(t, IsPong([]byte("pong")))
	assert.False(t, IsPong([]byte(`{"event":"pong"}`)))
}

func TestToRaw_MissingPrices(t *testing.T) {
	raw := ToRaw(Ticker{InstId: "XYZ-USDT", Last: "1.5", BidPx: "", AskPx: ""})
	assert.True(t, raw.Bid.IsZero())
	assert.True(t, raw.Ask.IsZero())
	assert.True(t, raw.Last.Equal(decimal.RequireFromString("1.5")))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/public/instruments":
			assert.Equal(t, "SPOT", r.URL.Query().Get("instType"))
			_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","instType":"SPOT","baseCcy":"BTC","quoteCcy":"USDT","state":"live"},
				{"instId":"OLD-USDT","instType":"SPOT","baseCcy":"OLD","quoteCcy":"USDT","state":"suspend"},
				{"instId":"BAD","instType":"SPOT","baseCcy":"","quoteCcy":"","state":"live"}]}`))
		case "/api/v5/market/tickers":
			_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[
				{"instId":"BTC-USDT","last":"60000","askPx":"60001","bidPx":"59999","ts":"1700000000000"}]}`))
		case "/api/v5/market/books":
			if r.URL.Query().Get("instId") != "BTC-USDT" {
				_, _ = w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
				return
			}
			assert.Equal(t, "400", r.URL.Query().Get("sz"))
			_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{
				"asks":[["60001","0.5","0","2"],["60002","0","0","0"]],
				"bids":[["59999","1.2","0","3"]],"ts":"1700000000000"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testConfig(restURL string) config.OKXConfig {
	return config.OKXConfig{
		PollConfig: config.PollConfig{Enabled: true, PollIntervalMs: 1000, DepthLimit: 50, TimeoutMs: 2000},
		RestURL:    restURL,
	}
}

func TestSource_REST(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	src := NewSource(testConfig(srv.URL), zap.NewNop())
	ctx := context.Background()
	assert.Equal(t, model.ExchangeOKX, src.Exchange())
	assert.Nil(t, src.Stream())

	pairs, err := src.FetchPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "BTCUSDT", pairs[0].Unified())
	assert.True(t, pairs[0].Active)
	assert.False(t, pairs[1].Active)

	raws, err := src.FetchTickers(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "BTC-USDT", raws[0].Symbol)
	assert.True(t, raws[0].Bid.Equal(decimal.NewFromInt(59999)))

	asks, bids, err := src.FetchOrderBook(ctx, "BTC-USDT", 1000)
	require.NoError(t, err)
	require.Len(t, asks, 1, "数量为 0 的档位应被丢弃")
	require.Len(t, bids, 1)
	assert.True(t, asks[0].Qty.Equal(decimal.RequireFromString("0.5")))

	_, _, err = src.FetchOrderBook(ctx, "NOPE-USDT", 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")

	// 未开启 WebSocket 时订阅为空操作
	require.NoError(t, src.SubscribePairs(ctx, pairs))
}

func TestTickerStream_HandleAndHeartbeat(t *testing.T) {
	cfg := testConfig("")
	cfg.UseWebSocket = true
	cfg.PingIntervalMs = 1000
	cfg.PongTimeoutMs = 500

	src := NewSource(cfg, zap.NewNop())
	s := src.Stream()
	require.NotNil(t, s)

	now := time.Now().UnixNano()
	for i, px := range []string{"100", "101"} {
		msg := fmt.Sprintf(`{"arg":{"channel":"tickers","instId":"ETH-USDT"},"data":[{"instId":"ETH-USDT","last":"%s","askPx":"%s","bidPx":"%s","ts":"0"}]}`, px, px, px)
		s.handle([]byte(msg), now+int64(i))
	}
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Ask.Equal(decimal.NewFromInt(101)), "只保留最新推送")

	// 连接正常且推送新鲜时 FetchTickers 不访问 REST
	s.connected.Store(true)
	raws, err := src.FetchTickers(context.Background())
	require.NoError(t, err)
	assert.Len(t, raws, 1)

	s.handle([]byte("{broken"), now)
	assert.Equal(t, int64(1), s.Metrics().ParseErrorCount)

	assert.False(t, s.pongOverdue(now))
	s.lastPingSentNs.Store(now)
	assert.False(t, s.pongOverdue(now+int64(100*time.Millisecond)))
	assert.True(t, s.pongOverdue(now+int64(time.Second)))

	s.handle([]byte("pong"), now+int64(20*time.Millisecond))
	assert.False(t, s.pongOverdue(now+int64(time.Second)))
	assert.Equal(t, int64(20), s.Metrics().WsRttMs)
}

func TestTickerStream_StartRequiresPairs(t *testing.T) {
	s := NewTickerStream(testConfig(""), zap.NewNop())
	assert.Error(t, s.Start(context.Background(), nil))
}

func TestSource_StalePushFallsBackToREST(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.UseWebSocket = true
	src := NewSource(cfg, zap.NewNop())
	s := src.Stream()

	hourAgo := time.Now().Add(-time.Hour).UnixNano()
	s.handle([]byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","last":"1","askPx":"1","bidPx":"1","ts":"0"}]}`), hourAgo)
	s.connected.Store(true)

	// 推送停滞超过两个轮询周期
	raws, err := src.FetchTickers(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.True(t, raws[0].Bid.Equal(decimal.NewFromInt(59999)), "应回退 REST，got %s", raws[0].Bid)

	// 推送新鲜但连接已断开
	s.handle([]byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","last":"2","askPx":"2","bidPx":"2","ts":"0"}]}`), time.Now().UnixNano())
	s.connected.Store(false)
	raws, err = src.FetchTickers(context.Background())
	require.NoError(t, err)
	assert.True(t, raws[0].Bid.Equal(decimal.NewFromInt(59999)))

	s.connected.Store(true)
	raws, err = src.FetchTickers(context.Background())
	require.NoError(t, err)
	assert.True(t, raws[0].Bid.Equal(decimal.NewFromInt(2)))

	// 断线时清空推送缓存
	s.closeConn()
	assert.Empty(t, s.Snapshot())
	assert.False(t, s.Metrics().Connected)
}

func TestTickerStream_StartedAndDone(t *testing.T) {
	cfg := testConfig("")
	cfg.UseWebSocket = true
	cfg.WSURL = "ws://127.0.0.1:1/ws"
	cfg.PingIntervalMs = 1000
	cfg.PongTimeoutMs = 500
	src := NewSource(cfg, zap.NewNop())
	s := src.Stream()
	require.NotNil(t, s)
	assert.False(t, s.Started(), "订阅前未启动")

	ctx, cancel := context.WithCancel(context.Background())
	pairs := []metadata.PairSymbol{metadata.NewPairSymbol(model.ExchangeOKX, "BTC-USDT", "BTC", "USDT", true)}
	require.NoError(t, src.SubscribePairs(ctx, pairs))
	assert.True(t, s.Started())
	require.NoError(t, s.Start(ctx, []string{"BTC-USDT"}), "重复启动无效果")

	// 连接失败时后台退避重试，ctx 取消后读取循环退出
	cancel()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("ctx 取消后 Done 未关闭")
	}
	assert.False(t, s.Metrics().Connected)
}
