package triangular

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/core/paper"
	"crypto-arbitrage-monitor/internal/stats"
)

func lv(price, qty string) model.Level {
	return model.Level{Price: d(price), Qty: d(qty)}
}

// fakeBooks 固定深度
type fakeBooks struct {
	asks map[string][]model.Level
	bids map[string][]model.Level
}

func (f *fakeBooks) Exchange() model.Exchange { return model.ExchangeBinance }

func (f *fakeBooks) GetMarketAsks(_ context.Context, pair string) ([]model.Level, error) {
	return f.asks[pair], nil
}

func (f *fakeBooks) GetMarketBids(_ context.Context, pair string) ([]model.Level, error) {
	return f.bids[pair], nil
}

// recordingPublisher 记录输出的交易
type recordingPublisher struct {
	mu     sync.Mutex
	trades []model.SuccessfulTrade
}

func (r *recordingPublisher) Publish(_ context.Context, t model.SuccessfulTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, t)
	return nil
}

func (r *recordingPublisher) all() []model.SuccessfulTrade {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SuccessfulTrade(nil), r.trades...)
}

func deepBooks() *fakeBooks {
	return &fakeBooks{
		asks: map[string][]model.Level{
			"ETHUSDT": {lv("2000", "10")},
			"BTCUSDT": {lv("60000", "10")},
			"ETHBTC":  {lv("0.036", "100")},
		},
		bids: map[string][]model.Level{
			"ETHUSDT": {lv("1999", "10")},
			"BTCUSDT": {lv("59990", "10")},
			"ETHBTC":  {lv("0.035", "100")},
		},
	}
}

func forwardCycle() model.TriangularCycle {
	return model.TriangularCycle{
		Exchange: model.ExchangeBinance,
		Legs: [3]model.TradeLeg{
			{PairSymbol: "ETHUSDT", Side: model.SideBuy, Price: d("2000")},
			{PairSymbol: "ETHBTC", Side: model.SideSell, Price: d("0.035")},
			{PairSymbol: "BTCUSDT", Side: model.SideSell, Price: d("59990")},
		},
	}
}

func reverseCycle() model.TriangularCycle {
	return model.TriangularCycle{
		Exchange: model.ExchangeBinance,
		Legs: [3]model.TradeLeg{
			{PairSymbol: "BTCUSDT", Side: model.SideBuy, Price: d("60000")},
			{PairSymbol: "ETHBTC", Side: model.SideBuy, Price: d("0.036")},
			{PairSymbol: "ETHUSDT", Side: model.SideSell, Price: d("1999")},
		},
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(paper.NewSimulator(deepBooks()), nil, VerifierOptions{}, zap.NewNop())

	res, err := v.Verify(context.Background(), forwardCycle())
	require.NoError(t, err)
	// 100/2000 = 0.05 ETH -> 0.00175 BTC -> 104.9825 USDT
	assert.True(t, res.Final.Equal(d("104.9825")), "got %s", res.Final)
	assert.True(t, res.Profit.Equal(d("4.9825")))
	assert.True(t, res.Profitable())

	res, err = v.Verify(context.Background(), reverseCycle())
	require.NoError(t, err)
	assert.False(t, res.Profitable())
}

func TestVerifier_InsufficientLiquidity(t *testing.T) {
	books := deepBooks()
	books.bids["BTCUSDT"] = []model.Level{lv("59990", "0.001")}
	v := NewVerifier(paper.NewSimulator(books), nil, VerifierOptions{}, zap.NewNop())

	_, err := v.Verify(context.Background(), forwardCycle())
	var liq *paper.InsufficientLiquidityError
	require.True(t, errors.As(err, &liq))
	assert.Equal(t, "BTCUSDT", liq.Pair)
	assert.Equal(t, stats.ReasonLiquidity, classify(err))

	_, err = NewVerifier(paper.NewSimulator(), nil, VerifierOptions{}, zap.NewNop()).
		Verify(context.Background(), forwardCycle())
	assert.Equal(t, stats.ReasonLookup, classify(err))
}

func TestVerifier_SubmitDedupeAndDrop(t *testing.T) {
	v := NewVerifier(paper.NewSimulator(deepBooks()), nil, VerifierOptions{QueueSize: 1}, zap.NewNop())

	assert.True(t, v.Submit(forwardCycle()))
	assert.False(t, v.Submit(forwardCycle()), "验证中的循环不重复入队")
	assert.False(t, v.Submit(reverseCycle()), "队列已满")

	m := v.Metrics()
	assert.Equal(t, int64(1), m.Accepted)
	assert.Equal(t, int64(1), m.Duplicates)
	assert.Equal(t, int64(1), m.Dropped)
	assert.Equal(t, 1, m.QueueLen)
}

func TestVerifier_RunPublishesProfitable(t *testing.T) {
	pub := &recordingPublisher{}
	rec := stats.NewRecorder(10)
	lat := stats.NewLatencyTracker(10)
	v := NewVerifier(paper.NewSimulator(deepBooks()), pub,
		VerifierOptions{Workers: 2, Recorder: rec, Latency: lat}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	require.True(t, v.Submit(forwardCycle()))
	require.True(t, v.Submit(reverseCycle()))

	require.Eventually(t, func() bool {
		return rec.Stats().Count == 2 && len(pub.all()) == 1
	}, time.Second, 5*time.Millisecond)
	trades := pub.all()
	require.Len(t, trades, 1, "只输出利润为正的循环")
	assert.Equal(t, model.IdeaTriangular, trades[0].Idea)
	assert.Equal(t, "ETHUSDT->ETHBTC->BTCUSDT", trades[0].Sequence)
	assert.True(t, trades[0].Profit.Equal(d("4.9825")))
	assert.True(t, trades[0].Capital.Equal(model.StartingAmount))

	st := rec.Stats()
	assert.Equal(t, int64(1), st.Profitable)
	assert.Equal(t, int64(1), st.NoProfit)
	assert.Equal(t, int64(2), lat.Stats(model.ExchangeBinance).Count)

	// 验证完成后同一循环可再次提交
	assert.Eventually(t, func() bool { return v.Submit(forwardCycle()) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run 未退出")
	}
}
