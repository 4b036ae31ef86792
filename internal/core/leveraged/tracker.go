// Package leveraged 跟踪杠杆代币多空对的模拟持仓盈亏。
//
// 每个代币对首次估值时按 StartingAmount 分别买入多头与空头代币（只入场一次），
// 之后按固定间隔把持有数量在当前买盘上模拟卖出，得到两条腿的当前价值。
// 盈亏 = 多头价值 + 空头价值 - 200。
package leveraged

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/core/paper"
	"crypto-arbitrage-monitor/internal/core/store"
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/stats"
)

// PairStore 杠杆代币对缓存
type PairStore = store.Store[model.LeveragedKey, model.LeveragedTokenPair]

// OpportunityStore 杠杆代币机会缓存
type OpportunityStore = store.Store[model.LeveragedKey, model.LeveragedOpportunity]

// NewOpportunityStore 创建机会缓存（内容未变化的快照不产生事件）
func NewOpportunityStore() *OpportunityStore {
	return store.New(model.LeveragedOpportunity.Key,
		store.WithEqual[model.LeveragedKey](model.LeveragedOpportunity.Equal))
}

// Simulator 按深度模拟买入/卖出
type Simulator interface {
	SimulateBuy(ctx context.Context, exchange model.Exchange, pair string, quoteAmount decimal.Decimal) (decimal.Decimal, error)
	SimulateSell(ctx context.Context, exchange model.Exchange, pair string, baseAmount decimal.Decimal) (decimal.Decimal, error)
}

// TradePublisher 成功交易输出
type TradePublisher interface {
	Publish(ctx context.Context, trade model.SuccessfulTrade) error
}

// Options 跟踪器参数
type Options struct {
	// RefreshInterval 重新估值间隔（默认 60s）
	RefreshInterval time.Duration
	// MaxConcurrency 同时估值的代币对上限（默认 5）
	MaxConcurrency int
	// Recorder 估值结果统计，可为 nil
	Recorder *stats.Recorder
}

// Metrics 跟踪器指标
type Metrics struct {
	Tracked    int   `json:"tracked"`
	Sized      int   `json:"sized"`
	Rounds     int64 `json:"rounds"`
	Profitable int64 `json:"profitable"`
	LegErrors  int64 `json:"leg_errors"`
}

// Tracker 杠杆代币机会跟踪器
// 持仓状态由跟踪器独占；对外只通过机会缓存发布快照。
type Tracker struct {
	pairs     *PairStore
	sim       Simulator
	publisher TradePublisher
	opps      *OpportunityStore
	opts      Options
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	state map[model.LeveragedKey]model.LeveragedOpportunity
	order []model.LeveragedKey

	rounds     atomic.Int64
	profitable atomic.Int64
	legErrors  atomic.Int64
}

// NewTracker 创建跟踪器
// 参数 pairs: 杠杆代币对缓存（由适配器在启动时写入）
// 参数 publisher: 成功交易输出，可为 nil（只记录日志）
func NewTracker(pairs *PairStore, sim Simulator, publisher TradePublisher, opts Options, logger *zap.Logger) *Tracker {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Minute
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 5
	}
	return &Tracker{
		pairs:     pairs,
		sim:       sim,
		publisher: publisher,
		opps:      NewOpportunityStore(),
		opts:      opts,
		logger:    logger.Named("leveraged"),
		now:       time.Now,
		state:     make(map[model.LeveragedKey]model.LeveragedOpportunity),
	}
}

// Opportunities 机会缓存（只读视图，可订阅）
func (t *Tracker) Opportunities() *OpportunityStore {
	return t.opps
}

// Run 订阅代币对缓存并按间隔估值，ctx 取消后返回
// 首轮估值立即执行。
func (t *Tracker) Run(ctx context.Context) error {
	sub := t.pairs.Subscribe()
	defer sub.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-sub.C():
				if !ok {
					return nil
				}
				t.Track(ev.Value)
			}
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(t.opts.RefreshInterval)
		defer ticker.Stop()

		t.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				t.Refresh(ctx)
			}
		}
	})

	t.logger.Info("杠杆代币跟踪已启动",
		zap.Duration("refresh_interval", t.opts.RefreshInterval),
		zap.Int("max_concurrency", t.opts.MaxConcurrency))
	return g.Wait()
}

// Track 为代币对创建未入场的机会，已跟踪的代币对不受影响
// 返回: 是否新建
func (t *Tracker) Track(pair model.LeveragedTokenPair) bool {
	key := pair.Key()
	t.mu.Lock()
	if _, ok := t.state[key]; ok {
		t.mu.Unlock()
		return false
	}
	opp := model.NewLeveragedOpportunity(pair)
	t.state[key] = opp
	t.order = append(t.order, key)
	t.mu.Unlock()

	t.opps.Upsert(opp)
	t.logger.Debug("开始跟踪杠杆代币对",
		zap.String("exchange", pair.Exchange.String()),
		zap.String("long", pair.LongPairSymbol()),
		zap.String("short", pair.ShortPairSymbol()))
	return true
}

// Refresh 对全部机会执行一轮估值
// 不同代币对并发处理，并发数受 MaxConcurrency 限制。
func (t *Tracker) Refresh(ctx context.Context) {
	t.mu.Lock()
	batch := make([]model.LeveragedOpportunity, 0, len(t.order))
	for _, k := range t.order {
		batch = append(batch, t.state[k])
	}
	t.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(t.opts.MaxConcurrency)
	for _, opp := range batch {
		opp := opp
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			updated, complete := t.Evaluate(ctx, opp)
			if ctx.Err() != nil {
				// 关闭后到达的结果丢弃
				return nil
			}
			t.commit(ctx, updated, complete)
			return nil
		})
	}
	_ = g.Wait()
	t.rounds.Add(1)
}

// Evaluate 并发处理多空两条腿，返回更新后的快照
// 某条腿失败时保留该腿原有状态；complete 表示两条腿本轮都估值成功。
func (t *Tracker) Evaluate(ctx context.Context, opp model.LeveragedOpportunity) (updated model.LeveragedOpportunity, complete bool) {
	ex := opp.Pair.Exchange
	var (
		wg          sync.WaitGroup
		long, short legResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		long = t.legValue(ctx, ex, opp.Pair.LongPairSymbol(), opp.LongAmount)
	}()
	go func() {
		defer wg.Done()
		short = t.legValue(ctx, ex, opp.Pair.ShortPairSymbol(), opp.ShortAmount)
	}()
	wg.Wait()

	out := opp
	out.LongAmount = long.amount
	out.ShortAmount = short.amount
	if long.err == nil {
		out.CurrentLongValue = long.value
	}
	if short.err == nil {
		out.CurrentShortValue = short.value
	}
	t.observe(ex, opp.Pair.LongPairSymbol(), long.err)
	t.observe(ex, opp.Pair.ShortPairSymbol(), short.err)
	out.UpdatedAt = t.now()
	return out, long.err == nil && short.err == nil
}

type legResult struct {
	amount decimal.Decimal
	value  decimal.Decimal
	err    error
}

// legValue 未入场时先买入，再把持有数量按当前买盘估值
func (t *Tracker) legValue(ctx context.Context, ex model.Exchange, pair string, amount decimal.Decimal) legResult {
	res := legResult{amount: amount}
	if res.amount.IsZero() {
		bought, err := t.sim.SimulateBuy(ctx, ex, pair, model.StartingAmount)
		if err != nil {
			res.err = errors.Wrapf(err, "入场 %s", pair)
			return res
		}
		res.amount = bought
	}
	value, err := t.sim.SimulateSell(ctx, ex, pair, res.amount)
	if err != nil {
		res.err = errors.Wrapf(err, "估值 %s", pair)
		return res
	}
	res.value = value
	return res
}

// observe 记录单条腿的失败
// 深度不足与未知交易对属于本轮无结果，其余错误按警告记录。
func (t *Tracker) observe(ex model.Exchange, pair string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	t.legErrors.Add(1)
	fields := []zap.Field{zap.String("exchange", ex.String()), zap.String("pair", pair), zap.Error(err)}
	switch classify(err) {
	case stats.ReasonLiquidity, stats.ReasonLookup:
		t.logger.Debug("杠杆代币估值未完成", fields...)
	default:
		t.logger.Warn("杠杆代币估值失败", fields...)
	}
}

// commit 写回状态并发布快照；本轮两条腿都估值成功且盈利时输出成功交易
// 任一腿失败时只保存入场数量等状态，本轮不产生结果。
func (t *Tracker) commit(ctx context.Context, opp model.LeveragedOpportunity, complete bool) {
	t.mu.Lock()
	t.state[opp.Key()] = opp
	t.mu.Unlock()
	t.opps.Upsert(opp)

	if !complete || !opp.Priced() {
		return
	}
	profit := opp.Profit()
	pf, _ := profit.Float64()
	if !profit.IsPositive() {
		t.record(opp.Pair.Exchange, stats.ReasonNoProfit, pf)
		return
	}
	t.profitable.Add(1)
	t.record(opp.Pair.Exchange, stats.ReasonProfit, pf)

	trade := model.NewLeveragedTrade(opp, t.now())
	t.logger.Info("杠杆代币模拟盈利",
		zap.String("id", trade.ID),
		zap.String("exchange", trade.Exchange.String()),
		zap.String("sequence", trade.Sequence),
		zap.Int("multiplier", opp.Multiplier),
		zap.String("capital", trade.Capital.String()),
		zap.String("profit", trade.Profit.StringFixed(6)))
	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, trade); err != nil {
			t.logger.Warn("输出成功交易失败", zap.String("id", trade.ID), zap.Error(err))
		}
	}
}

func (t *Tracker) record(ex model.Exchange, reason stats.Reason, profit float64) {
	if t.opts.Recorder == nil {
		return
	}
	t.opts.Recorder.Add(stats.Outcome{Exchange: ex, Reason: reason, Profit: profit})
}

// Get 读取单个代币对的当前状态
func (t *Tracker) Get(key model.LeveragedKey) (model.LeveragedOpportunity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	opp, ok := t.state[key]
	return opp, ok
}

// Metrics 指标快照
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	m := Metrics{Tracked: len(t.state)}
	for _, opp := range t.state {
		if opp.Sized() {
			m.Sized++
		}
	}
	t.mu.Unlock()
	m.Rounds = t.rounds.Load()
	m.Profitable = t.profitable.Load()
	m.LegErrors = t.legErrors.Load()
	return m
}

// classify 将估值错误归类
func classify(err error) stats.Reason {
	var liq *paper.InsufficientLiquidityError
	switch {
	case errors.As(err, &liq):
		return stats.ReasonLiquidity
	case errors.Is(err, metadata.ErrUnknownPair), errors.Is(err, paper.ErrUnknownExchange):
		return stats.ReasonLookup
	default:
		return stats.ReasonError
	}
}
