package exchange

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/core/store"
	"crypto-arbitrage-monitor/internal/metadata"
)

// TickStore 行情缓存
type TickStore = store.Store[model.TickKey, model.Tick]

// LeveragedPairStore 杠杆代币对缓存
type LeveragedPairStore = store.Store[model.LeveragedKey, model.LeveragedTokenPair]

// NewTickStore 创建行情缓存（内容相同的快照不产生事件）
func NewTickStore() *TickStore {
	return store.New(model.Tick.Key, store.WithEqual[model.TickKey](model.Tick.Equal))
}

// NewLeveragedPairStore 创建杠杆代币对缓存
func NewLeveragedPairStore() *LeveragedPairStore {
	return store.New(model.LeveragedTokenPair.Key,
		store.WithEqual[model.LeveragedKey](func(a, b model.LeveragedTokenPair) bool { return a == b }))
}

// ErrNotStarted 适配器尚未完成初始化
var ErrNotStarted = errors.New("适配器尚未启动")

// StreamerOptions Streamer 参数
type StreamerOptions struct {
	// PollInterval 行情轮询间隔（默认 5s）
	PollInterval time.Duration
	// DepthLimit 订单簿深度档数（默认 50）
	DepthLimit int
	// StableAssets 稳定币列表，用于批次排序
	StableAssets []string
}

// StreamMetrics 行情流指标
type StreamMetrics struct {
	// Exchange 交易所
	Exchange model.Exchange `json:"exchange"`
	// Pairs 可交易交易对数量
	Pairs int `json:"pairs"`
	// LeveragedPairs 识别出的杠杆代币对数量
	LeveragedPairs int `json:"leveraged_pairs"`
	// Polls 成功轮询次数
	Polls int64 `json:"polls"`
	// PollErrors 失败轮询次数
	PollErrors int64 `json:"poll_errors"`
	// Ticks 推送的快照总数
	Ticks int64 `json:"ticks"`
	// LastPollAgeMs 最近一次成功轮询距今（毫秒）
	LastPollAgeMs int64 `json:"last_poll_age_ms"`
}

// Streamer 基于 Source 的通用适配器实现
type Streamer struct {
	src       Source
	ticks     *TickStore
	leveraged *LeveragedPairStore
	opts      StreamerOptions
	stable    map[string]bool
	logger    *zap.Logger
	now       func() time.Time

	registry  atomic.Pointer[metadata.PairRegistry]
	startOnce sync.Once
	done      chan struct{}

	leveragedCount atomic.Int64
	polls          atomic.Int64
	pollErrors     atomic.Int64
	tickCount      atomic.Int64
	lastPollNs     atomic.Int64
}

// NewStreamer 创建适配器
// 参数 src: 交易所数据来源
// 参数 ticks: 共享行情缓存
// 参数 leveraged: 共享杠杆代币对缓存
func NewStreamer(src Source, ticks *TickStore, leveraged *LeveragedPairStore, opts StreamerOptions, logger *zap.Logger) *Streamer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.DepthLimit <= 0 {
		opts.DepthLimit = 50
	}
	stable := make(map[string]bool, len(opts.StableAssets))
	for _, s := range opts.StableAssets {
		stable[s] = true
	}
	return &Streamer{
		src:       src,
		ticks:     ticks,
		leveraged: leveraged,
		opts:      opts,
		stable:    stable,
		logger:    logger.Named(src.Exchange().String()),
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Exchange 交易所标识
func (s *Streamer) Exchange() model.Exchange {
	return s.src.Exchange()
}

// StartStreaming 解析交易对、登记杠杆代币对并启动轮询
// 轮询在后台进行，ctx 取消后停止；重复调用无效果。
func (s *Streamer) StartStreaming(ctx context.Context) error {
	var err error
	started := false
	s.startOnce.Do(func() {
		started = true
		err = s.start(ctx)
	})
	if !started {
		return nil
	}
	if err != nil {
		close(s.done)
	}
	return err
}

func (s *Streamer) start(ctx context.Context) error {
	ex := s.Exchange()
	pairs, err := s.src.FetchPairs(ctx)
	if err != nil {
		return &InitializationError{Exchange: ex, Err: err}
	}
	reg := metadata.NewPairRegistry(ex, pairs)
	if reg.Len() == 0 {
		return &InitializationError{Exchange: ex, Err: errors.New("没有可交易的交易对")}
	}
	s.registry.Store(reg)

	lev := metadata.DetectLeveragedPairs(ex, pairs)
	s.leveraged.Upsert(lev...)
	s.leveragedCount.Store(int64(len(lev)))

	if sub, ok := s.src.(PairSubscriber); ok {
		if err := sub.SubscribePairs(ctx, reg.Pairs()); err != nil {
			return &InitializationError{Exchange: ex, Err: errors.Wrap(err, "订阅行情失败")}
		}
	}

	s.logger.Info("交易对解析完成",
		zap.Int("pairs", reg.Len()),
		zap.Int("leveraged_pairs", len(lev)),
		zap.Duration("poll_interval", s.opts.PollInterval))

	go s.run(ctx)
	return nil
}

// Done 轮询退出后关闭
func (s *Streamer) Done() <-chan struct{} {
	return s.done
}

func (s *Streamer) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll 拉取一次全量行情并推送到缓存
// 失败只记录日志，由下一次轮询自然重试。
func (s *Streamer) poll(ctx context.Context) {
	raws, err := s.src.FetchTickers(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.pollErrors.Add(1)
		s.logger.Warn("拉取行情失败", zap.Error(err))
		return
	}

	batch := s.buildBatch(raws, s.now())
	if ctx.Err() != nil {
		return
	}
	s.ticks.Upsert(batch...)

	s.polls.Add(1)
	s.tickCount.Add(int64(len(batch)))
	s.lastPollNs.Store(s.now().UnixNano())
	s.logger.Debug("行情已推送", zap.Int("ticks", len(batch)))
}

// buildBatch 过滤非活跃交易对并按稳定币报价优先排序
func (s *Streamer) buildBatch(raws []RawTicker, now time.Time) []model.Tick {
	reg := s.registry.Load()
	ex := s.Exchange()

	batch := make([]model.Tick, 0, len(raws))
	for _, r := range raws {
		p, ok := reg.Resolve(r.Symbol)
		if !ok {
			continue
		}
		if !r.Bid.IsPositive() || !r.Ask.IsPositive() {
			continue
		}
		batch = append(batch, model.Tick{
			Exchange:    ex,
			BaseSymbol:  p.Base,
			QuoteSymbol: p.Quote,
			BidPrice:    r.Bid,
			AskPrice:    r.Ask,
			LastPrice:   r.Last,
			Timestamp:   now,
		})
	}
	sort.SliceStable(batch, func(i, j int) bool {
		return s.stable[batch[i].QuoteSymbol] && !s.stable[batch[j].QuoteSymbol]
	})
	return batch
}

// GetMarketAsks 当前卖盘，价格升序
func (s *Streamer) GetMarketAsks(ctx context.Context, pair string) ([]model.Level, error) {
	asks, _, err := s.orderBook(ctx, pair)
	if err != nil {
		return nil, err
	}
	SortAsks(asks)
	return asks, nil
}

// GetMarketBids 当前买盘，价格降序
func (s *Streamer) GetMarketBids(ctx context.Context, pair string) ([]model.Level, error) {
	_, bids, err := s.orderBook(ctx, pair)
	if err != nil {
		return nil, err
	}
	SortBids(bids)
	return bids, nil
}

func (s *Streamer) orderBook(ctx context.Context, pair string) (asks, bids []model.Level, err error) {
	reg := s.registry.Load()
	if reg == nil {
		return nil, nil, errors.Wrapf(ErrNotStarted, "exchange=%s", s.Exchange())
	}
	sym, err := reg.ExchangeSymbol(pair)
	if err != nil {
		return nil, nil, err
	}
	asks, bids, err = s.src.FetchOrderBook(ctx, sym, s.opts.DepthLimit)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "获取深度失败 exchange=%s symbol=%s", s.Exchange(), sym)
	}
	return asks, bids, nil
}

// Metrics 返回行情流指标快照
func (s *Streamer) Metrics() StreamMetrics {
	m := StreamMetrics{
		Exchange:       s.Exchange(),
		LeveragedPairs: int(s.leveragedCount.Load()),
		Polls:          s.polls.Load(),
		PollErrors:     s.pollErrors.Load(),
		Ticks:          s.tickCount.Load(),
	}
	if reg := s.registry.Load(); reg != nil {
		m.Pairs = reg.Len()
	}
	if last := s.lastPollNs.Load(); last > 0 {
		m.LastPollAgeMs = (s.now().UnixNano() - last) / int64(time.Millisecond)
	}
	return m
}

// SortAsks 卖盘按价格升序
func SortAsks(levels []model.Level) {
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price.LessThan(levels[j].Price) })
}

// SortBids 买盘按价格降序
func SortBids(levels []model.Level) {
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price.GreaterThan(levels[j].Price) })
}
