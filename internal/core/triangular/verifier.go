package triangular

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
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/stats"
)

// ExecutionSimulator 按深度模拟单步成交
type ExecutionSimulator interface {
	Simulate(ctx context.Context, exchange model.Exchange, pair string, side model.Side, amount decimal.Decimal) (decimal.Decimal, error)
}

// TradePublisher 成功交易输出
type TradePublisher interface {
	Publish(ctx context.Context, trade model.SuccessfulTrade) error
}

// VerifierOptions 验证器参数
type VerifierOptions struct {
	// Workers 并发验证数（默认 4）
	Workers int
	// QueueSize 等待队列容量（默认 256）
	QueueSize int
	// Recorder 验证结果统计，可为 nil
	Recorder *stats.Recorder
	// Latency 模拟耗时统计，可为 nil
	Latency *stats.LatencyTracker
}

// Result 单次验证结果
type Result struct {
	Cycle model.TriangularCycle
	// Final 三步模拟后得到的稳定币数量
	Final decimal.Decimal
	// Profit Final - StartingAmount
	Profit decimal.Decimal
}

// Profitable 模拟利润是否严格为正
func (r Result) Profitable() bool {
	return r.Profit.IsPositive()
}

// VerifierMetrics 验证器指标
type VerifierMetrics struct {
	Accepted   int64 `json:"accepted"`
	Duplicates int64 `json:"duplicates"`
	Dropped    int64 `json:"dropped"`
	Verified   int64 `json:"verified"`
	Profitable int64 `json:"profitable"`
	Failed     int64 `json:"failed"`
	QueueLen   int   `json:"queue_len"`
}

// Verifier 候选的模拟验证器
// 同一循环在验证完成前不会重复入队；队列满时丢弃新候选。
type Verifier struct {
	sim       ExecutionSimulator
	publisher TradePublisher
	opts      VerifierOptions
	logger    *zap.Logger
	now       func() time.Time

	queue chan model.TriangularCycle

	mu       sync.Mutex
	inflight map[model.CycleKey]struct{}

	accepted   atomic.Int64
	duplicates atomic.Int64
	dropped    atomic.Int64
	verified   atomic.Int64
	profitable atomic.Int64
	failed     atomic.Int64
}

// NewVerifier 创建验证器
// 参数 publisher: 成功交易输出，可为 nil（只记录日志）
func NewVerifier(sim ExecutionSimulator, publisher TradePublisher, opts VerifierOptions, logger *zap.Logger) *Verifier {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Verifier{
		sim:       sim,
		publisher: publisher,
		opts:      opts,
		logger:    logger.Named("verifier"),
		now:       time.Now,
		queue:     make(chan model.TriangularCycle, opts.QueueSize),
		inflight:  make(map[model.CycleKey]struct{}),
	}
}

// Submit 提交候选（非阻塞）
func (v *Verifier) Submit(c model.TriangularCycle) bool {
	key := c.Key()
	v.mu.Lock()
	if _, busy := v.inflight[key]; busy {
		v.mu.Unlock()
		v.duplicates.Add(1)
		return false
	}
	v.inflight[key] = struct{}{}
	v.mu.Unlock()

	select {
	case v.queue <- c:
		v.accepted.Add(1)
		return true
	default:
		v.release(key)
		v.dropped.Add(1)
		v.logger.Warn("验证队列已满，丢弃候选",
			zap.String("exchange", c.Exchange.String()),
			zap.String("sequence", c.Sequence()))
		return false
	}
}

func (v *Verifier) release(key model.CycleKey) {
	v.mu.Lock()
	delete(v.inflight, key)
	v.mu.Unlock()
}

// Run 启动验证 worker，ctx 取消后返回
func (v *Verifier) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < v.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case c := <-v.queue:
					v.process(ctx, c)
				}
			}
		})
	}
	v.logger.Info("模拟验证已启动", zap.Int("workers", v.opts.Workers), zap.Int("queue_size", v.opts.QueueSize))
	return g.Wait()
}

// process 验证单个候选并输出结果
func (v *Verifier) process(ctx context.Context, c model.TriangularCycle) {
	defer v.release(c.Key())

	start := v.now()
	res, err := v.Verify(ctx, c)
	if v.opts.Latency != nil {
		v.opts.Latency.Observe(c.Exchange, v.now().Sub(start))
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.failed.Add(1)
		v.record(c.Exchange, classify(err), 0)
		v.logger.Debug("模拟验证未完成",
			zap.String("exchange", c.Exchange.String()),
			zap.String("sequence", c.Sequence()),
			zap.Error(err))
		return
	}

	v.verified.Add(1)
	profit, _ := res.Profit.Float64()
	if !res.Profitable() {
		v.record(c.Exchange, stats.ReasonNoProfit, profit)
		return
	}
	v.profitable.Add(1)
	v.record(c.Exchange, stats.ReasonProfit, profit)

	trade := model.NewTriangularTrade(c, res.Profit, v.now())
	v.logger.Info("三角套利模拟盈利",
		zap.String("id", trade.ID),
		zap.String("exchange", trade.Exchange.String()),
		zap.String("sequence", trade.Sequence),
		zap.String("capital", trade.Capital.String()),
		zap.String("profit", trade.Profit.StringFixed(6)),
		zap.String("potential_gain", c.PotentialGain().StringFixed(6)))
	if v.publisher != nil {
		if err := v.publisher.Publish(ctx, trade); err != nil {
			v.logger.Warn("输出成功交易失败", zap.String("id", trade.ID), zap.Error(err))
		}
	}
}

// Verify 从 StartingAmount 出发依次模拟三条腿
func (v *Verifier) Verify(ctx context.Context, c model.TriangularCycle) (Result, error) {
	amount := model.StartingAmount
	for i, leg := range c.Legs {
		out, err := v.sim.Simulate(ctx, c.Exchange, leg.PairSymbol, leg.Side, amount)
		if err != nil {
			return Result{}, errors.Wrapf(err, "第 %d 条腿 %s %s", i+1, leg.Side, leg.PairSymbol)
		}
		amount = out
	}
	return Result{
		Cycle:  c,
		Final:  amount,
		Profit: amount.Sub(model.StartingAmount),
	}, nil
}

func (v *Verifier) record(ex model.Exchange, reason stats.Reason, profit float64) {
	if v.opts.Recorder == nil {
		return
	}
	v.opts.Recorder.Add(stats.Outcome{Exchange: ex, Reason: reason, Profit: profit})
}

// Metrics 指标快照
func (v *Verifier) Metrics() VerifierMetrics {
	return VerifierMetrics{
		Accepted:   v.accepted.Load(),
		Duplicates: v.duplicates.Load(),
		Dropped:    v.dropped.Load(),
		Verified:   v.verified.Load(),
		Profitable: v.profitable.Load(),
		Failed:     v.failed.Load(),
		QueueLen:   len(v.queue),
	}
}

// classify 将模拟错误归类
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
