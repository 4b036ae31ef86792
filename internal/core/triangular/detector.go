// Package triangular 实现单交易所内的三角套利检测与模拟验证。
//
// 检测流程:
//  1. 订阅行情缓存，每个快照更新兑换价格索引
//  2. 对非稳定币报价的交易对 (base, quote)，在每个稳定币 S 上生成正向与反向两个循环
//  3. 理论收益超过阈值的候选提交给 Verifier，按当前深度模拟成交
package triangular

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/core/rates"
	"crypto-arbitrage-monitor/internal/core/store"
)

// DefaultMinGain 进入模拟验证的理论收益阈值（1%）
var DefaultMinGain = decimal.NewFromFloat(0.01)

// CandidateStore 三角循环候选缓存
type CandidateStore = store.Store[model.CycleKey, model.TriangularCycle]

// NewCandidateStore 创建候选缓存（价格未变化的候选不产生事件）
func NewCandidateStore() *CandidateStore {
	return store.New(model.TriangularCycle.Key, store.WithEqual[model.CycleKey](model.TriangularCycle.Equal))
}

// Submitter 候选验证入口
type Submitter interface {
	// Submit 提交候选，返回是否被接受
	Submit(cycle model.TriangularCycle) bool
}

// DetectorMetrics 检测器指标
type DetectorMetrics struct {
	Ticks      int64 `json:"ticks"`
	Candidates int   `json:"candidates"`
	Generated  int64 `json:"generated"`
	Submitted  int64 `json:"submitted"`
	Rejected   int64 `json:"rejected"`
}

// Detector 三角套利检测器
// Handle 只从 Run 的单个 goroutine 调用，索引由检测器独占。
type Detector struct {
	ticks      *store.Store[model.TickKey, model.Tick]
	index      *rates.Index
	candidates *CandidateStore
	stable     []string
	stableSet  map[string]bool
	minGain    decimal.Decimal
	submitter  Submitter
	logger     *zap.Logger

	tickCount atomic.Int64
	generated atomic.Int64
	submitted atomic.Int64
	rejected  atomic.Int64
}

// NewDetector 创建检测器
// 参数 ticks: 行情缓存
// 参数 stable: 稳定币列表，顺序即候选生成顺序
// 参数 minGain: 理论收益阈值
// 参数 submitter: 验证入口，可为 nil（只生成候选）
func NewDetector(ticks *store.Store[model.TickKey, model.Tick], stable []string, minGain decimal.Decimal, submitter Submitter, logger *zap.Logger) *Detector {
	set := make(map[string]bool, len(stable))
	for _, s := range stable {
		set[s] = true
	}
	return &Detector{
		ticks:      ticks,
		index:      rates.NewIndex(),
		candidates: NewCandidateStore(),
		stable:     stable,
		stableSet:  set,
		minGain:    minGain,
		submitter:  submitter,
		logger:     logger.Named("triangular"),
	}
}

// Candidates 候选缓存（只读视图，可订阅）
func (d *Detector) Candidates() *CandidateStore {
	return d.candidates
}

// Run 订阅行情缓存并逐个处理快照，ctx 取消后返回
func (d *Detector) Run(ctx context.Context) error {
	sub := d.ticks.Subscribe()
	defer sub.Close()

	d.logger.Info("三角套利检测已启动", zap.Strings("stable_assets", d.stable), zap.String("min_gain", d.minGain.String()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			d.Handle(ev.Value)
		}
	}
}

// Handle 处理单个行情快照
// 返回本次生成的候选（已写入候选缓存）
func (d *Detector) Handle(t model.Tick) []model.TriangularCycle {
	d.tickCount.Add(1)
	if d.stableSet[t.BaseSymbol] {
		return nil
	}
	d.index.Update(t)
	if d.stableSet[t.QuoteSymbol] {
		return nil
	}

	baseRates, ok := d.index.Lookup(t.Exchange, t.BaseSymbol)
	if !ok {
		return nil
	}
	quoteRates, ok := d.index.Lookup(t.Exchange, t.QuoteSymbol)
	if !ok {
		return nil
	}

	base, quote := t.BaseSymbol, t.QuoteSymbol
	cross := t.UnifiedPair()
	var out []model.TriangularCycle
	for _, s := range d.stable {
		baseAsk, ok1 := baseRates.Ask(s)
		quoteAsk, ok2 := quoteRates.Ask(s)
		if !ok1 || !ok2 {
			continue
		}
		baseBid, _ := baseRates.Bid(s)
		quoteBid, _ := quoteRates.Bid(s)

		forward := model.TriangularCycle{
			Exchange: t.Exchange,
			Legs: [3]model.TradeLeg{
				{PairSymbol: base + s, Side: model.SideBuy, Price: baseAsk},
				{PairSymbol: cross, Side: model.SideSell, Price: t.BidPrice},
				{PairSymbol: quote + s, Side: model.SideSell, Price: quoteBid},
			},
		}
		reverse := model.TriangularCycle{
			Exchange: t.Exchange,
			Legs: [3]model.TradeLeg{
				{PairSymbol: quote + s, Side: model.SideBuy, Price: quoteAsk},
				{PairSymbol: cross, Side: model.SideBuy, Price: t.AskPrice},
				{PairSymbol: base + s, Side: model.SideSell, Price: baseBid},
			},
		}
		for _, c := range [2]model.TriangularCycle{forward, reverse} {
			if !pricesPositive(c) {
				continue
			}
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}

	d.candidates.Upsert(out...)
	d.generated.Add(int64(len(out)))
	for _, c := range out {
		if c.PotentialGain().GreaterThan(d.minGain) {
			d.submit(c)
		}
	}
	return out
}

func (d *Detector) submit(c model.TriangularCycle) {
	if d.submitter == nil {
		return
	}
	if d.submitter.Submit(c) {
		d.submitted.Add(1)
		return
	}
	d.rejected.Add(1)
}

// Metrics 指标快照
func (d *Detector) Metrics() DetectorMetrics {
	return DetectorMetrics{
		Ticks:      d.tickCount.Load(),
		Candidates: d.candidates.Len(),
		Generated:  d.generated.Load(),
		Submitted:  d.submitted.Load(),
		Rejected:   d.rejected.Load(),
	}
}

func pricesPositive(c model.TriangularCycle) bool {
	for _, l := range c.Legs {
		if !l.Price.IsPositive() {
			return false
		}
	}
	return true
}
