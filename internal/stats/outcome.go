// Package stats 维护模拟验证结果的滚动统计。
// 仅用于运行时观测，不做持久化。
package stats

import (
	"sync"

	"crypto-arbitrage-monitor/internal/core/model"
)

// Reason 单次验证的结论
type Reason string

const (
	// ReasonProfit 模拟利润为正
	ReasonProfit Reason = "profit"
	// ReasonNoProfit 模拟利润非正
	ReasonNoProfit Reason = "no_profit"
	// ReasonLiquidity 深度不足
	ReasonLiquidity Reason = "liquidity"
	// ReasonLookup 交易所或交易对未知
	ReasonLookup Reason = "lookup"
	// ReasonError 其他错误（网络等）
	ReasonError Reason = "error"
)

// Outcome 单次验证结果
type Outcome struct {
	Exchange model.Exchange
	Reason   Reason
	// Profit 模拟利润（仅 ReasonProfit/ReasonNoProfit 有意义）
	Profit float64
}

// OutcomeStats 滚动窗口统计快照
type OutcomeStats struct {
	// Count 窗口内样本数
	Count int64 `json:"count"`
	// Total 累计样本数
	Total int64 `json:"total"`
	// Profitable 利润为正的样本数
	Profitable int64 `json:"profitable"`
	// NoProfit 利润非正的样本数
	NoProfit int64 `json:"no_profit"`
	// Liquidity 深度不足的样本数
	Liquidity int64 `json:"liquidity"`
	// Lookup 查找失败的样本数
	Lookup int64 `json:"lookup"`
	// Errors 其他错误样本数
	Errors int64 `json:"errors"`
	// HitRate 盈利样本占比
	HitRate float64 `json:"hit_rate"`
	// AvgProfit 盈利样本的平均利润
	AvgProfit float64 `json:"avg_profit"`
	// MaxProfit 窗口内最大利润
	MaxProfit float64 `json:"max_profit"`
}

// Recorder 验证结果记录器（滚动窗口，并发安全）
type Recorder struct {
	mu sync.Mutex

	windowSize int
	buf        []Outcome
	pos        int
	full       bool

	total     int64
	counts    map[Reason]int64
	sumProfit float64
}

// NewRecorder 创建记录器
// 参数 windowSize: 滚动窗口大小（默认 1000）
func NewRecorder(windowSize int) *Recorder {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Recorder{
		windowSize: windowSize,
		buf:        make([]Outcome, windowSize),
		counts:     make(map[Reason]int64, 5),
	}
}

// Add 记录一次验证结果
func (r *Recorder) Add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 环已满时先移除最旧样本的贡献
	if r.full {
		old := r.buf[r.pos]
		r.counts[old.Reason]--
		if old.Reason == ReasonProfit {
			r.sumProfit -= old.Profit
		}
	}

	r.buf[r.pos] = o
	r.pos++
	if r.pos >= r.windowSize {
		r.pos = 0
		r.full = true
	}

	r.total++
	r.counts[o.Reason]++
	if o.Reason == ReasonProfit {
		r.sumProfit += o.Profit
	}
}

// Stats 返回当前窗口统计
func (r *Recorder) Stats() OutcomeStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := OutcomeStats{
		Total:      r.total,
		Profitable: r.counts[ReasonProfit],
		NoProfit:   r.counts[ReasonNoProfit],
		Liquidity:  r.counts[ReasonLiquidity],
		Lookup:     r.counts[ReasonLookup],
		Errors:     r.counts[ReasonError],
	}
	out.Count = out.Profitable + out.NoProfit + out.Liquidity + out.Lookup + out.Errors
	if out.Count == 0 {
		return out
	}
	out.HitRate = float64(out.Profitable) / float64(out.Count)
	if out.Profitable > 0 {
		out.AvgProfit = r.sumProfit / float64(out.Profitable)
	}

	n := r.pos
	if r.full {
		n = r.windowSize
	}
	first := true
	for i := 0; i < n; i++ {
		o := r.buf[i]
		if o.Reason != ReasonProfit && o.Reason != ReasonNoProfit {
			continue
		}
		if first || o.Profit > out.MaxProfit {
			out.MaxProfit = o.Profit
			first = false
		}
	}
	return out
}
