package stats

import (
	"sort"
	"sync"
	"time"

	"crypto-arbitrage-monitor/internal/core/model"
)

// LatencyStats 单交易所模拟耗时统计（毫秒）
type LatencyStats struct {
	// Exchange 交易所
	Exchange model.Exchange `json:"exchange"`
	// Count 累计样本数
	Count int64 `json:"count"`
	// P50Ms P50 耗时
	P50Ms float64 `json:"p50_ms"`
	// P90Ms P90 耗时
	P90Ms float64 `json:"p90_ms"`
	// P99Ms P99 耗时
	P99Ms float64 `json:"p99_ms"`
}

type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool
}

func (w *rollingWindow) add(v int64) {
	w.count++
	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}
	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

func (w *rollingWindow) quantiles(qs ...float64) []int64 {
	values := make([]int64, len(qs))
	if len(w.buf) == 0 {
		return values
	}
	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	n := len(tmp)
	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return values
}

// LatencyTracker 按交易所统计一次完整模拟（含深度拉取）的耗时
type LatencyTracker struct {
	mu         sync.Mutex
	windowSize int
	windows    map[model.Exchange]*rollingWindow
}

// NewLatencyTracker 创建耗时统计
// 参数 windowSize: 每个交易所的滚动窗口大小（默认 10000）
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 10000
	}
	return &LatencyTracker{
		windowSize: windowSize,
		windows:    make(map[model.Exchange]*rollingWindow, 3),
	}
}

// Observe 记录一次耗时
func (t *LatencyTracker) Observe(exchange model.Exchange, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[exchange]
	if !ok {
		w = &rollingWindow{size: t.windowSize, buf: make([]int64, 0, t.windowSize)}
		t.windows[exchange] = w
	}
	w.add(d.Nanoseconds())
}

// Stats 获取指定交易所的统计快照
func (t *LatencyTracker) Stats(exchange model.Exchange) LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[exchange]
	if !ok {
		return LatencyStats{Exchange: exchange}
	}
	qs := w.quantiles(0.50, 0.90, 0.99)
	return LatencyStats{
		Exchange: exchange,
		Count:    w.count,
		P50Ms:    float64(qs[0]) / 1e6,
		P90Ms:    float64(qs[1]) / 1e6,
		P99Ms:    float64(qs[2]) / 1e6,
	}
}

// Exchanges 已有样本的交易所（按名称排序）
func (t *LatencyTracker) Exchanges() []model.Exchange {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Exchange, 0, len(t.windows))
	for ex := range t.windows {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
