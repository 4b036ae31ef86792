// Package rates 维护每个交易所内资产之间的最新兑换价格。
package rates

import (
	"sync"

	"github.com/shopspring/decimal"

	"crypto-arbitrage-monitor/internal/core/model"
)

// Key 索引主键: (交易所, 基础资产)
type Key struct {
	Exchange model.Exchange
	Asset    string
}

// Rates 单个资产相对各报价资产的最新 ask/bid
// 返回给调用方的是拷贝，可安全并发读取。
type Rates struct {
	ask map[string]decimal.Decimal
	bid map[string]decimal.Decimal
}

// Ask 以 quote 计价的最新卖一价
func (r Rates) Ask(quote string) (decimal.Decimal, bool) {
	v, ok := r.ask[quote]
	return v, ok
}

// Bid 以 quote 计价的最新买一价
func (r Rates) Bid(quote string) (decimal.Decimal, bool) {
	v, ok := r.bid[quote]
	return v, ok
}

// Quotes 已知的报价资产数量
func (r Rates) Quotes() int {
	return len(r.ask)
}

// Index 兑换价格索引
// 条目随首次出现的行情创建，之后只更新不删除。
type Index struct {
	mu      sync.RWMutex
	entries map[Key]*Rates
}

// NewIndex 创建空索引
func NewIndex() *Index {
	return &Index{entries: make(map[Key]*Rates)}
}

// Update 用行情更新 (exchange, base) 条目中 quote 对应的 ask/bid
func (i *Index) Update(t model.Tick) {
	key := Key{Exchange: t.Exchange, Asset: t.BaseSymbol}

	i.mu.Lock()
	defer i.mu.Unlock()
	r, ok := i.entries[key]
	if !ok {
		r = &Rates{
			ask: make(map[string]decimal.Decimal),
			bid: make(map[string]decimal.Decimal),
		}
		i.entries[key] = r
	}
	r.ask[t.QuoteSymbol] = t.AskPrice
	r.bid[t.QuoteSymbol] = t.BidPrice
}

// Lookup 读取 (exchange, asset) 条目的拷贝
func (i *Index) Lookup(exchange model.Exchange, asset string) (Rates, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	r, ok := i.entries[Key{Exchange: exchange, Asset: asset}]
	if !ok {
		return Rates{}, false
	}
	out := Rates{
		ask: make(map[string]decimal.Decimal, len(r.ask)),
		bid: make(map[string]decimal.Decimal, len(r.bid)),
	}
	for k, v := range r.ask {
		out.ask[k] = v
	}
	for k, v := range r.bid {
		out.bid[k] = v
	}
	return out, true
}

// Len 条目数量
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}
