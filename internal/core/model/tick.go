package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickKey 行情快照的缓存主键
// 由内容推导：统一交易对 + 交易所
type TickKey struct {
	// Pair 统一交易对，如 ETHUSDT
	Pair string
	// Exchange 交易所
	Exchange Exchange
}

// Tick 归一化后的现货最优买卖价快照
// 入缓存后视为不可变值，更新即整体替换。
type Tick struct {
	// Exchange 交易所
	Exchange Exchange
	// BaseSymbol 基础资产，如 ETH
	BaseSymbol string
	// QuoteSymbol 报价资产，如 USDT
	QuoteSymbol string
	// BidPrice 买一价
	BidPrice decimal.Decimal
	// AskPrice 卖一价
	AskPrice decimal.Decimal
	// LastPrice 最新成交价
	LastPrice decimal.Decimal
	// Timestamp 本机生成快照的时间（同一批次共享）
	Timestamp time.Time
}

// UnifiedPair 统一交易对标识: Base + Quote
func (t Tick) UnifiedPair() string {
	return t.BaseSymbol + t.QuoteSymbol
}

// Key 返回缓存主键
func (t Tick) Key() TickKey {
	return TickKey{Pair: t.UnifiedPair(), Exchange: t.Exchange}
}

// Equal 判断两个快照内容是否完全一致（含时间戳）
func (t Tick) Equal(o Tick) bool {
	return t.Exchange == o.Exchange &&
		t.BaseSymbol == o.BaseSymbol &&
		t.QuoteSymbol == o.QuoteSymbol &&
		t.BidPrice.Equal(o.BidPrice) &&
		t.AskPrice.Equal(o.AskPrice) &&
		t.LastPrice.Equal(o.LastPrice) &&
		t.Timestamp.Equal(o.Timestamp)
}
