package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// LongSuffix 多头杠杆代币后缀，如 BTC3L
	LongSuffix = "L"
	// ShortSuffix 空头杠杆代币后缀，如 BTC3S
	ShortSuffix = "S"
)

// LeveragedKey 杠杆代币对主键: (BaseSymbol, QuoteSymbol, Exchange)
type LeveragedKey struct {
	BaseSymbol  string
	QuoteSymbol string
	Exchange    Exchange
}

// LeveragedTokenPair 同一交易所、同一报价资产下成对出现的多空杠杆代币
// 启动时发现一次，之后不可变。
type LeveragedTokenPair struct {
	// Exchange 交易所
	Exchange Exchange
	// BaseSymbol 去掉 L/S 后缀的代币符号，如 BTC3
	BaseSymbol string
	// QuoteSymbol 报价资产，如 USDT
	QuoteSymbol string
}

// Key 返回主键
func (p LeveragedTokenPair) Key() LeveragedKey {
	return LeveragedKey{BaseSymbol: p.BaseSymbol, QuoteSymbol: p.QuoteSymbol, Exchange: p.Exchange}
}

// Underlying 标的资产，如 BTC3 -> BTC
func (p LeveragedTokenPair) Underlying() string {
	return strings.TrimRight(p.BaseSymbol, "0123456789")
}

// Multiplier 杠杆倍数，如 BTC3 -> 3；无法解析时返回 0
func (p LeveragedTokenPair) Multiplier() int {
	digits := p.BaseSymbol[len(p.Underlying()):]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// LongPairSymbol 多头代币统一交易对，如 BTC3LUSDT
func (p LeveragedTokenPair) LongPairSymbol() string {
	return p.BaseSymbol + LongSuffix + p.QuoteSymbol
}

// ShortPairSymbol 空头代币统一交易对，如 BTC3SUSDT
func (p LeveragedTokenPair) ShortPairSymbol() string {
	return p.BaseSymbol + ShortSuffix + p.QuoteSymbol
}

// LeveragedOpportunity 单个多空代币对的跟踪状态
// 持仓数量一经确定不再调整，仅重新估值。
type LeveragedOpportunity struct {
	// Pair 对应的杠杆代币对
	Pair LeveragedTokenPair
	// Multiplier 杠杆倍数
	Multiplier int
	// LongAmount 入场买入的多头代币数量
	LongAmount decimal.Decimal
	// ShortAmount 入场买入的空头代币数量
	ShortAmount decimal.Decimal
	// CurrentLongValue 多头持仓按当前买盘卖出的价值
	CurrentLongValue decimal.Decimal
	// CurrentShortValue 空头持仓按当前买盘卖出的价值
	CurrentShortValue decimal.Decimal
	// UpdatedAt 最近一次估值时间
	UpdatedAt time.Time
}

// NewLeveragedOpportunity 为代币对创建未入场的机会
func NewLeveragedOpportunity(pair LeveragedTokenPair) LeveragedOpportunity {
	return LeveragedOpportunity{
		Pair:       pair,
		Multiplier: pair.Multiplier(),
	}
}

// Key 返回主键（与代币对一致）
func (o LeveragedOpportunity) Key() LeveragedKey {
	return o.Pair.Key()
}

// Sized 两条腿是否都已完成入场
func (o LeveragedOpportunity) Sized() bool {
	return o.LongAmount.IsPositive() && o.ShortAmount.IsPositive()
}

// Priced 两条腿是否都已至少估值一次
func (o LeveragedOpportunity) Priced() bool {
	return !o.CurrentLongValue.IsZero() && !o.CurrentShortValue.IsZero()
}

// Profit 相对固定面值的盈亏
// 公式: CurrentLongValue + CurrentShortValue - 200；任一腿未估值时为 0
func (o LeveragedOpportunity) Profit() decimal.Decimal {
	if !o.Priced() {
		return decimal.Zero
	}
	return o.CurrentLongValue.Add(o.CurrentShortValue).Sub(LeveragedPar)
}

// Equal 判断两个快照是否一致
func (o LeveragedOpportunity) Equal(x LeveragedOpportunity) bool {
	return o.Pair == x.Pair &&
		o.Multiplier == x.Multiplier &&
		o.LongAmount.Equal(x.LongAmount) &&
		o.ShortAmount.Equal(x.ShortAmount) &&
		o.CurrentLongValue.Equal(x.CurrentLongValue) &&
		o.CurrentShortValue.Equal(x.CurrentShortValue) &&
		o.UpdatedAt.Equal(x.UpdatedAt)
}
