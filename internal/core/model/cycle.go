package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradeLeg 三角循环中的一次模拟兑换
type TradeLeg struct {
	// PairSymbol 统一交易对，如 ETHUSDT
	PairSymbol string
	// Side 方向: buy 使用 ask 价，sell 使用 bid 价
	Side Side
	// Price 参考价格（生成候选时的最优价）
	Price decimal.Decimal
}

// ConversionRate 兑换率
// buy: 1 / Price（每单位报价资产可换得的基础资产）
// sell: Price（每单位基础资产可换得的报价资产）
// Price 非正时 buy 返回 0，避免除零。
func (l TradeLeg) ConversionRate() decimal.Decimal {
	if l.Side == SideBuy {
		if !l.Price.IsPositive() {
			return decimal.Zero
		}
		return decimal.NewFromInt(1).Div(l.Price)
	}
	return l.Price
}

// CycleKey 三角循环主键
// 循环身份由交易所与三条腿的交易对顺序确定，价格不参与。
type CycleKey struct {
	Exchange Exchange
	Leg1     string
	Leg2     string
	Leg3     string
}

// TriangularCycle 单交易所内的三腿套利候选
// 起点与终点均为同一稳定币。
type TriangularCycle struct {
	// Exchange 交易所
	Exchange Exchange
	// Legs 三条腿，按执行顺序排列
	Legs [3]TradeLeg
}

// Key 返回循环主键
func (c TriangularCycle) Key() CycleKey {
	return CycleKey{
		Exchange: c.Exchange,
		Leg1:     c.Legs[0].PairSymbol,
		Leg2:     c.Legs[1].PairSymbol,
		Leg3:     c.Legs[2].PairSymbol,
	}
}

// PotentialGain 按参考价计算的理论收益率
// 公式: rate1 × rate2 × rate3 - 1
func (c TriangularCycle) PotentialGain() decimal.Decimal {
	product := c.Legs[0].ConversionRate().
		Mul(c.Legs[1].ConversionRate()).
		Mul(c.Legs[2].ConversionRate())
	return product.Sub(decimal.NewFromInt(1))
}

// Sequence 返回可读的路径描述，如 ETHUSDT->ETHBTC->BTCUSDT
func (c TriangularCycle) Sequence() string {
	parts := make([]string, 0, len(c.Legs))
	for _, leg := range c.Legs {
		parts = append(parts, leg.PairSymbol)
	}
	return strings.Join(parts, "->")
}

// Equal 判断两个候选是否完全一致（主键与各腿价格）
func (c TriangularCycle) Equal(o TriangularCycle) bool {
	if c.Exchange != o.Exchange {
		return false
	}
	for i := range c.Legs {
		a, b := c.Legs[i], o.Legs[i]
		if a.PairSymbol != b.PairSymbol || a.Side != b.Side || !a.Price.Equal(b.Price) {
			return false
		}
	}
	return true
}
