package paper

import (
	"github.com/shopspring/decimal"

	"crypto-arbitrage-monitor/internal/core/model"
)

// WalkBids 从最优买价开始逐档卖出 baseAmount
// 档位数量足够时按剩余数量成交并结束，否则吃掉整档继续。
// 返回: 得到的报价资产数量；深度耗尽时返回 *InsufficientLiquidityError
func WalkBids(bids []model.Level, baseAmount decimal.Decimal) (decimal.Decimal, error) {
	remaining := baseAmount
	out := decimal.Zero
	for _, lv := range bids {
		if lv.Qty.GreaterThanOrEqual(remaining) {
			return out.Add(remaining.Mul(lv.Price)), nil
		}
		out = out.Add(lv.Price.Mul(lv.Qty))
		remaining = remaining.Sub(lv.Qty)
	}
	return out, &InsufficientLiquidityError{Side: model.SideSell, Remaining: remaining, Filled: out}
}

// WalkAsks 从最优卖价开始逐档花费 quoteAmount
// 档位名义价值足够时按剩余金额折算数量并结束，否则吃掉整档继续。
// 返回: 得到的基础资产数量；深度耗尽时返回 *InsufficientLiquidityError
func WalkAsks(asks []model.Level, quoteAmount decimal.Decimal) (decimal.Decimal, error) {
	remaining := quoteAmount
	out := decimal.Zero
	for _, lv := range asks {
		if !lv.Price.IsPositive() {
			continue
		}
		cost := lv.Notional()
		if cost.GreaterThanOrEqual(remaining) {
			return out.Add(remaining.Div(lv.Price)), nil
		}
		out = out.Add(lv.Qty)
		remaining = remaining.Sub(cost)
	}
	return out, &InsufficientLiquidityError{Side: model.SideBuy, Remaining: remaining, Filled: out}
}
