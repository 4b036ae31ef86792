// Package paper 模拟成交属性测试
package paper

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"crypto-arbitrage-monitor/internal/core/model"
)

// 构造价格单调的深度: 买盘降序、卖盘升序
func ladder(best int64, qtys []int64, step int64) []model.Level {
	out := make([]model.Level, 0, len(qtys))
	for i, q := range qtys {
		out = append(out, model.Level{
			Price: decimal.NewFromInt(best + int64(i)*step),
			Qty:   decimal.NewFromInt(q),
		})
	}
	return out
}

func totalQty(levels []model.Level) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range levels {
		sum = sum.Add(l.Qty)
	}
	return sum
}

// **Feature: crypto-arbitrage-monitor, Property 3: Sell Proceeds Bounded By Best Bid**

func TestWalkBids_Bounded_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("深度足够时: worst*amount <= 卖出所得 <= best*amount", prop.ForAll(
		func(qtys []int64, amount int64) bool {
			bids := ladder(1000, qtys, -1)
			amt := decimal.NewFromInt(amount)
			out, err := WalkBids(bids, amt)
			if totalQty(bids).LessThan(amt) {
				return err != nil
			}
			if err != nil {
				return false
			}
			best := bids[0].Price.Mul(amt)
			worst := bids[len(bids)-1].Price.Mul(amt)
			return out.LessThanOrEqual(best) && out.GreaterThanOrEqual(worst)
		},
		gen.SliceOfN(10, gen.Int64Range(1, 20)),
		gen.Int64Range(1, 150),
	))

	properties.TestingRun(t)
}

// **Feature: crypto-arbitrage-monitor, Property 4: Buy Quantity Bounded By Best Ask**

func TestWalkAsks_Bounded_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("深度足够时: 买入数量 <= amount/best，且不超过总深度", prop.ForAll(
		func(qtys []int64, amount int64) bool {
			asks := ladder(100, qtys, 1)
			amt := decimal.NewFromInt(amount)
			notional := decimal.Zero
			for _, l := range asks {
				notional = notional.Add(l.Notional())
			}
			out, err := WalkAsks(asks, amt)
			if notional.LessThan(amt) {
				return err != nil
			}
			if err != nil {
				return false
			}
			upper := amt.Div(asks[0].Price)
			return out.LessThanOrEqual(upper) && out.LessThanOrEqual(totalQty(asks))
		},
		gen.SliceOfN(10, gen.Int64Range(1, 20)),
		gen.Int64Range(1, 30000),
	))

	properties.TestingRun(t)
}
