// Package paper 基于实时订单簿深度模拟市价成交。
// 重要：仅用于研究，严禁真实下单。
package paper

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"crypto-arbitrage-monitor/internal/core/model"
)

// ErrUnknownExchange 未注册的交易所
var ErrUnknownExchange = errors.New("未知交易所")

// InsufficientLiquidityError 订单簿深度不足以完成模拟成交
type InsufficientLiquidityError struct {
	// Exchange 交易所
	Exchange model.Exchange
	// Pair 统一交易对
	Pair string
	// Side 成交方向
	Side model.Side
	// Remaining 未能成交的输入数量（sell 为基础资产，buy 为报价资产）
	Remaining decimal.Decimal
	// Filled 深度耗尽前已得到的输出数量
	Filled decimal.Decimal
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("深度不足: exchange=%s pair=%s side=%s remaining=%s filled=%s",
		e.Exchange, e.Pair, e.Side, e.Remaining.String(), e.Filled.String())
}

// BookSource 订单簿深度来源（由交易所适配器实现）
type BookSource interface {
	Exchange() model.Exchange
	// GetMarketAsks 卖盘，价格升序
	GetMarketAsks(ctx context.Context, pair string) ([]model.Level, error)
	// GetMarketBids 买盘，价格降序
	GetMarketBids(ctx context.Context, pair string) ([]model.Level, error)
}

// Simulator 模拟成交器
// 每次模拟都重新拉取深度，不缓存订单簿。
type Simulator struct {
	sources map[model.Exchange]BookSource
}

// NewSimulator 创建模拟成交器
// 参数 sources: 各交易所的深度来源；同一交易所重复注册时以后者为准
func NewSimulator(sources ...BookSource) *Simulator {
	m := make(map[model.Exchange]BookSource, len(sources))
	for _, src := range sources {
		m[src.Exchange()] = src
	}
	return &Simulator{sources: m}
}

// Register 追加深度来源
// 须在并发使用前完成注册。
func (s *Simulator) Register(src BookSource) {
	s.sources[src.Exchange()] = src
}

// SimulateSell 在买盘上卖出 baseAmount 个基础资产
// 返回: 得到的报价资产数量
func (s *Simulator) SimulateSell(ctx context.Context, exchange model.Exchange, pair string, baseAmount decimal.Decimal) (decimal.Decimal, error) {
	if !baseAmount.IsPositive() {
		return decimal.Zero, errors.Errorf("卖出数量必须为正: %s", baseAmount)
	}
	src, ok := s.sources[exchange]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrUnknownExchange, "exchange=%s", exchange)
	}
	bids, err := src.GetMarketBids(ctx, pair)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "获取买盘失败 exchange=%s pair=%s", exchange, pair)
	}
	out, err := WalkBids(bids, baseAmount)
	if err != nil {
		return decimal.Zero, annotate(err, exchange, pair)
	}
	return out, nil
}

// SimulateBuy 在卖盘上花费 quoteAmount 个报价资产买入
// 返回: 得到的基础资产数量
func (s *Simulator) SimulateBuy(ctx context.Context, exchange model.Exchange, pair string, quoteAmount decimal.Decimal) (decimal.Decimal, error) {
	if !quoteAmount.IsPositive() {
		return decimal.Zero, errors.Errorf("买入金额必须为正: %s", quoteAmount)
	}
	src, ok := s.sources[exchange]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrUnknownExchange, "exchange=%s", exchange)
	}
	asks, err := src.GetMarketAsks(ctx, pair)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "获取卖盘失败 exchange=%s pair=%s", exchange, pair)
	}
	out, err := WalkAsks(asks, quoteAmount)
	if err != nil {
		return decimal.Zero, annotate(err, exchange, pair)
	}
	return out, nil
}

// Simulate 按方向执行单腿模拟
func (s *Simulator) Simulate(ctx context.Context, exchange model.Exchange, pair string, side model.Side, amount decimal.Decimal) (decimal.Decimal, error) {
	if side == model.SideBuy {
		return s.SimulateBuy(ctx, exchange, pair, amount)
	}
	return s.SimulateSell(ctx, exchange, pair, amount)
}

func annotate(err error, exchange model.Exchange, pair string) error {
	var liq *InsufficientLiquidityError
	if errors.As(err, &liq) {
		liq.Exchange = exchange
		liq.Pair = pair
	}
	return err
}
