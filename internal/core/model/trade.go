package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Idea 套利思路类别
type Idea string

const (
	// IdeaTriangular 三角套利
	IdeaTriangular Idea = "triangular"
	// IdeaLeveraged 杠杆代币套利
	IdeaLeveraged Idea = "leveraged"
)

// SuccessfulTrade 模拟成交后确认盈利的交易记录
// 仅用于日志/输出，严禁真实下单。
type SuccessfulTrade struct {
	// ID 记录唯一标识
	ID string `json:"id"`
	// Idea 套利类别
	Idea Idea `json:"idea"`
	// Exchange 交易所
	Exchange Exchange `json:"exchange"`
	// Sequence 交易路径，如 ETHUSDT->ETHBTC->BTCUSDT
	Sequence string `json:"sequence"`
	// Profit 模拟利润（稳定币）
	Profit decimal.Decimal `json:"profit"`
	// Capital 投入资金（稳定币）
	Capital decimal.Decimal `json:"capital"`
	// Timestamp 记录时间（UTC）
	Timestamp time.Time `json:"ts"`
}

// NewTriangularTrade 由验证通过的三角循环生成交易记录
func NewTriangularTrade(cycle TriangularCycle, profit decimal.Decimal, now time.Time) SuccessfulTrade {
	return SuccessfulTrade{
		ID:        uuid.NewString(),
		Idea:      IdeaTriangular,
		Exchange:  cycle.Exchange,
		Sequence:  cycle.Sequence(),
		Profit:    profit,
		Capital:   StartingAmount,
		Timestamp: now.UTC(),
	}
}

// NewLeveragedTrade 由盈利的杠杆代币机会生成交易记录
func NewLeveragedTrade(opp LeveragedOpportunity, now time.Time) SuccessfulTrade {
	return SuccessfulTrade{
		ID:        uuid.NewString(),
		Idea:      IdeaLeveraged,
		Exchange:  opp.Pair.Exchange,
		Sequence:  opp.Pair.LongPairSymbol() + "+" + opp.Pair.ShortPairSymbol(),
		Profit:    opp.Profit(),
		Capital:   LeveragedPar,
		Timestamp: now.UTC(),
	}
}
