// Package model 定义监控器中使用的核心数据结构。
// 包含行情快照、订单簿档位、三角套利候选、杠杆代币机会等核心类型。
package model

import (
	"github.com/shopspring/decimal"
)

// Exchange 交易所标识
type Exchange string

const (
	// ExchangeBinance Binance 现货
	ExchangeBinance Exchange = "binance"
	// ExchangeOKX OKX 现货
	ExchangeOKX Exchange = "okx"
	// ExchangeBybit Bybit 现货
	ExchangeBybit Exchange = "bybit"
	// ExchangeGateIO Gate.io 现货
	ExchangeGateIO Exchange = "gateio"
	// ExchangeKuCoin KuCoin 现货
	ExchangeKuCoin Exchange = "kucoin"
)

// String 返回交易所标识字符串
func (e Exchange) String() string {
	return string(e)
}

// StartingAmount 模拟成交的参考名义金额（稳定币单位）
// 三角套利每个循环、杠杆代币每条腿均以此金额入场。
var StartingAmount = decimal.NewFromInt(100)

// LeveragedPar 杠杆代币多空两条腿的合计面值（2 × StartingAmount）
var LeveragedPar = decimal.NewFromInt(200)

// Level 订单簿深度档位
type Level struct {
	// Price 价格（报价资产计价）
	Price decimal.Decimal
	// Qty 数量（基础资产）
	Qty decimal.Decimal
}

// Notional 档位名义价值: Price × Qty
func (l Level) Notional() decimal.Decimal {
	return l.Price.Mul(l.Qty)
}

// Side 模拟成交方向
type Side string

const (
	// SideBuy 用报价资产买入基础资产（吃卖盘 ask）
	SideBuy Side = "buy"
	// SideSell 卖出基础资产换取报价资产（吃买盘 bid）
	SideSell Side = "sell"
)
