// Package gateio 实现 Gate.io 现货（API v4）的数据来源。
// REST: /api/v4/spot/currency_pairs、/api/v4/spot/tickers、/api/v4/spot/order_book
// 交易对格式为 BTC_USDT。
package gateio

// CurrencyPair 现货交易对信息
type CurrencyPair struct {
	// ID 交易对，如 BTC_USDT
	ID string `json:"id"`
	// Base 基础币种
	Base string `json:"base"`
	// Quote 报价币种
	Quote string `json:"quote"`
	// TradeStatus 状态: tradable, untradable, buyable, sellable
	TradeStatus string `json:"trade_status"`
}

// IsTradable 是否可交易
func (p *CurrencyPair) IsTradable() bool {
	return p.TradeStatus == "tradable"
}

// Ticker 行情快照
type Ticker struct {
	// CurrencyPair 交易对
	CurrencyPair string `json:"currency_pair"`
	// Last 最新成交价
	Last string `json:"last"`
	// LowestAsk 卖一价（无挂单时为空）
	LowestAsk string `json:"lowest_ask"`
	// HighestBid 买一价（无挂单时为空）
	HighestBid string `json:"highest_bid"`
}

// OrderBook 深度快照
type OrderBook struct {
	// Current 快照时间（毫秒）
	Current int64 `json:"current"`
	// Asks 卖盘 [[price, amount], ...]，价格升序
	Asks [][]string `json:"asks"`
	// Bids 买盘 [[price, amount], ...]，价格降序
	Bids [][]string `json:"bids"`
}
