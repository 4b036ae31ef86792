// Package kucoin 实现 KuCoin 现货的数据来源。
// REST: /api/v1/symbols、/api/v1/market/allTickers、/api/v1/market/orderbook/level2_{20,100}
// 交易对格式为 BTC-USDT；响应统一包装为 {"code":"200000","data":...}。
package kucoin

// codeOK 成功响应码
const codeOK = "200000"

// Response KuCoin REST 通用响应
type Response[T any] struct {
	// Code 响应码，"200000" 表示成功
	Code string `json:"code"`
	// Msg 错误消息
	Msg string `json:"msg"`
	// Data 数据
	Data T `json:"data"`
}

// Symbol 现货交易对信息
type Symbol struct {
	// Symbol 交易对，如 BTC-USDT
	Symbol string `json:"symbol"`
	// BaseCurrency 基础币种
	BaseCurrency string `json:"baseCurrency"`
	// QuoteCurrency 报价币种
	QuoteCurrency string `json:"quoteCurrency"`
	// EnableTrading 是否可交易
	EnableTrading bool `json:"enableTrading"`
}

// Ticker 行情快照
type Ticker struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Buy 买一价
	Buy string `json:"buy"`
	// Sell 卖一价
	Sell string `json:"sell"`
	// Last 最新成交价
	Last string `json:"last"`
}

// AllTickers allTickers 接口数据
type AllTickers struct {
	// Time 快照时间（毫秒）
	Time int64 `json:"time"`
	// Ticker 全部行情
	Ticker []Ticker `json:"ticker"`
}

// OrderBook 深度快照
type OrderBook struct {
	// Sequence 序列号
	Sequence string `json:"sequence"`
	// Asks 卖盘 [[price, size], ...]
	Asks [][]string `json:"asks"`
	// Bids 买盘 [[price, size], ...]
	Bids [][]string `json:"bids"`
}
