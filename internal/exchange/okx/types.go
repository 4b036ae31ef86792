// Package okx 实现 OKX 现货的数据来源。
// REST: /api/v5/public/instruments、/api/v5/market/tickers、/api/v5/market/books
// WebSocket（可选）: tickers 频道，文本 ping/pong 心跳
package okx

// Response OKX REST 通用响应
type Response[T any] struct {
	// Code 响应码，"0" 表示成功
	Code string `json:"code"`
	// Msg 错误消息
	Msg string `json:"msg"`
	// Data 数据列表
	Data []T `json:"data"`
}

// Instrument 现货交易对信息
type Instrument struct {
	// InstId 交易对 ID，如 BTC-USDT
	InstId string `json:"instId"`
	// InstType 产品类型: SPOT
	InstType string `json:"instType"`
	// BaseCcy 基础币种
	BaseCcy string `json:"baseCcy"`
	// QuoteCcy 报价币种
	QuoteCcy string `json:"quoteCcy"`
	// State 状态: live, suspend, preopen
	State string `json:"state"`
}

// IsLive 是否可交易
func (i *Instrument) IsLive() bool {
	return i.State == "live"
}

// Ticker 行情快照（REST 与 WebSocket tickers 频道格式相同）
type Ticker struct {
	// InstId 交易对 ID
	InstId string `json:"instId"`
	// Last 最新成交价
	Last string `json:"last"`
	// AskPx 卖一价
	AskPx string `json:"askPx"`
	// BidPx 买一价
	BidPx string `json:"bidPx"`
	// Ts 交易所时间戳（毫秒字符串）
	Ts string `json:"ts"`
}

// Book 深度快照
// bids/asks 格式: [[价格, 数量, 废弃, 订单数], ...]
type Book struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
	Ts   string     `json:"ts"`
}

// SubscribeRequest WebSocket 订阅请求
type SubscribeRequest struct {
	// Op 操作类型: subscribe, unsubscribe
	Op string `json:"op"`
	// Args 订阅参数列表
	Args []SubscribeArg `json:"args"`
}

// SubscribeArg 订阅参数
type SubscribeArg struct {
	// Channel 频道名称: tickers
	Channel string `json:"channel"`
	// InstId 交易对 ID: BTC-USDT
	InstId string `json:"instId"`
}

// PushMessage WebSocket 推送或事件消息
type PushMessage struct {
	// Event 事件类型: subscribe, error（推送数据时为空）
	Event string `json:"event,omitempty"`
	// Code 错误码
	Code string `json:"code,omitempty"`
	// Msg 错误消息
	Msg string `json:"msg,omitempty"`
	// Arg 订阅参数
	Arg SubscribeArg `json:"arg"`
	// Data 行情数据
	Data []Ticker `json:"data"`
}

// ConnectionMetrics WebSocket 连接质量指标
type ConnectionMetrics struct {
	// Connected 当前是否已连接
	Connected bool `json:"connected"`
	// ReconnectCount 重连次数
	ReconnectCount int64 `json:"reconnect_count"`
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64 `json:"parse_error_count"`
	// Symbols 已缓存行情的交易对数量
	Symbols int `json:"symbols"`
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64 `json:"last_message_age_ms"`
	// WsRttMs ping/pong 往返时间（毫秒）
	WsRttMs int64 `json:"ws_rtt_ms"`
}
