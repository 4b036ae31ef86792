// Package exchange 定义交易所适配器契约以及各交易所共用的行情流逻辑。
// 具体交易所只需实现 Source（交易对、行情、深度三个 REST 能力），
// 由 Streamer 统一完成交易对解析、杠杆代币识别、定时轮询与深度排序。
package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/metadata"
)

// Adapter 交易所适配器（核心模块消费的契约）
type Adapter interface {
	// Exchange 交易所标识
	Exchange() model.Exchange
	// StartStreaming 解析交易对并开始向行情缓存推送快照
	// 交易对列表获取失败时返回 *InitializationError，且不会开始推送。
	StartStreaming(ctx context.Context) error
	// GetMarketAsks 当前卖盘，价格升序
	GetMarketAsks(ctx context.Context, pair string) ([]model.Level, error)
	// GetMarketBids 当前买盘，价格降序
	GetMarketBids(ctx context.Context, pair string) ([]model.Level, error)
}

// RawTicker 交易所原始最优报价
type RawTicker struct {
	// Symbol 交易所原生交易对标识
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Last   decimal.Decimal
}

// Source 单个交易所的数据来源
type Source interface {
	Exchange() model.Exchange
	// FetchPairs 获取全部交易对（含状态）
	FetchPairs(ctx context.Context) ([]metadata.PairSymbol, error)
	// FetchTickers 一次性获取全部交易对的最优报价
	FetchTickers(ctx context.Context) ([]RawTicker, error)
	// FetchOrderBook 获取指定交易对的深度（顺序不作要求）
	FetchOrderBook(ctx context.Context, exchangeSymbol string, depth int) (asks, bids []model.Level, err error)
}

// PairSubscriber 可选能力：交易对解析完成后启动推送型行情（如 WebSocket）
type PairSubscriber interface {
	SubscribePairs(ctx context.Context, pairs []metadata.PairSymbol) error
}

// InitializationError 适配器初始化失败（无法获取交易对列表）
// 该适配器不会开始推送，其余适配器不受影响。
type InitializationError struct {
	Exchange model.Exchange
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s 初始化失败: %v", e.Exchange, e.Err)
}

// Unwrap 返回底层错误
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// Cause 兼容 github.com/pkg/errors
func (e *InitializationError) Cause() error {
	return e.Err
}
