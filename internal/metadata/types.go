// Package metadata 负责交易所交易对元数据的归一化与查找。
// 每个适配器启动时构建一次 PairRegistry，之后只读。
package metadata

import (
	"strings"

	"github.com/pkg/errors"

	"crypto-arbitrage-monitor/internal/core/model"
)

// ErrUnknownPair 交易对未在交易所注册（或已下架）
var ErrUnknownPair = errors.New("未知交易对")

// PairSymbol 交易所原生交易对与统一标识的映射
type PairSymbol struct {
	// Exchange 交易所
	Exchange model.Exchange
	// ExchangeSymbol 交易所原生标识，如 ETH-USDT（OKX）、ETHUSDT（Binance）
	ExchangeSymbol string
	// Base 基础资产，如 ETH
	Base string
	// Quote 报价资产，如 USDT
	Quote string
	// Active 是否处于可交易状态
	Active bool
}

// Unified 统一交易对标识，如 ETHUSDT
func (p PairSymbol) Unified() string {
	return p.Base + p.Quote
}

// NewPairSymbol 构建交易对，资产统一为大写
func NewPairSymbol(exchange model.Exchange, exchangeSymbol, base, quote string, active bool) PairSymbol {
	return PairSymbol{
		Exchange:       exchange,
		ExchangeSymbol: exchangeSymbol,
		Base:           strings.ToUpper(strings.TrimSpace(base)),
		Quote:          strings.ToUpper(strings.TrimSpace(quote)),
		Active:         active,
	}
}

// normalizeSymbol 标准化交易对格式
// 移除分隔符，转为大写
// 例如: BTC-USDT -> BTCUSDT, btc_usdt -> BTCUSDT
func normalizeSymbol(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return strings.ToUpper(strings.TrimSpace(s))
}
