// Package binance 基于 go-binance SDK 实现 Binance 现货数据来源。
// 交易对: GET /api/v3/exchangeInfo
// 行情:   GET /api/v3/ticker/24hr（全量）
// 深度:   GET /api/v3/depth
package binance

import (
	"context"
	"net/http"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/util/fastparse"
)

// statusTrading 可交易状态
const statusTrading = "TRADING"

// maxDepth /api/v3/depth 支持的最大档数
const maxDepth = 5000

// Source Binance 现货数据来源（仅公共接口，不需要 API Key）
type Source struct {
	client *gobinance.Client
	logger *zap.Logger
}

// NewSource 创建 Binance 数据来源
func NewSource(cfg config.BinanceConfig, logger *zap.Logger) *Source {
	client := gobinance.NewClient("", "")
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	client.HTTPClient = &http.Client{Timeout: cfg.Timeout()}
	return &Source{
		client: client,
		logger: logger.Named("binance"),
	}
}

// Exchange 交易所标识
func (s *Source) Exchange() model.Exchange {
	return model.ExchangeBinance
}

// FetchPairs 获取现货交易对
func (s *Source) FetchPairs(ctx context.Context) ([]metadata.PairSymbol, error) {
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "获取 Binance 交易对失败")
	}
	pairs := make([]metadata.PairSymbol, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if p, ok := ToPair(sym); ok {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// FetchTickers 获取全部交易对 24 小时行情中的最优报价
func (s *Source) FetchTickers(ctx context.Context) ([]exchange.RawTicker, error) {
	stats, err := s.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "获取 Binance 行情失败")
	}
	raws := make([]exchange.RawTicker, 0, len(stats))
	for _, st := range stats {
		if st == nil {
			continue
		}
		raws = append(raws, ToRaw(st))
	}
	return raws, nil
}

// FetchOrderBook 获取深度
func (s *Source) FetchOrderBook(ctx context.Context, symbol string, depth int) (asks, bids []model.Level, err error) {
	if depth > maxDepth {
		depth = maxDepth
	}
	res, err := s.client.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ToLevels(res)
}

// ToPair 转换交易对信息
// 缺少资产字段的条目被忽略；非 TRADING 状态保留但标记为非活跃。
func ToPair(sym gobinance.Symbol) (metadata.PairSymbol, bool) {
	if sym.Symbol == "" || sym.BaseAsset == "" || sym.QuoteAsset == "" {
		return metadata.PairSymbol{}, false
	}
	active := sym.Status == statusTrading
	return metadata.NewPairSymbol(model.ExchangeBinance, sym.Symbol, sym.BaseAsset, sym.QuoteAsset, active), true
}

// ToRaw 转换行情
func ToRaw(st *gobinance.PriceChangeStats) exchange.RawTicker {
	return exchange.RawTicker{
		Symbol: st.Symbol,
		Bid:    fastparse.MustDecimal(st.BidPrice),
		Ask:    fastparse.MustDecimal(st.AskPrice),
		Last:   fastparse.MustDecimal(st.LastPrice),
	}
}

// ToLevels 转换深度，数量为 0 的档位被丢弃
func ToLevels(res *gobinance.DepthResponse) (asks, bids []model.Level, err error) {
	if res == nil {
		return nil, nil, errors.New("深度响应为空")
	}
	asks = make([]model.Level, 0, len(res.Asks))
	for i, a := range res.Asks {
		lv, err := fastparse.ParseLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "asks 第 %d 档", i)
		}
		if lv.Qty.IsPositive() {
			asks = append(asks, lv)
		}
	}
	bids = make([]model.Level, 0, len(res.Bids))
	for i, b := range res.Bids {
		lv, err := fastparse.ParseLevel(b.Price, b.Quantity)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "bids 第 %d 档", i)
		}
		if lv.Qty.IsPositive() {
			bids = append(bids, lv)
		}
	}
	return asks, bids, nil
}
