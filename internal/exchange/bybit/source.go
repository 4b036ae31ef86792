// Package bybit 基于 hirokisan/bybit SDK 实现 Bybit 现货（v5）数据来源。
package bybit

import (
	"context"
	"net/http"

	gobybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/util/fastparse"
)

// statusTrading 可交易状态
const statusTrading = "Trading"

// maxDepth 现货深度接口支持的最大档数
const maxDepth = 200

// Source Bybit 现货数据来源
// SDK 方法不接收 context，取消依赖 HTTP 客户端超时。
type Source struct {
	client *gobybit.Client
	logger *zap.Logger
}

// NewSource 创建 Bybit 数据来源
func NewSource(cfg config.BybitConfig, logger *zap.Logger) *Source {
	client := gobybit.NewClient().WithHTTPClient(&http.Client{Timeout: cfg.Timeout()})
	if cfg.BaseURL != "" {
		client = client.WithBaseURL(cfg.BaseURL)
	}
	return &Source{
		client: client,
		logger: logger.Named("bybit"),
	}
}

// Exchange 交易所标识
func (s *Source) Exchange() model.Exchange {
	return model.ExchangeBybit
}

// FetchPairs 获取现货交易对
func (s *Source) FetchPairs(ctx context.Context) ([]metadata.PairSymbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.client.V5().Market().GetInstrumentsInfo(gobybit.V5GetInstrumentsInfoParam{
		Category: gobybit.CategoryV5Spot,
	})
	if err != nil {
		return nil, errors.Wrap(err, "获取 Bybit 交易对失败")
	}
	if res.Result.Spot == nil {
		return nil, errors.New("Bybit 交易对响应缺少 spot 结果")
	}
	pairs := make([]metadata.PairSymbol, 0, len(res.Result.Spot.List))
	for _, it := range res.Result.Spot.List {
		if p, ok := ToPair(string(it.Symbol), string(it.BaseCoin), string(it.QuoteCoin), string(it.Status)); ok {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// FetchTickers 获取全部现货行情
func (s *Source) FetchTickers(ctx context.Context) ([]exchange.RawTicker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.client.V5().Market().GetTickers(gobybit.V5GetTickersParam{
		Category: gobybit.CategoryV5Spot,
	})
	if err != nil {
		return nil, errors.Wrap(err, "获取 Bybit 行情失败")
	}
	if res.Result.Spot == nil {
		return nil, errors.New("Bybit 行情响应缺少 spot 结果")
	}
	raws := make([]exchange.RawTicker, 0, len(res.Result.Spot.List))
	for _, it := range res.Result.Spot.List {
		raws = append(raws, ToRaw(string(it.Symbol), it.Bid1Price, it.Ask1Price, it.LastPrice))
	}
	return raws, nil
}

// FetchOrderBook 获取深度
func (s *Source) FetchOrderBook(ctx context.Context, symbol string, depth int) (asks, bids []model.Level, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	res, err := s.client.V5().Market().GetOrderbook(gobybit.V5GetOrderbookParam{
		Category: gobybit.CategoryV5Spot,
		Symbol:   gobybit.SymbolV5(symbol),
		Limit:    &depth,
	})
	if err != nil {
		return nil, nil, err
	}

	asks = make([]model.Level, 0, len(res.Result.Asks))
	for i, a := range res.Result.Asks {
		lv, err := fastparse.ParseLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "asks 第 %d 档", i)
		}
		if lv.Qty.IsPositive() {
			asks = append(asks, lv)
		}
	}
	bids = make([]model.Level, 0, len(res.Result.Bids))
	for i, b := range res.Result.Bids {
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

// ToPair 转换交易对信息
func ToPair(symbol, base, quote, status string) (metadata.PairSymbol, bool) {
	if symbol == "" || base == "" || quote == "" {
		return metadata.PairSymbol{}, false
	}
	return metadata.NewPairSymbol(model.ExchangeBybit, symbol, base, quote, status == statusTrading), true
}

// ToRaw 转换行情
func ToRaw(symbol, bid, ask, last string) exchange.RawTicker {
	return exchange.RawTicker{
		Symbol: symbol,
		Bid:    fastparse.MustDecimal(bid),
		Ask:    fastparse.MustDecimal(ask),
		Last:   fastparse.MustDecimal(last),
	}
}
