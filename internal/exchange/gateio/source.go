package gateio

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/util/fastparse"
)

// maxDepth order_book 接口单边最大档数
const maxDepth = 100

// Source Gate.io 现货数据来源（公共 REST 轮询）
type Source struct {
	cfg     config.GateIOConfig
	fetcher *metadata.HTTPFetcher
	logger  *zap.Logger
}

// NewSource 创建 Gate.io 数据来源
func NewSource(cfg config.GateIOConfig, logger *zap.Logger) *Source {
	return &Source{
		cfg:     cfg,
		fetcher: metadata.NewHTTPFetcher(cfg.Timeout()),
		logger:  logger.Named("gateio"),
	}
}

// Exchange 交易所标识
func (s *Source) Exchange() model.Exchange {
	return model.ExchangeGateIO
}

// FetchPairs 获取现货交易对
func (s *Source) FetchPairs(ctx context.Context) ([]metadata.PairSymbol, error) {
	var resp []CurrencyPair
	if err := s.fetcher.GetJSON(ctx, s.cfg.BaseURL+"/api/v4/spot/currency_pairs", &resp); err != nil {
		return nil, errors.Wrap(err, "获取 Gate.io 交易对失败")
	}
	pairs := make([]metadata.PairSymbol, 0, len(resp))
	for i := range resp {
		if p, ok := ToPair(&resp[i]); ok {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// FetchTickers 获取全部现货行情
func (s *Source) FetchTickers(ctx context.Context) ([]exchange.RawTicker, error) {
	var resp []Ticker
	if err := s.fetcher.GetJSON(ctx, s.cfg.BaseURL+"/api/v4/spot/tickers", &resp); err != nil {
		return nil, errors.Wrap(err, "获取 Gate.io 行情失败")
	}
	raws := make([]exchange.RawTicker, 0, len(resp))
	for _, t := range resp {
		raws = append(raws, ToRaw(t))
	}
	return raws, nil
}

// FetchOrderBook 获取深度
func (s *Source) FetchOrderBook(ctx context.Context, pair string, depth int) (asks, bids []model.Level, err error) {
	if depth > maxDepth {
		depth = maxDepth
	}
	u := fmt.Sprintf("%s/api/v4/spot/order_book?currency_pair=%s&limit=%d", s.cfg.BaseURL, url.QueryEscape(pair), depth)
	var book OrderBook
	if err := s.fetcher.GetJSON(ctx, u, &book); err != nil {
		return nil, nil, err
	}
	asks, err = fastparse.ParseLevels(book.Asks)
	if err != nil {
		return nil, nil, errors.Wrap(err, "解析 asks 失败")
	}
	bids, err = fastparse.ParseLevels(book.Bids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "解析 bids 失败")
	}
	return asks, bids, nil
}

// ToPair 转换交易对信息
func ToPair(p *CurrencyPair) (metadata.PairSymbol, bool) {
	if p.ID == "" || p.Base == "" || p.Quote == "" {
		return metadata.PairSymbol{}, false
	}
	return metadata.NewPairSymbol(model.ExchangeGateIO, p.ID, p.Base, p.Quote, p.IsTradable()), true
}

// ToRaw 转换行情，缺失的买一/卖一价记为 0
func ToRaw(t Ticker) exchange.RawTicker {
	return exchange.RawTicker{
		Symbol: t.CurrencyPair,
		Bid:    fastparse.MustDecimal(t.HighestBid),
		Ask:    fastparse.MustDecimal(t.LowestAsk),
		Last:   fastparse.MustDecimal(t.Last),
	}
}
