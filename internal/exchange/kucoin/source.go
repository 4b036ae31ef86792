package kucoin

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/util/fastparse"
)

// Source KuCoin 现货数据来源（公共 REST 轮询）
type Source struct {
	cfg     config.KuCoinConfig
	fetcher *metadata.HTTPFetcher
	logger  *zap.Logger
}

// NewSource 创建 KuCoin 数据来源
func NewSource(cfg config.KuCoinConfig, logger *zap.Logger) *Source {
	return &Source{
		cfg:     cfg,
		fetcher: metadata.NewHTTPFetcher(cfg.Timeout()),
		logger:  logger.Named("kucoin"),
	}
}

// Exchange 交易所标识
func (s *Source) Exchange() model.Exchange {
	return model.ExchangeKuCoin
}

// FetchPairs 获取现货交易对
func (s *Source) FetchPairs(ctx context.Context) ([]metadata.PairSymbol, error) {
	var resp Response[[]Symbol]
	if err := s.get(ctx, "/api/v1/symbols", &resp); err != nil {
		return nil, errors.Wrap(err, "获取 KuCoin 交易对失败")
	}
	pairs := make([]metadata.PairSymbol, 0, len(resp.Data))
	for i := range resp.Data {
		if p, ok := ToPair(&resp.Data[i]); ok {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// FetchTickers 获取全部现货行情
func (s *Source) FetchTickers(ctx context.Context) ([]exchange.RawTicker, error) {
	var resp Response[AllTickers]
	if err := s.get(ctx, "/api/v1/market/allTickers", &resp); err != nil {
		return nil, errors.Wrap(err, "获取 KuCoin 行情失败")
	}
	raws := make([]exchange.RawTicker, 0, len(resp.Data.Ticker))
	for _, t := range resp.Data.Ticker {
		raws = append(raws, ToRaw(t))
	}
	return raws, nil
}

// FetchOrderBook 获取深度
// 公共接口只提供 20 档与 100 档两种快照，按 depth 选择较小的一种。
func (s *Source) FetchOrderBook(ctx context.Context, symbol string, depth int) (asks, bids []model.Level, err error) {
	path := "/api/v1/market/orderbook/level2_100?symbol="
	if depth <= 20 {
		path = "/api/v1/market/orderbook/level2_20?symbol="
	}
	var resp Response[OrderBook]
	if err := s.get(ctx, path+url.QueryEscape(symbol), &resp); err != nil {
		return nil, nil, err
	}
	asks, err = fastparse.ParseLevels(resp.Data.Asks)
	if err != nil {
		return nil, nil, errors.Wrap(err, "解析 asks 失败")
	}
	bids, err = fastparse.ParseLevels(resp.Data.Bids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "解析 bids 失败")
	}
	return asks, bids, nil
}

func (s *Source) get(ctx context.Context, path string, out interface{ kucoinError() error }) error {
	if err := s.fetcher.GetJSON(ctx, s.cfg.BaseURL+path, out); err != nil {
		return err
	}
	return out.kucoinError()
}

func (r *Response[T]) kucoinError() error {
	if r.Code != codeOK {
		return errors.Errorf("KuCoin 返回错误: code=%s msg=%s", r.Code, r.Msg)
	}
	return nil
}

// ToPair 转换交易对信息
func ToPair(s *Symbol) (metadata.PairSymbol, bool) {
	if s.Symbol == "" || s.BaseCurrency == "" || s.QuoteCurrency == "" {
		return metadata.PairSymbol{}, false
	}
	return metadata.NewPairSymbol(model.ExchangeKuCoin, s.Symbol, s.BaseCurrency, s.QuoteCurrency, s.EnableTrading), true
}

// ToRaw 转换行情
func ToRaw(t Ticker) exchange.RawTicker {
	return exchange.RawTicker{
		Symbol: t.Symbol,
		Bid:    fastparse.MustDecimal(t.Buy),
		Ask:    fastparse.MustDecimal(t.Sell),
		Last:   fastparse.MustDecimal(t.Last),
	}
}
