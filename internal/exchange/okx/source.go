package okx

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/metadata"
	"crypto-arbitrage-monitor/internal/util/fastparse"
)

// Source OKX 现货数据来源
// 开启 WebSocket 时行情优先取推送缓存；未连接、两个轮询周期内无推送或缓存为空时回退 REST。
type Source struct {
	cfg     config.OKXConfig
	fetcher *metadata.HTTPFetcher
	stream  *TickerStream
	logger  *zap.Logger
}

// NewSource 创建 OKX 数据来源
func NewSource(cfg config.OKXConfig, logger *zap.Logger) *Source {
	s := &Source{
		cfg:     cfg,
		fetcher: metadata.NewHTTPFetcher(cfg.Timeout()),
		logger:  logger.Named("okx"),
	}
	if cfg.UseWebSocket {
		s.stream = NewTickerStream(cfg, s.logger)
	}
	return s
}

// Exchange 交易所标识
func (s *Source) Exchange() model.Exchange {
	return model.ExchangeOKX
}

// Stream 返回 WebSocket 行情流（未开启时为 nil）
func (s *Source) Stream() *TickerStream {
	return s.stream
}

// FetchPairs 获取现货交易对
func (s *Source) FetchPairs(ctx context.Context) ([]metadata.PairSymbol, error) {
	var resp Response[Instrument]
	if err := s.get(ctx, "/api/v5/public/instruments?instType=SPOT", &resp); err != nil {
		return nil, errors.Wrap(err, "获取 OKX 交易对失败")
	}
	pairs := make([]metadata.PairSymbol, 0, len(resp.Data))
	for i := range resp.Data {
		inst := &resp.Data[i]
		if inst.BaseCcy == "" || inst.QuoteCcy == "" {
			continue
		}
		pairs = append(pairs, metadata.NewPairSymbol(model.ExchangeOKX, inst.InstId, inst.BaseCcy, inst.QuoteCcy, inst.IsLive()))
	}
	return pairs, nil
}

// FetchTickers 获取全部现货最优报价
func (s *Source) FetchTickers(ctx context.Context) ([]exchange.RawTicker, error) {
	if s.stream != nil {
		if raws := s.stream.FreshSnapshot(time.Now().UnixNano(), 2*s.cfg.PollInterval()); len(raws) > 0 {
			return raws, nil
		}
	}
	var resp Response[Ticker]
	if err := s.get(ctx, "/api/v5/market/tickers?instType=SPOT", &resp); err != nil {
		return nil, errors.Wrap(err, "获取 OKX 行情失败")
	}
	raws := make([]exchange.RawTicker, 0, len(resp.Data))
	for _, t := range resp.Data {
		raws = append(raws, ToRaw(t))
	}
	return raws, nil
}

// FetchOrderBook 获取深度，OKX 单次最多返回 400 档
func (s *Source) FetchOrderBook(ctx context.Context, instID string, depth int) (asks, bids []model.Level, err error) {
	if depth > 400 {
		depth = 400
	}
	path := fmt.Sprintf("/api/v5/market/books?instId=%s&sz=%d", url.QueryEscape(instID), depth)
	var resp Response[Book]
	if err := s.get(ctx, path, &resp); err != nil {
		return nil, nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil, errors.Errorf("OKX 深度为空 instId=%s", instID)
	}
	return ParseBook(&resp.Data[0])
}

// SubscribePairs 交易对解析完成后启动 WebSocket 行情流
func (s *Source) SubscribePairs(ctx context.Context, pairs []metadata.PairSymbol) error {
	if s.stream == nil {
		return nil
	}
	ids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, p.ExchangeSymbol)
	}
	return s.stream.Start(ctx, ids)
}

func (s *Source) get(ctx context.Context, path string, out interface{ okxError() error }) error {
	if err := s.fetcher.GetJSON(ctx, s.cfg.RestURL+path, out); err != nil {
		return err
	}
	return out.okxError()
}

func (r *Response[T]) okxError() error {
	if r.Code != "" && r.Code != "0" {
		return errors.Errorf("OKX 返回错误: code=%s msg=%s", r.Code, r.Msg)
	}
	return nil
}

// ParseBook 解析深度快照
func ParseBook(b *Book) (asks, bids []model.Level, err error) {
	asks, err = fastparse.ParseLevels(b.Asks)
	if err != nil {
		return nil, nil, errors.Wrap(err, "解析 asks 失败")
	}
	bids, err = fastparse.ParseLevels(b.Bids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "解析 bids 失败")
	}
	return asks, bids, nil
}
