package okx

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/exchange"
)

// subscribeBatch 单条订阅请求携带的交易对上限
const subscribeBatch = 100

// TickerStream OKX tickers 频道推送缓存
// 只维护每个交易对的最新报价，由 Source.FetchTickers 按轮询节奏读取。
type TickerStream struct {
	cfg    config.OKXConfig
	logger *zap.Logger
	dialer websocket.Dialer

	// conn 当前连接，写操作由 connMu 串行化
	conn   *websocket.Conn
	connMu sync.Mutex

	instIDs []string

	// latest 交易对 -> 最新推送
	latest   map[string]Ticker
	latestMu sync.RWMutex

	backoff *backoff.Backoff
	started atomic.Bool
	done    chan struct{}

	connected       atomic.Bool
	reconnectCount  atomic.Int64
	parseErrorCount atomic.Int64
	lastMsgNs       atomic.Int64
	lastPingSentNs  atomic.Int64
	lastPongRecvNs  atomic.Int64
	rttMs           atomic.Int64

	// parseErrSampleCount 解析错误计数（用于采样日志）
	parseErrSampleCount atomic.Uint64
	lastParseErrLogNs   atomic.Int64
}

// NewTickerStream 创建 tickers 推送流
func NewTickerStream(cfg config.OKXConfig, logger *zap.Logger) *TickerStream {
	return &TickerStream{
		cfg:    cfg,
		logger: logger.Named("ws"),
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		latest: make(map[string]Ticker),
		backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		done: make(chan struct{}),
	}
}

// Start 启动连接、订阅与心跳，ctx 取消后全部退出
// 首次连接失败不会返回错误，后台按退避重试，期间行情由 REST 兜底。
func (s *TickerStream) Start(ctx context.Context, instIDs []string) error {
	if len(instIDs) == 0 {
		return errors.New("没有需要订阅的交易对")
	}
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.instIDs = instIDs

	go s.heartbeatLoop(ctx)
	go func() {
		<-ctx.Done()
		s.closeConn()
	}()
	go s.readLoop(ctx)
	return nil
}

// Done 读取循环退出后关闭；未启动的行情流永远不会关闭
func (s *TickerStream) Done() <-chan struct{} {
	return s.done
}

// Started 是否已调用过 Start
func (s *TickerStream) Started() bool {
	return s.started.Load()
}

// FreshSnapshot 连接正常且最近 maxAge 内收到过消息时返回缓存报价，否则返回 nil
// 断线或推送停滞期间的旧报价不能当作最新行情使用。
func (s *TickerStream) FreshSnapshot(nowNs int64, maxAge time.Duration) []exchange.RawTicker {
	if !s.connected.Load() {
		return nil
	}
	last := s.lastMsgNs.Load()
	if last == 0 || nowNs-last > int64(maxAge) {
		return nil
	}
	return s.Snapshot()
}

// Snapshot 当前缓存的全部最新报价
func (s *TickerStream) Snapshot() []exchange.RawTicker {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	out := make([]exchange.RawTicker, 0, len(s.latest))
	for _, t := range s.latest {
		out = append(out, ToRaw(t))
	}
	return out
}

// Metrics 连接指标快照
func (s *TickerStream) Metrics() ConnectionMetrics {
	m := ConnectionMetrics{
		Connected:       s.connected.Load(),
		ReconnectCount:  s.reconnectCount.Load(),
		ParseErrorCount: s.parseErrorCount.Load(),
		WsRttMs:         s.rttMs.Load(),
	}
	s.latestMu.RLock()
	m.Symbols = len(s.latest)
	s.latestMu.RUnlock()
	if last := s.lastMsgNs.Load(); last > 0 {
		m.LastMessageAgeMs = (time.Now().UnixNano() - last) / int64(time.Millisecond)
	}
	return m
}

// connect 建立连接并发送订阅
func (s *TickerStream) connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Origin", "https://www.okx.com")
	header.Set("User-Agent", "crypto-arbitrage-monitor/1.0")

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.WSURL, header)
	if err != nil {
		return errors.Wrap(err, "连接 OKX WebSocket 失败")
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	if err := s.subscribe(); err != nil {
		s.closeConn()
		return err
	}
	s.connected.Store(true)
	s.backoff.Reset()
	s.logger.Info("OKX WebSocket 连接成功", zap.String("url", s.cfg.WSURL), zap.Int("symbols", len(s.instIDs)))
	return nil
}

// subscribe 分批订阅 tickers 频道
func (s *TickerStream) subscribe() error {
	for start := 0; start < len(s.instIDs); start += subscribeBatch {
		end := min(start+subscribeBatch, len(s.instIDs))
		args := make([]SubscribeArg, 0, end-start)
		for _, id := range s.instIDs[start:end] {
			args = append(args, SubscribeArg{Channel: ChannelTickers, InstId: id})
		}
		data, err := sonnet.Marshal(SubscribeRequest{Op: "subscribe", Args: args})
		if err != nil {
			return errors.Wrap(err, "序列化订阅请求失败")
		}
		if err := s.write(data); err != nil {
			return errors.Wrap(err, "发送订阅请求失败")
		}
	}
	return nil
}

func (s *TickerStream) write(data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return errors.New("WebSocket 未连接")
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop 读取循环，断线后按退避重连
func (s *TickerStream) readLoop(ctx context.Context) {
	defer close(s.done)

	for ctx.Err() == nil {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if err := s.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				delay := s.backoff.Duration()
				s.logger.Warn("OKX 连接失败，准备重连", zap.Error(err), zap.Duration("delay", delay))
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("读取 OKX 消息失败", zap.Error(err))
			s.reconnectCount.Add(1)
			s.closeConn()
			continue
		}
		s.handle(data, time.Now().UnixNano())
	}
}

// handle 处理单条消息
func (s *TickerStream) handle(data []byte, nowNs int64) {
	s.lastMsgNs.Store(nowNs)

	if IsPong(data) {
		s.lastPongRecvNs.Store(nowNs)
		if lastPing := s.lastPingSentNs.Load(); lastPing > 0 {
			s.rttMs.Store((nowNs - lastPing) / int64(time.Millisecond))
		}
		return
	}

	tickers, err := ParsePush(data)
	if err != nil {
		s.parseErrorCount.Add(1)
		s.maybeLogParseError(err, data, nowNs)
		return
	}
	if len(tickers) == 0 {
		return
	}

	s.latestMu.Lock()
	for _, t := range tickers {
		s.latest[t.InstId] = t
	}
	s.latestMu.Unlock()
}

// heartbeatLoop 定时发送 ping，上一轮 ping 超时未收到 pong 则断开触发重连
func (s *TickerStream) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.PingIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nowNs := time.Now().UnixNano()
			if s.pongOverdue(nowNs) {
				s.logger.Warn("OKX 心跳超时，触发重连")
				s.reconnectCount.Add(1)
				s.lastPingSentNs.Store(0)
				s.closeConn()
				continue
			}
			if err := s.write([]byte("ping")); err != nil {
				continue
			}
			s.lastPingSentNs.Store(nowNs)
		}
	}
}

// pongOverdue 最近一次 ping 是否已超时未响应
func (s *TickerStream) pongOverdue(nowNs int64) bool {
	lastPing := s.lastPingSentNs.Load()
	if lastPing == 0 || s.lastPongRecvNs.Load() >= lastPing {
		return false
	}
	return nowNs-lastPing > int64(s.cfg.PongTimeoutMs)*int64(time.Millisecond)
}

// closeConn 关闭当前连接
func (s *TickerStream) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connected.Store(false)

	// 重连后重新累积，避免断线前的报价被当作最新行情
	s.latestMu.Lock()
	clear(s.latest)
	s.latestMu.Unlock()
}

// maybeLogParseError 采样记录解析错误原始消息
// 每 100 次错误记录 1 条，且至少间隔 1 分钟。
func (s *TickerStream) maybeLogParseError(err error, data []byte, nowNs int64) {
	count := s.parseErrSampleCount.Add(1)
	if count%100 != 1 {
		return
	}
	last := s.lastParseErrLogNs.Load()
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	s.lastParseErrLogNs.Store(nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	s.logger.Warn("解析 OKX 消息失败（采样）", zap.Error(err), zap.ByteString("data", sample))
}
