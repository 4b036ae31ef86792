// Package main 是加密货币套利监控器的入口点。
// 从多个现货交易所轮询最优报价，检测单交易所内的三角套利与杠杆代币多空对机会，
// 并按实时深度模拟成交验证利润。
//
// 重要：本系统仅用于研究，所有成交均为模拟，严禁真实下单。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/leveraged"
	"crypto-arbitrage-monitor/internal/core/paper"
	"crypto-arbitrage-monitor/internal/core/triangular"
	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/exchange/binance"
	"crypto-arbitrage-monitor/internal/exchange/bybit"
	"crypto-arbitrage-monitor/internal/exchange/gateio"
	"crypto-arbitrage-monitor/internal/exchange/kucoin"
	"crypto-arbitrage-monitor/internal/exchange/okx"
	"crypto-arbitrage-monitor/internal/output"
	"crypto-arbitrage-monitor/internal/output/jsonl"
	"crypto-arbitrage-monitor/internal/output/redispub"
	"crypto-arbitrage-monitor/internal/stats"
)

// maxParallelStarts 同时初始化的适配器上限
const maxParallelStarts = 5

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel).With(zap.String("app", cfg.App.Name))
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	sink, err := newSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("创建输出失败", zap.Error(err))
		os.Exit(1)
	}

	ticks := exchange.NewTickStore()
	levPairs := exchange.NewLeveragedPairStore()
	adapters, okxStream := newAdapters(cfg, ticks, levPairs, logger)
	if len(adapters) == 0 {
		logger.Error("没有启用的交易所")
		os.Exit(1)
	}

	sim := paper.NewSimulator()
	for _, a := range adapters {
		sim.Register(a)
	}

	app := &monitor{
		cfg:      cfg,
		logger:   logger,
		adapters:  adapters,
		okxStream: okxStream,
		outcomes: stats.NewRecorder(1000),
		latency:  stats.NewLatencyTracker(10000),
	}
	if cfg.Triangular.Enabled {
		app.verifier = triangular.NewVerifier(sim, sink, triangular.VerifierOptions{
			Workers:   cfg.Triangular.VerifyWorkers,
			QueueSize: cfg.Triangular.VerifyQueueSize,
			Recorder:  app.outcomes,
			Latency:   app.latency,
		}, logger)
		app.detector = triangular.NewDetector(ticks, cfg.StableAssets,
			decimal.NewFromFloat(cfg.Triangular.MinGain), app.verifier, logger)
	}
	if cfg.Leveraged.Enabled {
		app.tracker = leveraged.NewTracker(levPairs, sim, sink, leveraged.Options{
			RefreshInterval: cfg.Leveraged.RefreshInterval(),
			MaxConcurrency:  cfg.Leveraged.MaxConcurrency,
			Recorder:        app.outcomes,
		}, logger)
	}

	if err := app.run(ctx); err != nil {
		logger.Error("监控器退出", zap.Error(err))
	}
	app.logMetrics()

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, a := range adapters {
			<-a.Done()
		}
		// 适配器退出后行情流是否启动已确定
		if okxStream != nil && okxStream.Started() {
			<-okxStream.Done()
		}
		ticks.Close()
		levPairs.Close()
		if err := sink.Close(); err != nil {
			logger.Warn("关闭输出失败", zap.Error(err))
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newSink 按配置组合成功交易输出
func newSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (output.Sink, error) {
	var sinks output.Multi
	if cfg.Output.TradesEnabled {
		w, err := jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "trades.jsonl"), cfg.Output.BufferSize)
		if err != nil {
			return nil, errors.Wrap(err, "创建 trades writer 失败")
		}
		sinks = append(sinks, w)
	}
	if cfg.Output.Redis.Enabled {
		pub := redispub.New(cfg.Output.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := pub.Ping(pingCtx); err != nil {
			// 首次发布时会重新建立连接
			logger.Warn("Redis 暂不可用", zap.String("addr", cfg.Output.Redis.Addr), zap.Error(err))
		}
		cancel()
		sinks = append(sinks, pub)
	}
	if len(sinks) == 0 {
		return output.Discard{}, nil
	}
	return sinks, nil
}

// newAdapters 为每个启用的交易所创建适配器
// 返回: 适配器列表，以及 OKX WebSocket 行情流（未启用时为 nil）
func newAdapters(cfg *config.Config, ticks *exchange.TickStore, levPairs *exchange.LeveragedPairStore, logger *zap.Logger) ([]*exchange.Streamer, *okx.TickerStream) {
	ex := cfg.Exchanges
	var adapters []*exchange.Streamer
	add := func(src exchange.Source, p config.PollConfig) {
		adapters = append(adapters, exchange.NewStreamer(src, ticks, levPairs, exchange.StreamerOptions{
			PollInterval: p.PollInterval(),
			DepthLimit:   p.DepthLimit,
			StableAssets: cfg.StableAssets,
		}, logger))
	}
	if ex.Binance.Enabled {
		add(binance.NewSource(ex.Binance, logger), ex.Binance.PollConfig)
	}
	var okxStream *okx.TickerStream
	if ex.OKX.Enabled {
		src := okx.NewSource(ex.OKX, logger)
		okxStream = src.Stream()
		add(src, ex.OKX.PollConfig)
	}
	if ex.Bybit.Enabled {
		add(bybit.NewSource(ex.Bybit, logger), ex.Bybit.PollConfig)
	}
	if ex.GateIO.Enabled {
		add(gateio.NewSource(ex.GateIO, logger), ex.GateIO.PollConfig)
	}
	if ex.KuCoin.Enabled {
		add(kucoin.NewSource(ex.KuCoin, logger), ex.KuCoin.PollConfig)
	}
	return adapters, okxStream
}

type monitor struct {
	cfg       *config.Config
	logger    *zap.Logger
	adapters  []*exchange.Streamer
	okxStream *okx.TickerStream
	detector  *triangular.Detector
	verifier  *triangular.Verifier
	tracker   *leveraged.Tracker
	outcomes  *stats.Recorder
	latency   *stats.LatencyTracker
}

// run 启动全部组件，ctx 取消后等待其退出
func (m *monitor) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// 消费方先于适配器启动，订阅的回放保证不会漏掉已有数据
	if m.verifier != nil {
		g.Go(func() error { return m.verifier.Run(ctx) })
	}
	if m.detector != nil {
		g.Go(func() error { return m.detector.Run(ctx) })
	}
	if m.tracker != nil {
		g.Go(func() error { return m.tracker.Run(ctx) })
	}
	g.Go(func() error {
		m.startAdapters(ctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(m.cfg.Output.MetricsInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m.logMetrics()
			}
		}
	})
	return g.Wait()
}

// startAdapters 并发初始化适配器
// 单个适配器初始化失败只影响自身，其余适配器继续运行。
func (m *monitor) startAdapters(ctx context.Context) {
	g := new(errgroup.Group)
	g.SetLimit(maxParallelStarts)
	for _, a := range m.adapters {
		a := a
		g.Go(func() error {
			err := a.StartStreaming(ctx)
			var initErr *exchange.InitializationError
			switch {
			case err == nil:
			case errors.As(err, &initErr):
				m.logger.Error("交易所初始化失败，跳过", zap.String("exchange", a.Exchange().String()), zap.Error(err))
			default:
				m.logger.Error("交易所启动失败", zap.String("exchange", a.Exchange().String()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// logMetrics 输出一行运行指标
func (m *monitor) logMetrics() {
	fields := make([]zap.Field, 0, len(m.adapters)*2+5)
	for _, a := range m.adapters {
		fields = append(fields, zap.Any(a.Exchange().String(), a.Metrics()))
		if lat := m.latency.Stats(a.Exchange()); lat.Count > 0 {
			fields = append(fields, zap.Any("latency_"+a.Exchange().String(), lat))
		}
	}
	if m.okxStream != nil {
		fields = append(fields, zap.Any("okx_ws", m.okxStream.Metrics()))
	}
	if m.detector != nil {
		fields = append(fields, zap.Any("triangular", m.detector.Metrics()))
	}
	if m.verifier != nil {
		fields = append(fields, zap.Any("verifier", m.verifier.Metrics()))
	}
	if m.tracker != nil {
		fields = append(fields, zap.Any("leveraged", m.tracker.Metrics()))
	}
	fields = append(fields, zap.Any("outcomes", m.outcomes.Stats()))
	m.logger.Info("运行指标", fields...)
}

// 编译期检查：适配器满足核心契约
var (
	_ exchange.Adapter = (*exchange.Streamer)(nil)
	_ paper.BookSource = (*exchange.Streamer)(nil)
)
