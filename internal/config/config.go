// Package config 负责加载和验证 YAML 配置文件。
// 提供交易所接入、三角套利、杠杆代币跟踪与输出等配置项。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// StableAssets 稳定币列表（顺序即三角循环的生成顺序）
	StableAssets []string `yaml:"stable_assets"`
	// Exchanges 交易所接入配置
	Exchanges ExchangesConfig `yaml:"exchanges"`
	// Triangular 三角套利配置
	Triangular TriangularConfig `yaml:"triangular"`
	// Leveraged 杠杆代币跟踪配置
	Leveraged LeveragedConfig `yaml:"leveraged"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// ExchangesConfig 各交易所配置
type ExchangesConfig struct {
	Binance BinanceConfig `yaml:"binance"`
	OKX     OKXConfig     `yaml:"okx"`
	Bybit   BybitConfig   `yaml:"bybit"`
	GateIO  GateIOConfig  `yaml:"gateio"`
	KuCoin  KuCoinConfig  `yaml:"kucoin"`
}

// PollConfig REST 轮询的公共参数
type PollConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// PollIntervalMs 行情轮询间隔（毫秒）
	PollIntervalMs int `yaml:"poll_interval_ms"`
	// DepthLimit 订单簿深度档数
	DepthLimit int `yaml:"depth_limit"`
	// TimeoutMs 单次 HTTP 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// PollInterval 轮询间隔
func (p PollConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// Timeout 请求超时
func (p PollConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// BinanceConfig Binance 现货配置
type BinanceConfig struct {
	PollConfig `yaml:",inline"`
	// BaseURL REST 地址，为空时使用 SDK 默认值
	BaseURL string `yaml:"base_url"`
}

// OKXConfig OKX 现货配置
type OKXConfig struct {
	PollConfig `yaml:",inline"`
	// RestURL REST 地址
	RestURL string `yaml:"rest_url"`
	// WSURL 公共 WebSocket 地址
	WSURL string `yaml:"ws_url"`
	// UseWebSocket 是否通过 WebSocket tickers 频道获取行情（否则 REST 轮询）
	UseWebSocket bool `yaml:"use_websocket"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
}

// BybitConfig Bybit 现货配置
type BybitConfig struct {
	PollConfig `yaml:",inline"`
	// BaseURL REST 地址，为空时使用 SDK 默认值
	BaseURL string `yaml:"base_url"`
}

// GateIOConfig Gate.io 现货配置
type GateIOConfig struct {
	PollConfig `yaml:",inline"`
	// BaseURL REST 地址
	BaseURL string `yaml:"base_url"`
}

// KuCoinConfig KuCoin 现货配置
type KuCoinConfig struct {
	PollConfig `yaml:",inline"`
	// BaseURL REST 地址
	BaseURL string `yaml:"base_url"`
}

// TriangularConfig 三角套利配置
type TriangularConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// MinGain 进入模拟验证的理论收益率阈值（0.01 即 1%）
	MinGain float64 `yaml:"min_gain"`
	// VerifyWorkers 验证并发数
	VerifyWorkers int `yaml:"verify_workers"`
	// VerifyQueueSize 验证队列容量，满时丢弃新候选
	VerifyQueueSize int `yaml:"verify_queue_size"`
}

// LeveragedConfig 杠杆代币跟踪配置
type LeveragedConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// RefreshIntervalMs 重新估值间隔（毫秒）
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
	// MaxConcurrency 同时估值的代币对上限
	MaxConcurrency int `yaml:"max_concurrency"`
}

// RefreshInterval 重新估值间隔
func (l LeveragedConfig) RefreshInterval() time.Duration {
	return time.Duration(l.RefreshIntervalMs) * time.Millisecond
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// TradesEnabled 是否输出成功交易 JSONL 文件
	TradesEnabled bool `yaml:"trades_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
	// MetricsIntervalMs 指标日志间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// Redis Redis 发布配置
	Redis RedisConfig `yaml:"redis"`
}

// MetricsInterval 指标日志间隔
func (o OutputConfig) MetricsInterval() time.Duration {
	return time.Duration(o.MetricsIntervalMs) * time.Millisecond
}

// RedisConfig Redis 发布配置
type RedisConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// Addr 地址，如 localhost:6379
	Addr string `yaml:"addr"`
	// Password 密码
	Password string `yaml:"password"`
	// DB 数据库编号
	DB int `yaml:"db"`
	// Channel 发布频道
	Channel string `yaml:"channel"`
	// TimeoutMs 连接与读写超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// DefaultStableAssets 默认稳定币列表
var DefaultStableAssets = []string{"USDT", "USDC", "FDUSD", "TUSD", "DAI", "BUSD"}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，填充默认值并验证
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "配置验证失败")
	}
	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "crypto-arbitrage-monitor"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if len(c.StableAssets) == 0 {
		c.StableAssets = append([]string(nil), DefaultStableAssets...)
	}
	for i, s := range c.StableAssets {
		c.StableAssets[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	pollDefaults(&c.Exchanges.Binance.PollConfig)
	pollDefaults(&c.Exchanges.OKX.PollConfig)
	pollDefaults(&c.Exchanges.Bybit.PollConfig)
	pollDefaults(&c.Exchanges.GateIO.PollConfig)
	pollDefaults(&c.Exchanges.KuCoin.PollConfig)

	if c.Exchanges.OKX.RestURL == "" {
		c.Exchanges.OKX.RestURL = "https://www.okx.com"
	}
	if c.Exchanges.OKX.WSURL == "" {
		c.Exchanges.OKX.WSURL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.Exchanges.GateIO.BaseURL == "" {
		c.Exchanges.GateIO.BaseURL = "https://api.gateio.ws"
	}
	if c.Exchanges.KuCoin.BaseURL == "" {
		c.Exchanges.KuCoin.BaseURL = "https://api.kucoin.com"
	}
	if c.Exchanges.OKX.PingIntervalMs == 0 {
		c.Exchanges.OKX.PingIntervalMs = 25000 // 25 秒
	}
	if c.Exchanges.OKX.PongTimeoutMs == 0 {
		c.Exchanges.OKX.PongTimeoutMs = 10000 // 10 秒
	}

	if c.Triangular.MinGain == 0 {
		c.Triangular.MinGain = 0.01
	}
	if c.Triangular.VerifyWorkers == 0 {
		c.Triangular.VerifyWorkers = 4
	}
	if c.Triangular.VerifyQueueSize == 0 {
		c.Triangular.VerifyQueueSize = 256
	}

	if c.Leveraged.RefreshIntervalMs == 0 {
		c.Leveraged.RefreshIntervalMs = 60000 // 1 分钟
	}
	if c.Leveraged.MaxConcurrency == 0 {
		c.Leveraged.MaxConcurrency = 5
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 30000 // 30 秒
	}
	if c.Output.Redis.Channel == "" {
		c.Output.Redis.Channel = "arb:trades"
	}
	if c.Output.Redis.TimeoutMs == 0 {
		c.Output.Redis.TimeoutMs = 3000
	}
}

func pollDefaults(p *PollConfig) {
	if p.PollIntervalMs == 0 {
		p.PollIntervalMs = 5000 // 5 秒
	}
	if p.DepthLimit == 0 {
		p.DepthLimit = 50
	}
	if p.TimeoutMs == 0 {
		p.TimeoutMs = 10000 // 10 秒
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围，错误合并返回
func (c *Config) Validate() error {
	var errs []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(c.StableAssets) == 0 {
		errs = append(errs, "stable_assets: 至少需要一个稳定币")
	}
	seen := make(map[string]bool, len(c.StableAssets))
	for i, s := range c.StableAssets {
		if s == "" {
			errs = append(errs, fmt.Sprintf("stable_assets[%d]: 不能为空", i))
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Sprintf("stable_assets[%d]: 重复的稳定币 %s", i, s))
		}
		seen[s] = true
	}

	ex := c.Exchanges
	if !ex.Binance.Enabled && !ex.OKX.Enabled && !ex.Bybit.Enabled && !ex.GateIO.Enabled && !ex.KuCoin.Enabled {
		errs = append(errs, "exchanges: 至少需要启用一个交易所")
	}
	errs = append(errs, validatePoll("exchanges.binance", ex.Binance.PollConfig)...)
	errs = append(errs, validatePoll("exchanges.okx", ex.OKX.PollConfig)...)
	errs = append(errs, validatePoll("exchanges.bybit", ex.Bybit.PollConfig)...)
	errs = append(errs, validatePoll("exchanges.gateio", ex.GateIO.PollConfig)...)
	errs = append(errs, validatePoll("exchanges.kucoin", ex.KuCoin.PollConfig)...)
	if ex.OKX.Enabled {
		if ex.OKX.RestURL == "" {
			errs = append(errs, "exchanges.okx.rest_url: REST 地址不能为空")
		}
		if ex.OKX.UseWebSocket && ex.OKX.WSURL == "" {
			errs = append(errs, "exchanges.okx.ws_url: 启用 WebSocket 时地址不能为空")
		}
		if ex.OKX.PingIntervalMs <= 0 || ex.OKX.PongTimeoutMs <= 0 {
			errs = append(errs, "exchanges.okx: 心跳参数必须为正数")
		}
	}

	if c.Triangular.MinGain < 0 {
		errs = append(errs, "triangular.min_gain: 阈值不能为负数")
	}
	if c.Triangular.VerifyWorkers <= 0 {
		errs = append(errs, "triangular.verify_workers: 并发数必须为正数")
	}
	if c.Triangular.VerifyQueueSize <= 0 {
		errs = append(errs, "triangular.verify_queue_size: 队列容量必须为正数")
	}

	if c.Leveraged.RefreshIntervalMs <= 0 {
		errs = append(errs, "leveraged.refresh_interval_ms: 估值间隔必须为正数")
	}
	if c.Leveraged.MaxConcurrency <= 0 {
		errs = append(errs, "leveraged.max_concurrency: 并发上限必须为正数")
	}

	if c.Output.BufferSize <= 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小必须为正数")
	}
	if c.Output.MetricsIntervalMs <= 0 {
		errs = append(errs, "output.metrics_interval_ms: 指标间隔必须为正数")
	}
	if c.Output.Redis.Enabled && c.Output.Redis.Addr == "" {
		errs = append(errs, "output.redis.addr: 启用 Redis 时地址不能为空")
	}

	if len(errs) > 0 {
		return errors.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validatePoll(prefix string, p PollConfig) []string {
	if !p.Enabled {
		return nil
	}
	var errs []string
	if p.PollIntervalMs <= 0 {
		errs = append(errs, prefix+".poll_interval_ms: 轮询间隔必须为正数")
	}
	if p.DepthLimit <= 0 || p.DepthLimit > 5000 {
		errs = append(errs, fmt.Sprintf("%s.depth_limit: 深度档数必须在 1-5000 之间，当前值: %d", prefix, p.DepthLimit))
	}
	if p.TimeoutMs <= 0 {
		errs = append(errs, prefix+".timeout_ms: 超时必须为正数")
	}
	return errs
}
