// Package redispub 把成功交易记录发布到 Redis。
// 每条记录 PUBLISH 到频道，同时以 HSET 保存每条路径的最近一次记录，便于外部查询。
package redispub

import (
	"context"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"

	"crypto-arbitrage-monitor/internal/config"
	"crypto-arbitrage-monitor/internal/core/model"
)

// DefaultChannel 默认发布频道
const DefaultChannel = "arb:trades"

// Publisher Redis 发布器
type Publisher struct {
	client  *redis.Client
	channel string
}

// New 创建发布器（不主动连接，首次发布时建立连接）
func New(cfg config.RedisConfig) *Publisher {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
		ReadTimeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		MaxRetries:   1,
	})
	return &Publisher{client: rdb, channel: channel}
}

// Ping 检查连通性
func (p *Publisher) Ping(ctx context.Context) error {
	return errors.Wrap(p.client.Ping(ctx).Err(), "redis ping 失败")
}

// Publish 发布一条成功交易
func (p *Publisher) Publish(ctx context.Context, trade model.SuccessfulTrade) error {
	payload, err := sonnet.Marshal(trade)
	if err != nil {
		return errors.Wrap(err, "编码交易记录失败")
	}

	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, payload)
		pipe.HSet(ctx, HashKey(trade), trade.Sequence, payload)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "发布交易记录失败 channel=%s", p.channel)
	}
	return nil
}

// Close 关闭连接池
func (p *Publisher) Close() error {
	return p.client.Close()
}

// HashKey 最近记录所在的哈希键，如 arb:last:triangular:binance
func HashKey(trade model.SuccessfulTrade) string {
	return "arb:last:" + string(trade.Idea) + ":" + trade.Exchange.String()
}
