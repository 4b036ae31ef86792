// Package output 定义成功交易记录的输出通道。
package output

import (
	"context"

	"go.uber.org/multierr"

	"crypto-arbitrage-monitor/internal/core/model"
)

// Sink 成功交易输出（文件、消息队列等）
type Sink interface {
	Publish(ctx context.Context, trade model.SuccessfulTrade) error
	Close() error
}

// Multi 依次写入多个 Sink
// 单个 Sink 失败不影响其余 Sink，错误合并返回。
type Multi []Sink

// Publish 写入全部 Sink
func (m Multi) Publish(ctx context.Context, trade model.SuccessfulTrade) error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Publish(ctx, trade))
	}
	return err
}

// Close 关闭全部 Sink
func (m Multi) Close() error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Discard 丢弃所有记录
type Discard struct{}

// Publish 不做任何事
func (Discard) Publish(context.Context, model.SuccessfulTrade) error { return nil }

// Close 不做任何事
func (Discard) Close() error { return nil }
