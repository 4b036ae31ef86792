// Package fastparse 解析交易所返回的价格与数量字符串。
// 所有金额统一解析为 decimal，避免浮点误差在逐档累加时放大。
package fastparse

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"crypto-arbitrage-monitor/internal/core/model"
)

// ParseDecimal 解析十进制字符串，如 "12345.67"
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("空字符串")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "解析数值失败: %q", s)
	}
	return v, nil
}

// MustDecimal 解析十进制字符串，失败时返回 0
// 用于行情快照中可缺省的字段（如无挂单时的买一价）
func MustDecimal(s string) decimal.Decimal {
	v, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// ParseLevel 解析单个深度档位
func ParseLevel(price, qty string) (model.Level, error) {
	p, err := ParseDecimal(price)
	if err != nil {
		return model.Level{}, errors.Wrap(err, "价格")
	}
	q, err := ParseDecimal(qty)
	if err != nil {
		return model.Level{}, errors.Wrap(err, "数量")
	}
	return model.Level{Price: p, Qty: q}, nil
}

// ParseLevels 解析 [[price, qty, ...], ...] 格式的深度
// 多余的列（如 OKX 的订单数）被忽略；数量为 0 的档位被丢弃。
func ParseLevels(rows [][]string) ([]model.Level, error) {
	out := make([]model.Level, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, errors.Errorf("第 %d 档字段不足", i)
		}
		lv, err := ParseLevel(row[0], row[1])
		if err != nil {
			return nil, errors.Wrapf(err, "第 %d 档", i)
		}
		if !lv.Qty.IsPositive() {
			continue
		}
		out = append(out, lv)
	}
	return out, nil
}
