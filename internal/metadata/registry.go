package metadata

import (
	"sort"

	"github.com/pkg/errors"

	"crypto-arbitrage-monitor/internal/core/model"
)

// PairRegistry 单个交易所的交易对查找表
// 构建后只读，可并发访问。
type PairRegistry struct {
	exchange model.Exchange
	// byExchange 标准化后的原生标识 -> 交易对
	byExchange map[string]PairSymbol
	// byUnified 统一标识 -> 交易对
	byUnified map[string]PairSymbol
}

// NewPairRegistry 由交易对列表构建查找表
// 仅收录 Active 且属于该交易所的交易对；统一标识冲突时保留先出现的一个。
func NewPairRegistry(exchange model.Exchange, pairs []PairSymbol) *PairRegistry {
	r := &PairRegistry{
		exchange:   exchange,
		byExchange: make(map[string]PairSymbol, len(pairs)),
		byUnified:  make(map[string]PairSymbol, len(pairs)),
	}
	for _, p := range pairs {
		if !p.Active || p.Exchange != exchange || p.Base == "" || p.Quote == "" {
			continue
		}
		if _, dup := r.byUnified[p.Unified()]; dup {
			continue
		}
		r.byExchange[normalizeSymbol(p.ExchangeSymbol)] = p
		r.byUnified[p.Unified()] = p
	}
	return r
}

// Exchange 交易所
func (r *PairRegistry) Exchange() model.Exchange {
	return r.exchange
}

// Len 可交易的交易对数量
func (r *PairRegistry) Len() int {
	return len(r.byUnified)
}

// Resolve 由交易所原生标识查找交易对
func (r *PairRegistry) Resolve(exchangeSymbol string) (PairSymbol, bool) {
	p, ok := r.byExchange[normalizeSymbol(exchangeSymbol)]
	return p, ok
}

// ExchangeSymbol 由统一标识查找交易所原生标识
// 未知交易对返回 ErrUnknownPair
func (r *PairRegistry) ExchangeSymbol(unified string) (string, error) {
	p, ok := r.byUnified[normalizeSymbol(unified)]
	if !ok {
		return "", errors.Wrapf(ErrUnknownPair, "exchange=%s pair=%s", r.exchange, unified)
	}
	return p.ExchangeSymbol, nil
}

// Pairs 全部可交易交易对（按统一标识排序）
func (r *PairRegistry) Pairs() []PairSymbol {
	out := make([]PairSymbol, 0, len(r.byUnified))
	for _, p := range r.byUnified {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unified() < out[j].Unified() })
	return out
}
