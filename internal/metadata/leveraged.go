package metadata

import (
	"regexp"

	"crypto-arbitrage-monitor/internal/core/model"
)

// leveragedBase 杠杆代币基础资产: 以数字加 L/S 结尾，如 BTC3L、ETH5S
var leveragedBase = regexp.MustCompile(`^([A-Z0-9]*[A-Z][0-9]+)([LS])$`)

// SplitLeveraged 拆分杠杆代币符号
// 例如: BTC3L -> (BTC3, L, true)；BTC -> ("", "", false)
func SplitLeveraged(base string) (token, suffix string, ok bool) {
	m := leveragedBase.FindStringSubmatch(base)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// DetectLeveragedPairs 识别同一交易所、同一报价资产下成对出现的多空杠杆代币
// 仅当 L 与 S 两个镜像都存在时才生成 LeveragedTokenPair，每对只生成一次。
// 输出顺序为第二个镜像出现的顺序。
func DetectLeveragedPairs(exchange model.Exchange, pairs []PairSymbol) []model.LeveragedTokenPair {
	type half struct {
		long  bool
		short bool
	}
	seen := make(map[model.LeveragedKey]*half)
	var out []model.LeveragedTokenPair

	for _, p := range pairs {
		if !p.Active || p.Exchange != exchange {
			continue
		}
		token, suffix, ok := SplitLeveraged(p.Base)
		if !ok {
			continue
		}
		pair := model.LeveragedTokenPair{Exchange: exchange, BaseSymbol: token, QuoteSymbol: p.Quote}
		key := pair.Key()
		h, exists := seen[key]
		if !exists {
			h = &half{}
			seen[key] = h
		}
		complete := h.long && h.short
		if suffix == model.LongSuffix {
			h.long = true
		} else {
			h.short = true
		}
		if !complete && h.long && h.short {
			out = append(out, pair)
		}
	}
	return out
}
