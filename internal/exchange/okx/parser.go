package okx

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"

	"crypto-arbitrage-monitor/internal/exchange"
	"crypto-arbitrage-monitor/internal/util/fastparse"
)

// ChannelTickers 行情频道名
const ChannelTickers = "tickers"

var pong = []byte("pong")

// IsPong 判断是否为 pong 响应
func IsPong(data []byte) bool {
	return bytes.Equal(data, pong)
}

// ParsePush 解析 WebSocket 消息
// 返回: 行情列表；订阅确认等事件消息返回 (nil, nil)；错误事件返回 error
func ParsePush(data []byte) ([]Ticker, error) {
	var msg PushMessage
	if err := sonnet.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "解析 OKX 消息失败")
	}
	if msg.Event == "error" {
		return nil, errors.Errorf("OKX 返回错误事件: code=%s msg=%s", msg.Code, msg.Msg)
	}
	if msg.Event != "" || msg.Arg.Channel != ChannelTickers {
		return nil, nil
	}
	return msg.Data, nil
}

// ToRaw 转换为通用报价
// 价格缺失（如无挂单）时对应字段为 0，由上层过滤。
func ToRaw(t Ticker) exchange.RawTicker {
	return exchange.RawTicker{
		Symbol: t.InstId,
		Bid:    fastparse.MustDecimal(t.BidPx),
		Ask:    fastparse.MustDecimal(t.AskPx),
		Last:   fastparse.MustDecimal(t.Last),
	}
}
