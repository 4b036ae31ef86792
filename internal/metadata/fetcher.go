package metadata

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"
)

// HTTPFetcher 公共 REST 接口获取器
// 仅访问公共行情接口，不携带任何凭证。
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher 创建 HTTP 获取器
// 参数 timeout: 单次请求超时
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "crypto-arbitrage-monitor/1.0",
	}
}

// GetJSON 执行 GET 请求并把响应体解码到 out
func (f *HTTPFetcher) GetJSON(ctx context.Context, url string, out any) error {
	body, err := f.doRequest(ctx, url)
	if err != nil {
		return err
	}
	if err := sonnet.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "解析响应失败 url=%s", url)
	}
	return nil
}

// doRequest 执行 HTTP GET 请求
func (f *HTTPFetcher) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "创建请求失败")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "发送请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("HTTP 状态码错误: %d url=%s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "读取响应体失败")
	}
	return body, nil
}
