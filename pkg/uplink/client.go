package uplink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/yourapi/plesk-sitekick/pkg/credential"
)

// 错误日志中响应体的最大长度
const maxErrBody = 1024

// Pusher 把一个批次（JSON 数组）送到采集端，只有 2xx 视为确认
type Pusher interface {
	Push(ctx context.Context, payload []byte) error
}

// StatusError 采集端返回非 2xx
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// ClientOptions HTTP 上报参数
type ClientOptions struct {
	URL       string
	Tokens    credential.TokenSource
	Gzip      bool
	UserAgent string
	Timeout   time.Duration
	// HTTPClient 非空时直接使用（测试注入）
	HTTPClient *http.Client
}

// Client POST + Bearer 认证的 HTTP 上报实现
type Client struct {
	url       string
	tokens    credential.TokenSource
	gzip      bool
	userAgent string
	http      *http.Client
}

func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:       opts.URL,
		tokens:    opts.Tokens,
		gzip:      opts.Gzip,
		userAgent: opts.UserAgent,
		http:      hc,
	}
}

// URL 上报地址
func (c *Client) URL() string { return c.url }

func (c *Client) Push(ctx context.Context, payload []byte) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("uplink token: %w", err)
	}

	body := payload
	if c.gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("gzip payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("gzip payload: %w", err)
		}
		body = buf.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	credential.Rejected(c.tokens, resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody+1))
	msg := string(data)
	if len(msg) > maxErrBody {
		msg = msg[:maxErrBody] + "..."
	}
	return &StatusError{Code: resp.StatusCode, Body: msg}
}
