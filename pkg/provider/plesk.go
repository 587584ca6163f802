package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourapi/plesk-sitekick/pkg/credential"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// PleskName 数据源名称
const PleskName = "plesk"

// 错误响应体在错误信息中的最大长度
const maxErrBody = 512

// PleskOptions Plesk 本地 REST API 参数
type PleskOptions struct {
	// BaseURL 为空时使用 https://<Hostname>:8443/api/v2/
	BaseURL     string
	Hostname    string
	Tokens      credential.TokenSource
	InsecureTLS bool
	Timeout     time.Duration
	// Client 非空时直接使用（测试注入）
	Client *http.Client
}

// Plesk 通过本机 Plesk REST API 及其 CLI 网关获取域名信息
type Plesk struct {
	base   string
	tokens credential.TokenSource
	client *http.Client
}

// cliResult cli/<command>/call 的响应
type cliResult struct {
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// NewPlesk 创建 Plesk 数据源
func NewPlesk(opts PleskOptions) (*Plesk, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("plesk: token source is required")
	}
	base := opts.BaseURL
	if base == "" {
		if opts.Hostname == "" {
			return nil, fmt.Errorf("plesk: hostname or base url is required")
		}
		base = fmt.Sprintf("https://%s:8443/api/v2/", opts.Hostname)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			// 本机 Plesk 面板通常是自签名证书
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		client = &http.Client{Timeout: timeout, Transport: tr}
	}
	return &Plesk{base: base, tokens: opts.Tokens, client: client}, nil
}

func (p *Plesk) Name() string { return PleskName }

// Applicable GET server 成功即为 Plesk 服务器
func (p *Plesk) Applicable(ctx context.Context) (bool, error) {
	var info map[string]any
	if err := p.do(ctx, http.MethodGet, "server", nil, &info); err != nil {
		return false, err
	}
	return true, nil
}

// ListEntities domain --list 的每一行是一个域名
func (p *Plesk) ListEntities(ctx context.Context) ([]string, error) {
	lines, err := p.cli(ctx, "domain", "--list")
	if err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			domains = append(domains, l)
		}
	}
	return domains, nil
}

// EntityDetail domain --info 的分段文本转换为嵌套 map
func (p *Plesk) EntityDetail(ctx context.Context, id string) (entity.Record, error) {
	lines, err := p.cli(ctx, "domain", "--info", id)
	if err != nil {
		return nil, err
	}
	rec := ParseSections(lines)
	rec[entity.KeyDomain] = id
	return rec, nil
}

// cli 通过 REST API 调用 Plesk CLI，返回 stdout 的各行
func (p *Plesk) cli(ctx context.Context, command string, args ...string) ([]string, error) {
	body, err := json.Marshal(map[string][]string{"params": args})
	if err != nil {
		return nil, err
	}
	var res cliResult
	if err := p.do(ctx, http.MethodPost, "cli/"+command+"/call", body, &res); err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, fmt.Errorf("plesk cli %s %s: exit code %d: %s", command, strings.Join(args, " "), res.Code, truncate(strings.TrimSpace(res.Stderr), maxErrBody))
	}
	return strings.Split(res.Stdout, "\n"), nil
}

func (p *Plesk) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("plesk api key: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.base+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("plesk %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("plesk %s %s: read body: %w", method, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		credential.Rejected(p.tokens, resp.StatusCode)
		return fmt.Errorf("plesk %s %s: status %d: %s", method, endpoint, resp.StatusCode, truncate(string(data), maxErrBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("plesk %s %s: decode: %w", method, endpoint, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
