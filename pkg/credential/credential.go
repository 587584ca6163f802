// Package credential 按主机名缓存的访问令牌存储。
//
// 查找顺序：内存缓存 → 令牌文件 {hostname: token} → Issuer 签发并回写文件。
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/yourapi/plesk-sitekick/pkg/fsutil"
)

// ErrNoIssuer 文件中没有令牌且未配置签发器
var ErrNoIssuer = errors.New("no token stored and no issuer configured")

// TokenSource 令牌来源
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Issuer 签发新令牌
type Issuer interface {
	Issue(ctx context.Context) (string, error)
}

// IssuerFunc 函数适配 Issuer
type IssuerFunc func(ctx context.Context) (string, error)

func (f IssuerFunc) Issue(ctx context.Context) (string, error) { return f(ctx) }

// Static 固定令牌
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("empty static token")
	}
	return string(s), nil
}

// Store 文件令牌存储，并发安全
type Store struct {
	path     string
	hostname string
	issuer   Issuer

	mu    sync.Mutex
	token string
}

// NewStore issuer 可以为 nil
func NewStore(path, hostname string, issuer Issuer) *Store {
	return &Store{path: path, hostname: hostname, issuer: issuer}
}

// Path 令牌文件路径
func (s *Store) Path() string { return s.path }

// Token 返回当前主机的令牌，必要时签发并持久化
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	tokens, err := s.load()
	if err != nil {
		return "", err
	}
	if t := tokens[s.hostname]; t != "" {
		s.token = t
		return t, nil
	}

	if s.issuer == nil {
		return "", fmt.Errorf("%s in %s: %w", s.hostname, s.path, ErrNoIssuer)
	}
	t, err := s.issuer.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("issue token for %s: %w", s.hostname, err)
	}
	t = strings.TrimSpace(t)
	if t == "" {
		return "", fmt.Errorf("issue token for %s: issuer returned empty token", s.hostname)
	}

	// 重新读取，保留其他主机的令牌
	if fresh, err := s.load(); err == nil {
		tokens = fresh
	}
	tokens[s.hostname] = t
	data, err := json.MarshalIndent(tokens, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode tokens: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return "", fmt.Errorf("persist token file %s: %w", s.path, err)
	}
	s.token = t
	return t, nil
}

// Invalidate 丢弃内存缓存，下次 Token 重新读取文件
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Invalidator 可丢弃缓存的令牌来源
type Invalidator interface {
	Invalidate()
}

// Rejected 服务端以 401/403 拒绝令牌时调用：丢弃 ts 的缓存（若支持）。
// 返回 true 表示 status 属于认证失败。
func Rejected(ts TokenSource, status int) bool {
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return false
	}
	if inv, ok := ts.(Invalidator); ok {
		inv.Invalidate()
	}
	return true
}

// load 文件不存在返回空表；文件损坏视为空表，签发后覆盖
func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read token file %s: %w", s.path, err)
	}
	tokens := map[string]string{}
	if err := json.Unmarshal(data, &tokens); err != nil || tokens == nil {
		// 内容为 null 时 Unmarshal 会把 map 置为 nil
		return map[string]string{}, nil
	}
	return tokens, nil
}
