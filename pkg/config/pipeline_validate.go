package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourapi/plesk-sitekick/pkg/hooks"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 队列目录不能与死信目录相同，也不能互相嵌套
func (q *QueueConfig) Validate() error {
	if err := valid.Struct(q); err != nil {
		return err
	}
	dir := filepath.Clean(q.Dir)
	dead := filepath.Clean(q.DeadletterDir)
	if dir == dead {
		return errors.New("queue.deadletter_dir must differ from queue.dir")
	}
	if strings.HasPrefix(dead, dir+string(filepath.Separator)) {
		return fmt.Errorf("queue.deadletter_dir %q must not be inside queue.dir %q", q.DeadletterDir, q.Dir)
	}
	return nil
}

// Validate 采集配置校验
func (col *CollectConfig) Validate() error {
	if err := valid.Struct(col); err != nil {
		return err
	}
	if col.Interval < time.Minute {
		return fmt.Errorf("collect.interval must be at least 1m, got %s", col.Interval)
	}
	// 钩子只能引用静态注册的名称（不支持远程下发代码）
	seen := map[string]bool{}
	for _, name := range col.Hooks {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("collect.hooks cannot contain empty string")
		}
		if _, ok := hooks.Lookup(name); !ok {
			return fmt.Errorf("collect.hooks: unknown hook %q (available: %s)", name, strings.Join(hooks.Names(), ", "))
		}
		if seen[name] {
			return fmt.Errorf("collect.hooks duplicated entry: %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Validate 至少启用一个数据源，否则没有意义
func (p *ProvidersConfig) Validate() error {
	if err := valid.Struct(p); err != nil {
		return err
	}
	if !p.Plesk.Enable && !p.Server.Enable && !p.Static.Enable {
		return errors.New("at least one provider must be enabled (plesk/server/static)")
	}
	if p.Static.Enable {
		for _, e := range p.Static.Entities {
			if strings.TrimSpace(e) == "" {
				return errors.New("providers.static.entities cannot contain empty string")
			}
		}
	}
	return nil
}

// Validate 上报配置校验
func (u *UplinkConfig) Validate() error {
	if err := valid.Struct(u); err != nil {
		return err
	}
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return fmt.Errorf("uplink.url invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("uplink.url must be http or https, got %q", parsed.Scheme)
	}
	if u.Token == "" && u.CredentialFile == "" {
		return errors.New("uplink.token or uplink.credential_file is required")
	}
	if !u.OffsetAuto && u.Offset >= u.Interval {
		return fmt.Errorf("uplink.offset (%s) must be smaller than uplink.interval (%s)", u.Offset, u.Interval)
	}
	if u.Interval < 2*time.Second {
		return fmt.Errorf("uplink.interval must be at least 2s, got %s", u.Interval)
	}
	return nil
}
