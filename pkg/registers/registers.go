package registers

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/yourapi/plesk-sitekick/pkg/config"
	"github.com/yourapi/plesk-sitekick/pkg/credential"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
	"github.com/yourapi/plesk-sitekick/pkg/provider"
)

// Module 一个静态注册的数据源
type Module struct {
	Enabled bool
	Name    string
	NewFunc func() (provider.Provider, error)
}

// Deps 构造数据源所需的运行时依赖
type Deps struct {
	Host        entity.Host
	PleskTokens credential.TokenSource
}

// Modules 数据源注册统一入口（新增数据源只需在列表中添加一条）
func Modules(cfg *config.ProvidersConfig, deps Deps) []Module {
	return []Module{
		{
			Enabled: cfg.Plesk.Enable,
			Name:    provider.PleskName,
			NewFunc: func() (provider.Provider, error) {
				return provider.NewPlesk(provider.PleskOptions{
					BaseURL:     cfg.Plesk.URL,
					Hostname:    deps.Host.Hostname,
					Tokens:      deps.PleskTokens,
					InsecureTLS: cfg.Plesk.InsecureTLS,
					Timeout:     cfg.Plesk.Timeout,
				})
			},
		},
		{
			Enabled: cfg.Server.Enable,
			Name:    provider.ServerName,
			NewFunc: func() (provider.Provider, error) {
				return provider.NewServer(deps.Host), nil
			},
		},
		{
			Enabled: cfg.Static.Enable,
			Name:    provider.StaticName,
			NewFunc: func() (provider.Provider, error) {
				return provider.NewStatic(cfg.Static.Entities), nil
			},
		},
	}
}

// Discover 构造已启用的数据源并执行适用性检查，返回通过检查的数据源。
// 构造失败、检查返回错误或 panic 的数据源记录日志后视为不适用。
func Discover(ctx context.Context, modules []Module, log *zap.Logger) []provider.Provider {
	var found []provider.Provider
	for _, m := range modules {
		if !m.Enabled {
			log.Debug("provider disabled", zap.String("provider", m.Name))
			continue
		}
		p, err := build(m)
		if err != nil {
			log.Warn("provider construction failed", zap.String("provider", m.Name), zap.Error(err))
			continue
		}
		ok, err := applicable(ctx, p)
		if err != nil {
			log.Info("provider not applicable", zap.String("provider", m.Name), zap.Error(err))
			continue
		}
		if !ok {
			log.Debug("provider not applicable", zap.String("provider", m.Name))
			continue
		}
		found = append(found, p)
	}
	names := make([]string, 0, len(found))
	for _, p := range found {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	log.Debug("providers discovered", zap.Strings("providers", names))
	return found
}

func build(m Module) (p provider.Provider, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.NewFunc()
}

func applicable(ctx context.Context, p provider.Provider) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Applicable(ctx)
}
