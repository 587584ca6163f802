// Package provider 本机数据源（Plesk / 服务器自身 / 静态列表）。
//
// 数据源在编译期注册（见 pkg/registers），不支持动态加载。
package provider

import (
	"context"
	"errors"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// ErrNotApplicable 当前主机不是该类型的服务器
var ErrNotApplicable = errors.New("provider not applicable on this host")

// Provider 数据源能力集合，对流水线无状态
type Provider interface {
	// Name 唯一名称，写入记录的 provider 字段
	Name() string
	// Applicable 当前主机是否为该类型服务器；返回错误等同于不适用
	Applicable(ctx context.Context) (bool, error)
	// ListEntities 一轮采集的实体快照
	ListEntities(ctx context.Context) ([]string, error)
	// EntityDetail 单个实体详情，必须包含 domain 字段
	EntityDetail(ctx context.Context, id string) (entity.Record, error)
}
