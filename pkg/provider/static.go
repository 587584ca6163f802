package provider

import (
	"context"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// StaticName 数据源名称
const StaticName = "static"

// Static 配置中的固定实体列表，详情只有 domain 字段
type Static struct {
	entities []string
}

func NewStatic(entities []string) *Static {
	cp := make([]string, len(entities))
	copy(cp, entities)
	return &Static{entities: cp}
}

func (s *Static) Name() string { return StaticName }

func (s *Static) Applicable(context.Context) (bool, error) {
	return len(s.entities) > 0, nil
}

func (s *Static) ListEntities(context.Context) ([]string, error) {
	out := make([]string, len(s.entities))
	copy(out, s.entities)
	return out, nil
}

func (s *Static) EntityDetail(_ context.Context, id string) (entity.Record, error) {
	return entity.Record{entity.KeyDomain: id}, nil
}
