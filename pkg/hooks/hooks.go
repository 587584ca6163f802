// Package hooks 记录处理钩子的静态注册表。
//
// 钩子在编译期注册，通过配置 collect.hooks 按名称选择并按顺序执行；
// 不支持从远端下载或执行代码。
package hooks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// Hook 对一条记录做变换并返回结果，不得修改入参
type Hook func(entity.Record) entity.Record

// Redacted 敏感字段的替换值
const Redacted = "***"

var registry = map[string]Hook{
	"redact-secrets":      RedactSecrets,
	"drop-empty-sections": DropEmptySections,
}

// Lookup 按名称查找钩子
func Lookup(name string) (Hook, bool) {
	h, ok := registry[name]
	return h, ok
}

// Names 返回所有已注册钩子名称（排序）
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve 将配置中的名称解析为钩子列表（保持顺序）
func Resolve(names []string) ([]Hook, error) {
	out := make([]Hook, 0, len(names))
	for _, n := range names {
		h, ok := Lookup(strings.TrimSpace(n))
		if !ok {
			return nil, fmt.Errorf("unknown hook %q", n)
		}
		out = append(out, h)
	}
	return out, nil
}

// Chain 依次执行钩子
func Chain(hs []Hook) Hook {
	return func(r entity.Record) entity.Record {
		for _, h := range hs {
			r = h(r)
		}
		return r
	}
}

// RedactSecrets 替换键名包含 password / secret / token 的值（递归）
func RedactSecrets(r entity.Record) entity.Record {
	return entity.Record(redact(map[string]any(r.Clone())))
}

func redact(m map[string]any) map[string]any {
	for k, v := range m {
		if isSecretKey(k) {
			m[k] = Redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			m[k] = redact(nested)
		}
	}
	return m
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

// DropEmptySections 删除空的嵌套段（递归，删除后变空的父段一并删除）
func DropEmptySections(r entity.Record) entity.Record {
	return entity.Record(dropEmpty(map[string]any(r.Clone())))
}

func dropEmpty(m map[string]any) map[string]any {
	for k, v := range m {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		nested = dropEmpty(nested)
		if len(nested) == 0 {
			delete(m, k)
			continue
		}
		m[k] = nested
	}
	return m
}
