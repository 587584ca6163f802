// Package entity 定义采集单元（一个域名 / 一台主机）的记录结构。
package entity

import (
	"time"
)

// Record 一个实体的采集结果（字符串键 → 字符串 / 嵌套 map）
// 写入队列后不可修改，需要追加字段时使用 Clone。
type Record map[string]any

// 记录中由采集器统一追加的字段
const (
	KeyDomain       = "domain"
	KeyServer       = "server"
	KeyCollectedAt  = "collected_at"
	KeyCollectionID = "collection_id"
	KeyProvider     = "provider"
)

// Host 主机身份字段（hostname / IP / MAC）
type Host struct {
	Hostname   string
	IPAddress  string
	MACAddress string
}

// Fields 转换为记录中的 server 段
func (h Host) Fields() map[string]any {
	return map[string]any{
		"hostname":    h.Hostname,
		"ip_address":  h.IPAddress,
		"mac_address": h.MACAddress,
	}
}

// Clone 深拷贝（仅复制嵌套的 map，其余值按原样共享）
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Enrich 返回追加了主机身份及采集元数据的新记录，原记录不变
func (r Record) Enrich(host Host, provider, collectionID string, at time.Time) Record {
	out := r.Clone()
	out[KeyServer] = host.Fields()
	out[KeyCollectedAt] = at.UTC().Format(time.RFC3339)
	out[KeyCollectionID] = collectionID
	out[KeyProvider] = provider
	return out
}
