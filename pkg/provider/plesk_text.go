package provider

import (
	"strings"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// ParseSections 解析 Plesk CLI 的分段输出：
//
//	General
//	=============================
//	Domain name:                            example.com
//	Owner's contact name:                   Administrator (admin)
//
// 分隔线上一行是段名，之后的 "键: 值" 归入该段；段外的行被忽略。
func ParseSections(lines []string) entity.Record {
	rec := entity.Record{}
	var section map[string]any
	prev := ""
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		switch {
		case strings.HasPrefix(line, "==="):
			section = map[string]any{}
			rec[strings.TrimSpace(prev)] = section
		case section != nil && strings.Contains(line, ":"):
			k, v, _ := strings.Cut(line, ":")
			section[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		prev = line
	}
	return rec
}
