// Package goid 当前 goroutine ID，用于日志关联同一协程的输出。
package goid

import (
	"bytes"
	"runtime"
)

var prefix = []byte("goroutine ")

// GetGID 从栈头 "goroutine 123 [running]:" 中解析 ID，失败返回 0
func GetGID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], prefix)
	var id uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
