// Package fsutil 原子文件写入。
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// TempPrefix 临时文件前缀（隐藏文件，队列扫描时忽略）
const TempPrefix = ".tmp-"

// IsTemp 是否为 WriteFileAtomic 产生的临时文件
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}

// WriteFileAtomic 先写同目录临时文件并 fsync，再 rename 到目标路径。
// 读者要么看不到文件，要么看到完整内容。
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	syncDir(dir)
	return nil
}

// syncDir 持久化目录项（rename 本身），部分平台不支持时忽略
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
