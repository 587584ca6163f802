// Package queue 基于目录的持久化 FIFO 队列。
//
// 每条记录一个文件 <seq:08d>-<entity-id>.json，按文件名排序即入队顺序。
// 写入采用 "隐藏临时文件 → fsync → rename"，因此目录中可见的队列文件
// 总是完整的；删除只发生在 Ack / Clear / Quarantine 中。
// 同一目录只允许一个写入方（采集器）和一个删除方（上报器）。
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/yourapi/plesk-sitekick/pkg/fsutil"
)

// SeqWidth 序号补零宽度
const SeqWidth = 8

const seqFile = ".seq"

// ErrMalformed 队列文件无法读取或不是 JSON 对象
var ErrMalformed = errors.New("malformed queue item")

var itemName = regexp.MustCompile(`^(\d+)-(.+)\.json$`)

// Item 队列中的一个文件
type Item struct {
	Seq      uint64
	EntityID string
	Name     string
	Path     string
}

// Queue 目录队列
type Queue struct {
	dir  string
	mu   sync.Mutex
	next uint64
}

// Open 打开（必要时创建）队列目录，序号从已有最大值 + 1 开始
func Open(dir string) (*Queue, error) {
	if dir == "" {
		return nil, errors.New("queue dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir %s: %w", dir, err)
	}
	q := &Queue{dir: dir}
	items, err := q.list()
	if err != nil {
		return nil, err
	}
	high := q.readHighWater()
	for _, it := range items {
		if it.Seq > high {
			high = it.Seq
		}
	}
	q.next = high + 1
	return q, nil
}

// Dir 队列目录
func (q *Queue) Dir() string { return q.dir }

// Enqueue 原子写入一个新文件，不会覆盖已有文件
func (q *Queue) Enqueue(entityID string, record any) (Item, error) {
	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return Item{}, fmt.Errorf("encode record %s: %w", entityID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := SanitizeID(entityID)
	for {
		seq := q.next
		q.next++
		name := fmt.Sprintf("%0*d-%s.json", SeqWidth, seq, id)
		path := filepath.Join(q.dir, name)
		if _, err := os.Lstat(path); err == nil {
			continue
		}
		if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return Item{}, fmt.Errorf("enqueue %s: %w", entityID, err)
		}
		// 高水位仅用于跨进程不复用序号，写失败不影响本条记录
		_ = fsutil.WriteFileAtomic(filepath.Join(q.dir, seqFile), []byte(strconv.FormatUint(seq, 10)), 0o644)
		return Item{Seq: seq, EntityID: id, Name: name, Path: path}, nil
	}
}

// PeekOldest 返回最旧的 n 个文件（不修改目录）
func (q *Queue) PeekOldest(n int) ([]Item, error) {
	items, err := q.list()
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// Len 当前队列文件数
func (q *Queue) Len() (int, error) {
	items, err := q.list()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Read 读取文件内容，内容不是 JSON 对象时返回 ErrMalformed
func (q *Queue) Read(it Item) (json.RawMessage, error) {
	data, err := os.ReadFile(it.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, it.Name, err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: %s: not a JSON object", ErrMalformed, it.Name)
	}
	return json.RawMessage(data), nil
}

// Ack 删除已确认的文件，文件不存在不算错误
func (q *Queue) Ack(items []Item) error {
	var errs []error
	for _, it := range items {
		if err := os.Remove(it.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("ack %s: %w", it.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Clear 删除所有队列文件和残留的临时文件
func (q *Queue) Clear() error {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return fmt.Errorf("read queue dir %s: %w", q.dir, err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !itemName.MatchString(name) && !fsutil.IsTemp(name) {
			continue
		}
		if err := os.Remove(filepath.Join(q.dir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Quarantine 把文件移到死信目录
func (q *Queue) Quarantine(items []Item, dir string) error {
	if len(items) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create deadletter dir %s: %w", dir, err)
	}
	var errs []error
	for _, it := range items {
		dst := filepath.Join(dir, it.Name)
		if err := move(it.Path, dst); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("quarantine %s: %w", it.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (q *Queue) list() ([]Item, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("read queue dir %s: %w", q.dir, err)
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		it, ok := parseName(e.Name())
		if !ok {
			continue
		}
		it.Path = filepath.Join(q.dir, it.Name)
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Seq != items[j].Seq {
			return items[i].Seq < items[j].Seq
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (q *Queue) readHighWater() uint64 {
	data, err := os.ReadFile(filepath.Join(q.dir, seqFile))
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseName(name string) (Item, bool) {
	if strings.HasPrefix(name, ".") {
		return Item{}, false
	}
	m := itemName.FindStringSubmatch(name)
	if m == nil {
		return Item{}, false
	}
	seq, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Item{}, false
	}
	return Item{Seq: seq, EntityID: m[2], Name: name}, true
}

// MaxIDBytes 文件名中实体 ID 片段的最大字节数（NAME_MAX 255 减去序号、分隔符和后缀）
const MaxIDBytes = 200

// SanitizeID 把实体 ID 转成安全的文件名片段。
// 超过 MaxIDBytes 时按 rune 边界截断，并追加原始 ID 的 xxhash，保证不同的长 ID 不会同名
func SanitizeID(id string) string {
	if id == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range id {
		if r == '/' || r == '\\' || r == os.PathSeparator || unicode.IsControl(r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) <= MaxIDBytes {
		return out
	}
	suffix := fmt.Sprintf("~%016x", xxhash.Sum64String(id))
	cut := MaxIDBytes - len(suffix)
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut--
	}
	return out[:cut] + suffix
}

// move rename，跨文件系统时退化为复制 + 删除
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if os.IsNotExist(err) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
