package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/prompter/layout"
)

const recordVersion = 1

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// record 是磁盘上的单个文件。加密时只有 ID 与时间是明文。
type record struct {
	Version   int            `json:"version"`
	ID        string         `json:"id"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Script    *layout.Script `json:"script,omitempty"`
	Sealed    *Envelope      `json:"sealed,omitempty"`
}

// FileStore 在目录中为每个提词稿保存一个 JSON 文件。
type FileStore struct {
	dir    string
	sealer *Sealer
	now    func() time.Time

	mu sync.Mutex
}

// FileOption 配置 FileStore。
type FileOption func(*FileStore)

// WithSealer 启用加密：新保存的提词稿使用 sealer 加密，读取加密稿时用它解密。
func WithSealer(s *Sealer) FileOption {
	return func(f *FileStore) { f.sealer = s }
}

// NewFileStore 创建目录（若不存在）并返回 FileStore。
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("存储目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	f := &FileStore{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Dir 返回存储目录。
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) path(id string) (string, error) {
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("非法的提词稿 ID: %q", id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

func (f *FileStore) readRecord(id string) (*record, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("读取提词稿失败: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("解析提词稿 %s 失败: %w", id, err)
	}
	return &rec, nil
}

func (f *FileStore) open(rec *record) (*layout.Script, error) {
	if rec.Sealed == nil {
		if rec.Script == nil {
			return nil, fmt.Errorf("提词稿 %s 内容为空", rec.ID)
		}
		return rec.Script, nil
	}
	if f.sealer == nil {
		return nil, fmt.Errorf("%s: %w", rec.ID, ErrSealed)
	}
	plain, err := f.sealer.Open(rec.Sealed)
	if err != nil {
		return nil, fmt.Errorf("解密提词稿 %s 失败: %w", rec.ID, err)
	}
	var script layout.Script
	if err := json.Unmarshal(plain, &script); err != nil {
		return nil, fmt.Errorf("解析解密后的提词稿失败: %w", err)
	}
	return &script, nil
}

// Load 读取提词稿。
func (f *FileStore) Load(ctx context.Context, id string) (*layout.Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := f.readRecord(id)
	if err != nil {
		return nil, err
	}
	script, err := f.open(rec)
	if err != nil {
		return nil, err
	}
	script.ID = rec.ID
	return script, nil
}

// Save 原子地写入提词稿（先写临时文件再重命名）。
func (f *FileStore) Save(ctx context.Context, s *layout.Script) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("提词稿为空")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	p, err := f.path(s.ID)
	if err != nil {
		return err
	}
	s.UpdatedAt = f.now().UTC()

	rec := record{Version: recordVersion, ID: s.ID, UpdatedAt: s.UpdatedAt}
	if f.sealer != nil {
		plain, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("序列化提词稿失败: %w", err)
		}
		if rec.Sealed, err = f.sealer.Seal(plain); err != nil {
			return fmt.Errorf("加密提词稿失败: %w", err)
		}
	} else {
		rec.Script = s
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化提词稿失败: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp, err := os.CreateTemp(f.dir, s.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入提词稿失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入提词稿失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("保存提词稿失败: %w", err)
	}
	slog.Debug("提词稿已保存", "id", s.ID, "sealed", rec.Sealed != nil)
	return nil
}

// List 按更新时间倒序列出提词稿。无法解析的文件会被跳过并记录告警。
func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("读取存储目录失败: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || !idPattern.MatchString(id) {
			continue
		}
		rec, err := f.readRecord(id)
		if err != nil {
			slog.WarnContext(ctx, "跳过无法读取的提词稿", "id", id, "err", err)
			continue
		}
		sum := Summary{ID: rec.ID, Sealed: rec.Sealed != nil, UpdatedAt: rec.UpdatedAt}
		if script, err := f.open(rec); err == nil {
			sum.Title = script.Title
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Delete 删除提词稿。
func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("删除提词稿失败: %w", err)
	}
	return nil
}
