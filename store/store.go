// Package store 持久化提词稿。加载失败时调用方退回到内置的默认稿，不影响分行与播放。
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ByLCY/prompter/layout"
)

var (
	// ErrNotFound 表示指定 ID 的提词稿不存在。
	ErrNotFound = errors.New("提词稿不存在")
	// ErrSealed 表示提词稿已加密但没有提供口令。
	ErrSealed = errors.New("提词稿已加密，需要口令")
	// ErrBadPassphrase 表示口令错误或密文被篡改。
	ErrBadPassphrase = errors.New("口令错误或数据已损坏")
)

// Summary 是列表视图中的一项。
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Sealed    bool      `json:"sealed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store 是提词稿的持久化接口。
type Store interface {
	Load(ctx context.Context, id string) (*layout.Script, error)
	// Save 保存提词稿；ID 为空时分配新 ID 并写回 s.ID。
	Save(ctx context.Context, s *layout.Script) error
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// LoadOrDefault 加载 id 对应的提词稿；id 为空、不存在或加载失败时返回 DefaultScript，从不报错。
func LoadOrDefault(ctx context.Context, s Store, id string) *layout.Script {
	if s == nil || id == "" {
		return DefaultScript()
	}
	script, err := s.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "加载提词稿失败，使用默认稿", "id", id, "err", err)
		}
		def := DefaultScript()
		def.ID = id
		return def
	}
	return script
}
