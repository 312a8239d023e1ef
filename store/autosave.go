package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ByLCY/prompter/layout"
)

// Autosaver 节流保存：编辑时频繁调用 Touch，受限流器允许时立即保存，否则只标记为待保存，
// 由下一次 Touch 或 Flush 写入。保存失败只记录告警，本地编辑不受影响。
type Autosaver struct {
	store   Store
	limiter *rate.Limiter

	mu      sync.Mutex
	pending *layout.Script
	saves   int
}

// NewAutosaver 创建自动保存器；interval ≤ 0 时每 2 秒最多保存一次。
func NewAutosaver(s Store, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Autosaver{store: s, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Touch 记录最新内容，并在限流允许时保存。返回是否已写入。
func (a *Autosaver) Touch(ctx context.Context, script *layout.Script) bool {
	if a == nil || a.store == nil || script == nil {
		return false
	}
	if script.ID == "" {
		// 先分配 ID，节流期间的多次保存都落到同一个文件
		script.ID = uuid.NewString()
	}
	a.mu.Lock()
	a.pending = clone(script)
	if !a.limiter.Allow() {
		a.mu.Unlock()
		return false
	}
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	return a.save(ctx, pending)
}

// Dirty 报告是否有尚未写入的修改。
func (a *Autosaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush 写入待保存的内容（若有）。
func (a *Autosaver) Flush(ctx context.Context) error {
	if a == nil || a.store == nil {
		return nil
	}
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	if pending == nil {
		return nil
	}
	if err := a.store.Save(ctx, pending); err != nil {
		a.mu.Lock()
		if a.pending == nil {
			a.pending = pending
		}
		a.mu.Unlock()
		return err
	}
	a.mu.Lock()
	a.saves++
	a.mu.Unlock()
	return nil
}

// Saves 返回成功保存的次数。
func (a *Autosaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

func (a *Autosaver) save(ctx context.Context, snapshot *layout.Script) bool {
	if err := a.store.Save(ctx, snapshot); err != nil {
		slog.WarnContext(ctx, "自动保存失败", "id", snapshot.ID, "err", err)
		a.mu.Lock()
		if a.pending == nil {
			a.pending = snapshot
		}
		a.mu.Unlock()
		return false
	}
	a.mu.Lock()
	a.saves++
	a.mu.Unlock()
	return true
}
