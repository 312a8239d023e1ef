package store

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/ByLCY/prompter/layout"
)

const (
	defaultCacheTTL      = 30 * time.Minute
	cacheCleanupInterval = time.Hour
	listKey              = "\x00list"
)

// Cached 为任意 Store 加一层内存缓存；同一 ID 的并发加载只会访问一次底层存储。
type Cached struct {
	next  Store
	cache *cache.Cache
	group singleflight.Group
}

// NewCached 包装 next；ttl ≤ 0 时使用 30 分钟。
func NewCached(next Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{next: next, cache: cache.New(ttl, cacheCleanupInterval)}
}

func clone(s *layout.Script) *layout.Script {
	cp := *s
	if s.Vars != nil {
		cp.Vars = make(map[string]string, len(s.Vars))
		for k, v := range s.Vars {
			cp.Vars[k] = v
		}
	}
	return &cp
}

// Load 优先读缓存，未命中时经 singleflight 合并并发请求。
func (c *Cached) Load(ctx context.Context, id string) (*layout.Script, error) {
	if v, ok := c.cache.Get(id); ok {
		return clone(v.(*layout.Script)), nil
	}
	val, err, _ := c.group.Do(id, func() (interface{}, error) {
		if v, ok := c.cache.Get(id); ok {
			return v, nil
		}
		script, err := c.next.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(id, script)
		return script, nil
	})
	if err != nil {
		return nil, err
	}
	script, ok := val.(*layout.Script)
	if !ok {
		return nil, fmt.Errorf("缓存返回了意外的类型: %T", val)
	}
	return clone(script), nil
}

// Save 写穿到底层存储并刷新缓存。
func (c *Cached) Save(ctx context.Context, s *layout.Script) error {
	if err := c.next.Save(ctx, s); err != nil {
		return err
	}
	c.cache.SetDefault(s.ID, clone(s))
	c.cache.Delete(listKey)
	return nil
}

// List 缓存列表结果，任何写操作都会使其失效。
func (c *Cached) List(ctx context.Context) ([]Summary, error) {
	if v, ok := c.cache.Get(listKey); ok {
		return append([]Summary(nil), v.([]Summary)...), nil
	}
	list, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(listKey, list)
	return append([]Summary(nil), list...), nil
}

// Delete 删除并清除缓存。
func (c *Cached) Delete(ctx context.Context, id string) error {
	c.cache.Delete(id)
	c.cache.Delete(listKey)
	return c.next.Delete(ctx, id)
}
