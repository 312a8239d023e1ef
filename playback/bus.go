package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBusBuffer 是每个订阅者通道的默认容量。
const DefaultBusBuffer = 16

var (
	// ErrNoSubscribers 表示总线上没有订阅者（或已关闭）。
	ErrNoSubscribers = errors.New("没有订阅者")
	// ErrDropped 表示有订阅者，但它们的通道都已满，消息被丢弃。
	ErrDropped = errors.New("订阅者繁忙，消息被丢弃")
)

// Subscriber 是总线上的一个订阅。C 在取消订阅或总线关闭后被关闭。
// 订阅者自己的消费协程应挂在 G 上，Ctx 在取消订阅时结束。
type Subscriber[T any] struct {
	C   <-chan T
	Ctx context.Context
	G   *errgroup.Group

	ch     chan T
	cancel context.CancelFunc
	once   sync.Once
}

// Each 在 G 上启动一个协程，对每条消息调用 fn，直到通道关闭、Ctx 结束或 fn 出错。
func (s *Subscriber[T]) Each(fn func(T) error) {
	s.G.Go(func() error {
		for {
			select {
			case <-s.Ctx.Done():
				return nil
			case v, ok := <-s.C:
				if !ok {
					return nil
				}
				if err := fn(v); err != nil {
					return err
				}
			}
		}
	})
}

// Wait 等待 G 上的全部协程退出。
func (s *Subscriber[T]) Wait() error { return s.G.Wait() }

// Bus 是类型化的发布/订阅总线，用来替代全局可变的回调槽：
// 任何界面（TUI、热键、websocket、MCP）都只发布 Command，由持有控制器的一方订阅。
type Bus[T any] struct {
	name   string
	buffer int

	mu     sync.RWMutex
	subs   map[*Subscriber[T]]struct{}
	closed bool
}

// NewBus 创建总线；buffer ≤ 0 时使用 DefaultBusBuffer。
func NewBus[T any](name string, buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}
	return &Bus[T]{name: name, buffer: buffer, subs: make(map[*Subscriber[T]]struct{})}
}

// Subscribe 注册订阅者；ctx 结束时自动取消订阅。返回的函数可重复调用。
func (b *Bus[T]) Subscribe(ctx context.Context) (*Subscriber[T], func()) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan T, b.buffer)
	sub := &Subscriber[T]{C: ch, Ctx: gctx, G: g, ch: ch, cancel: cancel}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		sub.once.Do(func() { close(ch) })
		return sub, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	unsub := func() { b.unsubscribe(sub) }
	stop := context.AfterFunc(ctx, unsub)
	return sub, func() {
		stop()
		unsub()
	}
}

func (b *Bus[T]) unsubscribe(sub *Subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	sub.cancel()
	sub.once.Do(func() { close(sub.ch) })
	slog.Debug("总线取消订阅", "bus", b.name, "remaining", len(b.subs))
}

// Publish 向所有订阅者投递 v，不阻塞：通道已满的订阅者会丢弃这条消息并记录告警。
// 返回实际投递的订阅者数量。
func (b *Bus[T]) Publish(v T) int {
	delivered, _ := b.publish(v)
	return delivered
}

// Send 与 Publish 相同，但区分两种失败：没有订阅者返回 ErrNoSubscribers，
// 全部订阅者都丢弃了消息返回 ErrDropped。
func (b *Bus[T]) Send(v T) error {
	delivered, subs := b.publish(v)
	switch {
	case subs == 0:
		return ErrNoSubscribers
	case delivered == 0:
		return ErrDropped
	}
	return nil
}

func (b *Bus[T]) publish(v T) (delivered, subs int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, 0
	}
	for sub := range b.subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			slog.Warn("订阅者处理过慢，丢弃消息", "bus", b.name)
		}
	}
	return delivered, len(b.subs)
}

// Len 返回当前订阅者数量。
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭总线与全部订阅通道。之后的 Publish 不再投递。
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.cancel()
		sub.once.Do(func() { close(sub.ch) })
	}
	b.subs = nil
}
