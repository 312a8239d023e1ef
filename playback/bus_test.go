package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus[Command]("test", 4)
	a, unsubA := bus.Subscribe(context.Background())
	defer unsubA()
	b, unsubB := bus.Subscribe(context.Background())
	defer unsubB()

	if n := bus.Publish(Command{Kind: CmdToggle}); n != 2 {
		t.Fatalf("应投递给 2 个订阅者，实际 %d", n)
	}
	for _, sub := range []*Subscriber[Command]{a, b} {
		select {
		case cmd := <-sub.C:
			if cmd.Kind != CmdToggle {
				t.Fatalf("收到错误命令: %+v", cmd)
			}
		case <-time.After(time.Second):
			t.Fatalf("订阅者未收到命令")
		}
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus[int]("slow", 1)
	sub, unsub := bus.Subscribe(context.Background())
	defer unsub()
	if bus.Publish(1) != 1 {
		t.Fatalf("第一条应投递成功")
	}
	if bus.Publish(2) != 0 {
		t.Fatalf("通道已满时应丢弃而不是阻塞")
	}
	if v := <-sub.C; v != 1 {
		t.Fatalf("应收到第一条，实际 %d", v)
	}
}

func TestBusSendReportsFailure(t *testing.T) {
	bus := NewBus[int]("send", 1)
	if err := bus.Send(1); !errors.Is(err, ErrNoSubscribers) {
		t.Fatalf("无订阅者时应返回 ErrNoSubscribers: %v", err)
	}
	_, unsub := bus.Subscribe(context.Background())
	defer unsub()
	if err := bus.Send(1); err != nil {
		t.Fatalf("第一条应送达: %v", err)
	}
	if err := bus.Send(2); !errors.Is(err, ErrDropped) {
		t.Fatalf("通道已满时应返回 ErrDropped: %v", err)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus[int]("unsub", 0)
	sub, unsub := bus.Subscribe(context.Background())
	unsub()
	unsub()
	if bus.Len() != 0 {
		t.Fatalf("取消后订阅数应为 0")
	}
	if _, ok := <-sub.C; ok {
		t.Fatalf("取消后通道应关闭")
	}
	if bus.Publish(1) != 0 {
		t.Fatalf("无订阅者时不应投递")
	}
}

func TestBusContextCancelUnsubscribes(t *testing.T) {
	bus := NewBus[int]("ctx", 0)
	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := bus.Subscribe(ctx)
	cancel()
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatalf("不应收到消息")
		}
	case <-time.After(time.Second):
		t.Fatalf("ctx 结束后通道应关闭")
	}
	if bus.Len() != 0 {
		t.Fatalf("ctx 结束后应自动取消订阅")
	}
}

func TestSubscriberEach(t *testing.T) {
	bus := NewBus[int]("each", 8)
	sub, unsub := bus.Subscribe(context.Background())

	var mu sync.Mutex
	var got []int
	sub.Each(func(v int) error {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		return nil
	})
	for i := 1; i <= 3; i++ {
		bus.Publish(i)
	}
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Each 未处理全部消息: %v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
	unsub()
	if err := sub.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus[int]("close", 0)
	sub, _ := bus.Subscribe(context.Background())
	bus.Close()
	bus.Close()
	if _, ok := <-sub.C; ok {
		t.Fatalf("关闭后通道应关闭")
	}
	late, _ := bus.Subscribe(context.Background())
	if _, ok := <-late.C; ok {
		t.Fatalf("关闭后订阅应得到已关闭的通道")
	}
	if bus.Publish(1) != 0 {
		t.Fatalf("关闭后不应投递")
	}
}
