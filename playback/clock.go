package playback

import "time"

// Timer 是一次性定时器。
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock 产生定时器；测试中替换为手动推进的实现。
type Clock interface {
	NewTimer(d time.Duration) Timer
}

type systemClock struct{}

type systemTimer struct{ t *time.Timer }

func (t systemTimer) C() <-chan time.Time { return t.t.C }
func (t systemTimer) Stop() bool          { return t.t.Stop() }

func (systemClock) NewTimer(d time.Duration) Timer { return systemTimer{t: time.NewTimer(d)} }

// SystemClock 返回基于 time.Timer 的时钟。
func SystemClock() Clock { return systemClock{} }
