package playback

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock 只在测试调用 fire 时触发定时器。
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	c       chan time.Time
	after   time.Duration
	mu      sync.Mutex
	stopped bool
}

func (f *fakeClock) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{c: make(chan time.Time, 1), after: d}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) latest(t *testing.T) *fakeTimer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		t.Fatalf("尚未创建定时器")
	}
	return f.timers[len(f.timers)-1]
}

func (f *fakeClock) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTimer) fire() { t.c <- time.Now() }

type sessionHarness struct {
	t      *testing.T
	clock  *fakeClock
	sess   *Session
	states *Subscriber[State]
	cancel context.CancelFunc
	done   chan error
}

func startSession(t *testing.T, raw string) *sessionHarness {
	t.Helper()
	clk := &fakeClock{}
	ctl := NewController(NewDocument(raw, 40, nil), PlaybackSurface())
	sess := NewSession(ctl, nil, SessionOptions{Clock: clk})
	states, unsub := sess.Observe(context.Background())
	t.Cleanup(unsub)

	ctx, cancel := context.WithCancel(context.Background())
	h := &sessionHarness{t: t, clock: clk, sess: sess, states: states, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- sess.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(time.Second):
			t.Errorf("会话未退出")
		}
	})
	h.waitFor(func(st State) bool { return st.Phase == PhaseEditing })
	return h
}

// waitFor 读取状态总线直到 pred 成立。
func (h *sessionHarness) waitFor(pred func(State) bool) State {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-h.states.C:
			if pred(st) {
				return st
			}
		case <-timeout:
			h.t.Fatalf("等待状态超时，当前快照 %+v", h.sess.Snapshot())
		}
	}
}

func TestSessionDrivesPlaybackToFinished(t *testing.T) {
	h := startSession(t, "one\ntwo")
	h.sess.Send(Command{Kind: CmdToggle})
	h.waitFor(func(st State) bool { return st.Phase == PhaseCountdown && st.Countdown == 3 })

	for _, n := range []int{2, 1} {
		timer := h.clock.latest(t)
		if timer.after != CountdownInterval {
			t.Fatalf("倒计时定时器间隔错误: %v", timer.after)
		}
		timer.fire()
		h.waitFor(func(st State) bool { return st.Countdown == n })
	}
	h.clock.latest(t).fire()
	h.waitFor(func(st State) bool { return st.Phase == PhaseActive && st.Index == 0 })

	line := h.clock.latest(t)
	if line.after != LineInterval {
		t.Fatalf("1x 行间隔应为 %v，实际 %v", LineInterval, line.after)
	}
	line.fire()
	h.waitFor(func(st State) bool { return st.Index == 1 && st.Line == "two" })
	h.clock.latest(t).fire()
	st := h.waitFor(func(st State) bool { return st.Phase == PhaseFinished })
	if st.Playing {
		t.Fatalf("结束后应停止播放")
	}
	if got := h.sess.Snapshot(); got.Phase != PhaseFinished {
		t.Fatalf("快照应为 Finished，实际 %+v", got)
	}
}

func TestSessionCancelsTimerOnPause(t *testing.T) {
	h := startSession(t, "a\nb\nc")
	h.sess.Send(Command{Kind: CmdToggle})
	h.waitFor(func(st State) bool { return st.Phase == PhaseCountdown })
	armed := h.clock.latest(t)

	h.sess.Send(Command{Kind: CmdPause})
	h.waitFor(func(st State) bool { return st.Phase == PhaseEditing })
	if !armed.isStopped() {
		t.Fatalf("暂停时应停止已布置的定时器")
	}
	before := h.clock.count()

	// 已停止的定时器即使触发也不应推进状态
	armed.fire()
	h.sess.Send(Command{Kind: CmdSpeed, Value: 2})
	st := h.waitFor(func(st State) bool { return st.Speed == 2 })
	if st.Phase != PhaseEditing || st.Countdown != CountdownStart {
		t.Fatalf("旧定时器不应生效: %+v", st)
	}
	if h.clock.count() != before {
		t.Fatalf("暂停状态下不应布置新的定时器")
	}
}

func TestSessionReplaceResets(t *testing.T) {
	h := startSession(t, "a\nb\nc\nd")
	h.sess.Send(Command{Kind: CmdToggle})
	for i := 0; i < 3; i++ {
		h.waitFor(func(st State) bool { return st.Phase == PhaseCountdown && st.Countdown == 3-i })
		h.clock.latest(t).fire()
	}
	h.waitFor(func(st State) bool { return st.Phase == PhaseActive })
	h.clock.latest(t).fire()
	h.waitFor(func(st State) bool { return st.Index == 1 })

	h.sess.Send(Command{Kind: CmdReplace, Text: "new"})
	st := h.waitFor(func(st State) bool { return st.Phase == PhaseEditing })
	if st.Index != -1 || st.Lines != 1 {
		t.Fatalf("替换后状态错误: %+v", st)
	}
}

func TestSessionRunOnlyOnce(t *testing.T) {
	h := startSession(t, "a")
	if err := h.sess.Run(context.Background()); err == nil {
		t.Fatalf("重复 Run 应报错")
	}
}

func TestConsoleFollowsSession(t *testing.T) {
	var buf bytes.Buffer
	out := NewConsoleOutput(ConsoleConfig{Writer: &buf})
	out.Show(State{Phase: PhaseEditing, Index: -1, Lines: 2})
	out.Show(State{Phase: PhaseCountdown, Index: -1, Countdown: 3})
	out.Show(State{Phase: PhaseCountdown, Index: -1, Countdown: 3, Gen: 9})
	out.Show(State{Phase: PhaseActive, Index: 0, Lines: 2, Line: "hello"})
	out.Show(State{Phase: PhaseFinished, Index: 1, Lines: 2})

	want := "3...\n[1/2] hello\n[完]\n"
	if buf.String() != want {
		t.Fatalf("控制台输出不符:\n%s\nwant:\n%s", buf.String(), want)
	}
	if strings.Count(buf.String(), "3...") != 1 {
		t.Fatalf("相同可见状态不应重复打印")
	}
}
