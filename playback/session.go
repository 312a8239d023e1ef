package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// SessionOptions 配置 Session。
type SessionOptions struct {
	// Clock 默认为 SystemClock。
	Clock Clock
	// States 接收每次变化后的快照；为空时 Session 自建一条。
	States *Bus[State]
}

// Session 是控制器的唯一所有者：在一个协程里轮流处理总线命令与唯一的定时器。
// 其它协程只能通过命令总线改变状态，通过 Snapshot 或 States 观察状态。
type Session struct {
	ctl      *Controller
	commands *Bus[Command]
	states   *Bus[State]
	clock    Clock

	sub   *Subscriber[Command]
	unsub func()

	snapshot atomic.Pointer[State]
	running  atomic.Bool

	timer    Timer
	timerGen uint64

	lastSent State
	sentOnce bool
}

// NewSession 创建会话。commands 为空时自建一条命令总线。
func NewSession(ctl *Controller, commands *Bus[Command], opts SessionOptions) *Session {
	if commands == nil {
		commands = NewBus[Command]("commands", 0)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.States == nil {
		opts.States = NewBus[State]("states", 0)
	}
	s := &Session{ctl: ctl, commands: commands, states: opts.States, clock: opts.Clock}
	// 构造时即订阅，Run 之前发布的命令不会丢失
	s.sub, s.unsub = commands.Subscribe(context.Background())
	st := ctl.Snapshot()
	s.snapshot.Store(&st)
	return s
}

// Commands 返回命令总线，任何界面都可以向它发布命令。
func (s *Session) Commands() *Bus[Command] { return s.commands }

// States 返回状态总线。
func (s *Session) States() *Bus[State] { return s.states }

// Observe 订阅状态变化，ctx 结束时自动取消。
func (s *Session) Observe(ctx context.Context) (*Subscriber[State], func()) {
	return s.states.Subscribe(ctx)
}

// Snapshot 返回最近一次状态，可在任意协程调用。
func (s *Session) Snapshot() State { return *s.snapshot.Load() }

// Send 发布一条命令，等价于 Commands().Publish。
func (s *Session) Send(cmd Command) bool { return s.commands.Publish(cmd) > 0 }

// Run 驱动会话直到 ctx 结束或命令总线关闭。同一个 Session 只能运行一次。
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("会话已在运行")
	}
	defer s.unsub()
	defer s.stopTimer()

	s.sync()
	for {
		var fire <-chan time.Time
		if s.timer != nil {
			fire = s.timer.C()
		}
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-s.sub.C:
			if !ok {
				return nil
			}
			if err := s.ctl.Apply(cmd); err != nil {
				slog.Debug("命令被忽略", "command", cmd.Kind, "err", err)
			}
			s.sync()
		case <-fire:
			gen := s.timerGen
			s.timer = nil
			if !s.ctl.Fire(gen) {
				slog.Debug("丢弃过期的 tick", "gen", gen)
			}
			s.sync()
		}
	}
}

// sync 按控制器的待触发排期重新布置定时器，并发布状态。
func (s *Session) sync() {
	s.rearm()
	st := s.ctl.Snapshot()
	s.snapshot.Store(&st)

	changed := !s.sentOnce || st != s.lastSent
	s.lastSent, s.sentOnce = st, true
	if changed {
		s.states.Publish(st)
	}
}

func (s *Session) rearm() {
	tick, ok := s.ctl.Pending()
	if ok && s.timer != nil && tick.Gen == s.timerGen {
		return
	}
	s.stopTimer()
	if !ok {
		return
	}
	s.timer = s.clock.NewTimer(tick.After)
	s.timerGen = tick.Gen
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
