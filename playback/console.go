package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleOutput 在终端逐行打印播放进度，用于无界面模式。
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	showTimestamp bool
	last          State
	seen          bool
}

// ConsoleConfig 配置 ConsoleOutput。
type ConsoleConfig struct {
	// ShowTimestamp 在每行前加 HH:MM:SS
	ShowTimestamp bool
	// Writer 默认为 os.Stdout
	Writer io.Writer
}

// NewConsoleOutput 创建控制台输出。
func NewConsoleOutput(cfg ConsoleConfig) *ConsoleOutput {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleOutput{writer: w, showTimestamp: cfg.ShowTimestamp}
}

// Show 根据状态变化打印：倒计时数字、新的当前行、暂停与结束提示。相同的可见状态不重复打印。
func (c *ConsoleOutput) Show(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.last, c.seen
	c.last, c.seen = st, true
	if seen && prev.Phase == st.Phase && prev.Index == st.Index && prev.Countdown == st.Countdown && prev.Line == st.Line {
		return
	}
	switch st.Phase {
	case PhaseCountdown:
		c.write(fmt.Sprintf("%d...", st.Countdown))
	case PhaseActive:
		c.write(fmt.Sprintf("[%d/%d] %s", st.Index+1, st.Lines, st.Line))
	case PhasePaused:
		c.write(fmt.Sprintf("[%d/%d] (暂停) %s", st.Index+1, st.Lines, st.Line))
	case PhaseFinished:
		c.write("[完]")
	case PhaseEditing:
		if seen {
			c.write(fmt.Sprintf("(编辑) 共 %d 行", st.Lines))
		}
	}
}

// Info 打印提示信息。
func (c *ConsoleOutput) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "[INFO] %s\n", msg)
}

func (c *ConsoleOutput) write(text string) {
	if c.showTimestamp {
		fmt.Fprintf(c.writer, "[%s] %s\n", time.Now().Format("15:04:05"), text)
		return
	}
	fmt.Fprintln(c.writer, text)
}

// Follow 把状态总线上的每个快照交给 Show，直到 ctx 结束。
func (c *ConsoleOutput) Follow(ctx context.Context, states *Bus[State]) error {
	sub, unsub := states.Subscribe(ctx)
	defer unsub()
	sub.Each(func(st State) error {
		c.Show(st)
		return nil
	})
	return sub.Wait()
}
