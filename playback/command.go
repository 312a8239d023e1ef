package playback

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// CommandKind 是总线上命令的类型，同时也是 websocket 与 MCP 中的 "type" 字段。
type CommandKind string

const (
	CmdToggle     CommandKind = "toggle"
	CmdPlay       CommandKind = "play"
	CmdPause      CommandKind = "pause"
	CmdNext       CommandKind = "next"
	CmdPrev       CommandKind = "prev"
	CmdFirst      CommandKind = "first"
	CmdLast       CommandKind = "last"
	CmdSeek       CommandKind = "seek"
	CmdSpeed      CommandKind = "speed"
	CmdSpeedDelta CommandKind = "speed_delta"
	CmdReplace    CommandKind = "replace"
	CmdResplit    CommandKind = "resplit"
	CmdBudget     CommandKind = "budget"
	CmdBackToEdit CommandKind = "edit"
)

var commandKinds = []CommandKind{
	CmdToggle, CmdPlay, CmdPause, CmdNext, CmdPrev, CmdFirst, CmdLast,
	CmdSeek, CmdSpeed, CmdSpeedDelta, CmdReplace, CmdResplit, CmdBudget, CmdBackToEdit,
}

// CommandKinds 列出全部命令类型。
func CommandKinds() []CommandKind {
	out := make([]CommandKind, len(commandKinds))
	copy(out, commandKinds)
	return out
}

// ParseCommandKind 解析命令名，忽略大小写与首尾空白。
func ParseCommandKind(s string) (CommandKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range commandKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("未知命令: %q", s)
}

// Command 是发往控制器的一条命令。Value 用于 seek/speed/speed_delta/budget，Text 用于 replace。
type Command struct {
	Kind  CommandKind `json:"type"`
	Value float64     `json:"value,omitempty"`
	Text  string      `json:"text,omitempty"`
}

// Validate 检查命令是否完整：类型必须已知，replace 必须带 text。
func (cmd Command) Validate() error {
	if _, err := ParseCommandKind(string(cmd.Kind)); err != nil {
		return err
	}
	if cmd.Kind == CmdReplace && cmd.Text == "" {
		return errors.New("replace 命令缺少 text")
	}
	return nil
}

// saturate 把浮点数取整后限制在 int32 范围内，NaN 视为 0。
func saturate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// Apply 将命令作用于控制器。被拒绝的操作返回 ErrPlaying/ErrNoLines，调用方可以忽略。
func (c *Controller) Apply(cmd Command) error {
	switch cmd.Kind {
	case CmdToggle:
		return c.Toggle()
	case CmdPlay:
		return c.Play()
	case CmdPause:
		c.Pause()
	case CmdNext:
		return c.Step(1)
	case CmdPrev:
		return c.Step(-1)
	case CmdFirst:
		return c.First()
	case CmdLast:
		return c.Last()
	case CmdSeek:
		return c.Seek(saturate(cmd.Value))
	case CmdSpeed:
		c.SetSpeed(cmd.Value)
	case CmdSpeedDelta:
		// 未给出 value 时默认加速一档
		steps := 1
		if cmd.Value != 0 {
			steps = saturate(math.Round(cmd.Value))
		}
		c.AdjustSpeed(steps)
	case CmdReplace:
		c.ReplaceText(cmd.Text)
	case CmdResplit:
		return c.Resplit()
	case CmdBudget:
		c.SetBudget(saturate(cmd.Value))
	case CmdBackToEdit:
		c.BackToEdit()
	default:
		return fmt.Errorf("未知命令: %q", cmd.Kind)
	}
	return nil
}
