package playback

import "strings"

// Action 是按键解析后的动作。
type Action int

const (
	ActionNone Action = iota
	ActionToggle
	ActionSpeedUp
	ActionSpeedDown
	ActionPrev
	ActionNext
	ActionFirst
	ActionLast
	ActionEditLine
	ActionResplit
	ActionEscape
	ActionTogglePanel
	ActionQuit
)

var actionNames = map[Action]string{
	ActionNone:        "none",
	ActionToggle:      "toggle",
	ActionSpeedUp:     "speed-up",
	ActionSpeedDown:   "speed-down",
	ActionPrev:        "prev",
	ActionNext:        "next",
	ActionFirst:       "first",
	ActionLast:        "last",
	ActionEditLine:    "edit-line",
	ActionResplit:     "resplit",
	ActionEscape:      "escape",
	ActionTogglePanel: "toggle-panel",
	ActionQuit:        "quit",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Keymap 把按键名（bubbletea 的 KeyMsg.String() 形式）映射为动作。
type Keymap struct {
	bindings map[string]Action
}

// DefaultKeymap 返回默认快捷键：空格播放/暂停，↑/↓ 调速，←/→ 换行，Home/End 跳转，
// Enter 编辑当前行，r 重新分行，Esc 逐级退出，h 切换设置面板。
func DefaultKeymap() Keymap {
	return Keymap{bindings: map[string]Action{
		" ":      ActionToggle,
		"space":  ActionToggle,
		"up":     ActionSpeedUp,
		"down":   ActionSpeedDown,
		"left":   ActionPrev,
		"right":  ActionNext,
		"home":   ActionFirst,
		"end":    ActionLast,
		"enter":  ActionEditLine,
		"r":      ActionResplit,
		"esc":    ActionEscape,
		"h":      ActionTogglePanel,
		"H":      ActionTogglePanel,
		"ctrl+c": ActionQuit,
		"q":      ActionQuit,
	}}
}

// Bind 覆盖或新增一个绑定。
func (k Keymap) Bind(key string, a Action) Keymap {
	out := Keymap{bindings: make(map[string]Action, len(k.bindings)+1)}
	for key, a := range k.bindings {
		out.bindings[key] = a
	}
	out.bindings[key] = a
	return out
}

// Resolve 解析按键。输入框有焦点时只放行 Esc、Enter 与 ctrl+c，其余按键交给输入框。
func (k Keymap) Resolve(key string, inputFocused bool) Action {
	if inputFocused {
		switch strings.ToLower(key) {
		case "esc":
			return ActionEscape
		case "enter":
			return ActionEditLine
		case "ctrl+c":
			return ActionQuit
		}
		return ActionNone
	}
	return k.bindings[key]
}

// Perform 对控制器执行动作，并按播放状态做快捷键门控：播放中不能调速、不能编辑或重新分行，
// 换行取决于 Surface.NavigateWhilePlaying。返回 true 表示应退出当前视图。
func (c *Controller) Perform(a Action) (exit bool, err error) {
	switch a {
	case ActionToggle:
		err = c.Toggle()
	case ActionSpeedUp, ActionSpeedDown:
		if c.playing {
			return false, ErrPlaying
		}
		if a == ActionSpeedUp {
			c.AdjustSpeed(1)
		} else {
			c.AdjustSpeed(-1)
		}
	case ActionPrev:
		err = c.Step(-1)
	case ActionNext:
		err = c.Step(1)
	case ActionFirst:
		err = c.First()
	case ActionLast:
		err = c.Last()
	case ActionEditLine:
		if c.editing >= 0 {
			err = c.CommitEdit(c.draft)
			break
		}
		target := c.index
		if target < 0 {
			target = 0
		}
		err = c.BeginEdit(target)
	case ActionResplit:
		err = c.Resplit()
	case ActionEscape:
		exit = c.Escape()
	case ActionQuit:
		exit = true
	}
	return exit, err
}
