package playback

import (
	"errors"
	"testing"
)

func TestKeymapResolve(t *testing.T) {
	km := DefaultKeymap()
	cases := []struct {
		key     string
		focused bool
		want    Action
	}{
		{" ", false, ActionToggle},
		{"up", false, ActionSpeedUp},
		{"down", false, ActionSpeedDown},
		{"left", false, ActionPrev},
		{"right", false, ActionNext},
		{"home", false, ActionFirst},
		{"end", false, ActionLast},
		{"enter", false, ActionEditLine},
		{"r", false, ActionResplit},
		{"esc", false, ActionEscape},
		{"h", false, ActionTogglePanel},
		{"H", false, ActionTogglePanel},
		{"x", false, ActionNone},
		// 输入框有焦点时快捷键不生效
		{" ", true, ActionNone},
		{"h", true, ActionNone},
		{"left", true, ActionNone},
		{"esc", true, ActionEscape},
		{"enter", true, ActionEditLine},
		{"ctrl+c", true, ActionQuit},
	}
	for _, tc := range cases {
		if got := km.Resolve(tc.key, tc.focused); got != tc.want {
			t.Errorf("Resolve(%q, %v) = %v, want %v", tc.key, tc.focused, got, tc.want)
		}
	}

	custom := km.Bind("p", ActionToggle)
	if custom.Resolve("p", false) != ActionToggle || km.Resolve("p", false) != ActionNone {
		t.Fatalf("Bind 应返回新的 keymap 而不修改原值")
	}
}

func TestPerformGatesSpeedWhilePlaying(t *testing.T) {
	c := newTestController(t, "a\nb")
	if _, err := c.Perform(ActionSpeedUp); err != nil {
		t.Fatalf("暂停时调速应允许: %v", err)
	}
	if c.Speed() != 1.1 {
		t.Fatalf("speed = %v", c.Speed())
	}
	_, _ = c.Perform(ActionToggle)
	if _, err := c.Perform(ActionSpeedDown); !errors.Is(err, ErrPlaying) {
		t.Fatalf("播放中方向键调速应被忽略，实际 %v", err)
	}
	if c.Speed() != 1.1 {
		t.Fatalf("被忽略的调速不应生效")
	}
}

func TestPerformEditLineRoundTrip(t *testing.T) {
	c := newTestController(t, "a\nb")
	_, _ = c.Perform(ActionNext)
	_, _ = c.Perform(ActionNext)
	if _, err := c.Perform(ActionEditLine); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if c.Editing() != 1 {
		t.Fatalf("应编辑焦点行 1，实际 %d", c.Editing())
	}
	c.UpdateDraft("bee")
	if _, err := c.Perform(ActionEditLine); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Editing() != -1 || c.Document().Line(1) != "bee" {
		t.Fatalf("再次 Enter 应提交编辑: %d %q", c.Editing(), c.Document().Line(1))
	}
	if exit, _ := c.Perform(ActionQuit); !exit {
		t.Fatalf("quit 应请求退出")
	}
}
