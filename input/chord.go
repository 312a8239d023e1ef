package input

import (
	"fmt"
	"strings"
)

// Modifier 是与平台无关的修饰键名。
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	ModSuper Modifier = "super"
)

// Chord 是解析后的组合键，例如 "ctrl+shift+space"。
type Chord struct {
	Mods []Modifier
	Key  string
}

func (c Chord) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, c.Key), "+")
}

var modAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"cmd":     ModSuper,
	"command": ModSuper,
	"super":   ModSuper,
	"win":     ModSuper,
}

var keyAliases = map[string]string{
	"return": "enter",
	"escape": "esc",
}

// ParseChord 解析组合键字符串：大小写不敏感，修饰键不可重复，且必须恰好有一个主键。
func ParseChord(s string) (Chord, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Chord{}, fmt.Errorf("快捷键为空")
	}
	var chord Chord
	seen := map[Modifier]bool{}
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Chord{}, fmt.Errorf("快捷键 %q 格式错误", s)
		}
		if mod, ok := modAliases[part]; ok {
			if seen[mod] {
				return Chord{}, fmt.Errorf("修饰键 %s 重复", mod)
			}
			seen[mod] = true
			chord.Mods = append(chord.Mods, mod)
			continue
		}
		if chord.Key != "" {
			return Chord{}, fmt.Errorf("快捷键 %q 包含多个主键", s)
		}
		if alias, ok := keyAliases[part]; ok {
			part = alias
		}
		if !knownKey(part) {
			return Chord{}, fmt.Errorf("未知按键: %s", part)
		}
		chord.Key = part
	}
	if chord.Key == "" {
		return Chord{}, fmt.Errorf("快捷键 %q 缺少主键", s)
	}
	return chord, nil
}
