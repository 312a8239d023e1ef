//go:build linux

package input

import "golang.design/x/hotkey"

// X11 下 Alt 为 Mod1，Super 为 Mod4。
func modAlt() hotkey.Modifier   { return hotkey.Mod1 }
func modSuper() hotkey.Modifier { return hotkey.Mod4 }
