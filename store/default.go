package store

import "github.com/ByLCY/prompter/layout"

const defaultText = `Welcome to prompter.

Paste or type your script here. Each paragraph becomes one or more display lines, wrapped to fit the width of the screen.

Press space to start. A three second countdown runs first, then the lines advance on their own.

使用方向键调整速度或逐行移动，按 Enter 可以单独修改某一行。

Press h to show the settings panel, and Esc to leave.`

// DefaultScript 返回内置的示例稿，在没有保存过的提词稿时使用。
func DefaultScript() *layout.Script {
	return &layout.Script{
		Title:    "Welcome",
		RawText:  defaultText,
		Settings: layout.DefaultSettings(),
	}
}
