// Package input 注册全局快捷键，按下时向命令总线发送播放/暂停命令，提词器不在前台时也能控制。
package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.design/x/hotkey"

	"github.com/ByLCY/prompter/playback"
)

// HotkeyManager 管理一个全局快捷键。
type HotkeyManager struct {
	mu       sync.Mutex
	hk       *hotkey.Hotkey
	commands *playback.Bus[playback.Command]
	command  playback.Command
	presses  int
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHotkeyManager 创建管理器，按键时向 commands 发布 toggle 命令。
func NewHotkeyManager(commands *playback.Bus[playback.Command]) *HotkeyManager {
	return &HotkeyManager{
		commands: commands,
		command:  playback.Command{Kind: playback.CmdToggle},
		done:     make(chan struct{}),
	}
}

// Start 注册快捷键并开始监听，ctx 结束时停止。
func (h *HotkeyManager) Start(ctx context.Context, chord string) error {
	parsed, err := ParseChord(chord)
	if err != nil {
		return fmt.Errorf("快捷键无效: %w", err)
	}
	mods, key := toHotkey(parsed)

	h.hk = hotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("注册快捷键 %s 失败: %w", parsed, err)
	}
	slog.Info("全局快捷键已注册", "hotkey", parsed.String())

	ctx, h.cancel = context.WithCancel(ctx)
	go func() {
		defer close(h.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-h.hk.Keydown():
				if !ok {
					return
				}
				h.press()
			}
		}
	}()
	return nil
}

func (h *HotkeyManager) press() {
	h.mu.Lock()
	h.presses++
	h.mu.Unlock()
	if h.commands != nil && h.commands.Publish(h.command) == 0 {
		slog.Debug("快捷键命令无人接收")
	}
}

// Presses 返回已处理的按键次数。
func (h *HotkeyManager) Presses() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presses
}

// Stop 注销快捷键并等待监听协程退出。
func (h *HotkeyManager) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.hk != nil {
		if err := h.hk.Unregister(); err != nil {
			slog.Debug("注销快捷键失败", "err", err)
		}
	}
	if h.hk != nil {
		select {
		case <-h.done:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func toHotkey(c Chord) ([]hotkey.Modifier, hotkey.Key) {
	mods := make([]hotkey.Modifier, 0, len(c.Mods))
	for _, m := range c.Mods {
		switch m {
		case ModCtrl:
			mods = append(mods, hotkey.ModCtrl)
		case ModShift:
			mods = append(mods, hotkey.ModShift)
		case ModAlt:
			mods = append(mods, modAlt())
		case ModSuper:
			mods = append(mods, modSuper())
		}
	}
	return mods, keys[c.Key]
}

func knownKey(name string) bool {
	_, ok := keys[name]
	return ok
}

var keys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "enter": hotkey.KeyReturn, "tab": hotkey.KeyTab, "esc": hotkey.KeyEscape,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD, "e": hotkey.KeyE,
	"f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI, "j": hotkey.KeyJ,
	"k": hotkey.KeyK, "l": hotkey.KeyL, "m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX, "y": hotkey.KeyY,
	"z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}
