// Package tui 是提词器的终端界面：编辑视图（原文与分行列表）和播放视图。
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ByLCY/prompter/config"
	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/playback"
	"github.com/ByLCY/prompter/store"
)

const (
	minFontPx  = 16
	maxFontPx  = 160
	fontStepPx = 4
)

// tickMsg 携带排期时的代号，过期的 tick 会被控制器忽略。
type tickMsg struct{ gen uint64 }

// commandMsg 是从命令总线收到的外部命令（热键、websocket、MCP）。
type commandMsg playback.Command

// Options 配置界面。
type Options struct {
	Script    *layout.Script
	Config    *config.Config
	Commands  *playback.Bus[playback.Command]
	States    *playback.Bus[playback.State]
	Autosaver *store.Autosaver
	Keymap    *playback.Keymap
	Width     int
	Height    int
}

// Model 是 bubbletea 模型。控制器只在 Update 中被修改，满足单一所有者的要求。
type Model struct {
	ctx    context.Context
	ctl    *playback.Controller
	keys   playback.Keymap
	script *layout.Script

	editorSurface   playback.Surface
	playbackSurface playback.Surface
	container       layout.Length

	text textarea.Model
	line textinput.Model

	playView  bool
	showPanel bool
	width     int
	height    int
	status    string

	armed    uint64
	commands *playback.Subscriber[playback.Command]
	mirror   *mirror
	autosave *store.Autosaver
}

// New 创建模型。ctx 用于自动保存与命令订阅的生命周期。
func New(ctx context.Context, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	script := opts.Script
	if script == nil {
		script = store.DefaultScript()
	}
	if script.Settings.FontSize.IsZero() {
		script.Settings.FontSize = cfg.Display.FontSize
	}
	keys := playback.DefaultKeymap()
	if opts.Keymap != nil {
		keys = *opts.Keymap
	}

	budget := layout.WidthBudget(script.Settings.FontSize, cfg.Display.ContainerWidth)
	ctl := playback.NewController(playback.NewDocument(script.RawText, budget, nil), cfg.Editor)
	if script.Settings.Speed > 0 {
		ctl.SetSpeed(script.Settings.Speed)
	}

	ta := textarea.New()
	ta.Placeholder = "在这里输入或粘贴提词稿…"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetValue(script.RawText)
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "✎ "
	ti.CharLimit = 0

	m := Model{
		ctx:             ctx,
		ctl:             ctl,
		keys:            keys,
		script:          script,
		editorSurface:   cfg.Editor,
		playbackSurface: cfg.Playback,
		container:       cfg.Display.ContainerWidth,
		text:            ta,
		line:            ti,
		mirror:          &mirror{bus: opts.States},
		autosave:        opts.Autosaver,
	}
	if opts.Commands != nil {
		m.commands, _ = opts.Commands.Subscribe(ctx)
	}
	m.resize(opts.Width, opts.Height)
	m.mirror.publish(ctl.Snapshot())
	return m
}

// Run 在终端中运行界面直到用户退出或 ctx 结束。
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Controller 暴露控制器，供测试与外部观察使用。
func (m Model) Controller() *playback.Controller { return m.ctl }

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForCommand())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tickMsg:
		if m.ctl.Fire(msg.gen) {
			m.afterChange()
		}
		return m, m.arm()
	case commandMsg:
		return m.applyCommand(playback.Command(msg))
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	switch {
	case m.line.Focused():
		m.line, cmd = m.line.Update(msg)
	case m.text.Focused():
		m.text, cmd = m.text.Update(msg)
	}
	return m, cmd
}

func (m Model) applyCommand(cmd playback.Command) (tea.Model, tea.Cmd) {
	before := m.ctl.Document().Text()
	wasPlaying := m.ctl.Playing()
	if err := m.ctl.Apply(cmd); err != nil {
		slog.Debug("外部命令被忽略", "command", cmd.Kind, "err", err)
	}
	if !wasPlaying && m.ctl.Playing() {
		m.enterPlayView()
	}
	if after := m.ctl.Document().Text(); after != before {
		m.line.Blur()
		m.text.SetValue(after)
		m.touch()
	}
	if cmd.Kind == playback.CmdSpeed || cmd.Kind == playback.CmdSpeedDelta {
		m.touch()
	}
	m.afterChange()
	return m, tea.Batch(m.arm(), m.waitForCommand())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// 单行编辑：输入框有焦点时只有 Esc/Enter/ctrl+c 生效
	if m.line.Focused() {
		switch action := m.keys.Resolve(key, true); action {
		case playback.ActionQuit:
			return m.quit()
		case playback.ActionEscape, playback.ActionEditLine:
			m.ctl.UpdateDraft(m.line.Value())
			if _, err := m.ctl.Perform(action); err != nil {
				m.status = err.Error()
			}
			m.line.Blur()
			m.syncText()
			m.afterChange()
			return m, m.arm()
		}
		var cmd tea.Cmd
		m.line, cmd = m.line.Update(msg)
		m.ctl.UpdateDraft(m.line.Value())
		return m, cmd
	}

	// 原文输入区有焦点时，快捷键全部让给输入
	if m.text.Focused() {
		switch key {
		case "ctrl+c":
			return m.quit()
		case "esc":
			m.text.Blur()
			return m, nil
		}
		before := m.text.Value()
		var cmd tea.Cmd
		m.text, cmd = m.text.Update(msg)
		if after := m.text.Value(); after != before {
			m.ctl.ReplaceText(after)
			m.touch()
			m.afterChange()
		}
		return m, cmd
	}

	switch key {
	case "tab":
		if m.ctl.Playing() {
			return m, nil
		}
		m.leavePlayView()
		return m, m.text.Focus()
	case "+", "=":
		m.adjustFont(fontStepPx)
		return m, nil
	case "-", "_":
		m.adjustFont(-fontStepPx)
		return m, nil
	}

	action := m.keys.Resolve(key, false)
	switch action {
	case playback.ActionNone:
		return m, nil
	case playback.ActionTogglePanel:
		m.showPanel = !m.showPanel
		return m, nil
	case playback.ActionQuit:
		return m.quit()
	case playback.ActionToggle:
		if !m.ctl.Playing() {
			m.enterPlayView()
		}
	}

	m.status = ""
	exit, err := m.ctl.Perform(action)
	if err != nil && !errors.Is(err, playback.ErrPlaying) {
		m.status = err.Error()
	}

	var cmd tea.Cmd
	switch action {
	case playback.ActionEditLine:
		if m.ctl.Editing() >= 0 {
			m.leavePlayView()
			m.line.SetValue(m.ctl.Draft())
			m.line.CursorEnd()
			cmd = m.line.Focus()
		}
	case playback.ActionSpeedUp, playback.ActionSpeedDown:
		m.touch()
	case playback.ActionResplit:
		m.syncText()
	}
	if exit {
		if m.playView {
			m.leavePlayView()
		} else {
			cmd = m.text.Focus()
		}
	}
	m.afterChange()
	return m, tea.Batch(cmd, m.arm())
}

// arm 为控制器的待触发排期创建 tea.Tick；同一代号只布置一次。
func (m *Model) arm() tea.Cmd {
	tick, ok := m.ctl.Pending()
	if !ok || tick.Gen == m.armed {
		return nil
	}
	m.armed = tick.Gen
	gen := tick.Gen
	return tea.Tick(tick.After, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func (m Model) waitForCommand() tea.Cmd {
	if m.commands == nil {
		return nil
	}
	sub := m.commands
	return func() tea.Msg {
		select {
		case cmd, ok := <-sub.C:
			if !ok {
				return nil
			}
			return commandMsg(cmd)
		case <-sub.Ctx.Done():
			return nil
		}
	}
}

func (m *Model) enterPlayView() {
	m.playView = true
	m.text.Blur()
	m.ctl.SetSurface(m.playbackSurface)
}

func (m *Model) leavePlayView() {
	m.playView = false
	m.ctl.SetSurface(m.editorSurface)
}

// syncText 在单行编辑或重新分行后把原文同步回输入区。
func (m *Model) syncText() {
	if text := m.ctl.Document().Text(); text != m.text.Value() {
		m.text.SetValue(text)
		m.touch()
	}
}

func (m *Model) adjustFont(deltaPx float64) {
	if m.ctl.Playing() {
		return
	}
	px := m.script.Settings.FontSize.ToPX() + deltaPx
	px = max(minFontPx, min(maxFontPx, px))
	m.script.Settings.FontSize = layout.Px(px)
	m.ctl.SetBudget(layout.WidthBudget(m.script.Settings.FontSize, m.container))
	m.touch()
	m.afterChange()
}

func (m *Model) touch() {
	m.script.RawText = m.ctl.Document().Text()
	m.script.Settings.Speed = m.ctl.Speed()
	if m.autosave != nil {
		m.autosave.Touch(m.ctx, m.script)
	}
}

func (m *Model) afterChange() { m.mirror.publish(m.ctl.Snapshot()) }

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.touch()
	if m.autosave != nil {
		if err := m.autosave.Flush(m.ctx); err != nil {
			slog.Warn("退出前保存失败", "err", err)
		}
	}
	return m, tea.Quit
}

func (m *Model) resize(w, h int) {
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	m.width, m.height = w, h
	m.text.SetWidth(max(20, w-4))
	m.text.SetHeight(max(3, h/3))
	m.line.Width = max(10, w-8)
}

// mirror 把状态快照发布到总线，相同快照不重复发布。
type mirror struct {
	bus  *playback.Bus[playback.State]
	last playback.State
	sent bool
}

func (p *mirror) publish(st playback.State) {
	if p == nil || p.bus == nil {
		return
	}
	if p.sent && st == p.last {
		return
	}
	p.last, p.sent = st, true
	p.bus.Publish(st)
}
