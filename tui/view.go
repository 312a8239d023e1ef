package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ByLCY/prompter/playback"
	"github.com/ByLCY/prompter/segment"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	focusStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	overflowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	currentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231"))
	countStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

func (m Model) View() string {
	if m.playView {
		return m.playbackView()
	}
	return m.editorView()
}

func (m Model) editorView() string {
	st := m.ctl.Snapshot()
	var b strings.Builder

	title := m.script.Title
	if title == "" {
		title = "未命名提词稿"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s · %d 行 · 宽度 %d · %.2fx", st.Phase, st.Lines, st.Budget, st.Speed)))
	b.WriteString("\n\n")
	b.WriteString(m.text.View())
	b.WriteString("\n\n")

	lines := m.ctl.Document().Lines()
	start, end := window(len(lines), st.Index, max(3, m.height-m.text.Height()-10))
	for i := start; i < end; i++ {
		if i == st.Editing {
			b.WriteString(fmt.Sprintf("%4d ", i+1))
			b.WriteString(m.line.View())
			b.WriteString("\n")
			continue
		}
		b.WriteString(m.renderListLine(i, lines[i], st))
		b.WriteString("\n")
	}
	if len(lines) == 0 {
		b.WriteString(dimStyle.Render("（没有可播放的行）"))
		b.WriteString("\n")
	}

	if m.showPanel {
		b.WriteString("\n")
		b.WriteString(m.panelView(st))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) renderListLine(i int, text string, st playback.State) string {
	budget := st.Budget
	label := fmt.Sprintf("%4d ", i+1)
	body := truncate(text, m.width-len(label)-1)
	if lineOverflows(text, budget) {
		body = overflowStyle.Render(body)
	}
	if i == st.Index {
		return focusStyle.Render(label) + body
	}
	return dimStyle.Render(label) + body
}

func (m Model) playbackView() string {
	st := m.ctl.Snapshot()
	w := m.width

	header := dimStyle.Render(fmt.Sprintf("%s · %.2fx · %s", st.Phase, st.Speed, progress(st)))
	var body string
	switch st.Phase {
	case playback.PhaseCountdown:
		body = countStyle.Render(fmt.Sprintf("%d", st.Countdown))
	case playback.PhaseFinished:
		body = countStyle.Render("完")
	default:
		prev := m.ctl.Document().Line(st.Index - 1)
		next := m.ctl.Document().Line(st.Index + 1)
		body = strings.Join([]string{
			dimStyle.Render(truncate(prev, w-4)),
			"",
			currentStyle.Render(truncate(st.Line, w-4)),
			"",
			dimStyle.Render(truncate(next, w-4)),
		}, "\n")
	}

	centered := lipgloss.Place(w, max(5, m.height-4), lipgloss.Center, lipgloss.Center, body)
	footer := lipgloss.PlaceHorizontal(w, lipgloss.Center, dimStyle.Render("空格 播放/暂停 · ←/→ 换行 · Esc 返回"))
	if m.status != "" {
		footer = statusStyle.Render(m.status) + "\n" + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, centered, footer)
}

func (m Model) panelView(st playback.State) string {
	s := m.script.Settings
	rows := []string{
		titleStyle.Render("设置"),
		fmt.Sprintf("速度    %.2fx  (↑/↓, %.2f–%.2f)", st.Speed, m.ctl.Surface().MinSpeed, m.ctl.Surface().MaxSpeed),
		fmt.Sprintf("字号    %s  (+/-)", s.FontSize),
		fmt.Sprintf("行高    %s", s.LineHeight),
		fmt.Sprintf("宽度    %d 单位", st.Budget),
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) helpText() string {
	switch {
	case m.line.Focused():
		return "Enter 确认 · Esc 完成编辑"
	case m.text.Focused():
		return "Esc 离开输入区 · ctrl+c 退出"
	}
	return "空格 播放 · ←/→ 选行 · Enter 编辑 · r 重新分行 · Tab 输入区 · h 设置 · q 退出"
}

func progress(st playback.State) string {
	if st.Lines == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d", max(0, st.Index)+1, st.Lines)
}

// lineOverflows 按分行器的宽度单位判断是否超出预算，与终端显示宽度无关。
func lineOverflows(text string, budget int) bool {
	return budget > 0 && segment.Width(text) > budget
}

// window 返回以 focus 为中心、最多 size 行的可见区间。
func window(n, focus, size int) (int, int) {
	if size <= 0 || n <= size {
		return 0, n
	}
	if focus < 0 {
		focus = 0
	}
	start := focus - size/2
	start = max(0, min(start, n-size))
	return start, start + size
}

// truncate 按显示宽度截断，汉字按两列计算。
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
