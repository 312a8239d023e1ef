// Package playback 实现提词器的播放状态机及其运行时：倒计时、逐行推进、手动导航、单行编辑。
package playback

import (
	"errors"
	"math"
	"time"

	"github.com/ByLCY/prompter/segment"
)

const (
	// CountdownStart 是每次全新播放前的倒计时起点。
	CountdownStart = 3
	// LineInterval 是 1x 速度下行与行之间的间隔。
	LineInterval = 2000 * time.Millisecond
	// CountdownInterval 是倒计时每一拍的间隔，与速度无关。
	CountdownInterval = 1000 * time.Millisecond
	// minInterval 保证任何排期都为正。
	minInterval = time.Millisecond
)

var (
	// ErrPlaying 表示该操作只允许在暂停状态下进行。
	ErrPlaying = errors.New("播放中不允许该操作")
	// ErrNoLines 表示当前提词稿没有任何行。
	ErrNoLines = errors.New("提词稿为空")
)

// Phase 是控制器的可观测状态。
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseCountdown
	PhaseActive
	PhasePaused
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhaseCountdown:
		return "countdown"
	case PhaseActive:
		return "active"
	case PhasePaused:
		return "paused"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText 让 Phase 在 JSON 中以名称出现。
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// TickKind 区分倒计时拍与换行拍。
type TickKind int

const (
	TickCountdown TickKind = iota
	TickLine
)

// Tick 是唯一一个待触发的排期。Gen 与控制器当前代号不一致时，触发会被忽略。
type Tick struct {
	Gen   uint64
	Kind  TickKind
	After time.Duration
}

// Surface 描述一个界面的速度范围与导航策略。编辑器与播放视图各自一份。
type Surface struct {
	Name                 string  `yaml:"-" json:"name"`
	MinSpeed             float64 `yaml:"min_speed" json:"minSpeed"`
	MaxSpeed             float64 `yaml:"max_speed" json:"maxSpeed"`
	Step                 float64 `yaml:"step" json:"step"`
	NavigateWhilePlaying bool    `yaml:"navigate_while_playing" json:"navigateWhilePlaying"`
}

// EditorSurface 是编辑器的速度范围 [0.25, 4]。
func EditorSurface() Surface {
	return Surface{Name: "editor", MinSpeed: 0.25, MaxSpeed: 4, Step: 0.25}
}

// PlaybackSurface 是播放视图的速度范围 [0.1, 10]。
func PlaybackSurface() Surface {
	return Surface{Name: "playback", MinSpeed: 0.1, MaxSpeed: 10, Step: 0.1}
}

// normalized 修正不合法的配置，使 MinSpeed 始终为正。
func (s Surface) normalized() Surface {
	if !(s.MinSpeed > 0) {
		s.MinSpeed = 0.1
	}
	if !(s.MaxSpeed >= s.MinSpeed) {
		s.MaxSpeed = s.MinSpeed
	}
	if !(s.Step > 0) {
		s.Step = 0.1
	}
	return s
}

// Clamp 将速度钳制到范围内；≤0 或 NaN 取最小值。
func (s Surface) Clamp(speed float64) float64 {
	s = s.normalized()
	if math.IsNaN(speed) || speed <= 0 {
		return s.MinSpeed
	}
	// 取到千分位，0.1 反复累加后仍能与刻度值相等
	speed = math.Round(speed*1000) / 1000
	return math.Max(s.MinSpeed, math.Min(s.MaxSpeed, speed))
}

// State 是控制器的只读快照。
type State struct {
	Phase     Phase   `json:"phase"`
	Index     int     `json:"index"`
	Lines     int     `json:"lines"`
	Line      string  `json:"line"`
	Playing   bool    `json:"playing"`
	Countdown int     `json:"countdown"`
	Speed     float64 `json:"speed"`
	Editing   int     `json:"editing"`
	Budget    int     `json:"budget"`
	Gen       uint64  `json:"gen"`
}

// Controller 是播放状态机。它不持有定时器：每次状态迁移后通过 Pending 暴露唯一的待触发排期，
// 由调用方（Session 或 TUI）负责按时调用 Fire。Controller 不是并发安全的，应由单一所有者驱动。
type Controller struct {
	doc     *Document
	surface Surface

	index     int
	playing   bool
	finished  bool
	countdown int
	speed     float64

	editing int
	draft   string

	gen     uint64
	pending Tick
	armed   bool
}

// NewController 创建处于 Editing 状态的控制器。
func NewController(doc *Document, surface Surface) *Controller {
	if doc == nil {
		doc = NewDocument("", segment.MinBudget, nil)
	}
	surface = surface.normalized()
	return &Controller{
		doc:       doc,
		surface:   surface,
		index:     -1,
		countdown: CountdownStart,
		speed:     surface.Clamp(1),
		editing:   -1,
	}
}

// Document 返回控制器持有的文档。
func (c *Controller) Document() *Document { return c.doc }

// Surface 返回当前速度范围与导航策略。
func (c *Controller) Surface() Surface { return c.surface }

// SetSurface 切换界面配置，并把当前速度钳制到新范围。
func (c *Controller) SetSurface(s Surface) {
	c.surface = s.normalized()
	c.speed = c.surface.Clamp(c.speed)
}

// Phase 由 index/playing/finished 推导。
func (c *Controller) Phase() Phase {
	switch {
	case c.finished:
		return PhaseFinished
	case c.index < 0 && c.playing:
		return PhaseCountdown
	case c.index < 0:
		return PhaseEditing
	case c.playing:
		return PhaseActive
	default:
		return PhasePaused
	}
}

// Playing 报告是否处于播放中（倒计时或逐行推进）。
func (c *Controller) Playing() bool { return c.playing }

// Speed 返回当前速度倍率。
func (c *Controller) Speed() float64 { return c.speed }

// Interval 返回当前速度下的换行间隔，始终为正。
func (c *Controller) Interval() time.Duration {
	d := time.Duration(float64(LineInterval) / c.surface.Clamp(c.speed))
	if d < minInterval {
		return minInterval
	}
	return d
}

// Pending 返回唯一的待触发排期。
func (c *Controller) Pending() (Tick, bool) { return c.pending, c.armed }

// Snapshot 返回当前状态快照。
func (c *Controller) Snapshot() State {
	return State{
		Phase:     c.Phase(),
		Index:     c.index,
		Lines:     c.doc.Len(),
		Line:      c.doc.Line(c.index),
		Playing:   c.playing,
		Countdown: c.countdown,
		Speed:     c.speed,
		Editing:   c.editing,
		Budget:    c.doc.Budget(),
		Gen:       c.gen,
	}
}

// cancel 作废当前排期。任何迁移都必须先经过这里。
func (c *Controller) cancel() {
	c.gen++
	c.armed = false
	c.pending = Tick{}
}

func (c *Controller) schedule(kind TickKind) {
	c.cancel()
	after := CountdownInterval
	if kind == TickLine {
		after = c.Interval()
	}
	c.pending = Tick{Gen: c.gen, Kind: kind, After: after}
	c.armed = true
}

func (c *Controller) resetToEditing() {
	c.cancel()
	c.playing = false
	c.finished = false
	c.index = -1
	c.countdown = CountdownStart
	c.editing = -1
	c.draft = ""
}

func (c *Controller) clampIndex(i int) int {
	n := c.doc.Len()
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Toggle 在播放与暂停之间切换。
// 从 Editing、Finished 或停在最后一行时开始全新一轮（含倒计时），从 Paused(i) 恢复时不倒计时。
func (c *Controller) Toggle() error {
	if c.playing {
		c.cancel()
		c.playing = false
		if c.index < 0 {
			c.countdown = CountdownStart
		}
		return nil
	}
	if c.doc.Len() == 0 {
		return ErrNoLines
	}
	c.commitDraft()
	if c.finished || c.index < 0 || c.index >= c.doc.Len()-1 {
		c.finished = false
		c.index = -1
		c.countdown = CountdownStart
		c.playing = true
		c.schedule(TickCountdown)
		return nil
	}
	c.playing = true
	c.schedule(TickLine)
	return nil
}

// Play 仅在未播放时生效。
func (c *Controller) Play() error {
	if c.playing {
		return nil
	}
	return c.Toggle()
}

// Pause 仅在播放时生效。
func (c *Controller) Pause() {
	if c.playing {
		_ = c.Toggle()
	}
}

// Fire 应用代号为 gen 的排期。代号过期或没有排期时返回 false 且不改变状态。
func (c *Controller) Fire(gen uint64) bool {
	if !c.armed || gen != c.pending.Gen {
		return false
	}
	tick := c.pending
	c.armed = false
	switch tick.Kind {
	case TickCountdown:
		if c.countdown-1 < 1 {
			c.countdown = CountdownStart
			c.index = 0
			c.schedule(TickLine)
			return true
		}
		c.countdown--
		c.schedule(TickCountdown)
	case TickLine:
		if c.index < c.doc.Len()-1 {
			c.index++
			c.schedule(TickLine)
			return true
		}
		c.cancel()
		c.playing = false
		c.finished = true
	}
	return true
}

// Step 相对移动焦点行；越界时钳制。播放中默认忽略。
func (c *Controller) Step(delta int) error { return c.navigate(c.index + delta) }

// First 跳到第一行。
func (c *Controller) First() error { return c.navigate(0) }

// Last 跳到最后一行。
func (c *Controller) Last() error { return c.navigate(c.doc.Len() - 1) }

// Seek 跳到第 i 行；越界时钳制。
func (c *Controller) Seek(i int) error { return c.navigate(i) }

func (c *Controller) navigate(target int) error {
	if c.playing && !c.surface.NavigateWhilePlaying {
		return ErrPlaying
	}
	if c.doc.Len() == 0 {
		return nil
	}
	c.commitDraft()
	if c.finished {
		c.finished = false
		c.index = c.doc.Len() - 1
		if target > c.index {
			target = c.index
		}
	}
	if c.index < 0 && target < 0 {
		target = 0
	}
	c.index = c.clampIndex(target)
	if c.playing {
		c.countdown = CountdownStart
		c.schedule(TickLine)
		return nil
	}
	c.cancel()
	return nil
}

// SetSpeed 设置速度。已排期的 tick 保持原延迟，新速度从下一拍起生效。
func (c *Controller) SetSpeed(speed float64) {
	c.speed = c.surface.Clamp(speed)
}

// AdjustSpeed 按步长调整速度。
func (c *Controller) AdjustSpeed(steps int) {
	c.SetSpeed(c.speed + float64(steps)*c.surface.Step)
}

// ReplaceText 整体替换原文，无条件回到 Editing。
func (c *Controller) ReplaceText(raw string) {
	c.resetToEditing()
	c.doc.SetText(raw)
}

// SetBudget 更新宽度预算并重新推导行。焦点超出新行数时回到 Editing。
func (c *Controller) SetBudget(budget int) {
	if !c.doc.SetBudget(budget) {
		return
	}
	c.editing = -1
	c.draft = ""
	if c.index > c.doc.Len()-1 {
		c.resetToEditing()
	}
}

// BeginEdit 进入第 i 行的单行编辑，i 越界时钳制。
func (c *Controller) BeginEdit(i int) error {
	if c.playing {
		return ErrPlaying
	}
	if c.doc.Len() == 0 {
		return ErrNoLines
	}
	i = c.clampIndex(i)
	if c.editing >= 0 && c.editing != i {
		c.commitDraft()
	}
	c.cancel()
	c.finished = false
	c.index = i
	c.editing = i
	c.draft = c.doc.Line(i)
	return nil
}

// Editing 返回正在编辑的行号，未编辑时为 -1。
func (c *Controller) Editing() int { return c.editing }

// Draft 返回编辑中的文本。
func (c *Controller) Draft() string { return c.draft }

// UpdateDraft 记录编辑中的文本，离开该行时会被提交。
func (c *Controller) UpdateDraft(text string) {
	if c.editing >= 0 {
		c.draft = text
	}
}

// CommitEdit 用 text 替换正在编辑的行，并以换行拼接各行得到新的原文；不重新分行。
func (c *Controller) CommitEdit(text string) error {
	if c.playing {
		return ErrPlaying
	}
	if c.editing < 0 {
		return nil
	}
	c.draft = text
	c.commitDraft()
	return nil
}

func (c *Controller) commitDraft() {
	if c.editing < 0 {
		return
	}
	c.doc.EditLine(c.editing, c.draft)
	c.editing = -1
	c.draft = ""
}

// CancelEdit 放弃单行编辑。
func (c *Controller) CancelEdit() error {
	if c.playing {
		return ErrPlaying
	}
	c.editing = -1
	c.draft = ""
	return nil
}

// Resplit 对当前原文重新分行；焦点钳制到新的行数内。
func (c *Controller) Resplit() error {
	if c.playing {
		return ErrPlaying
	}
	c.commitDraft()
	c.doc.Resplit()
	n := c.doc.Len()
	switch {
	case n == 0:
		c.resetToEditing()
	case c.index > n-1:
		c.index = n - 1
	}
	return nil
}

// BackToEdit 停止播放并清除焦点与完成标记，回到 Editing。
func (c *Controller) BackToEdit() {
	c.commitDraft()
	c.resetToEditing()
}

// Escape 依次执行：结束单行编辑、暂停、清除焦点。三者都不适用时返回 true，表示应离开当前视图。
func (c *Controller) Escape() (exit bool) {
	switch {
	case c.editing >= 0:
		c.commitDraft()
	case c.playing:
		c.Pause()
	case c.index >= 0 || c.finished:
		c.BackToEdit()
	default:
		return true
	}
	return false
}
