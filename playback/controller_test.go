package playback

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestController(t *testing.T, raw string) *Controller {
	t.Helper()
	return NewController(NewDocument(raw, 40, nil), PlaybackSurface())
}

func fireNext(t *testing.T, c *Controller) Tick {
	t.Helper()
	tick, ok := c.Pending()
	if !ok {
		t.Fatalf("期望有待触发的 tick，状态 %+v", c.Snapshot())
	}
	if !c.Fire(tick.Gen) {
		t.Fatalf("tick %+v 未被应用", tick)
	}
	return tick
}

// playTo 从 Editing 开始播放并推进到 Active(i)。
func playTo(t *testing.T, c *Controller, i int) {
	t.Helper()
	if err := c.Toggle(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	for c.Phase() == PhaseCountdown {
		fireNext(t, c)
	}
	for c.Snapshot().Index < i {
		fireNext(t, c)
	}
	if st := c.Snapshot(); st.Phase != PhaseActive || st.Index != i {
		t.Fatalf("期望 Active(%d)，实际 %+v", i, st)
	}
}

func TestCountdownThenActive(t *testing.T) {
	c := newTestController(t, "one\ntwo\nthree")
	if c.Phase() != PhaseEditing {
		t.Fatalf("初始应为 Editing，实际 %v", c.Phase())
	}
	if err := c.Toggle(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	want := []int{3, 2, 1}
	for _, n := range want {
		st := c.Snapshot()
		if st.Phase != PhaseCountdown || st.Countdown != n || st.Index != -1 {
			t.Fatalf("期望倒计时 %d，实际 %+v", n, st)
		}
		tick := fireNext(t, c)
		if tick.Kind != TickCountdown || tick.After != CountdownInterval {
			t.Fatalf("倒计时 tick 错误: %+v", tick)
		}
	}
	st := c.Snapshot()
	if st.Phase != PhaseActive || st.Index != 0 || st.Line != "one" {
		t.Fatalf("倒计时结束后应进入 Active(0)，实际 %+v", st)
	}
	if st.Countdown != CountdownStart {
		t.Fatalf("倒计时应复位为 %d，实际 %d", CountdownStart, st.Countdown)
	}
}

func TestCountdownIgnoresSpeed(t *testing.T) {
	c := newTestController(t, "a")
	c.SetSpeed(10)
	_ = c.Toggle()
	tick, _ := c.Pending()
	if tick.After != CountdownInterval {
		t.Fatalf("倒计时间隔不应受速度影响: %v", tick.After)
	}
}

func TestPlaybackTerminatesOnce(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	c := newTestController(t, strings.Join(lines, "\n"))
	playTo(t, c, 0)

	finished := 0
	for i := 0; i < len(lines)+1; i++ {
		tick, ok := c.Pending()
		if !ok {
			break
		}
		c.Fire(tick.Gen)
		if c.Phase() == PhaseFinished {
			finished++
		}
	}
	if finished != 1 {
		t.Fatalf("应恰好进入 Finished 一次，实际 %d", finished)
	}
	if c.Playing() {
		t.Fatalf("Finished 后应停止播放")
	}
	if _, ok := c.Pending(); ok {
		t.Fatalf("Finished 后不应再有排期")
	}
	if c.Fire(c.Snapshot().Gen) {
		t.Fatalf("Finished 后的 Fire 不应生效")
	}
}

func TestStaleTickIsIgnored(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	playTo(t, c, 1)
	stale, _ := c.Pending()
	if err := c.Toggle(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if c.Fire(stale.Gen) {
		t.Fatalf("暂停后旧 tick 不应生效")
	}
	if st := c.Snapshot(); st.Phase != PhasePaused || st.Index != 1 {
		t.Fatalf("期望 Paused(1)，实际 %+v", st)
	}
	if _, ok := c.Pending(); ok {
		t.Fatalf("暂停后不应有排期")
	}
}

func TestPauseDuringCountdownReturnsToEditing(t *testing.T) {
	c := newTestController(t, "a\nb")
	_ = c.Toggle()
	fireNext(t, c)
	_ = c.Toggle()
	st := c.Snapshot()
	if st.Phase != PhaseEditing || st.Countdown != CountdownStart {
		t.Fatalf("倒计时中暂停应回到 Editing 并复位倒计时，实际 %+v", st)
	}
}

func TestResumeFromPausedSkipsCountdown(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	playTo(t, c, 1)
	_ = c.Toggle()
	_ = c.Toggle()
	st := c.Snapshot()
	if st.Phase != PhaseActive || st.Index != 1 {
		t.Fatalf("恢复应停留在 Active(1)，实际 %+v", st)
	}
	tick, _ := c.Pending()
	if tick.Kind != TickLine {
		t.Fatalf("恢复后不应倒计时: %+v", tick)
	}
}

func TestToggleAtLastLineRestarts(t *testing.T) {
	c := newTestController(t, "a\nb")
	if err := c.Last(); err != nil {
		t.Fatalf("last: %v", err)
	}
	_ = c.Toggle()
	if st := c.Snapshot(); st.Phase != PhaseCountdown || st.Index != -1 {
		t.Fatalf("停在最后一行时播放应重新倒计时，实际 %+v", st)
	}

	playTo2 := func() {
		for c.Phase() != PhaseFinished {
			fireNext(t, c)
		}
	}
	playTo2()
	_ = c.Toggle()
	if c.Phase() != PhaseCountdown {
		t.Fatalf("Finished 后播放应重新倒计时，实际 %v", c.Phase())
	}
}

func TestToggleWithoutLines(t *testing.T) {
	c := newTestController(t, "   \n\n ")
	if err := c.Toggle(); !errors.Is(err, ErrNoLines) {
		t.Fatalf("空稿播放应返回 ErrNoLines，实际 %v", err)
	}
	if c.Phase() != PhaseEditing {
		t.Fatalf("空稿应保持 Editing")
	}
}

func TestSpeedMonotonicity(t *testing.T) {
	c := newTestController(t, "a")
	c.SetSpeed(1)
	base := c.Interval()
	if base != LineInterval {
		t.Fatalf("1x 间隔应为 %v，实际 %v", LineInterval, base)
	}
	c.SetSpeed(2)
	if c.Interval() != base/2 {
		t.Fatalf("速度加倍间隔应减半，实际 %v", c.Interval())
	}
	c.SetSpeed(4)
	if c.Interval() != base/4 {
		t.Fatalf("4x 间隔应为 1/4，实际 %v", c.Interval())
	}
	for _, bad := range []float64{0, -3, math.NaN(), math.Inf(-1)} {
		c.SetSpeed(bad)
		if c.Speed() != c.Surface().MinSpeed {
			t.Fatalf("速度 %v 应钳制为最小值，实际 %v", bad, c.Speed())
		}
		if c.Interval() <= 0 {
			t.Fatalf("间隔必须为正，实际 %v", c.Interval())
		}
	}
	c.SetSpeed(1000)
	if c.Speed() != 10 {
		t.Fatalf("速度应钳制为 10，实际 %v", c.Speed())
	}
}

func TestSurfaceClamp(t *testing.T) {
	cases := []struct {
		surface Surface
		in      float64
		want    float64
	}{
		{EditorSurface(), 0.1, 0.25},
		{EditorSurface(), 5, 4},
		{EditorSurface(), 1.5, 1.5},
		{PlaybackSurface(), 0.05, 0.1},
		{PlaybackSurface(), 12, 10},
		{Surface{}, -1, 0.1},
	}
	for _, tc := range cases {
		if got := tc.surface.Clamp(tc.in); got != tc.want {
			t.Fatalf("%s.Clamp(%v) = %v, want %v", tc.surface.Name, tc.in, got, tc.want)
		}
	}
}

func TestAdjustSpeedSteps(t *testing.T) {
	c := NewController(NewDocument("a", 20, nil), EditorSurface())
	for i := 0; i < 3; i++ {
		c.AdjustSpeed(1)
	}
	if c.Speed() != 1.75 {
		t.Fatalf("三次 +0.25 应为 1.75，实际 %v", c.Speed())
	}
	for i := 0; i < 20; i++ {
		c.AdjustSpeed(-1)
	}
	if c.Speed() != 0.25 {
		t.Fatalf("应钳制到 0.25，实际 %v", c.Speed())
	}

	p := newTestController(t, "a")
	for i := 0; i < 5; i++ {
		p.AdjustSpeed(1)
	}
	if p.Speed() != 1.5 {
		t.Fatalf("五次 +0.1 应精确得到 1.5，实际 %v", p.Speed())
	}
}

func TestSpeedChangeAppliesOnNextTick(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	playTo(t, c, 0)
	before, _ := c.Pending()
	c.SetSpeed(2)
	after, _ := c.Pending()
	if before != after {
		t.Fatalf("调速不应重排已排期的 tick: %+v → %+v", before, after)
	}
	fireNext(t, c)
	next, _ := c.Pending()
	if next.After != time.Second {
		t.Fatalf("下一拍应使用 2x 的 1s 间隔，实际 %v", next.After)
	}
}

func TestReplacementSafety(t *testing.T) {
	c := newTestController(t, "a\nb\nc\nd\ne")
	playTo(t, c, 3)
	stale, _ := c.Pending()
	c.ReplaceText("only\ntwo")
	st := c.Snapshot()
	if st.Phase != PhaseEditing || st.Index != -1 || st.Playing || st.Lines != 2 {
		t.Fatalf("替换后应回到 Editing(-1)，实际 %+v", st)
	}
	if c.Fire(stale.Gen) {
		t.Fatalf("替换前的 tick 不应生效")
	}
}

func TestNavigationIgnoredWhilePlaying(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	playTo(t, c, 0)
	pending, _ := c.Pending()
	for _, op := range []func() error{func() error { return c.Step(1) }, c.Last, c.First, func() error { return c.Seek(2) }} {
		if err := op(); !errors.Is(err, ErrPlaying) {
			t.Fatalf("播放中导航应被忽略，实际 %v", err)
		}
	}
	if st := c.Snapshot(); st.Index != 0 || st.Phase != PhaseActive {
		t.Fatalf("忽略的导航不应改变状态: %+v", st)
	}
	if now, _ := c.Pending(); now != pending {
		t.Fatalf("忽略的导航不应重排 tick")
	}
}

func TestNavigateWhilePlayingKnob(t *testing.T) {
	s := PlaybackSurface()
	s.NavigateWhilePlaying = true
	c := NewController(NewDocument("a\nb\nc\nd", 40, nil), s)
	playTo(t, c, 0)
	old, _ := c.Pending()
	if err := c.Step(2); err != nil {
		t.Fatalf("step: %v", err)
	}
	st := c.Snapshot()
	if st.Phase != PhaseActive || st.Index != 2 {
		t.Fatalf("开启策略后应可在播放中导航，实际 %+v", st)
	}
	if c.Fire(old.Gen) {
		t.Fatalf("导航前的 tick 应作废")
	}
	fireNext(t, c)
	if c.Snapshot().Index != 3 {
		t.Fatalf("应从新位置继续推进")
	}
}

func TestNavigationClamps(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	if err := c.Step(-1); err != nil {
		t.Fatalf("step: %v", err)
	}
	if st := c.Snapshot(); st.Phase != PhasePaused || st.Index != 0 {
		t.Fatalf("Editing 下后退应钳制到第 0 行，实际 %+v", st)
	}
	_ = c.Seek(99)
	if c.Snapshot().Index != 2 {
		t.Fatalf("越界 seek 应钳制到最后一行")
	}
	_ = c.Seek(-7)
	if c.Snapshot().Index != 0 {
		t.Fatalf("负数 seek 应钳制到第 0 行")
	}
	_ = c.Last()
	_ = c.Step(1)
	if c.Snapshot().Index != 2 {
		t.Fatalf("最后一行继续前进应保持不动")
	}
}

func TestFinishedBackToEdit(t *testing.T) {
	c := newTestController(t, "a\nb")
	playTo(t, c, 0)
	for c.Phase() != PhaseFinished {
		fireNext(t, c)
	}
	c.BackToEdit()
	st := c.Snapshot()
	if st.Phase != PhaseEditing || st.Index != -1 || st.Countdown != CountdownStart {
		t.Fatalf("back to edit 应回到 Editing，实际 %+v", st)
	}
}

func TestLineEditDoesNotResegment(t *testing.T) {
	c := NewController(NewDocument("alpha beta\ngamma", 10, nil), PlaybackSurface())
	if err := c.BeginEdit(0); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if c.Editing() != 0 || c.Draft() != "alpha beta" {
		t.Fatalf("编辑状态错误: %d %q", c.Editing(), c.Draft())
	}
	if err := c.CommitEdit("a much longer new line"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	doc := c.Document()
	want := []string{"a much longer new line", "gamma"}
	if !reflect.DeepEqual(doc.Lines(), want) {
		t.Fatalf("单行编辑后 lines=%q want=%q", doc.Lines(), want)
	}
	if doc.Text() != strings.Join(want, "\n") {
		t.Fatalf("原文应为各行拼接，实际 %q", doc.Text())
	}
	if err := c.Resplit(); err != nil {
		t.Fatalf("resplit: %v", err)
	}
	for _, ln := range doc.Lines() {
		if len(ln) > 10 {
			t.Fatalf("重新分行后不应有超宽行: %q", doc.Lines())
		}
	}
}

func TestEditRefusedWhilePlaying(t *testing.T) {
	c := newTestController(t, "a\nb")
	playTo(t, c, 0)
	if err := c.BeginEdit(0); !errors.Is(err, ErrPlaying) {
		t.Fatalf("播放中编辑应被拒绝，实际 %v", err)
	}
	if err := c.Resplit(); !errors.Is(err, ErrPlaying) {
		t.Fatalf("播放中重新分行应被拒绝，实际 %v", err)
	}
}

func TestNavigatingAwayCommitsDraft(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	_ = c.BeginEdit(1)
	c.UpdateDraft("B!")
	_ = c.Step(1)
	if c.Editing() != -1 {
		t.Fatalf("离开后应结束编辑")
	}
	if got := c.Document().Line(1); got != "B!" {
		t.Fatalf("离开时应提交草稿，实际 %q", got)
	}
	_ = c.BeginEdit(0)
	c.UpdateDraft("discard me")
	_ = c.CancelEdit()
	if c.Document().Line(0) != "a" {
		t.Fatalf("取消编辑不应修改行")
	}
}

func TestSetBudgetRederives(t *testing.T) {
	c := NewController(NewDocument("one two three four five six", 40, nil), PlaybackSurface())
	if c.Document().Len() != 1 {
		t.Fatalf("40 预算下应为 1 行")
	}
	_ = c.Seek(0)
	c.SetBudget(10)
	if n := c.Document().Len(); n != 3 {
		t.Fatalf("10 预算下应为 3 行，实际 %d", n)
	}
	if st := c.Snapshot(); st.Phase != PhasePaused || st.Index != 0 {
		t.Fatalf("焦点仍有效时应保留，实际 %+v", st)
	}
	_ = c.Last()
	c.SetBudget(40)
	if st := c.Snapshot(); st.Phase != PhaseEditing {
		t.Fatalf("焦点越界后应回到 Editing，实际 %+v", st)
	}
}

func TestEscapeChain(t *testing.T) {
	c := newTestController(t, "a\nb")
	playTo(t, c, 0)
	if c.Escape() || c.Phase() != PhasePaused {
		t.Fatalf("第一次 Esc 应暂停，实际 %v", c.Phase())
	}
	if c.Escape() || c.Phase() != PhaseEditing {
		t.Fatalf("第二次 Esc 应清除焦点，实际 %v", c.Phase())
	}
	if !c.Escape() {
		t.Fatalf("无焦点时 Esc 应请求退出")
	}
}

func TestApplyCommands(t *testing.T) {
	c := newTestController(t, "a\nb\nc")
	steps := []struct {
		cmd   Command
		phase Phase
		index int
	}{
		{Command{Kind: CmdNext}, PhasePaused, 0},
		{Command{Kind: CmdSeek, Value: 2}, PhasePaused, 2},
		{Command{Kind: CmdPrev}, PhasePaused, 1},
		{Command{Kind: CmdPlay}, PhaseActive, 1},
		{Command{Kind: CmdPause}, PhasePaused, 1},
		{Command{Kind: CmdBackToEdit}, PhaseEditing, -1},
		{Command{Kind: CmdReplace, Text: "x\ny"}, PhaseEditing, -1},
		{Command{Kind: CmdLast}, PhasePaused, 1},
	}
	for _, s := range steps {
		if err := c.Apply(s.cmd); err != nil {
			t.Fatalf("%s: %v", s.cmd.Kind, err)
		}
		if st := c.Snapshot(); st.Phase != s.phase || st.Index != s.index {
			t.Fatalf("%s 后期望 %v(%d)，实际 %+v", s.cmd.Kind, s.phase, s.index, st)
		}
	}
	_ = c.Apply(Command{Kind: CmdSpeed, Value: 3})
	_ = c.Apply(Command{Kind: CmdSpeedDelta, Value: -2})
	if c.Speed() != 2.8 {
		t.Fatalf("调速命令错误: %v", c.Speed())
	}
	if err := c.Apply(Command{Kind: "warp"}); err == nil {
		t.Fatalf("未知命令应报错")
	}
	if k, err := ParseCommandKind(" Toggle "); err != nil || k != CmdToggle {
		t.Fatalf("ParseCommandKind: %v %v", k, err)
	}
}

func TestApplyCommandsSaturateValues(t *testing.T) {
	c := newTestController(t, "a\nb\nc\nd")
	if err := c.Apply(Command{Kind: CmdSeek, Value: 1e20}); err != nil {
		t.Fatal(err)
	}
	if idx := c.Snapshot().Index; idx != 3 {
		t.Fatalf("超大 seek 应停在最后一行，实际 %d", idx)
	}
	if err := c.Apply(Command{Kind: CmdSeek, Value: -1e20}); err != nil {
		t.Fatal(err)
	}
	if idx := c.Snapshot().Index; idx != 0 {
		t.Fatalf("超小 seek 应停在第一行，实际 %d", idx)
	}
	if err := c.Apply(Command{Kind: CmdSeek, Value: math.NaN()}); err != nil {
		t.Fatal(err)
	}

	_ = c.Apply(Command{Kind: CmdBudget, Value: 10})
	_ = c.Apply(Command{Kind: CmdBudget, Value: 1e20})
	if b := c.Document().Budget(); b != 40 {
		t.Fatalf("超大预算应钳制到上限 40，实际 %d", b)
	}
	_ = c.Apply(Command{Kind: CmdBudget, Value: -1e20})
	if b := c.Document().Budget(); b != 10 {
		t.Fatalf("超小预算应钳制到下限 10，实际 %d", b)
	}
}

func TestApplySpeedDeltaRounds(t *testing.T) {
	cases := []struct {
		value float64
		want  func(float64) bool
		desc  string
	}{
		{-0.5, func(v float64) bool { return v < 1 }, "-0.5 应减速一档"},
		{0, func(v float64) bool { return v > 1 }, "缺省值应加速一档"},
		{0.3, func(v float64) bool { return v == 1 }, "0.3 取整为 0，速度不变"},
		{-1e20, func(v float64) bool { return v == PlaybackSurface().MinSpeed }, "超大负值应钳制到最低速"},
	}
	for _, tc := range cases {
		c := newTestController(t, "a")
		c.SetSpeed(1)
		_ = c.Apply(Command{Kind: CmdSpeedDelta, Value: tc.value})
		if !tc.want(c.Speed()) {
			t.Fatalf("%s，实际 %v", tc.desc, c.Speed())
		}
	}
}

func TestCommandValidate(t *testing.T) {
	if err := (Command{Kind: CmdReplace}).Validate(); err == nil {
		t.Fatalf("缺少 text 的 replace 应无效")
	}
	if err := (Command{Kind: CmdReplace, Text: "x"}).Validate(); err != nil {
		t.Fatalf("replace 应有效: %v", err)
	}
	if err := (Command{Kind: "warp"}).Validate(); err == nil {
		t.Fatalf("未知命令应无效")
	}
	if err := (Command{Kind: CmdToggle}).Validate(); err != nil {
		t.Fatalf("toggle 应有效: %v", err)
	}
}
