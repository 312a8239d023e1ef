package playback

import (
	"slices"
	"strings"

	"github.com/ByLCY/prompter/segment"
)

// derivationKey 是 lines 的全部输入：原文与宽度预算。
type derivationKey struct {
	raw    string
	budget int
}

// Document 持有原文，并把显示行维护为 (原文, 预算) 的纯函数。
// 任一输入变化后，下一次读取会重新推导；唯一的例外是 EditLine，
// 它直接替换一行并把原文改写为各行的拼接，使推导键与结果重新一致。
type Document struct {
	seg    segment.Segmenter
	raw    string
	budget int

	lines   []string
	derived derivationKey
	valid   bool
}

// NewDocument 创建文档；seg 为空时使用 segment.Default。
func NewDocument(raw string, budget int, seg segment.Segmenter) *Document {
	if seg == nil {
		seg = segment.Default
	}
	return &Document{seg: seg, raw: raw, budget: segment.ClampBudget(budget)}
}

func (d *Document) key() derivationKey { return derivationKey{raw: d.raw, budget: d.budget} }

func (d *Document) derive() {
	if d.valid && d.derived == d.key() {
		return
	}
	d.lines = d.seg.Segment(d.raw, d.budget)
	d.derived = d.key()
	d.valid = true
}

// Text 返回当前原文。
func (d *Document) Text() string { return d.raw }

// Budget 返回钳制后的宽度预算。
func (d *Document) Budget() int { return d.budget }

// Lines 返回显示行的副本。
func (d *Document) Lines() []string {
	d.derive()
	return slices.Clone(d.lines)
}

// Len 返回显示行数。
func (d *Document) Len() int {
	d.derive()
	return len(d.lines)
}

// Line 返回第 i 行；越界时返回空串。
func (d *Document) Line(i int) string {
	d.derive()
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return d.lines[i]
}

// SetText 替换原文，返回显示行是否发生变化。
func (d *Document) SetText(raw string) bool {
	before := d.Lines()
	d.raw = raw
	return !slices.Equal(before, d.Lines())
}

// SetBudget 更新宽度预算（通常来自字号变化），返回显示行是否发生变化。
func (d *Document) SetBudget(budget int) bool {
	before := d.Lines()
	d.budget = segment.ClampBudget(budget)
	return !slices.Equal(before, d.Lines())
}

// EditLine 只替换第 i 行，不重新分行；原文改写为各行以换行拼接。
// 编辑后的行可能超出预算，直到显式 Resplit。
func (d *Document) EditLine(i int, text string) bool {
	d.derive()
	if i < 0 || i >= len(d.lines) {
		return false
	}
	// 一行内不允许换行，否则拼接后的原文会多出段落
	d.lines[i] = strings.Join(strings.Fields(text), " ")
	d.raw = strings.Join(d.lines, "\n")
	d.derived = d.key()
	return true
}

// Resplit 丢弃手工编辑的行，对当前原文重新分行。
func (d *Document) Resplit() {
	d.valid = false
	d.derive()
}
