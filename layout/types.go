package layout

import "time"

// 该文件定义提词稿模型与分行结果，供编辑、播放、持久化与调试 JSON 共用。

// Settings 是与提词稿一起保存的显示/播放参数，彼此独立可调。
type Settings struct {
	Speed      float64        `json:"speed" yaml:"speed"`
	FontSize   Length         `json:"fontSize" yaml:"font_size"`
	LineHeight LineHeightSpec `json:"lineHeight" yaml:"line_height"`
}

// DefaultSettings 返回 1x 速度、48px 字号、1.4 倍行高。
func DefaultSettings() Settings {
	return Settings{
		Speed:      1,
		FontSize:   Px(48),
		LineHeight: Factor(1.4),
	}
}

// Script 是提词稿本身。Lines 不在此保存：它总是由 RawText 与字号推导得到。
type Script struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Author    string            `json:"author,omitempty"`
	RawText   string            `json:"rawText"`
	Settings  Settings          `json:"settings"`
	Vars      map[string]string `json:"vars,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Line 表示分行后的一行及其宽度单位。
type Line struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Width   int    `json:"width"`
}

// Result 保存一次分行的输入与输出。
type Result struct {
	Script Script       `json:"script"`
	Budget int          `json:"budget"`
	Lines  []Line       `json:"lines"`
	Debug  *ResultDebug `json:"debug,omitempty"`
}

// ResultDebug holds optional debug info emitted only when enabled by BuildOptions.
type ResultDebug struct {
	RequestedBudget int   `json:"requestedBudget"` // 钳制前的预算
	Overflow        []int `json:"overflow,omitempty"` // 宽度超出预算的行号（无法再拆分的超长单词）
}

// Texts returns the plain line contents.
func (r *Result) Texts() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Lines))
	for i, ln := range r.Lines {
		out[i] = ln.Content
	}
	return out
}
