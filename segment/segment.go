// Package segment 将提词稿原文切分为显示行。
//
// 宽度以“宽度单位”计：CJK 统一表意文字占 2 个单位，其余字符占 1 个单位，
// 与等宽排版下汉字占两格的视觉效果一致。
package segment

import (
	"regexp"
	"strings"
)

// 宽度预算的上下限。低于下限会退化为单字一行，高于上限则行长失控。
const (
	MinBudget = 10
	MaxBudget = 40
)

var paragraphBreak = regexp.MustCompile(`(?:\r?\n)+`)

// Segmenter 描述可替换的分行实现。
type Segmenter interface {
	Segment(rawText string, widthBudget int) []string
}

// Func 让普通函数满足 Segmenter。
type Func func(rawText string, widthBudget int) []string

func (f Func) Segment(rawText string, widthBudget int) []string { return f(rawText, widthBudget) }

// Default 为内置的贪心分行器。
var Default Segmenter = Func(Segment)

// ClampBudget 将宽度预算限制在 [MinBudget, MaxBudget]。
func ClampBudget(w int) int {
	if w < MinBudget {
		return MinBudget
	}
	if w > MaxBudget {
		return MaxBudget
	}
	return w
}

// IsCJK 判断字符是否位于 CJK 统一表意文字（含扩展 A）区段。
func IsCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}

// RuneWidth 返回单个字符的宽度单位。
func RuneWidth(r rune) int {
	if IsCJK(r) {
		return 2
	}
	return 1
}

// Width 返回字符串的加权宽度。
func Width(s string) int {
	w := 0
	for _, r := range s {
		w += RuneWidth(r)
	}
	return w
}

// HasCJK 判断字符串中是否含有 CJK 字符。
func HasCJK(s string) bool {
	for _, r := range s {
		if IsCJK(r) {
			return true
		}
	}
	return false
}

// Segment 按段落切分原文，再在每段内做贪心装行。
// 空段落不产生任何输出行；结果每次都是新切片，不保留任何增量状态。
func Segment(rawText string, widthBudget int) []string {
	budget := ClampBudget(widthBudget)
	lines := []string{}
	for _, para := range paragraphBreak.Split(rawText, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		switch {
		case Width(para) <= budget:
			lines = append(lines, para)
		case HasCJK(para):
			lines = append(lines, packRunes(para, budget)...)
		default:
			lines = append(lines, packWords(para, budget)...)
		}
	}
	return lines
}

// packRunes 逐字符装行，不考虑词边界。
func packRunes(para string, budget int) []string {
	var (
		lines   []string
		builder strings.Builder
		current int
	)
	emit := func() {
		if line := strings.TrimSpace(builder.String()); line != "" {
			lines = append(lines, line)
		}
		builder.Reset()
		current = 0
	}
	for _, r := range para {
		w := RuneWidth(r)
		if current > 0 && current+w > budget {
			emit()
		}
		builder.WriteRune(r)
		current += w
	}
	emit()
	return lines
}

// packWords 以空白分词装行，单词之间用一个空格连接；超长单词原样独占一行。
func packWords(para string, budget int) []string {
	var (
		lines   []string
		current string
		width   int
	)
	for _, word := range strings.Fields(para) {
		ww := Width(word)
		if current == "" {
			current, width = word, ww
			continue
		}
		if width+1+ww <= budget {
			current += " " + word
			width += 1 + ww
			continue
		}
		lines = append(lines, current)
		current, width = word, ww
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
