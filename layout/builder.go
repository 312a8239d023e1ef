package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/prompter/binding"
	"github.com/ByLCY/prompter/dsl"
	"github.com/ByLCY/prompter/segment"
)

// Build 根据 DSL AST 生成提词稿并完成分行。data 会与 vars 段合并后用于 ${} 替换，data 优先。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	script, err := ScriptFromDocument(doc, data)
	if err != nil {
		return nil, err
	}
	return Segment(script, opts), nil
}

// BuildText 为纯文本提词稿（无 script 头）分行。
func BuildText(raw string, settings Settings, data any, opts BuildOptions) *Result {
	script := Script{
		RawText:  binding.Interpolate(raw, data),
		Settings: settings,
	}
	return Segment(script, opts)
}

// ScriptFromDocument 将 AST 转换为 Script，不做分行。
func ScriptFromDocument(doc *dsl.Document, data any) (Script, error) {
	if doc == nil {
		return Script{}, fmt.Errorf("文档为空")
	}
	settings, err := parseSettings(doc.Assignments("settings"))
	if err != nil {
		return Script{}, err
	}
	meta := doc.Assignments("meta")
	vars := doc.Assignments("vars")

	lookup := binding.Merge(data, binding.Vars(vars))
	title := meta["title"]
	if title == "" {
		title = doc.Name
	}
	return Script{
		Title:    binding.Interpolate(title, lookup),
		Author:   meta["author"],
		RawText:  binding.Interpolate(doc.Body(), lookup),
		Settings: settings,
		Vars:     vars,
	}, nil
}

// Segment 使用 opts 中的分行器与显示参数为 script 分行。
func Segment(script Script, opts BuildOptions) *Result {
	requested := opts.BudgetFor(script.Settings)
	budget := segment.ClampBudget(requested)
	texts := opts.segmenter().Segment(script.RawText, budget)

	res := &Result{
		Script: script,
		Budget: budget,
		Lines:  make([]Line, 0, len(texts)),
	}
	var overflow []int
	for i, text := range texts {
		w := segment.Width(text)
		if w > budget {
			overflow = append(overflow, i)
		}
		res.Lines = append(res.Lines, Line{Index: i, Content: text, Width: w})
	}
	if opts.Debug.Overflow {
		res.Debug = &ResultDebug{RequestedBudget: requested, Overflow: overflow}
	}
	return res
}

func parseSettings(attrs map[string]string) (Settings, error) {
	s := DefaultSettings()
	if v := strings.TrimSpace(attrs["speed"]); v != "" {
		speed, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
		if err != nil || math.IsNaN(speed) {
			return s, fmt.Errorf("settings.speed 无法解析: %q", v)
		}
		s.Speed = speed
	}
	if v := strings.TrimSpace(attrs["font-size"]); v != "" {
		fs, err := ParseLength(v)
		if err != nil {
			return s, fmt.Errorf("settings.font-size 无法解析: %w", err)
		}
		if fs.Unit == UnitNone {
			fs.Unit = UnitPX
		}
		s.FontSize = fs
	}
	if v := strings.TrimSpace(attrs["line-height"]); v != "" {
		lh, err := ParseLineHeight(v)
		if err != nil {
			return s, fmt.Errorf("settings.line-height 无法解析: %w", err)
		}
		s.LineHeight = lh
	}
	return s, nil
}
