package layout

import "github.com/ByLCY/prompter/segment"

// BuildOptions 配置分行阶段所需的依赖与显示参数。
type BuildOptions struct {
	Segmenter      segment.Segmenter // 为空时使用 segment.Default
	ContainerWidth Length            // 显示容器宽度，为零时取 DefaultContainerWidth
	Budget         int               // >0 时直接使用该预算，忽略字号推导
	Debug          DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	Overflow bool // 在结果中附带 debug 字段，列出超宽行
}

// DefaultContainerWidth 是未配置时的显示容器宽度。
var DefaultContainerWidth = Px(800)

func (o BuildOptions) segmenter() segment.Segmenter {
	if o.Segmenter == nil {
		return segment.Default
	}
	return o.Segmenter
}

// BudgetFor 返回该选项下给定设置的宽度预算（未钳制）。
func (o BuildOptions) BudgetFor(s Settings) int {
	if o.Budget > 0 {
		return o.Budget
	}
	container := o.ContainerWidth
	if container.IsZero() {
		container = DefaultContainerWidth
	}
	return WidthBudget(s.FontSize, container)
}
