package renderer

import "github.com/ByLCY/prompter/layout"

// Renderer 将分行结果输出为最终文件，例如排练用的 PDF 打印稿。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}
