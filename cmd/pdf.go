package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/renderer"
	canvasrenderer "github.com/ByLCY/prompter/renderer/canvas"
)

var pdfOpts struct {
	output    string
	printSize float64
	fontFile  string
	data      string
}

var pdfCmd = &cobra.Command{
	Use:   "pdf [file]",
	Short: "生成排练用的 PDF 打印稿",
	Long:  `按屏幕上的分行结果逐行排版到 A4 页面，附行号与页码，超宽行以红色标出。`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  pdfCommand,
}

func init() {
	pdfCmd.Flags().StringVarP(&pdfOpts.output, "out", "o", "output/script.pdf", "PDF 输出路径")
	pdfCmd.Flags().Float64Var(&pdfOpts.printSize, "print-size", 14, "打印字号（pt）")
	pdfCmd.Flags().StringVar(&pdfOpts.fontFile, "font", "", "字体文件，默认取配置 display.font_file 或系统字体")
	pdfCmd.Flags().StringVar(&pdfOpts.data, "data", "", "绑定到 ${} 占位符的 JSON 数据")
}

func pdfCommand(cmd *cobra.Command, args []string) error {
	data, err := parseData(pdfOpts.data)
	if err != nil {
		return err
	}
	script, err := readScript(argOrEmpty(args), data)
	if err != nil {
		return err
	}
	font := pdfOpts.fontFile
	if font == "" {
		font = cfg.Display.FontFile
	}
	var r renderer.Renderer = canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		Font:     canvasrenderer.Resource{Path: font},
		FontSize: pdfOpts.printSize,
	})
	return writePDF(layout.Segment(*script, buildOptions(0, false)), pdfOpts.output, r)
}

func writePDF(res *layout.Result, outputPath string, r renderer.Renderer) error {
	if r == nil {
		return fmt.Errorf("renderer 不能为空")
	}
	pdfBytes, err := r.Render(res)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(outputPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	slog.Info("已生成 PDF", "path", outputPath, "lines", len(res.Lines))
	return nil
}
