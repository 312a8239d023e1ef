package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ByLCY/prompter/layout"
)

var splitOpts struct {
	width    int
	fontSize string
	asJSON   bool
	debug    string
	data     string
}

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "按显示宽度把提词稿切分成行",
	Long: `读取提词稿（纯文本或带 script 头的 DSL，省略文件或为 "-" 时读标准输入），
按字号与容器宽度推导的宽度预算分行并输出。超出预算的行（无法再拆的长单词）以 ! 标出。`,
	Args: cobra.MaximumNArgs(1),
	RunE: splitCommand,
}

func init() {
	splitCmd.Flags().IntVarP(&splitOpts.width, "width", "w", 0, "直接指定宽度预算（10-40），忽略字号")
	splitCmd.Flags().StringVar(&splitOpts.fontSize, "font-size", "", "覆盖字号，例如 64px")
	splitCmd.Flags().BoolVar(&splitOpts.asJSON, "json", false, "以 JSON 输出完整分行结果")
	splitCmd.Flags().StringVar(&splitOpts.debug, "debug", "", "额外写出调试 JSON 的路径")
	splitCmd.Flags().StringVar(&splitOpts.data, "data", "", "绑定到 ${} 占位符的 JSON 数据")
}

func splitCommand(cmd *cobra.Command, args []string) error {
	data, err := parseData(splitOpts.data)
	if err != nil {
		return err
	}
	script, err := readScript(argOrEmpty(args), data)
	if err != nil {
		return err
	}
	if splitOpts.fontSize != "" {
		fs, err := layout.ParseLength(splitOpts.fontSize)
		if err != nil {
			return fmt.Errorf("--font-size 无法解析: %w", err)
		}
		script.Settings.FontSize = fs
	}

	res := layout.Segment(*script, buildOptions(splitOpts.width, splitOpts.debug != ""))
	if splitOpts.debug != "" {
		if err := layout.WriteDebugJSON(res, splitOpts.debug); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if splitOpts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, ln := range res.Lines {
		mark := " "
		if ln.Width > res.Budget {
			mark = "!"
		}
		fmt.Fprintf(out, "%s%4d  %s\n", mark, ln.Index+1, ln.Content)
	}
	fmt.Fprintf(os.Stderr, "共 %d 行，宽度预算 %d\n", len(res.Lines), res.Budget)
	return nil
}
