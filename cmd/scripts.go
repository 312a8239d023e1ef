package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var importOpts struct {
	id   string
	data string
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "管理已保存的提词稿",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出已保存的提词稿",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		summaries, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t更新时间\t标题")
		for _, s := range summaries {
			title := s.Title
			if s.Sealed && title == "" {
				title = "（加密）"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), title)
		}
		return w.Flush()
	},
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "显示提词稿原文与设置",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		s, err := st.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", s.Title)
		fmt.Fprintf(out, "# 速度 %.2fx · 字号 %s · 行高 %s\n\n", s.Settings.Speed, s.Settings.FontSize, s.Settings.LineHeight)
		fmt.Fprintln(out, s.RawText)
		return nil
	},
}

var scriptsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "导入提词稿（纯文本或 DSL）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseData(importOpts.data)
		if err != nil {
			return err
		}
		script, err := readScript(args[0], data)
		if err != nil {
			return err
		}
		script.ID = importOpts.id
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.Save(cmd.Context(), script); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), script.ID)
		return nil
	},
}

var scriptsRemoveCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "删除提词稿",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := st.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("删除 %s 失败: %w", id, err)
			}
		}
		return nil
	},
}

func init() {
	scriptsImportCmd.Flags().StringVar(&importOpts.id, "id", "", "指定 ID（默认自动生成）；已存在时覆盖")
	scriptsImportCmd.Flags().StringVar(&importOpts.data, "data", "", "绑定到 ${} 占位符的 JSON 数据")
	scriptsCmd.AddCommand(scriptsListCmd, scriptsShowCmd, scriptsImportCmd, scriptsRemoveCmd)
}
