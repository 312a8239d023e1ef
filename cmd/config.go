package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/prompter/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "查看或生成配置文件",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "打印生效的配置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("序列化配置失败: %w", err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# 宽度预算: %d\n", cfg.Budget())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "写出默认配置（默认 ~/.prompterrc）",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := argOrEmpty(args)
		if path == "" {
			home, err := userHome()
			if err != nil {
				return err
			}
			path = filepath.Join(home, config.UserConfigName)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

func userHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("无法确定用户目录: %w", err)
	}
	return home, nil
}
