// Package cmd 是 prompter 的命令行入口。
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ByLCY/prompter/config"
)

// 构建时通过 -ldflags 注入。
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type rootOptions struct {
	configPath string
	verbose    bool
	logFile    string
}

var (
	opts rootOptions
	cfg  *config.Config
	// logSink 是 --log-file 打开的文件，进程结束时关闭
	logSink io.Closer
)

var rootCmd = &cobra.Command{
	Use:               "prompter",
	Short:             "终端提词器：分行、播放、遥控与打印稿",
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logSink != nil {
			_ = logSink.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认 ~/.prompterrc）")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "日志写入文件而不是标准错误")

	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
	rootCmd.AddCommand(splitCmd, pdfCmd, playCmd, scriptsCmd, mcpCmd, configCmd, versionCmd)
}

// preRunAppE 读取 .env、加载配置并初始化日志。
func preRunAppE(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("读取 .env 失败: %w", err)
	}
	loaded, err := config.LoadWithFallback(opts.configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	return setupLogging(os.Stderr)
}

// setupLogging 配置全局 slog；指定了 --log-file 时忽略 fallback。
func setupLogging(fallback io.Writer) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	w := fallback
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		logSink = f
		w = f
	}
	if w == nil {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

// Execute 是 main 调用的唯一入口。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
