package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/prompter/input"
	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/playback"
	"github.com/ByLCY/prompter/remote"
	"github.com/ByLCY/prompter/store"
	"github.com/ByLCY/prompter/tui"
)

var playOpts struct {
	id        string
	headless  bool
	autostart bool
	exitOnEnd bool
	remote    bool
	hotkey    string
	timestamp bool
	addr      string
}

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "打开提词器（编辑与播放）",
	Long: `默认打开终端界面。给出文件时载入该文件，--id 载入已保存的提词稿，都没有时使用欢迎稿。
--headless 不打开界面，只在终端逐行打印，配合 --remote 或 --hotkey 控制播放。`,
	Args: cobra.MaximumNArgs(1),
	RunE: playCommand,
}

func init() {
	playCmd.Flags().StringVar(&playOpts.id, "id", "", "载入已保存的提词稿")
	playCmd.Flags().BoolVar(&playOpts.headless, "headless", false, "不打开界面，逐行打印到标准输出")
	playCmd.Flags().BoolVar(&playOpts.autostart, "autostart", false, "无界面模式下立即开始播放")
	playCmd.Flags().BoolVar(&playOpts.exitOnEnd, "exit-on-finish", false, "无界面模式下播放结束后退出")
	playCmd.Flags().BoolVar(&playOpts.remote, "remote", false, "启动 websocket 遥控服务（地址见配置 remote.addr）")
	playCmd.Flags().StringVar(&playOpts.hotkey, "hotkey", "", "注册全局播放/暂停快捷键，例如 ctrl+shift+space；为 \"config\" 时使用配置 hotkey.toggle")
	playCmd.Flags().BoolVar(&playOpts.timestamp, "timestamp", false, "无界面模式下每行加时间戳")
	playCmd.Flags().StringVar(&playOpts.addr, "addr", "", "遥控服务监听地址，覆盖配置 remote.addr")
}

func playCommand(cmd *cobra.Command, args []string) error {
	if !playOpts.headless && opts.logFile == "" {
		// 终端界面占用整个屏幕，日志改写到存储目录旁的文件
		opts.logFile = defaultLogFile()
		if err := setupLogging(nil); err != nil {
			// 打不开日志文件时丢弃日志
			opts.logFile = ""
			_ = setupLogging(nil)
		}
	}
	if cmd.Flags().Changed("addr") {
		cfg.Remote.Addr = playOpts.addr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	script, err := loadPlayScript(ctx, st, args)
	if err != nil {
		return err
	}

	commands := playback.NewBus[playback.Command]("commands", 0)
	states := playback.NewBus[playback.State]("states", 0)
	defer commands.Close()
	defer states.Close()

	g, ctx := errgroup.WithContext(ctx)
	if playOpts.remote {
		srv := remote.NewServer(cfg.Remote.Addr, commands, states)
		g.Go(func() error { return srv.Run(ctx) })
	}
	if chord := hotkeyChord(); chord != "" {
		hk := input.NewHotkeyManager(commands)
		if err := hk.Start(ctx, chord); err != nil {
			slog.Warn("全局快捷键不可用", "hotkey", chord, "err", err)
		} else {
			defer hk.Stop()
		}
	}

	if playOpts.headless {
		runHeadless(ctx, cancel, g, script, commands, states)
		return g.Wait()
	}

	saver := store.NewAutosaver(st, cfg.Store.AutosaveInterval)
	g.Go(func() error {
		defer cancel()
		return tui.Run(ctx, tui.Options{
			Script:    script,
			Config:    cfg,
			Commands:  commands,
			States:    states,
			Autosaver: saver,
		})
	})
	return g.Wait()
}

func defaultLogFile() string {
	dir := filepath.Dir(cfg.Store.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "prompter.log")
}

func hotkeyChord() string {
	if playOpts.hotkey == "config" {
		return cfg.Hotkey.Toggle
	}
	return playOpts.hotkey
}

func loadPlayScript(ctx context.Context, st store.Store, args []string) (*layout.Script, error) {
	if len(args) > 0 {
		return readScript(args[0], nil)
	}
	if playOpts.id != "" {
		return store.LoadOrDefault(ctx, st, playOpts.id), nil
	}
	return store.DefaultScript(), nil
}

// runHeadless 在 g 上启动播放会话与控制台输出。
func runHeadless(ctx context.Context, cancel context.CancelFunc, g *errgroup.Group, script *layout.Script, commands *playback.Bus[playback.Command], states *playback.Bus[playback.State]) {
	budget := layout.WidthBudget(script.Settings.FontSize, cfg.Display.ContainerWidth)
	ctl := playback.NewController(playback.NewDocument(script.RawText, budget, nil), cfg.Playback)
	if script.Settings.Speed > 0 {
		ctl.SetSpeed(script.Settings.Speed)
	}
	session := playback.NewSession(ctl, commands, playback.SessionOptions{States: states})
	console := playback.NewConsoleOutput(playback.ConsoleConfig{ShowTimestamp: playOpts.timestamp, Writer: os.Stdout})
	console.Info("按 Ctrl+C 退出")

	g.Go(func() error { return console.Follow(ctx, states) })
	if playOpts.exitOnEnd {
		sub, unsub := session.Observe(ctx)
		g.Go(func() error {
			defer unsub()
			sub.Each(func(st playback.State) error {
				if st.Phase == playback.PhaseFinished {
					cancel()
				}
				return nil
			})
			return sub.Wait()
		})
	}
	g.Go(func() error { return session.Run(ctx) })
	if playOpts.autostart {
		session.Send(playback.Command{Kind: playback.CmdPlay})
	}
}
