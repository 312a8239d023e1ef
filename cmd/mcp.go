package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/mcpserver"
	"github.com/ByLCY/prompter/playback"
	"github.com/ByLCY/prompter/remote"
	"github.com/ByLCY/prompter/store"
)

var mcpOpts struct {
	id     string
	remote bool
	addr   string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "以 MCP（stdio）服务运行，供 AI 助手分行与控制播放",
	Args:  cobra.NoArgs,
	RunE:  mcpCommand,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpOpts.id, "id", "", "启动时载入的提词稿")
	mcpCmd.Flags().BoolVar(&mcpOpts.remote, "remote", false, "同时启动 websocket 遥控服务以显示播放画面")
	mcpCmd.Flags().StringVar(&mcpOpts.addr, "addr", "", "遥控服务监听地址，覆盖配置 remote.addr")
}

func mcpCommand(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if cmd.Flags().Changed("addr") {
		cfg.Remote.Addr = mcpOpts.addr
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	script := store.DefaultScript()
	if mcpOpts.id != "" {
		script = store.LoadOrDefault(ctx, st, mcpOpts.id)
	}

	commands := playback.NewBus[playback.Command]("commands", 0)
	states := playback.NewBus[playback.State]("states", 0)
	budget := layout.WidthBudget(script.Settings.FontSize, cfg.Display.ContainerWidth)
	ctl := playback.NewController(playback.NewDocument(script.RawText, budget, nil), cfg.Playback)
	session := playback.NewSession(ctl, commands, playback.SessionOptions{States: states})

	server := mcpserver.NewServer(mcpserver.Config{
		ServerName:     "prompter",
		ServerVersion:  Version,
		Budget:         cfg.Budget(),
		ContainerWidth: cfg.Display.ContainerWidth,
	}, session, st)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(ctx) })
	if mcpOpts.remote {
		srv := remote.NewServer(cfg.Remote.Addr, commands, states)
		g.Go(func() error { return srv.Run(ctx) })
	}
	g.Go(func() error {
		defer cancel()
		slog.Info("MCP 服务已就绪", "transport", "stdio", "version", Version)
		return server.Run(ctx)
	})
	return g.Wait()
}
