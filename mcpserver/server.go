// Package mcpserver 通过 Model Context Protocol（stdio）暴露分行与播放控制，供 AI 助手调用。
package mcpserver

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/playback"
	"github.com/ByLCY/prompter/segment"
	"github.com/ByLCY/prompter/store"
)

type Config struct {
	ServerName     string
	ServerVersion  string
	Budget         int           // segment_text 未给出宽度时使用
	ContainerWidth layout.Length // load_script 据此由字号推导预算
}

// Player 是被控制的播放会话，playback.Session 满足该接口。
type Player interface {
	Send(cmd playback.Command) bool
	Snapshot() playback.State
}

type Server struct {
	config    Config
	mcpServer *sdk.Server
	player    Player
	store     store.Store
	seg       segment.Segmenter
}

// NewServer 创建 MCP 服务。store 为 nil 时不注册提词稿相关工具。
func NewServer(cfg Config, player Player, st store.Store) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "prompter"
	}
	if cfg.ContainerWidth.IsZero() {
		cfg.ContainerWidth = layout.DefaultContainerWidth
	}
	s := &Server{
		config: cfg,
		player: player,
		store:  st,
		seg:    segment.Default,
	}
	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)
	s.registerTools()
	return s
}

// Run 在 stdin/stdout 上提供服务，直到 ctx 结束或连接关闭。
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdk.StdioTransport{})
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "segment_text",
		Description: "Split teleprompter text into display lines under a width budget (CJK counts as 2 units)",
	}, s.handleSegmentText)

	if s.player != nil {
		sdk.AddTool(s.mcpServer, &sdk.Tool{
			Name:        "playback_command",
			Description: "Send a command to the running teleprompter: " + commandList(),
		}, s.handlePlaybackCommand)

		sdk.AddTool(s.mcpServer, &sdk.Tool{
			Name:        "playback_state",
			Description: "Return the current playback state as JSON",
		}, s.handlePlaybackState)
	}

	if s.store != nil {
		sdk.AddTool(s.mcpServer, &sdk.Tool{
			Name:        "list_scripts",
			Description: "List saved teleprompter scripts",
		}, s.handleListScripts)
	}
	if s.store != nil && s.player != nil {
		sdk.AddTool(s.mcpServer, &sdk.Tool{
			Name:        "load_script",
			Description: "Load a saved script into the running teleprompter",
		}, s.handleLoadScript)
	}
}
