package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/playback"
	"github.com/ByLCY/prompter/segment"
)

type SegmentArgs struct {
	Text  string `json:"text" jsonschema:"Raw script text; blank lines separate paragraphs"`
	Width int    `json:"width,omitempty" jsonschema:"Width budget in units (10-40); defaults to the configured display"`
}

type CommandArgs struct {
	Command string  `json:"command" jsonschema:"Command name such as toggle, next, speed or replace"`
	Value   float64 `json:"value,omitempty" jsonschema:"Numeric argument for seek, speed, speed_delta and budget"`
	Text    string  `json:"text,omitempty" jsonschema:"New raw text for replace"`
}

type StateArgs struct{}

type ListScriptsArgs struct{}

type LoadScriptArgs struct {
	ID string `json:"id" jsonschema:"Script ID from list_scripts"`
}

func textResult(lines ...string) *sdk.CallToolResult {
	content := make([]sdk.Content, 0, len(lines))
	for _, l := range lines {
		content = append(content, &sdk.TextContent{Text: l})
	}
	return &sdk.CallToolResult{Content: content}
}

func (s *Server) handleSegmentText(ctx context.Context, req *sdk.CallToolRequest, args SegmentArgs) (*sdk.CallToolResult, any, error) {
	width := args.Width
	if width <= 0 {
		width = s.config.Budget
	}
	budget := segment.ClampBudget(width)
	lines := s.seg.Segment(args.Text, budget)

	var b strings.Builder
	fmt.Fprintf(&b, "%d lines (budget %d):\n", len(lines), budget)
	for i, l := range lines {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, l)
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化分行结果失败: %w", err)
	}
	return textResult(b.String(), string(data)), nil, nil
}

func (s *Server) handlePlaybackCommand(ctx context.Context, req *sdk.CallToolRequest, args CommandArgs) (*sdk.CallToolResult, any, error) {
	kind, err := playback.ParseCommandKind(args.Command)
	if err != nil {
		return nil, nil, err
	}
	cmd := playback.Command{Kind: kind, Value: args.Value, Text: args.Text}
	if err := cmd.Validate(); err != nil {
		return nil, nil, err
	}
	if !s.player.Send(cmd) {
		return nil, nil, fmt.Errorf("播放会话未运行")
	}
	return textResult(fmt.Sprintf("sent %s", kind)), nil, nil
}

func (s *Server) handlePlaybackState(ctx context.Context, req *sdk.CallToolRequest, args StateArgs) (*sdk.CallToolResult, any, error) {
	data, err := json.Marshal(s.player.Snapshot())
	if err != nil {
		return nil, nil, fmt.Errorf("序列化状态失败: %w", err)
	}
	return textResult(string(data)), nil, nil
}

func (s *Server) handleListScripts(ctx context.Context, req *sdk.CallToolRequest, args ListScriptsArgs) (*sdk.CallToolResult, any, error) {
	summaries, err := s.store.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("列出提词稿失败: %w", err)
	}
	lines := []string{fmt.Sprintf("Saved scripts (%d):", len(summaries))}
	for _, sum := range summaries {
		title := sum.Title
		if sum.Sealed {
			title = "(encrypted)"
		}
		lines = append(lines, fmt.Sprintf("- %s  %s  %s", sum.ID, sum.UpdatedAt.Format("2006-01-02 15:04"), title))
	}
	return textResult(lines...), nil, nil
}

func (s *Server) handleLoadScript(ctx context.Context, req *sdk.CallToolRequest, args LoadScriptArgs) (*sdk.CallToolResult, any, error) {
	script, err := s.store.Load(ctx, args.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("读取提词稿 %s 失败: %w", args.ID, err)
	}
	if !s.player.Send(playback.Command{Kind: playback.CmdReplace, Text: script.RawText}) {
		return nil, nil, fmt.Errorf("播放会话未运行")
	}
	if !script.Settings.FontSize.IsZero() {
		budget := layout.WidthBudget(script.Settings.FontSize, s.config.ContainerWidth)
		s.player.Send(playback.Command{Kind: playback.CmdBudget, Value: float64(budget)})
	}
	if script.Settings.Speed > 0 {
		s.player.Send(playback.Command{Kind: playback.CmdSpeed, Value: script.Settings.Speed})
	}
	return textResult(fmt.Sprintf("loaded %q", script.Title)), nil, nil
}

func commandList() string {
	kinds := playback.CommandKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
