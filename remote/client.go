package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/prompter/playback"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 32
)

// Client 是一个 websocket 遥控端。readPump 把命令发布到总线，writePump 推送状态并维持心跳。
type Client struct {
	ID       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	errs     chan []byte
	commands *playback.Bus[playback.Command]
}

func newClient(hub *Hub, conn *websocket.Conn, commands *playback.Bus[playback.Command]) *Client {
	return &Client{
		ID:       uuid.NewString(),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		errs:     make(chan []byte, 4),
		commands: commands,
	}
}

// run 同时运行读写两个循环，任一退出即结束连接。
func (c *Client) run(ctx context.Context) error {
	defer c.hub.remove(c)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.readPump(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return c.writePump(ctx)
	})
	return g.Wait()
}

func (c *Client) readPump(ctx context.Context) error {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && ctx.Err() == nil {
				return fmt.Errorf("读取遥控端 %s 失败: %w", c.ID, err)
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			c.reply("只接受文本 JSON 命令")
			continue
		}
		cmd, err := decodeCommand(data)
		if err != nil {
			c.reply(err.Error())
			continue
		}
		if err := c.commands.Send(cmd); err != nil {
			slog.Warn("遥控命令未送达", "client", c.ID, "command", cmd.Kind, "err", err)
			c.reply(err.Error())
		}
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return nil
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了发送通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("写入遥控端 %s 失败: %w", c.ID, err)
			}
		case msg := <-c.errs:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("写入遥控端 %s 失败: %w", c.ID, err)
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("心跳失败: %w", err)
			}
		}
	}
}

// reply 把错误只回给该客户端；队列满时丢弃。
func (c *Client) reply(text string) {
	select {
	case c.errs <- encode(Message{Type: "error", Error: text}):
	default:
	}
}

func decodeCommand(data []byte) (playback.Command, error) {
	var cmd playback.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("命令格式错误: %w", err)
	}
	kind, err := playback.ParseCommandKind(string(cmd.Kind))
	if err != nil {
		return cmd, err
	}
	cmd.Kind = kind
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	return cmd, nil
}
