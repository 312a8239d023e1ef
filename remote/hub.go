// Package remote 通过 websocket 把播放状态镜像给遥控端（手机、第二块屏幕），并接收遥控端的命令。
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ByLCY/prompter/playback"
)

// Message 是发给遥控端的消息。
type Message struct {
	Type  string          `json:"type"` // state | error
	State *playback.State `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

func encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("消息序列化失败", "type", msg.Type, "err", err)
		return nil
	}
	return data
}

// Hub 维护在线的遥控端并广播状态。所有客户端集合的修改都在 Run 协程内完成。
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}

	last []byte
}

// NewHub 创建 Hub，需调用 Run 后才会工作。
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run 处理注册、注销与广播，直到 ctx 结束；结束时关闭全部客户端的发送通道。
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return nil
		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.last != nil {
				c.send <- h.last
			}
			slog.Info("遥控端加入", "client", c.ID, "online", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				slog.Info("遥控端离开", "client", c.ID, "online", len(h.clients))
			}
		case msg := <-h.broadcast:
			h.last = msg
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 发送队列已满，断开该客户端
					delete(h.clients, c)
					close(c.send)
					slog.Warn("遥控端过慢，已断开", "client", c.ID)
				}
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast 向全部遥控端发送状态，新加入的客户端会先收到最近一次状态。
func (h *Hub) Broadcast(st playback.State) error {
	data := encode(Message{Type: "state", State: &st})
	if data == nil {
		return fmt.Errorf("状态序列化失败")
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return fmt.Errorf("hub 已停止")
	}
}

// Len 返回在线客户端数量；Hub 停止后为 0。
func (h *Hub) Len() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
