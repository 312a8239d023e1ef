package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/prompter/playback"
)

// Server 提供 /ws（双向）、/state（最新状态）与 /command（单条命令）。
type Server struct {
	addr     string
	hub      *Hub
	commands *playback.Bus[playback.Command]
	states   *playback.Bus[playback.State]
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	state *playback.State
}

// NewServer 创建遥控服务。commands 接收遥控端命令，states 是播放状态来源。
func NewServer(addr string, commands *playback.Bus[playback.Command], states *playback.Bus[playback.State]) *Server {
	return &Server{
		addr:     addr,
		hub:      NewHub(),
		commands: commands,
		states:   states,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 遥控端通常是同一局域网内的手机页面，来源不固定
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Hub 返回内部的 Hub。
func (s *Server) Hub() *Hub { return s.hub }

// Handler 返回 HTTP 路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/state", s.serveState)
	mux.HandleFunc("/command", s.serveCommand)
	return mux
}

// Start 启动 Hub 与状态转发，但不监听端口，供嵌入其他 HTTP 服务使用。
func (s *Server) Start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return s.hub.Run(ctx) })
	if s.states == nil {
		return
	}
	sub, unsub := s.states.Subscribe(ctx)
	g.Go(func() error {
		defer unsub()
		sub.Each(func(st playback.State) error {
			s.remember(st)
			return s.hub.Broadcast(st)
		})
		return sub.Wait()
	})
}

// Run 监听 addr 直到 ctx 结束。
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	s.Start(ctx, g)

	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		slog.Info("遥控服务已启动", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("遥控服务监听失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) remember(st playback.State) {
	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket 升级失败", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := newClient(s.hub, conn, s.commands)
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	if err := c.run(r.Context()); err != nil {
		slog.Warn("遥控连接异常结束", "client", c.ID, "err", err)
	}
}

func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st == nil {
		http.Error(w, "暂无状态", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) serveCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := decodeCommand(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch err := s.commands.Send(cmd); {
	case errors.Is(err, playback.ErrNoSubscribers):
		http.Error(w, "没有正在运行的播放会话", http.StatusServiceUnavailable)
		return
	case errors.Is(err, playback.ErrDropped):
		http.Error(w, "播放会话繁忙，命令被丢弃", http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
