package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/prompter/playback"
)

type harness struct {
	srv      *Server
	http     *httptest.Server
	commands *playback.Bus[playback.Command]
	states   *playback.Bus[playback.State]
}

func startServer(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	commands := playback.NewBus[playback.Command]("commands", 0)
	states := playback.NewBus[playback.State]("states", 0)
	srv := NewServer("", commands, states)
	var g errgroup.Group
	srv.Start(ctx, &g)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
		_ = g.Wait()
	})
	return &harness{srv: srv, http: ts, commands: commands, states: states}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待超时: %s", what)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("读取消息失败: %v", err)
	}
	return msg
}

func TestStateBroadcast(t *testing.T) {
	h := startServer(t)
	conn := h.dial(t)
	waitFor(t, "客户端注册", func() bool { return h.srv.Hub().Len() == 1 })

	h.states.Publish(playback.State{Phase: playback.PhaseActive, Index: 2, Lines: 5, Line: "hello"})
	msg := readMessage(t, conn)
	if msg.Type != "state" || msg.State == nil || msg.State.Line != "hello" || msg.State.Index != 2 {
		t.Fatalf("状态不符: %+v", msg)
	}

	// 后加入的客户端先收到最近一次状态
	late := h.dial(t)
	if got := readMessage(t, late); got.State == nil || got.State.Line != "hello" {
		t.Fatalf("新客户端应收到最近状态: %+v", got)
	}
}

func TestCommandsFromClient(t *testing.T) {
	h := startServer(t)
	sub, unsub := h.commands.Subscribe(context.Background())
	defer unsub()
	conn := h.dial(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SPEED","value":2}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case cmd := <-sub.C:
		if cmd.Kind != playback.CmdSpeed || cmd.Value != 2 {
			t.Fatalf("命令不符: %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("未收到命令")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"explode"}`)); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != "error" || !strings.Contains(msg.Error, "explode") {
		t.Fatalf("未知命令应回复错误: %+v", msg)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	h := startServer(t)
	conn := h.dial(t)
	waitFor(t, "客户端注册", func() bool { return h.srv.Hub().Len() == 1 })
	conn.Close()
	waitFor(t, "客户端注销", func() bool { return h.srv.Hub().Len() == 0 })
}

func TestStateAndCommandEndpoints(t *testing.T) {
	h := startServer(t)
	resp, err := http.Get(h.http.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("没有状态时应返回 503: %d", resp.StatusCode)
	}

	h.states.Publish(playback.State{Phase: playback.PhasePaused, Index: 1, Lines: 3})
	var st playback.State
	waitFor(t, "状态可读", func() bool {
		resp, err := http.Get(h.http.URL + "/state")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&st) == nil
	})
	if st.Index != 1 || st.Lines != 3 {
		t.Fatalf("状态不符: %+v", st)
	}

	resp, err = http.Post(h.http.URL+"/command", "application/json", strings.NewReader(`{"type":"toggle"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("没有订阅者时应返回 503: %d", resp.StatusCode)
	}

	sub, unsub := h.commands.Subscribe(context.Background())
	defer unsub()
	resp, err = http.Post(h.http.URL+"/command", "application/json", strings.NewReader(`{"type":"toggle"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("命令应被接受: %d", resp.StatusCode)
	}
	if cmd := <-sub.C; cmd.Kind != playback.CmdToggle {
		t.Fatalf("命令不符: %+v", cmd)
	}

	resp, err = http.Post(h.http.URL+"/command", "application/json", strings.NewReader(`{"type":"replace"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("缺少 text 的 replace 应返回 400: %d", resp.StatusCode)
	}
}

func TestCommandEndpointBusySession(t *testing.T) {
	commands := playback.NewBus[playback.Command]("commands", 1)
	srv := NewServer("", commands, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	_, unsub := commands.Subscribe(context.Background())
	defer unsub()

	post := func() int {
		resp, err := http.Post(ts.URL+"/command", "application/json", strings.NewReader(`{"type":"next"}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := post(); code != http.StatusAccepted {
		t.Fatalf("第一条命令应被接受: %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("会话未及时消费时应返回 429 而不是 503: %d", code)
	}
}
