package testutil

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway is a fake rosbridge server. It records frames sent by clients and
// writes frames back to the most recent client.
type Gateway struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn

	frames    chan map[string]any
	connected chan struct{}
}

// NewGateway starts a fake gateway that is closed when the test ends.
func NewGateway(t testing.TB) *Gateway {
	t.Helper()

	g := &Gateway{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		frames:    make(chan map[string]any, 256),
		connected: make(chan struct{}, 16),
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.Close)
	return g
}

func (g *Gateway) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	g.mu.Lock()
	g.conns = append(g.conns, conn)
	g.mu.Unlock()
	g.connected <- struct{}{}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			frame = map[string]any{"raw": string(data)}
		}
		g.frames <- frame
	}
}

// Host returns the gateway host
func (g *Gateway) Host() string {
	host, _, _ := net.SplitHostPort(g.hostPort())
	return host
}

// Port returns the gateway port
func (g *Gateway) Port() int {
	_, port, _ := net.SplitHostPort(g.hostPort())
	p, _ := strconv.Atoi(port)
	return p
}

func (g *Gateway) hostPort() string {
	u, err := url.Parse(g.server.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// WaitConnected blocks until a client connects or the timeout expires
func (g *Gateway) WaitConnected(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-g.connected:
	case <-time.After(timeout):
		t.Fatalf("no client connected within %s", timeout)
	}
}

// NextFrame returns the next frame received from a client
func (g *Gateway) NextFrame(t testing.TB, timeout time.Duration) map[string]any {
	t.Helper()
	select {
	case frame := <-g.frames:
		return frame
	case <-time.After(timeout):
		t.Fatalf("no frame received within %s", timeout)
		return nil
	}
}

// Frames collects n frames, failing the test if they do not arrive in time
func (g *Gateway) Frames(t testing.TB, n int, timeout time.Duration) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case frame := <-g.frames:
			out = append(out, frame)
		case <-deadline:
			t.Fatalf("received %d of %d frames within %s", len(out), n, timeout)
		}
	}
	return out
}

// NoFrame asserts that nothing arrives within wait
func (g *Gateway) NoFrame(t testing.TB, wait time.Duration) {
	t.Helper()
	select {
	case frame := <-g.frames:
		t.Fatalf("unexpected frame %v", frame)
	case <-time.After(wait):
	}
}

// Send writes v as JSON to the latest client
func (g *Gateway) Send(t testing.TB, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	g.SendRaw(t, string(data))
}

// SendRaw writes a text frame verbatim to the latest client
func (g *Gateway) SendRaw(t testing.TB, frame string) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		t.Fatal("no client connected")
	}
	if err := g.conns[len(g.conns)-1].WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// DropClients closes every client connection from the server side
func (g *Gateway) DropClients() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, conn := range g.conns {
		_ = conn.Close()
	}
	g.conns = nil
}

// Close shuts the gateway down
func (g *Gateway) Close() {
	g.DropClients()
	g.server.Close()
}
