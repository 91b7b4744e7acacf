package rosbridge

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is one open, frame-oriented connection to the gateway. ReadFrame is
// only called from the receive loop; WriteFrame may be called concurrently and
// Close must unblock a pending ReadFrame.
type Socket interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}

// Dialer opens sockets. Implementations must honour ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, url string) (Socket, error)

// Dial calls f
func (f DialerFunc) Dial(ctx context.Context, url string) (Socket, error) {
	return f(ctx, url)
}

// WebSocketDialer dials the gateway with gorilla/websocket
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
	TLSClientConfig  *tls.Config
	ReadLimit        int64
}

// DefaultWebSocketDialer returns the dialer used when none is injected
func DefaultWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Dial opens a websocket to url
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		TLSClientConfig:  d.TLSClientConfig,
	}

	// The handshake response body does not need closing (gorilla docs)
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	return &wsSocket{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

type wsSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func (s *wsSocket) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsSocket) WriteFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *wsSocket) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
