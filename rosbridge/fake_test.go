package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
)

// fakeSocket is an in-memory Socket. Frames pushed with deliver are returned
// by ReadFrame; written frames are recorded.
type fakeSocket struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closes   int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadFrame() ([]byte, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	default:
	}
	select {
	case frame := <-s.in:
		if frame == nil {
			panic("socket read crashed")
		}
		return frame, nil
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *fakeSocket) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return errors.New("use of closed socket")
	default:
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, append([]byte(nil), frame...))
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) deliver(frame string) {
	s.in <- []byte(frame)
}

// crash makes the next ReadFrame panic
func (s *fakeSocket) crash() {
	s.in <- nil
}

func (s *fakeSocket) failWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *fakeSocket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// frames decodes every written frame
func (s *fakeSocket) frames(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.written))
	for _, raw := range s.written {
		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("written frame is not JSON: %s", raw)
		}
		out = append(out, frame)
	}
	return out
}

func (s *fakeSocket) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

// fakeDialer hands out one socket, or fails
type fakeDialer struct {
	mu     sync.Mutex
	socket *fakeSocket
	err    error
	urls   []string
	block  bool
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Socket, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	block, err, sock := d.block, d.err, d.socket
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return sock, nil
}

func (d *fakeDialer) dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}
