package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

type written struct {
	kind int
	data []byte
}

// fakeConn blocks reads until closed and records writes.
type fakeConn struct {
	mu     sync.Mutex
	writes []written
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(t int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, written{kind: t, data: data})
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) messages() []written {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]written(nil), f.writes...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, conn := range conns {
		c := NewClient(h, conn, []byte(`{"hello":true}`))
		go c.Run()
	}
	waitFor(t, "clients", func() bool { return h.ClientCount() == 2 })

	if err := h.Publish(map[string]int{"n": 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	h.Broadcast([]byte(`{"n":2}`))
	if err := h.Publish(func() {}); err == nil {
		t.Error("expected an encoding error")
	}

	for i, conn := range conns {
		waitFor(t, "delivery", func() bool { return len(conn.messages()) == 3 })
		got := conn.messages()
		want := []string{`{"hello":true}`, `{"n":1}`, `{"n":2}`}
		for j, w := range want {
			if string(got[j].data) != w || got[j].kind != websocket.TextMessage {
				t.Errorf("conn %d: frame %d = %d %q, want text %s", i, j, got[j].kind, got[j].data, w)
			}
		}
	}
}

func TestHub_Disconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		NewClient(h, conn).Run()
		close(done)
	}()
	waitFor(t, "client", func() bool { return h.ClientCount() == 1 })

	conn.Close()
	<-done
	waitFor(t, "unregister", func() bool { return h.ClientCount() == 0 })
}

func TestHub_DropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	// No write pump and no buffer: the first broadcast cannot be queued.
	slow := &Client{hub: h, conn: newFakeConn(), send: make(chan []byte)}
	if !h.add(slow) {
		t.Fatal("hub refused client")
	}
	h.Broadcast([]byte("{}"))
	waitFor(t, "drop", func() bool { return h.ClientCount() == 0 })

	if _, ok := <-slow.send; ok {
		t.Error("slow client's channel still open")
	}
}

func TestHub_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", nil)
	go h.Run(ctx)

	conn := newFakeConn()
	go NewClient(h, conn).Run()
	waitFor(t, "client", func() bool { return h.ClientCount() == 1 })

	cancel()
	<-h.Done()
	if h.IsRunning() {
		t.Error("hub still running")
	}
	waitFor(t, "close frame", func() bool {
		msgs := conn.messages()
		return len(msgs) > 0 && msgs[len(msgs)-1].kind == websocket.CloseMessage
	})

	// Late clients are refused instead of blocking.
	late := newFakeConn()
	NewClient(h, late).Run()
	select {
	case <-late.closed:
	default:
		t.Error("late client connection left open")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle", nil)
	for i := 0; i < 300; i++ {
		h.Broadcast([]byte("{}"))
	}
	if h.Dropped() != 300-queueSize {
		t.Errorf("dropped = %d, want %d", h.Dropped(), 300-queueSize)
	}
}
