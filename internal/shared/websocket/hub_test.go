package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, msg, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (f *fakeConn) SetReadLimit(int64)                         {}
func (f *fakeConn) SetReadDeadline(time.Time) error            { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error           { return nil }
func (f *fakeConn) SetPongHandler(func(string) error)          {}
func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func receives(t *testing.T, hub *Hub, client *Client, topic, payload string) {
	t.Helper()
	require.Eventually(t, func() bool {
		hub.Broadcast(topic, []byte(payload))
		select {
		case msg := <-client.Send:
			return string(msg) == payload
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, time.Second, 20*time.Millisecond)
}

func TestHub_BroadcastReachesTopicOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	a := hub.NewClient(newFakeConn(), "c-1", "auction-a", "")
	b := hub.NewClient(newFakeConn(), "c-2", "auction-b", "")
	hub.RegisterClient(a)
	hub.RegisterClient(b)

	receives(t, hub, a, "auction-a", "hello-a")
	receives(t, hub, b, "auction-b", "hello-b")
	for len(a.Send) > 0 {
		assert.NotEqual(t, "hello-b", string(<-a.Send))
	}
}

func TestHub_ReadPumpForwardsInbound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	conn := newFakeConn()
	client := hub.NewClient(conn, "c-1", "auction-a", "alice")
	hub.RegisterClient(client)
	go client.ReadPump(ctx)

	conn.inbound <- []byte(`{"type":"client_bid"}`)
	select {
	case msg := <-hub.InboundMessages:
		assert.Equal(t, client, msg.Client)
		assert.JSONEq(t, `{"type":"client_bid"}`, string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("inbound message not forwarded")
	}

	close(conn.inbound)
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.closed
	}, time.Second, 10*time.Millisecond)
}

func TestHub_WritePumpWritesQueuedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()

	conn := newFakeConn()
	client := hub.NewClient(conn, "c-1", "auction-a", "")
	go client.WritePump(ctx)

	client.Reply([]byte("one"))
	client.Reply([]byte("two"))

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.written) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHub_ReplyAfterUnregisterIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	client := hub.NewClient(newFakeConn(), "c-1", "auction-a", "")
	hub.RegisterClient(client)
	receives(t, hub, client, "auction-a", "hello")

	hub.UnregisterClient(client)
	require.Eventually(t, func() bool {
		_, open := <-client.Send
		return !open
	}, time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() {
		assert.False(t, client.Reply([]byte("late")))
	})
}

func TestHub_ReplyConcurrentWithShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := hub.NewClient(newFakeConn(), "c-1", "auction-a", "")
	hub.RegisterClient(client)
	receives(t, hub, client, "auction-a", "hello")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			client.Reply([]byte("tick"))
		}
	}()
	cancel()
	<-done
	wg.Wait()

	assert.False(t, client.Reply([]byte("after")))
}
