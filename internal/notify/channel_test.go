package notify

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextSignal(t *testing.T, c *Channel) Signal {
	t.Helper()
	select {
	case s := <-c.signals:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a push signal")
		return Signal{}
	}
}

func isOpen(c *Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// handshake plays the server side of the Engine.IO open and namespace join.
func handshake(t *testing.T, conn *websocket.Conn) bool {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`)); err != nil {
		return false
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	assert.Equal(t, "40", string(frame))
	return conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns-1"}`)) == nil
}

func TestChannel_DeliversEventsAndReconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/socket.io/", r.URL.Path)
		assert.Equal(t, "u-1", r.URL.Query().Get("userId"))
		assert.Equal(t, "4", r.URL.Query().Get("EIO"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if !handshake(t, conn) {
			return
		}

		if connections.Add(1) == 1 {
			// Ping must be answered with pong.
			_ = conn.WriteMessage(websocket.TextMessage, []byte("2"))
			_, frame, err := conn.ReadMessage()
			if assert.NoError(t, err) {
				assert.Equal(t, "3", string(frame))
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`42["other_event",{}]`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`42["notification_received",{"unreadCount":3}]`))
			// Drop the connection to force a reconnect.
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewChannel(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Open("u-1"))
	require.NoError(t, c.Open("u-1"), "second open is a no-op")
	assert.True(t, isOpen(c))

	assert.Equal(t, SignalConnected, nextSignal(t, c).Kind)

	ev := nextSignal(t, c)
	require.Equal(t, SignalEvent, ev.Kind)
	require.NotNil(t, ev.Event.UnreadCount)
	assert.Equal(t, 3, *ev.Event.UnreadCount)

	down := nextSignal(t, c)
	assert.Equal(t, SignalDisconnected, down.Kind)
	assert.Error(t, down.Err)

	assert.Equal(t, SignalReconnected, nextSignal(t, c).Kind)

	c.Close()
	c.Close()
	assert.False(t, isOpen(c))
	assert.Equal(t, int32(2), connections.Load())
}

func TestChannel_RejectsBadScheme(t *testing.T) {
	c := NewChannel("ftp://push.example.com", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, c.Open("u-1"))
	assert.False(t, isOpen(c))
}

func TestChannel_Backoff(t *testing.T) {
	c := NewChannel("http://localhost", 3*time.Second, nil)
	assert.Equal(t, 500*time.Millisecond, c.backoff(0))
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 3*time.Second, c.backoff(3))
	assert.Equal(t, 3*time.Second, c.backoff(10))
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:4000", "ws://localhost:4000/socket.io/?EIO=4&transport=websocket&userId=u-1"},
		{"https://push.example.com/", "wss://push.example.com/socket.io/?EIO=4&transport=websocket&userId=u-1"},
		{"wss://push.example.com/rt/", "wss://push.example.com/rt/?EIO=4&transport=websocket&userId=u-1"},
	}
	for _, tt := range tests {
		got, err := socketURL(tt.base, "u-1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodeEvent(t *testing.T) {
	name, data, err := decodeEvent(`/notifications,12["notification_received",{"unreadCount":1}]`)
	require.NoError(t, err)
	assert.Equal(t, EventNotificationReceived, name)
	assert.JSONEq(t, `{"unreadCount":1}`, string(data))

	name, data, err = decodeEvent(`["ping"]`)
	require.NoError(t, err)
	assert.Equal(t, "ping", name)
	assert.Nil(t, data)

	_, _, err = decodeEvent(`[]`)
	assert.Error(t, err)
}

func TestDecodeNotificationEvent(t *testing.T) {
	ev, err := decodeNotificationEvent([]byte(`{"notification":{"id":5,"title":"New match","type":"new_match"},"unreadCount":2}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, "New match", ev.Notification.Title)
	assert.Equal(t, 2, *ev.UnreadCount)

	ev, err = decodeNotificationEvent([]byte(`{"id":"6","title":"Hello","type":"new_message","unreadCount":4}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, "Hello", ev.Notification.Title)
	assert.Equal(t, 4, *ev.UnreadCount)

	ev, err = decodeNotificationEvent([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, ev.UnreadCount)
	assert.Nil(t, ev.Notification)

	ev, err = decodeNotificationEvent(nil)
	require.NoError(t, err)
	assert.Nil(t, ev.Notification)
}

func TestChannel_CloseDuringStalledHandshake(t *testing.T) {
	upgrader := websocket.Upgrader{}
	accepted := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		accepted <- struct{}{}
		// Never send the open packet.
		<-release
	}))
	defer srv.Close()

	c := NewChannel(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Open("u-1"))
	<-accepted

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close waited on the handshake read")
	}
}
