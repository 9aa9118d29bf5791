package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	// writeWait bounds every frame written to the server.
	writeWait = 10 * time.Second

	// defaultPingWindow is used until the handshake announces the server's
	// ping interval and timeout.
	defaultPingWindow = 45 * time.Second

	// minBackoff is the first reconnect delay.
	minBackoff = 500 * time.Millisecond
)

// SignalKind classifies what the channel reports to its owner.
type SignalKind int

const (
	// SignalConnected follows the first successful handshake.
	SignalConnected SignalKind = iota
	// SignalReconnected follows every later handshake; the owner must
	// resync because missed events were not buffered.
	SignalReconnected
	// SignalDisconnected reports a lost or failed connection.
	SignalDisconnected
	// SignalEvent carries a notification_received push.
	SignalEvent
)

// Signal is a tea.Msg emitted by the channel.
type Signal struct {
	Kind  SignalKind
	Event Event
	Err   error
}

// Channel is the push connection of one session. There is at most one
// open connection per Channel; reconnection with capped exponential backoff
// is internal, delivery stops while disconnected.
type Channel struct {
	baseURL    string
	dialer     *websocket.Dialer
	logger     *slog.Logger
	maxBackoff time.Duration
	signals    chan Signal

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	conn   *websocket.Conn
}

// NewChannel creates a closed channel for the given push endpoint.
func NewChannel(baseURL string, maxBackoff time.Duration, logger *slog.Logger) *Channel {
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &Channel{
		baseURL: baseURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger:     logger,
		maxBackoff: maxBackoff,
		signals:    make(chan Signal, 16),
	}
}

// Open connects on behalf of userID. Opening an already open channel is a
// no-op.
func (c *Channel) Open(userID string) error {
	target, err := socketURL(c.baseURL, userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, target, c.done)
	return nil
}

// Close tears the connection down and stops reconnecting. It is safe to
// call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel = nil
	c.done = nil
	if cancel != nil {
		// Cancelled under the lock so connect either sees the cancellation
		// or has already published the connection for us to close.
		cancel()
	}
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
	}
	<-done
}

// WaitForSignal returns a tea.Cmd that waits for the next signal. Call it
// again after handling each Signal to keep listening.
func (c *Channel) WaitForSignal() tea.Cmd {
	return func() tea.Msg {
		return <-c.signals
	}
}

// run keeps a connection up until ctx is cancelled.
func (c *Channel) run(ctx context.Context, target string, done chan struct{}) {
	defer close(done)

	connectedBefore := false
	attempt := 0
	for {
		conn, pingWindow, err := c.connect(ctx, target)
		if err == nil {
			kind := SignalConnected
			if connectedBefore {
				kind = SignalReconnected
			}
			connectedBefore = true
			attempt = 0
			c.emit(ctx, Signal{Kind: kind})

			err = c.readLoop(ctx, conn, pingWindow)

			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			_ = conn.Close()
		}

		if ctx.Err() != nil {
			return
		}

		c.logger.Debug("push channel disconnected", slog.Any("error", err))
		c.emit(ctx, Signal{Kind: SignalDisconnected, Err: err})

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff(attempt)):
		}
		attempt++
	}
}

// connect dials, completes the Engine.IO handshake and joins the default
// Socket.IO namespace.
func (c *Channel) connect(ctx context.Context, target string) (*websocket.Conn, time.Duration, error) {
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "dialing push channel")
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, 0, errors.Wrap(ctx.Err(), "dialing push channel")
	}
	c.conn = conn
	c.mu.Unlock()

	pingWindow := defaultPingWindow
	_ = conn.SetReadDeadline(time.Now().Add(pingWindow))

	_, frame, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, 0, errors.Wrap(err, "reading handshake")
	}
	if len(frame) == 0 || frame[0] != eioOpen {
		_ = conn.Close()
		return nil, 0, errors.Errorf("unexpected handshake frame %q", frame)
	}
	var open openPacket
	if err := json.Unmarshal(frame[1:], &open); err != nil {
		_ = conn.Close()
		return nil, 0, errors.Wrap(err, "decoding handshake")
	}
	if open.PingInterval > 0 {
		pingWindow = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	if err := c.write(conn, string([]byte{eioMessage, sioConnect})); err != nil {
		_ = conn.Close()
		return nil, 0, errors.Wrap(err, "joining namespace")
	}
	return conn, pingWindow, nil
}

// readLoop handles frames until the connection drops or ctx ends.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, pingWindow time.Duration) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(pingWindow))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "reading push frame")
		}
		if len(frame) == 0 {
			continue
		}

		switch frame[0] {
		case eioPing:
			if err := c.write(conn, string(eioPong)); err != nil {
				return errors.Wrap(err, "answering ping")
			}
		case eioClose:
			return errors.New("server closed the push channel")
		case eioNoop, eioPong:
		case eioMessage:
			if err := c.handleMessage(ctx, frame[1:]); err != nil {
				return err
			}
		}
	}
}

func (c *Channel) handleMessage(ctx context.Context, packet []byte) error {
	if len(packet) == 0 {
		return nil
	}

	switch packet[0] {
	case sioConnect:
		c.logger.Debug("push namespace joined")
	case sioConnectError:
		return errors.Errorf("push namespace refused: %s", packet[1:])
	case sioDisconnect:
		return errors.New("push namespace disconnected by server")
	case sioEvent:
		name, data, err := decodeEvent(string(packet[1:]))
		if err != nil {
			c.logger.Warn("ignoring malformed push event", slog.Any("error", err))
			return nil
		}
		if name != EventNotificationReceived {
			return nil
		}
		ev, err := decodeNotificationEvent(data)
		if err != nil {
			c.logger.Warn("ignoring malformed notification event", slog.Any("error", err))
			ev = Event{}
		}
		c.emit(ctx, Signal{Kind: SignalEvent, Event: ev})
	}
	return nil
}

func (c *Channel) write(conn *websocket.Conn, text string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// emit delivers a signal unless the channel is being closed.
func (c *Channel) emit(ctx context.Context, s Signal) {
	select {
	case c.signals <- s:
	case <-ctx.Done():
	}
}

// backoff returns the delay before reconnect attempt n: 0.5s, 1s, 2s, ...
// capped at maxBackoff.
func (c *Channel) backoff(attempt int) time.Duration {
	d := minBackoff
	for i := 0; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	if d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}
