package notify

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dconnect/courier/internal/model"
)

// Engine.IO v4 packet types (first byte of every text frame).
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO v5 packet types (second byte of an Engine.IO message).
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// EventNotificationReceived is the only event the client listens for.
const EventNotificationReceived = "notification_received"

// openPacket is the payload of the Engine.IO handshake.
type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// socketURL turns the configured endpoint into the Engine.IO websocket URL
// carrying the user id as correlation parameter.
func socketURL(base, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing push url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported push url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeEvent parses a Socket.IO EVENT body such as
// ["notification_received",{"unreadCount":3}] and returns its name and
// first argument.
func decodeEvent(body string) (string, json.RawMessage, error) {
	// An optional namespace precedes the array: "/admin,[...]".
	if strings.HasPrefix(body, "/") {
		if i := strings.IndexByte(body, ','); i >= 0 {
			body = body[i+1:]
		}
	}
	// An optional ack id precedes the array: "12[...]".
	body = strings.TrimLeft(body, "0123456789")

	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(body), &parts); err != nil {
		return "", nil, fmt.Errorf("decoding event packet: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("decoding event packet: empty")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decoding event name: %w", err)
	}
	if len(parts) < 2 {
		return name, nil, nil
	}
	return name, parts[1], nil
}

// decodeNotificationEvent extracts the optional unread count and optional
// notification from a notification_received payload. The backend either
// wraps the notification ({"notification":{...},"unreadCount":n}) or
// sends the notification object itself with an extra unreadCount field.
func decodeNotificationEvent(data json.RawMessage) (Event, error) {
	var ev Event
	if len(data) == 0 || string(data) == "null" {
		return ev, nil
	}

	var envelope struct {
		UnreadCount  *int                `json:"unreadCount"`
		Notification *model.Notification `json:"notification"`
		ID           json.RawMessage     `json:"id"`
		Title        *string             `json:"title"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ev, fmt.Errorf("decoding notification event: %w", err)
	}
	ev.UnreadCount = envelope.UnreadCount
	ev.Notification = envelope.Notification

	if ev.Notification == nil && len(envelope.ID) > 0 && envelope.Title != nil {
		var n model.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return ev, fmt.Errorf("decoding pushed notification: %w", err)
		}
		ev.Notification = &n
	}
	return ev, nil
}
