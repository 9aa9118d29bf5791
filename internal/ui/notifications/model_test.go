package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/notify"
)

type fakeFeed struct {
	snap    notify.Snapshot
	marked  []model.ID
	all     int
	markErr error
}

func (f *fakeFeed) Snapshot() notify.Snapshot { return f.snap }

func (f *fakeFeed) RefreshList(ctx context.Context) ([]model.Notification, error) {
	return f.snap.Notifications, nil
}

func (f *fakeFeed) MarkRead(ctx context.Context, id model.ID) error {
	f.marked = append(f.marked, id)
	return f.markErr
}

func (f *fakeFeed) MarkAllRead(ctx context.Context) error {
	f.all++
	return nil
}

// collect runs cmd and any batch it expands to, returning every message.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func newPanel(feed *fakeFeed) Model {
	return New(feed, keys.DefaultKeyMap(), slog.New(slog.NewTextHandler(io.Discard, nil)), 80, 20)
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func TestPanel_MessageNotificationOpensChat(t *testing.T) {
	feed := &fakeFeed{snap: notify.Snapshot{
		Notifications: []model.Notification{{
			ID:      "n1",
			Type:    model.NotificationNewMessage,
			Title:   "New message",
			Details: model.MessageDetails{MatchID: "m-9"},
		}},
		UnreadCount: 1,
	}}
	m := newPanel(feed)

	_, cmd := m.Update(enter)
	msgs := collect(cmd)

	assert.Equal(t, []model.ID{"n1"}, feed.marked)
	assert.Contains(t, msgs, OpenChatMsg{MatchID: "m-9"})
}

func TestPanel_MatchNotificationOnlyMarksRead(t *testing.T) {
	feed := &fakeFeed{snap: notify.Snapshot{Notifications: []model.Notification{
		{ID: "n1", Type: model.NotificationNewMatch, RelatedID: "m-1"},
	}}}
	m := newPanel(feed)

	_, cmd := m.Update(enter)
	for _, msg := range collect(cmd) {
		assert.IsType(t, doneMsg{}, msg)
	}
	assert.Equal(t, []model.ID{"n1"}, feed.marked)
}

func TestPanel_ReadNotificationIsNotMarkedAgain(t *testing.T) {
	feed := &fakeFeed{snap: notify.Snapshot{Notifications: []model.Notification{
		{ID: "n1", Type: model.NotificationNewMessage, RelatedID: "m-2", IsRead: true},
	}}}
	m := newPanel(feed)

	_, cmd := m.Update(enter)
	msgs := collect(cmd)
	assert.Empty(t, feed.marked)
	assert.Equal(t, []tea.Msg{OpenChatMsg{MatchID: "m-2"}}, msgs)
}

func TestPanel_FailedMarkAsksForResync(t *testing.T) {
	feed := &fakeFeed{markErr: errors.New("offline")}
	m := newPanel(feed)

	m, cmd := m.Update(doneMsg{op: "mark", err: feed.markErr})
	require.NotNil(t, cmd)
	assert.Equal(t, ResyncMsg{}, cmd())
	assert.NotEmpty(t, m.err)
}

func TestPanel_MarkAllRead(t *testing.T) {
	feed := &fakeFeed{}
	m := newPanel(feed)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'A'}})
	collect(cmd)
	assert.Equal(t, 1, feed.all)
}

func TestPanel_CursorFollowsShrinkingList(t *testing.T) {
	feed := &fakeFeed{snap: notify.Snapshot{Notifications: []model.Notification{{ID: "1"}, {ID: "2"}, {ID: "3"}}}}
	m := newPanel(feed)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.cursor)

	m, _ = m.Update(notify.Snapshot{Notifications: []model.Notification{{ID: "1"}}})
	assert.Equal(t, 0, m.cursor)
}
