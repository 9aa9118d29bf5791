// Package notifications implements the notification panel.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/notify"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
)

// Feed is the notification state the panel reads and mutates.
type Feed interface {
	Snapshot() notify.Snapshot
	RefreshList(ctx context.Context) ([]model.Notification, error)
	MarkRead(ctx context.Context, id model.ID) error
	MarkAllRead(ctx context.Context) error
}

// OpenChatMsg asks the app to open the conversation a message
// notification points at.
type OpenChatMsg struct {
	MatchID model.ID
}

// ResyncMsg asks the app to re-read the unread count after a failed mark.
type ResyncMsg struct{}

type doneMsg struct {
	op  string
	err error
}

// Model is the notification panel.
type Model struct {
	feed   Feed
	keys   *keys.KeyMap
	logger *slog.Logger
	snap   notify.Snapshot
	cursor int
	err    string
	width  int
	height int
}

// New creates the panel.
func New(feed Feed, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	return Model{
		feed:   feed,
		keys:   k,
		logger: logger,
		snap:   feed.Snapshot(),
		width:  width,
		height: height,
	}
}

// Init refreshes the list. Opening the panel counts as viewing it.
func (m *Model) Init() tea.Cmd {
	m.err = ""
	return m.run("refresh", func(ctx context.Context, f Feed) error {
		_, err := f.RefreshList(ctx)
		return err
	})
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case notify.Snapshot:
		m.snap = msg
		if m.cursor >= len(m.snap.Notifications) {
			m.cursor = max(len(m.snap.Notifications)-1, 0)
		}
		return m, nil

	case doneMsg:
		if msg.err == nil {
			m.err = ""
			return m, nil
		}
		m.logger.Warn("notification operation failed", slog.String("op", msg.op), slog.Any("error", msg.err))
		m.err = apperr.Message(msg.err)
		if msg.op == "mark" || msg.op == "mark-all" {
			return m, func() tea.Msg { return ResyncMsg{} }
		}
		return m, nil

	case tea.KeyMsg:
		list := m.snap.Notifications
		switch {
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(list)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Init()
		case key.Matches(msg, m.keys.MarkAllRead):
			return m, m.MarkAllRead()
		case key.Matches(msg, m.keys.MarkRead):
			if m.cursor >= len(list) {
				return m, nil
			}
			n := list[m.cursor]
			var cmds []tea.Cmd
			if !n.IsRead {
				id := n.ID
				cmds = append(cmds, m.run("mark", func(ctx context.Context, f Feed) error {
					return f.MarkRead(ctx, id)
				}))
			}
			if matchID, ok := chatTarget(n); ok {
				cmds = append(cmds, func() tea.Msg { return OpenChatMsg{MatchID: matchID} })
			}
			return m, tea.Batch(cmds...)
		}
	}
	return m, nil
}

// MarkAllRead marks every notification read.
func (m Model) MarkAllRead() tea.Cmd {
	return m.run("mark-all", func(ctx context.Context, f Feed) error {
		return f.MarkAllRead(ctx)
	})
}

func (m Model) run(op string, fn func(context.Context, Feed) error) tea.Cmd {
	feed := m.feed
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(context.Background(), feed)}
	}
}

// chatTarget returns the conversation a message notification refers to.
func chatTarget(n model.Notification) (model.ID, bool) {
	if n.Type != model.NotificationNewMessage {
		return "", false
	}
	if d, ok := n.Details.(model.MessageDetails); ok && d.MatchID != "" {
		return d.MatchID, true
	}
	if n.RelatedID != "" {
		return model.ID(n.RelatedID), true
	}
	return "", false
}

// View renders the panel.
func (m Model) View() string {
	title := "Notifications"
	if m.snap.UnreadCount > 0 {
		title += "  " + theme.BadgeStyle.Render(fmt.Sprintf("%d unread", m.snap.UnreadCount))
	}
	lines := []string{theme.TitleStyle.Render(title)}
	if m.err != "" {
		lines = append(lines, theme.ErrorStyle.Render(m.err))
	}

	list := m.snap.Notifications
	if len(list) == 0 {
		msg := "No notifications yet."
		if m.snap.Loading {
			msg = "Loading notifications..."
		}
		lines = append(lines, ui.Centered(m.width, m.height-2, msg))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	// Rows are three lines tall; scroll so the cursor stays visible.
	fit := max((m.height-len(lines))/3, 1)
	start := max(m.cursor-fit+1, 0)
	end := min(start+fit, len(list))
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(list[i], i == m.cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderRow(n model.Notification, selected bool) string {
	marker := "  "
	title := n.Title
	if !n.IsRead {
		marker = theme.UnreadStyle.Render("● ")
		title = theme.UnreadStyle.Render(title)
	}

	meta := []string{ui.RelativeTime(n.CreatedAt)}
	if d, ok := n.Details.(model.MatchDetails); ok {
		if d.ItemName != "" {
			meta = append(meta, d.ItemName)
		}
		if d.ToCity != "" {
			meta = append(meta, "to "+d.ToCity)
		}
		if d.MatchStatus != "" {
			meta = append(meta, d.MatchStatus.Label())
		}
	}

	row := marker + title + "\n  " + n.Message + "\n  " + theme.DimmedStyle.Render(strings.Join(meta, " · "))
	if selected {
		return theme.SelectedItemStyle.Render(row)
	}
	return theme.ListItemStyle.Render(row)
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
