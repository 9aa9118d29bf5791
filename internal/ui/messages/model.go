// Package messages implements the inbox and the per-match chat screen.
package messages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/chat"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
)

// API is the subset of the backend used by the messages screens.
type API interface {
	chat.API
	chat.InboxAPI
}

type inboxLoadedMsg struct {
	seq   int
	items []model.InboxItem
	err   error
}

type sentMsg struct {
	matchID model.ID
	err     error
}

// Model is the messages screen.
type Model struct {
	api      API
	userID   string
	interval time.Duration
	keys     *keys.KeyMap
	logger   *slog.Logger

	// inbox
	items     []model.InboxItem
	cursor    int
	search    textinput.Model
	searching bool
	seq       int
	loading   bool
	loadErr   error

	// conversation
	conv     *chat.Conversation
	viewport viewport.Model
	draft    textinput.Model
	sendErr  string

	width  int
	height int
}

// New creates the messages screen for the signed-in user.
func New(a API, userID string, interval time.Duration, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	search := textinput.New()
	search.Placeholder = "Search by name or city..."
	search.Prompt = "/ "
	search.CharLimit = 64

	draft := textinput.New()
	draft.Placeholder = "Type a message..."
	draft.Prompt = "> "
	draft.CharLimit = 1000

	vp := viewport.New(width, height-4)
	vp.Style = lipgloss.NewStyle()

	return Model{
		api:      a,
		userID:   userID,
		interval: interval,
		keys:     k,
		logger:   logger,
		search:   search,
		draft:    draft,
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Init loads the inbox. An open conversation is left running.
func (m *Model) Init() tea.Cmd {
	if m.conv != nil {
		return nil
	}
	return m.loadInbox()
}

// Open shows the conversation of matchID and starts polling it.
func (m *Model) Open(matchID model.ID) tea.Cmd {
	m.Close()
	m.conv = chat.NewConversation(m.api, matchID, m.interval, m.logger)
	m.sendErr = ""
	m.draft.Reset()
	m.viewport.SetContent(theme.DimmedStyle.Render("Loading conversation..."))
	return tea.Batch(m.conv.Start(), m.draft.Focus())
}

// Close stops polling the open conversation, if any.
func (m *Model) Close() {
	if m.conv != nil {
		m.conv.Stop()
		m.conv = nil
	}
	m.draft.Blur()
}

// InputFocused reports whether keystrokes belong to a text field.
func (m Model) InputFocused() bool {
	return m.searching || m.conv != nil
}

// Update handles messages for the messages screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case inboxLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.loadErr = msg.err
		if msg.err == nil {
			m.items = msg.items
			if m.cursor >= len(m.visible()) {
				m.cursor = 0
			}
		}
		return m, nil

	case chat.UpdatedMsg:
		if m.conv == nil || msg.MatchID != m.conv.MatchID() {
			return m, nil
		}
		if msg.Err != nil {
			m.logger.Debug("chat poll failed", slog.Any("error", msg.Err))
		}
		m.renderConversation()
		return m, m.conv.WaitForUpdate()

	case sentMsg:
		if m.conv == nil || msg.matchID != m.conv.MatchID() {
			return m, nil
		}
		if msg.err != nil {
			m.sendErr = apperr.Message(msg.err)
		} else {
			m.sendErr = ""
		}
		m.renderConversation()
		return m, nil

	case tea.KeyMsg:
		if m.conv != nil {
			return m.updateConversation(msg)
		}
		return m.updateInbox(msg)
	}

	if m.conv != nil {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateInbox(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEsc:
			m.searching = false
			m.search.Blur()
			m.search.Reset()
			m.cursor = 0
			return m, nil
		case tea.KeyEnter:
			m.searching = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.cursor = 0
		return m, cmd
	}

	visible := m.visible()
	switch {
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadInbox()
	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(visible) {
			return m, m.Open(visible[m.cursor].MatchID)
		}
	}
	return m, nil
}

func (m Model) updateConversation(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Close()
		return m, m.loadInbox()
	case tea.KeyEnter:
		content := m.draft.Value()
		if strings.TrimSpace(content) == "" {
			return m, nil
		}
		if m.conv.Sending() {
			m.sendErr = "Message is still sending..."
			return m, nil
		}
		m.draft.Reset()
		conv := m.conv
		return m, func() tea.Msg {
			_, err := conv.Send(context.Background(), content)
			return sentMsg{matchID: conv.MatchID(), err: err}
		}
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	return m, cmd
}

func (m *Model) loadInbox() tea.Cmd {
	m.seq++
	m.loading = true
	seq, a := m.seq, m.api
	return func() tea.Msg {
		items, err := chat.Inbox(context.Background(), a, "")
		return inboxLoadedMsg{seq: seq, items: items, err: err}
	}
}

func (m Model) visible() []model.InboxItem {
	return chat.FilterInbox(m.items, m.search.Value())
}

func (m *Model) renderConversation() {
	if m.conv == nil {
		return
	}
	h := m.conv.History()
	if h == nil {
		if err := m.conv.LoadErr(); err != nil {
			m.viewport.SetContent(theme.ErrorStyle.Render(apperr.Message(err)))
		}
		return
	}
	if len(h.Messages) == 0 {
		m.viewport.SetContent(theme.DimmedStyle.Render("No messages yet. Say hello!"))
		return
	}

	width := max(m.width-4, 20)
	mine := lipgloss.NewStyle().Foreground(theme.ColorWhite).Background(theme.ColorBlue).Padding(0, 1)
	theirs := lipgloss.NewStyle().Foreground(theme.ColorWhite).Background(theme.ColorSubtle).Padding(0, 1)

	var lines []string
	for _, msg := range h.Messages {
		stamp := theme.DimmedStyle.Render(msg.CreatedAt.Local().Format("Jan 2 15:04"))
		if msg.SenderID == m.userID {
			bubble := mine.MaxWidth(width * 3 / 4).Render(msg.Content)
			lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble),
				lipgloss.PlaceHorizontal(width, lipgloss.Right, stamp))
		} else {
			bubble := theirs.MaxWidth(width * 3 / 4).Render(msg.Content)
			lines = append(lines, bubble, stamp)
		}
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the inbox or the open conversation.
func (m Model) View() string {
	if m.conv != nil {
		return m.conversationView()
	}
	return m.inboxView()
}

func (m Model) inboxView() string {
	lines := []string{theme.TitleStyle.Render("Messages")}
	if m.searching || m.search.Value() != "" {
		lines = append(lines, m.search.View(), "")
	}

	if m.loading && len(m.items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, ui.Centered(m.width, m.height-3, "Loading conversations..."))...)
	}
	if m.loadErr != nil && len(m.items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, theme.ErrorStyle.Render(apperr.Message(m.loadErr)))...)
	}

	visible := m.visible()
	if len(visible) == 0 {
		empty := "No conversations yet. Accepted matches show up here."
		if m.search.Value() != "" {
			empty = "No conversations match your search."
		}
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, ui.Centered(m.width, m.height-3, empty))...)
	}

	for i, it := range visible {
		title := fmt.Sprintf("%s  %s", it.OtherParty.Name(),
			theme.DimmedStyle.Render(fmt.Sprintf("%s → %s", it.TripInfo.From, it.TripInfo.To)))
		preview := theme.DimmedStyle.Render(truncate(it.LastMessage, max(m.width-20, 20)) + "  " + ui.RelativeTime(it.LastMessageDate))
		row := title + "\n" + preview
		if i == m.cursor {
			lines = append(lines, theme.SelectedItemStyle.Render(row))
		} else {
			lines = append(lines, theme.ListItemStyle.Render(row))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) conversationView() string {
	title := "Chat"
	if h := m.conv.History(); h != nil {
		info := h.ChatInfo
		title = fmt.Sprintf("%s  %s", info.OtherParty.Name(),
			theme.DimmedStyle.Render(fmt.Sprintf("%s → %s", info.TripDetails.From, info.TripDetails.To)))
	}

	footer := m.draft.View()
	if m.conv.Sending() {
		footer += "  " + theme.DimmedStyle.Render("sending...")
	}
	if m.sendErr != "" {
		footer += "\n" + theme.ErrorStyle.Render(m.sendErr)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.TitleStyle.Render(title),
		m.viewport.View(),
		footer,
	)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-5, 3)
	m.draft.Width = max(width-6, 10)
	m.renderConversation()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
