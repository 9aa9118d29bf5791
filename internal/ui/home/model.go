// Package home implements the dashboard shown after sign-in.
package home

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/dashboard"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
)

// PostTripMsg asks the app to open the trip form.
type PostTripMsg struct{}

// PostRequestMsg asks the app to open the item request form.
type PostRequestMsg struct{}

// CountsMsg carries freshly loaded dashboard counts.
type CountsMsg struct {
	Counts dashboard.Counts
	Err    error
}

var (
	postTrip    = key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "post a trip"))
	postRequest = key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "post a request"))
)

// Model is the dashboard.
type Model struct {
	api     dashboard.API
	user    model.User
	keys    *keys.KeyMap
	logger  *slog.Logger
	counts  dashboard.Counts
	loaded  bool
	loading bool
	err     error
	width   int
	height  int
}

// New creates the dashboard for user.
func New(a dashboard.API, user model.User, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	return Model{
		api:    a,
		user:   user,
		keys:   k,
		logger: logger,
		width:  width,
		height: height,
	}
}

// Init loads the counts.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return Load(m.api)
}

// Load returns a command that fetches the counts.
func Load(a dashboard.API) tea.Cmd {
	return func() tea.Msg {
		c, err := dashboard.Load(context.Background(), a)
		return CountsMsg{Counts: c, Err: err}
	}
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case CountsMsg:
		m.loading = false
		if msg.Err != nil {
			m.logger.Warn("loading dashboard counts", slog.Any("error", msg.Err))
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.counts = msg.Counts
		m.loaded = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, postTrip):
			return m, func() tea.Msg { return PostTripMsg{} }
		case key.Matches(msg, postRequest):
			return m, func() tea.Msg { return PostRequestMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Init()
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	welcome := theme.TitleStyle.Render(fmt.Sprintf("Welcome back, %s!", m.user.FullName()))
	role := theme.RoleStyle(string(m.user.Role)).Render(strings.ToUpper(string(m.user.Role)))
	intro := theme.DimmedStyle.Render("Here's what's happening with your shipments today.")

	if m.loading && !m.loaded {
		return lipgloss.JoinVertical(lipgloss.Left, welcome, theme.DimmedStyle.Render("Loading dashboard..."))
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("My Trips", m.counts.Trips, theme.ColorBlue, "2"),
		card("My Requests", m.counts.Requests, theme.ColorBlue, "3"),
		card("Pending Matches", m.counts.PendingMatches, theme.ColorTeal, "4"),
	)

	lines := []string{welcome + " " + role, intro, "", cards}
	if m.err != nil {
		lines = append(lines, theme.ErrorStyle.Render(apperr.Message(m.err)))
	}
	lines = append(lines,
		"",
		lipgloss.NewStyle().Bold(true).Render("Quick actions"),
		theme.HelpStyle.Render(postTrip.Help().Key+"  "+postTrip.Help().Desc+"  (share your travel plans)"),
		theme.HelpStyle.Render(postRequest.Help().Key+"  "+postRequest.Help().Desc+"  (request a shipment)"),
	)
	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func card(title string, value int, color lipgloss.TerminalColor, shortcut string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%d", value)),
		title,
		theme.DimmedStyle.Render("press "+shortcut),
	)
	return theme.BorderStyle.Padding(0, 2).MarginRight(2).Width(20).Render(body)
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
