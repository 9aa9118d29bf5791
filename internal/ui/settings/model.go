// Package settings shows the signed-in profile and offers logout.
package settings

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	appsync "github.com/dconnect/courier/internal/sync"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
)

// ProfileSource loads the signed-in user's profile.
type ProfileSource interface {
	Profile(ctx context.Context) (*model.User, error)
}

// LogoutMsg asks the app to end the session.
type LogoutMsg struct{}

type profileMsg struct {
	user *model.User
	err  error
}

// Connection describes the endpoints shown under "Connection".
type Connection struct {
	APIBaseURL string
	PushURL    string
	ConfigPath string
	LogFile    string
}

// Model is the settings screen.
type Model struct {
	src     ProfileSource
	keys    *keys.KeyMap
	logger  *slog.Logger
	user    model.User
	conn    Connection
	online  bool
	jobs    []appsync.JobStatus
	loading bool
	err     error
	width   int
	height  int
}

// New creates the settings screen. user is shown until the profile loads.
func New(src ProfileSource, user model.User, conn Connection, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	return Model{
		src:    src,
		keys:   k,
		logger: logger,
		user:   user,
		conn:   conn,
		width:  width,
		height: height,
	}
}

// Init fetches the profile.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	src := m.src
	return func() tea.Msg {
		u, err := src.Profile(context.Background())
		return profileMsg{user: u, err: err}
	}
}

// SetPushOnline records the push channel state for display.
func (m *Model) SetPushOnline(online bool) {
	m.online = online
}

// SetJobs records the background refresh jobs for display.
func (m *Model) SetJobs(jobs []appsync.JobStatus) {
	m.jobs = jobs
}

// jobLine describes one background job, e.g. "ok, 2 minutes ago".
func jobLine(j appsync.JobStatus) string {
	switch j.State {
	case appsync.JobRunning:
		return theme.DimmedStyle.Render("refreshing...")
	case appsync.JobError:
		return theme.ErrorStyle.Render("failed: " + apperr.Message(j.Error))
	}
	if j.LastRun.IsZero() {
		return theme.DimmedStyle.Render("waiting")
	}
	return theme.SuccessStyle.Render("ok") + theme.DimmedStyle.Render(", "+ui.RelativeTime(j.LastRun))
}

// Update handles messages for the settings screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case profileMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.logger.Debug("loading profile", slog.Any("error", msg.err))
		} else if msg.user != nil {
			m.user = *msg.user
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Logout):
			return m, func() tea.Msg { return LogoutMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Init()
		}
	}
	return m, nil
}

// View renders the settings screen.
func (m Model) View() string {
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(14)
	row := func(k, v string) string {
		if v == "" {
			v = theme.DimmedStyle.Render("not set")
		}
		return label.Render(k) + v
	}
	section := lipgloss.NewStyle().Bold(true).MarginTop(1)

	push := theme.ErrorStyle.Render("disconnected")
	if m.online {
		push = theme.SuccessStyle.Render("connected")
	}

	lines := []string{
		theme.TitleStyle.Render("Settings"),
		section.Render("Profile"),
		row("Name", m.user.FullName()),
		row("Email", m.user.Email),
		row("Phone", m.user.Phone),
		row("Role", theme.RoleStyle(string(m.user.Role)).UnsetPadding().Render(strings.ToUpper(string(m.user.Role)))),
	}
	if m.loading {
		lines = append(lines, theme.DimmedStyle.Render("Refreshing profile..."))
	}
	if m.err != nil {
		lines = append(lines, theme.ErrorStyle.Render(apperr.Message(m.err)))
	}
	lines = append(lines,
		section.Render("Connection"),
		row("API", m.conn.APIBaseURL),
		row("Push", m.conn.PushURL+"  "+push),
		row("Config file", m.conn.ConfigPath),
		row("Log file", m.conn.LogFile),
	)
	if len(m.jobs) > 0 {
		lines = append(lines, section.Render("Background refresh"))
		for _, j := range m.jobs {
			lines = append(lines, row(j.Name, jobLine(j)))
		}
	}
	lines = append(lines,
		"",
		theme.HelpStyle.Render("L log out · r refresh profile"),
	)
	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
