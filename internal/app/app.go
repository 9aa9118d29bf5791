package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dconnect/courier/internal/api"
	"github.com/dconnect/courier/internal/auth"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/notify"
	"github.com/dconnect/courier/internal/session"
	"github.com/dconnect/courier/internal/store"
	appsync "github.com/dconnect/courier/internal/sync"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
	"github.com/dconnect/courier/internal/ui/command"
	helpview "github.com/dconnect/courier/internal/ui/help"
	"github.com/dconnect/courier/internal/ui/home"
	"github.com/dconnect/courier/internal/ui/matches"
	"github.com/dconnect/courier/internal/ui/messages"
	"github.com/dconnect/courier/internal/ui/notifications"
	"github.com/dconnect/courier/internal/ui/requests"
	"github.com/dconnect/courier/internal/ui/settings"
	"github.com/dconnect/courier/internal/ui/signin"
	"github.com/dconnect/courier/internal/ui/trips"
	"github.com/dconnect/courier/internal/validate"
)

// Deps are the long-lived services the UI drives.
type Deps struct {
	Config     *model.AppConfig
	ConfigPath string
	Logger     *slog.Logger
	Session    *session.Store
	Client     *api.Client
	Auth       *auth.Service
	Places     *store.SQLiteStore
	Sync       *notify.Synchronizer
	Channel    *notify.Channel
	Validator  *validate.Validator
}

// Screen is a top-level destination.
type Screen int

const (
	ScreenSignIn Screen = iota
	ScreenHome
	ScreenTrips
	ScreenRequests
	ScreenMatches
	ScreenMessages
	ScreenNotifications
	ScreenSettings
)

type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlayCommand
)

// Model is the root Bubble Tea model that manages view routing, layout
// and the lifetime of the signed-in session.
type Model struct {
	deps    Deps
	keys    *keys.KeyMap
	frame   ui.Frame
	ready   bool
	screen  Screen
	overlay overlay

	signin      signin.Model
	helpView    helpview.Model
	commandView command.Model

	// Views below exist only while a session is active.
	inSession     bool
	user          model.User
	home          home.Model
	trips         trips.Model
	requests      requests.Model
	matches       matches.Model
	messages      messages.Model
	notifications notifications.Model
	settings      settings.Model

	poller         *appsync.Poller
	unread         int
	pendingMatches int
	pushOnline     bool
	flash          string

	ended     chan session.Reason
	snapshots chan notify.Snapshot

	// initCmd is whatever New prepared for the first screen.
	initCmd tea.Cmd
}

// New creates the root model. Session listeners are registered here, so
// New must be called once per process.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		deps:        d,
		keys:        k,
		frame:       ui.NewFrame(80, 24),
		signin:      signin.New(d.Auth, d.Logger, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		poller:      appsync.New(d.Logger),
		ended:       make(chan session.Reason, 1),
		snapshots:   make(chan notify.Snapshot, 1),
	}

	d.Session.OnInvalidate(func(r session.Reason) {
		select {
		case m.ended <- r:
		default:
		}
	})
	d.Sync.OnChange(func(s notify.Snapshot) {
		// Keep only the latest snapshot.
		select {
		case <-m.snapshots:
		default:
		}
		m.snapshots <- s
	})
	m.registerJobs()

	if user, ok := d.Session.User(); ok {
		m.initCmd = m.startSession(user)
	} else {
		m.initCmd = m.signin.Init()
	}
	return m
}

// Init restores the signed-in state and starts the background listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initCmd,
		m.waitForSessionEnd(),
		m.waitForSnapshot(),
		m.deps.Channel.WaitForSignal(),
		m.poller.WaitForNextResult(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.frame = ui.NewFrame(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m.broadcast(msg)

	case sessionEndedMsg:
		return m, tea.Batch(m.endSession(msg.reason), m.waitForSessionEnd())

	case notify.Snapshot:
		m.unread = msg.UnreadCount
		var cmd tea.Cmd
		if m.inSession {
			m.notifications, cmd = m.notifications.Update(msg)
		}
		return m, tea.Batch(cmd, m.waitForSnapshot())

	case notify.Signal:
		return m, tea.Batch(m.handleSignal(msg), m.deps.Channel.WaitForSignal())

	case appsync.ResultMsg:
		if m.inSession {
			m.settings.SetJobs(m.poller.Statuses())
		}
		return m, tea.Batch(m.handleJobResult(msg), m.poller.WaitForNextResult())

	case home.CountsMsg:
		if msg.Err == nil {
			m.pendingMatches = msg.Counts.PendingMatches
		}
		if m.inSession {
			var cmd tea.Cmd
			m.home, cmd = m.home.Update(msg)
			return m, cmd
		}
		return m, nil

	case signin.LoggedInMsg:
		return m, m.startSession(msg.User)

	case settings.LogoutMsg:
		m.deps.Auth.Logout()
		return m, nil

	case trips.ShowMatchesMsg:
		m.screen = ScreenMatches
		return m, m.matches.ShowTrip(msg.TripID)

	case requests.ShowMatchesMsg:
		m.screen = ScreenMatches
		return m, m.matches.ShowItemRequest(msg.ItemRequestID)

	case matches.OpenChatMsg:
		return m, m.openChat(msg.MatchID)

	case notifications.OpenChatMsg:
		return m, m.openChat(msg.MatchID)

	case notifications.ResyncMsg:
		return m, m.fetchUnreadCount()

	case home.PostTripMsg:
		m.screen = ScreenTrips
		return m, m.trips.StartCreate()

	case home.PostRequestMsg:
		m.screen = ScreenRequests
		return m, m.requests.StartCreate()

	case command.CommandMsg:
		m.overlay = overlayNone
		return m, m.executeCommand(string(msg))

	case command.CancelMsg:
		m.overlay = overlayNone
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.broadcast(msg)
}

// handleKey applies global keys and otherwise hands the key to whatever
// has focus.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	switch m.overlay {
	case overlayCommand:
		var cmd tea.Cmd
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd
	case overlayHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.overlay = overlayNone
		}
		return m, nil
	}

	if m.screen == ScreenSignIn || m.typing() {
		return m.updateActiveView(msg)
	}

	m.flash = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
		return m, nil
	case key.Matches(msg, m.keys.Command):
		m.overlay = overlayCommand
		return m, m.commandView.Focus()
	case key.Matches(msg, m.keys.Home):
		return m, m.show(ScreenHome)
	case key.Matches(msg, m.keys.Trips):
		return m, m.show(ScreenTrips)
	case key.Matches(msg, m.keys.Requests):
		return m, m.show(ScreenRequests)
	case key.Matches(msg, m.keys.Matches):
		return m, m.show(ScreenMatches)
	case key.Matches(msg, m.keys.Messages):
		return m, m.show(ScreenMessages)
	case key.Matches(msg, m.keys.Notifications):
		return m, m.show(ScreenNotifications)
	case key.Matches(msg, m.keys.Settings):
		return m, m.show(ScreenSettings)
	}

	return m.updateActiveView(msg)
}

// typing reports whether the active view owns the keyboard.
func (m Model) typing() bool {
	switch m.screen {
	case ScreenTrips:
		return m.trips.InForm()
	case ScreenRequests:
		return m.requests.InForm()
	case ScreenMessages:
		return m.messages.InputFocused()
	}
	return false
}

// show switches to screen and (re)loads its data.
func (m *Model) show(s Screen) tea.Cmd {
	if !m.inSession {
		return nil
	}
	if m.screen == ScreenMessages && s != ScreenMessages {
		m.messages.Close()
	}
	m.screen = s

	switch s {
	case ScreenHome:
		return m.home.Init()
	case ScreenTrips:
		return m.trips.Init()
	case ScreenRequests:
		return m.requests.Init()
	case ScreenMatches:
		return m.matches.Init()
	case ScreenMessages:
		return m.messages.Init()
	case ScreenNotifications:
		return m.notifications.Init()
	case ScreenSettings:
		m.settings.SetPushOnline(m.pushOnline)
		m.settings.SetJobs(m.poller.Statuses())
		return m.settings.Init()
	}
	return nil
}

func (m *Model) openChat(id model.ID) tea.Cmd {
	m.screen = ScreenMessages
	return m.messages.Open(id)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.screen {
	case ScreenSignIn:
		m.signin, cmd = m.signin.Update(msg)
	case ScreenHome:
		m.home, cmd = m.home.Update(msg)
	case ScreenTrips:
		m.trips, cmd = m.trips.Update(msg)
	case ScreenRequests:
		m.requests, cmd = m.requests.Update(msg)
	case ScreenMatches:
		m.matches, cmd = m.matches.Update(msg)
	case ScreenMessages:
		m.messages, cmd = m.messages.Update(msg)
	case ScreenNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ScreenSettings:
		m.settings, cmd = m.settings.Update(msg)
	}

	return m, cmd
}

// broadcast hands a non-key message to every view. Views ignore message
// types they do not own, so async results reach their view even after the
// user has moved on.
func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.signin, cmd = m.signin.Update(msg)
	cmds = append(cmds, cmd)
	if m.inSession {
		m.home, cmd = m.home.Update(msg)
		cmds = append(cmds, cmd)
		m.trips, cmd = m.trips.Update(msg)
		cmds = append(cmds, cmd)
		m.requests, cmd = m.requests.Update(msg)
		cmds = append(cmds, cmd)
		m.matches, cmd = m.matches.Update(msg)
		cmds = append(cmds, cmd)
		m.messages, cmd = m.messages.Update(msg)
		cmds = append(cmds, cmd)
		m.notifications, cmd = m.notifications.Update(msg)
		cmds = append(cmds, cmd)
		m.settings, cmd = m.settings.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.overlay == overlayCommand {
		m.commandView, cmd = m.commandView.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) resize() {
	w, h := m.frame.Body()
	m.signin.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	if m.inSession {
		m.home.SetSize(w, h)
		m.trips.SetSize(w, h)
		m.requests.SetSize(w, h)
		m.matches.SetSize(w, h)
		m.messages.SetSize(w, h)
		m.notifications.SetSize(w, h)
		m.settings.SetSize(w, h)
	}
}

func (m Model) quit() tea.Cmd {
	m.poller.Stop()
	if m.inSession {
		m.messages.Close()
	}
	ch := m.deps.Channel
	return tea.Sequence(func() tea.Msg {
		ch.Close()
		return nil
	}, tea.Quit)
}

// View renders the active screen inside the frame.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.screen == ScreenSignIn {
		return m.signin.View()
	}

	return m.frame.Render("Dconnect · "+screenTitle(m.screen), m.headerStatus(), m.renderContent(), m.keyHints())
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.overlay {
	case overlayHelp:
		return m.helpView.View()
	case overlayCommand:
		return m.commandView.View()
	}

	var content string
	switch m.screen {
	case ScreenHome:
		content = m.home.View()
	case ScreenTrips:
		content = m.trips.View()
	case ScreenRequests:
		content = m.requests.View()
	case ScreenMatches:
		content = m.matches.View()
	case ScreenMessages:
		content = m.messages.View()
	case ScreenNotifications:
		content = m.notifications.View()
	case ScreenSettings:
		content = m.settings.View()
	}
	if m.flash != "" {
		content = theme.SuccessStyle.Render(m.flash) + "\n" + content
	}
	return content
}

// headerStatus shows who is signed in, the push state and the badges.
func (m Model) headerStatus() string {
	parts := []string{m.user.FullName()}
	if m.user.Role != "" {
		parts = append(parts, string(m.user.Role))
	}
	if m.pushOnline {
		parts = append(parts, "● live")
	} else {
		parts = append(parts, "○ offline")
	}
	if m.pendingMatches > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", m.pendingMatches))
	}
	status := strings.Join(parts, " · ")
	if m.unread > 0 {
		status += " " + theme.BadgeStyle.Render(fmt.Sprintf("%d new", m.unread))
	}
	return status
}

func (m Model) pollInterval() time.Duration {
	return time.Duration(m.deps.Config.Chat.PollIntervalSec) * time.Second
}
