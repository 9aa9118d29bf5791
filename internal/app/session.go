package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dconnect/courier/internal/dashboard"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/notify"
	"github.com/dconnect/courier/internal/session"
	appsync "github.com/dconnect/courier/internal/sync"
	"github.com/dconnect/courier/internal/ui/home"
	"github.com/dconnect/courier/internal/ui/matches"
	"github.com/dconnect/courier/internal/ui/messages"
	"github.com/dconnect/courier/internal/ui/notifications"
	"github.com/dconnect/courier/internal/ui/requests"
	"github.com/dconnect/courier/internal/ui/settings"
	"github.com/dconnect/courier/internal/ui/trips"
)

const (
	jobUnreadCount = "unread-count"
	jobDashboard   = "dashboard"

	// resyncTimeout bounds the one-off refreshes the app issues itself.
	resyncTimeout = 10 * time.Second
)

// sessionEndedMsg is delivered once the session store has invalidated the
// current session, for whatever reason.
type sessionEndedMsg struct {
	reason session.Reason
}

// channelClosedMsg follows the push channel shutdown on session end.
type channelClosedMsg struct{}

func (m Model) waitForSessionEnd() tea.Cmd {
	ch := m.ended
	return func() tea.Msg {
		return sessionEndedMsg{reason: <-ch}
	}
}

func (m Model) waitForSnapshot() tea.Cmd {
	ch := m.snapshots
	return func() tea.Msg {
		return <-ch
	}
}

// registerJobs installs the background refreshes. They only run between
// startSession and endSession.
func (m *Model) registerJobs() {
	unreadEvery := time.Duration(m.deps.Config.Display.UnreadPollIntervalSec) * time.Second
	syncer := m.deps.Sync
	client := m.deps.Client

	m.poller.Register(appsync.Job{
		Name:       jobUnreadCount,
		Interval:   unreadEvery,
		RunOnStart: true,
		Run: func(ctx context.Context) (any, error) {
			n, err := syncer.FetchUnreadCount(ctx)
			return n, err
		},
	})
	m.poller.Register(appsync.Job{
		Name:       jobDashboard,
		Interval:   unreadEvery,
		RunOnStart: true,
		Run: func(ctx context.Context) (any, error) {
			c, err := dashboard.Load(ctx, client)
			return c, err
		},
	})
}

// startSession builds the signed-in views for user and starts the push
// channel and background jobs.
func (m *Model) startSession(user model.User) tea.Cmd {
	d := m.deps
	w, h := m.frame.Body()
	logger := d.Logger.With("user", user.ID)

	m.user = user
	m.inSession = true
	m.screen = ScreenHome
	m.overlay = overlayNone
	m.unread = d.Sync.UnreadCount()
	m.pendingMatches = 0
	m.pushOnline = false
	m.helpView.SetRole(user.Role)

	m.home = home.New(d.Client, user, m.keys, logger, w, h)
	m.trips = trips.New(d.Client, d.Places, d.Validator, m.keys, logger, w, h)
	m.requests = requests.New(d.Client, d.Places, d.Validator, m.keys, logger, w, h)
	m.matches = matches.New(d.Client, user.Role, m.keys, logger, w, h)
	m.messages = messages.New(d.Client, user.ID, m.pollInterval(), m.keys, logger, w, h)
	m.notifications = notifications.New(d.Sync, m.keys, logger, w, h)
	m.settings = settings.New(d.Auth, user, settings.Connection{
		APIBaseURL: d.Config.API.BaseURL,
		PushURL:    d.Config.Push.URL,
		ConfigPath: d.ConfigPath,
		LogFile:    d.Config.Log.File,
	}, m.keys, logger, w, h)

	if err := d.Channel.Open(user.ID); err != nil {
		logger.Error("opening push channel", "error", err)
	}
	// Results are read by the waiter armed in Init.
	_ = m.poller.Start()

	logger.Info("session started", "role", user.Role)
	return m.home.Init()
}

// endSession tears down everything tied to the session and returns to the
// sign-in screen.
func (m *Model) endSession(reason session.Reason) tea.Cmd {
	m.deps.Logger.Info("session ended", "reason", reason)

	m.poller.Stop()
	if m.inSession {
		m.messages.Close()
	}
	m.deps.Sync.Reset()

	m.inSession = false
	m.user = model.User{}
	m.screen = ScreenSignIn
	m.overlay = overlayNone
	m.unread = 0
	m.pendingMatches = 0
	m.pushOnline = false
	m.flash = ""

	ch := m.deps.Channel
	closeChannel := func() tea.Msg {
		ch.Close()
		return channelClosedMsg{}
	}

	if reason == session.ReasonLogout {
		return tea.Batch(closeChannel, m.signin.Init())
	}
	return tea.Batch(closeChannel, m.signin.Expired())
}

// handleSignal reacts to the push channel. Delivery stops while
// disconnected, so every reconnect is followed by a full resync.
func (m *Model) handleSignal(s notify.Signal) tea.Cmd {
	if !m.inSession {
		return nil
	}

	switch s.Kind {
	case notify.SignalConnected:
		m.setPushOnline(true)
	case notify.SignalDisconnected:
		m.setPushOnline(false)
	case notify.SignalReconnected:
		m.setPushOnline(true)
		return m.resync()
	case notify.SignalEvent:
		if m.deps.Sync.HandlePush(s.Event) {
			return m.refreshNotifications()
		}
	}
	return nil
}

func (m *Model) setPushOnline(online bool) {
	m.pushOnline = online
	m.settings.SetPushOnline(online)
}

// handleJobResult forwards poller results. Errors are logged by the
// poller; an auth error has already ended the session.
func (m *Model) handleJobResult(r appsync.ResultMsg) tea.Cmd {
	if r.Error != nil || !m.inSession {
		return nil
	}

	switch r.Job {
	case jobDashboard:
		counts, ok := r.Value.(dashboard.Counts)
		if !ok {
			return nil
		}
		return func() tea.Msg { return home.CountsMsg{Counts: counts} }
	}
	// The unread count reaches the header through the snapshot bridge.
	return nil
}

func (m Model) fetchUnreadCount() tea.Cmd {
	return m.syncCmd("fetch unread count", func(ctx context.Context, s *notify.Synchronizer) error {
		_, err := s.FetchUnreadCount(ctx)
		return err
	})
}

func (m Model) refreshNotifications() tea.Cmd {
	return m.syncCmd("refresh notifications", func(ctx context.Context, s *notify.Synchronizer) error {
		_, err := s.RefreshList(ctx)
		return err
	})
}

func (m Model) resync() tea.Cmd {
	return m.syncCmd("resync notifications", func(ctx context.Context, s *notify.Synchronizer) error {
		return s.Resync(ctx)
	})
}

// syncCmd runs op against the synchronizer. The outcome arrives as a
// snapshot, so the command itself produces no message.
func (m Model) syncCmd(op string, fn func(context.Context, *notify.Synchronizer) error) tea.Cmd {
	s := m.deps.Sync
	logger := m.deps.Logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
		defer cancel()
		if err := fn(ctx, s); err != nil {
			logger.Warn(op+" failed", "error", err)
		}
		return nil
	}
}
