package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dconnect/courier/internal/model"
)

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "quit", "q":
		return m.quit()
	case "logout":
		m.deps.Auth.Logout()
		return nil
	}

	if !m.inSession {
		return nil
	}

	switch cmd {
	case "home":
		return m.show(ScreenHome)
	case "trips":
		return m.show(ScreenTrips)
	case "post trip":
		m.screen = ScreenTrips
		return m.trips.StartCreate()
	case "requests":
		return m.show(ScreenRequests)
	case "post request":
		m.screen = ScreenRequests
		return m.requests.StartCreate()
	case "matches":
		return m.show(ScreenMatches)
	case "matches pending":
		m.screen = ScreenMatches
		return m.matches.ShowStatus(model.MatchPending)
	case "matches accepted":
		m.screen = ScreenMatches
		return m.matches.ShowStatus(model.MatchAccepted)
	case "matches rejected":
		m.screen = ScreenMatches
		return m.matches.ShowStatus(model.MatchRejected)
	case "messages":
		return m.show(ScreenMessages)
	case "notifications":
		return m.show(ScreenNotifications)
	case "mark all read":
		return m.notifications.MarkAllRead()
	case "settings":
		return m.show(ScreenSettings)
	case "refresh", "sync":
		m.poller.Trigger(jobUnreadCount)
		m.poller.Trigger(jobDashboard)
		return m.show(m.screen)
	}

	m.overlay = overlayCommand
	m.commandView.SetError("unknown command: " + cmd)
	return m.commandView.Focus()
}

// keyHints returns the status bar text for the current screen.
func (m Model) keyHints() string {
	switch m.overlay {
	case overlayHelp:
		return "? close help | esc back"
	case overlayCommand:
		return "enter execute | tab complete | esc back"
	}

	switch m.screen {
	case ScreenHome:
		return "t post trip | p post request | 1-7 screens | : command | ? help | q quit"
	case ScreenTrips:
		if m.trips.InForm() {
			return "enter next | shift+tab back | esc cancel"
		}
		return "n new trip | enter matches | [/] page | r refresh | ? help"
	case ScreenRequests:
		if m.requests.InForm() {
			return "enter next | shift+tab back | esc cancel"
		}
		return "n new request | enter matches | [/] page | r refresh | ? help"
	case ScreenMatches:
		if m.matches.InDetail() {
			return "a accept | x decline | m message | esc back"
		}
		return "enter details | a accept | x decline | s status | tab scope | [/] page"
	case ScreenMessages:
		if m.messages.InputFocused() {
			return "enter send | esc back"
		}
		return "enter open | / search | r refresh | ? help"
	case ScreenNotifications:
		return "enter mark read | A mark all read | r refresh | ? help"
	case ScreenSettings:
		return "L logout | r refresh | ? help"
	}
	return "q quit | ? help"
}

func screenTitle(s Screen) string {
	switch s {
	case ScreenHome:
		return "Home"
	case ScreenTrips:
		return "My Trips"
	case ScreenRequests:
		return "My Requests"
	case ScreenMatches:
		return "Matches"
	case ScreenMessages:
		return "Messages"
	case ScreenNotifications:
		return "Notifications"
	case ScreenSettings:
		return "Settings"
	}
	return "Sign in"
}
