package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down     key.Binding
	Up       key.Binding
	NextPage key.Binding
	PrevPage key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Screens
	Home          key.Binding
	Trips         key.Binding
	Requests      key.Binding
	Matches       key.Binding
	Messages      key.Binding
	Notifications key.Binding
	Settings      key.Binding

	// Actions
	New         key.Binding
	Accept      key.Binding
	Reject      key.Binding
	Chat        key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Logout      key.Binding

	// Match list filters
	CycleStatus key.Binding
	CycleScope  key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "right"),
			key.WithHelp("]/→", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "left"),
			key.WithHelp("[/←", "previous page"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Home: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "home"),
		),
		Trips: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "my trips"),
		),
		Requests: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "my requests"),
		),
		Matches: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "matches"),
		),
		Messages: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "messages"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("6"),
			key.WithHelp("6", "notifications"),
		),
		Settings: key.NewBinding(
			key.WithKeys("7"),
			key.WithHelp("7", "settings"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Accept: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "accept"),
		),
		Reject: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "decline"),
		),
		Chat: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "message partner"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
		CycleStatus: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle status filter"),
		),
		CycleScope: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle trip/request filter"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Command,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPage, k.PrevPage, k.Select, k.Back, k.Quit},
		{k.Home, k.Trips, k.Requests, k.Matches, k.Messages, k.Notifications, k.Settings},
		{k.Search, k.Command, k.Help, k.Refresh, k.New},
		{k.Accept, k.Reject, k.Chat, k.CycleStatus, k.CycleScope},
		{k.MarkRead, k.MarkAllRead, k.Logout},
	}
}
