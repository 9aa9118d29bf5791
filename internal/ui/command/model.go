// Package command implements the ":" command palette.
package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/theme"
)

// Commands lists what the palette understands; they double as completions.
var Commands = []string{
	"home",
	"trips",
	"post trip",
	"requests",
	"post request",
	"matches",
	"matches pending",
	"matches accepted",
	"matches rejected",
	"messages",
	"notifications",
	"mark all read",
	"settings",
	"refresh",
	"logout",
	"quit",
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command... (tab completes)"
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Commands)
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			cmd := strings.ToLower(strings.TrimSpace(m.input.Value()))
			m.input.Reset()
			if cmd == "" {
				return m, nil
			}
			m.err = ""
			return m, func() tea.Msg { return CommandMsg(cmd) }
		case tea.KeyEsc:
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// SetError shows err under the input, e.g. for an unknown command.
func (m *Model) SetError(err string) {
	m.err = err
}

// View renders the command palette.
func (m Model) View() string {
	lines := []string{theme.TitleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		lines = append(lines, theme.ErrorStyle.Render(m.err))
	}
	lines = append(lines, "", theme.DimmedStyle.Render(strings.Join(Commands, " · ")))

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
