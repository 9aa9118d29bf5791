// Package help renders the keyboard shortcut overlay.
package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	role   model.Role
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetRole tailors the handshake explanation to the signed-in user.
func (m *Model) SetRole(role model.Role) {
	m.role = role
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	m.help.Width = m.width - 4
	m.help.ShowAll = true

	other := "the other party"
	switch m.role {
	case model.RoleCarrier:
		other = "the requester"
	case model.RoleRequester:
		other = "the carrier"
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.TitleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		theme.TitleStyle.Render("How matches work"),
		theme.DimmedStyle.Render("A match is confirmed once you and "+other+" both accept it."),
		theme.DimmedStyle.Render("Either side can decline while the match is still open."),
		theme.DimmedStyle.Render("Confirmed matches unlock chat with your shipping partner."),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
