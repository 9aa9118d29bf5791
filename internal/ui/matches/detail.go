package matches

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/match"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
)

// DetailBackMsg signals the list to take over again.
type DetailBackMsg struct{}

// Detail is the match detail screen. It works on its own copy of the
// match, tracked by its own reconciler.
type Detail struct {
	rec      *match.Reconciler
	keys     *keys.KeyMap
	logger   *slog.Logger
	id       model.ID
	viewport viewport.Model
	notice   string
	failed   bool
	width    int
	height   int
}

// NewDetail creates an empty detail screen.
func NewDetail(a match.API, role model.Role, k *keys.KeyMap, logger *slog.Logger, width, height int) Detail {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Detail{
		rec:      match.New(a, role, logger),
		keys:     k,
		logger:   logger,
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Open shows a copy of m.
func (d *Detail) Open(m model.Match) tea.Cmd {
	d.rec.Track(m)
	d.id = m.ID
	d.notice = ""
	d.failed = false
	d.refresh()
	d.viewport.GotoTop()
	return nil
}

// Current returns the displayed match.
func (d Detail) Current() (model.Match, bool) {
	return d.rec.Match(d.id)
}

// Update handles messages for the detail screen.
func (d Detail) Update(msg tea.Msg) (Detail, tea.Cmd) {
	switch msg := msg.(type) {
	case decisionMsg:
		if msg.id != d.id {
			return d, nil
		}
		d.failed = msg.err != nil
		if d.failed {
			d.notice = apperr.Message(msg.err)
		} else {
			d.notice = "Match status updated."
		}
		d.refresh()
		return d, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Back):
			return d, func() tea.Msg { return DetailBackMsg{} }
		case key.Matches(msg, d.keys.Accept):
			return d, d.decide(model.DecisionAccept)
		case key.Matches(msg, d.keys.Reject):
			return d, d.decide(model.DecisionReject)
		case key.Matches(msg, d.keys.Chat):
			m, ok := d.Current()
			if ok && m.Status.Normalize() == model.MatchAccepted {
				id := m.ID
				return d, func() tea.Msg { return OpenChatMsg{MatchID: id} }
			}
			return d, nil
		}
	}

	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return d, cmd
}

func (d *Detail) decide(dec model.Decision) tea.Cmd {
	if d.rec.Updating(d.id) {
		d.notice = "Update already in progress..."
		d.failed = false
		d.refresh()
		return nil
	}
	if !d.rec.NeedsAction(d.id) {
		return nil
	}
	d.notice = ""
	d.failed = false
	d.refresh()
	return submit(d.rec, d.id, dec, true)
}

func (d *Detail) refresh() {
	d.viewport.SetContent(d.render())
}

// View renders the detail screen.
func (d Detail) View() string {
	if _, ok := d.Current(); !ok {
		return ui.Centered(d.width, d.height, "Match not found.")
	}
	return d.viewport.View()
}

func (d Detail) render() string {
	m, ok := d.Current()
	if !ok {
		return ""
	}

	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(16)
	section := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginTop(1)
	row := func(k, v string) string {
		if v == "" {
			v = "-"
		}
		return label.Render(k) + v
	}

	badge := theme.MatchStatusStyle(string(m.Status.Normalize())).Render(strings.ToUpper(m.Status.Label()))
	lines := []string{
		theme.TitleStyle.Render(fmt.Sprintf("Match #%s", m.ID)) + "  " + badge,
		theme.DimmedStyle.Render(match.Description(m)),
	}

	if t := m.Trip; t != nil {
		lines = append(lines,
			section.Render("Trip"),
			row("From", t.Origin().String()),
			row("To", t.Destination().String()),
			row("Departure", ui.FormatDate(t.DepartureDate)),
		)
		if t.ReturnDate != nil {
			lines = append(lines, row("Return", ui.FormatDate(*t.ReturnDate)))
		}
		lines = append(lines, row("Space", t.AvailableLuggageSpace.String()))
		if t.Notes != "" {
			lines = append(lines, row("Notes", t.Notes))
		}
	}

	if r := m.ItemRequest; r != nil {
		lines = append(lines,
			section.Render("Item request"),
			row("Item", r.ItemName),
			row("Pickup", r.Origin().String()),
			row("Delivery", r.Destination().String()),
			row("Deliver by", ui.FormatDate(r.DesiredDeliveryDate)),
		)
		if r.Notes != "" {
			lines = append(lines, row("Notes", r.Notes))
		}
	}

	lines = append(lines,
		section.Render("Agreement"),
		row("Weight", m.Weight().String()),
	)
	if !m.CreatedAt.IsZero() {
		lines = append(lines, row("Matched", m.CreatedAt.Local().Format("Jan 2, 2006 15:04")))
	}

	var actions []string
	switch {
	case d.rec.Updating(m.ID):
		actions = append(actions, "updating...")
	case d.rec.NeedsAction(m.ID):
		actions = append(actions, "a accept", "x decline")
	}
	if m.Status.Normalize() == model.MatchAccepted {
		actions = append(actions, "m message shipping partner")
	}
	actions = append(actions, "esc back")

	lines = append(lines, "")
	if d.notice != "" {
		style := theme.SuccessStyle
		if d.failed {
			style = theme.ErrorStyle
		}
		lines = append(lines, style.Render(d.notice))
	}
	lines = append(lines, theme.HelpStyle.Render(strings.Join(actions, " · ")))

	return theme.DetailPanelStyle.Width(min(d.width-2, 90)).Render(
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
}

// SetSize updates the detail dimensions.
func (d *Detail) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.viewport.Width = width
	d.viewport.Height = height - 2
	d.refresh()
}
