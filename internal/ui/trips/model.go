// Package trips implements the carrier's "My Trips" list and the
// "Post Trip" form.
package trips

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
	"github.com/dconnect/courier/internal/ui/locpicker"
	"github.com/dconnect/courier/internal/ui/pagedlist"
	"github.com/dconnect/courier/internal/validate"
)

// PageSize is the number of trips per page.
const PageSize = 5

// MsgPosted is flashed after a trip is created.
const MsgPosted = "Trip posted successfully! We'll notify you of any matches."

// API is the subset of the backend used by this screen.
type API interface {
	MyTrips(ctx context.Context, p model.PageRequest) (*model.Page[model.Trip], error)
	CreateTrip(ctx context.Context, trip model.NewTrip) (*model.Trip, error)
}

// Places is the location catalogue plus the recent-location history.
type Places interface {
	locpicker.Catalogue
	RememberLocation(ctx context.Context, loc model.Location) error
}

// ShowMatchesMsg asks the app to open the match list filtered by a trip.
type ShowMatchesMsg struct {
	TripID model.ID
}

type createdMsg struct {
	input model.NewTrip
	err   error
}

type mode int

const (
	modeList mode = iota
	modeForm
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	origin      locpicker.Selection
	destination locpicker.Selection
	departure   string
	returnDate  string
	space       string
	notes       string
}

// Model is the trips screen.
type Model struct {
	api        API
	places     Places
	picker     *locpicker.Picker
	validator  *validate.Validator
	keys       *keys.KeyMap
	logger     *slog.Logger
	list       pagedlist.Model[model.Trip]
	mode       mode
	form       *huh.Form
	fb         *formBindings
	formErr    string
	submitting bool
	flash      string
	width      int
	height     int
}

// New creates the trips screen.
func New(a API, places Places, v *validate.Validator, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	list := pagedlist.New(pagedlist.Options[model.Trip]{
		ID:       "trips",
		Title:    "My Trips",
		Empty:    "You haven't posted any trips yet.\n\nPress n to post your first trip.",
		PageSize: PageSize,
		Lines:    2,
		Fetch:    a.MyTrips,
		Render:   renderTrip,
	}, k, width, height)

	return Model{
		api:       a,
		places:    places,
		picker:    locpicker.New(places, logger),
		validator: v,
		keys:      k,
		logger:    logger,
		list:      list,
		fb:        &formBindings{},
		width:     width,
		height:    height,
	}
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	m.mode = modeList
	return m.list.Load()
}

// InForm reports whether the post form is open, so global keys stay off.
func (m Model) InForm() bool {
	return m.mode == modeForm
}

// StartCreate opens an empty post form.
func (m *Model) StartCreate() tea.Cmd {
	m.mode = modeForm
	m.formErr = ""
	m.flash = ""
	m.submitting = false
	*m.fb = formBindings{}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the trips screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if res, ok := msg.(createdMsg); ok {
		return m.handleCreated(res)
	}

	if m.mode == modeForm {
		return m.updateForm(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, m.keys.New):
			return m, m.StartCreate()
		case key.Matches(km, m.keys.Refresh):
			m.flash = ""
			return m, m.list.Load()
		case key.Matches(km, m.keys.Select):
			if t, ok := m.list.Selected(); ok {
				id := t.ID
				return m, func() tea.Msg { return ShowMatchesMsg{TripID: id} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submit()
	case huh.StateAborted:
		m.mode = modeList
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	input, err := m.input()
	if err == nil {
		err = m.validator.Struct(&input)
	}
	if err != nil {
		m.formErr = apperr.Message(err)
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	m.formErr = ""
	m.submitting = true
	api := m.api
	return m, func() tea.Msg {
		_, err := api.CreateTrip(context.Background(), input)
		return createdMsg{input: input, err: err}
	}
}

func (m Model) handleCreated(res createdMsg) (Model, tea.Cmd) {
	m.submitting = false
	if res.err != nil {
		m.logger.Warn("posting trip failed", slog.Any("error", res.err))
		m.formErr = apperr.Message(res.err)
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	m.mode = modeList
	m.form = nil
	m.flash = MsgPosted
	return m, tea.Batch(m.list.Load(), m.remember(res.input))
}

// remember records both ends of a posted trip for the recent-location
// shortcut.
func (m Model) remember(in model.NewTrip) tea.Cmd {
	places, logger := m.places, m.logger
	locs := []model.Location{
		{Country: in.FromCountry, State: in.FromState, City: in.FromCity},
		{Country: in.ToCountry, State: in.ToState, City: in.ToCity},
	}
	return func() tea.Msg {
		for _, loc := range locs {
			if err := places.RememberLocation(context.Background(), loc); err != nil {
				logger.Debug("remembering location", slog.Any("error", err))
			}
		}
		return nil
	}
}

// input converts the bound form values into the request payload.
func (m Model) input() (model.NewTrip, error) {
	fb := m.fb
	fb.origin.Sync()
	fb.destination.Sync()

	in := model.NewTrip{
		FromCountry:   fb.origin.Country,
		FromState:     fb.origin.State,
		FromCity:      fb.origin.City,
		ToCountry:     fb.destination.Country,
		ToState:       fb.destination.State,
		ToCity:        fb.destination.City,
		DepartureDate: strings.TrimSpace(fb.departure),
		Notes:         strings.TrimSpace(fb.notes),
	}
	if r := strings.TrimSpace(fb.returnDate); r != "" {
		in.ReturnDate = &r
	}

	space := strings.TrimSpace(fb.space)
	if space == "" {
		return in, &apperr.ValidationError{Field: "availableLuggageSpace", Message: validate.MsgFillAllFields}
	}
	kg, err := strconv.ParseFloat(space, 64)
	if err != nil {
		return in, &apperr.ValidationError{Field: "availableLuggageSpace", Message: "Available space must be a number"}
	}
	in.AvailableLuggageSpace = kg
	return in, nil
}

func (m *Model) buildForm() *huh.Form {
	details := []huh.Field{
		huh.NewInput().
			Title("Departure date").
			Placeholder("YYYY-MM-DD").
			Value(&m.fb.departure),
		huh.NewInput().
			Title("Return date").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&m.fb.returnDate),
		huh.NewInput().
			Title("Available luggage space (kg)").
			Placeholder("e.g. 10").
			Value(&m.fb.space),
		huh.NewText().
			Title("Additional notes").
			Placeholder("Any restrictions or details for requesters...").
			Value(&m.fb.notes),
	}

	return huh.NewForm(
		huh.NewGroup(m.picker.Fields("Origin", &m.fb.origin)...).Title("From"),
		huh.NewGroup(m.picker.Fields("Destination", &m.fb.destination)...).Title("To"),
		huh.NewGroup(details...).Title("Trip details"),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// View renders the list or the form.
func (m Model) View() string {
	if m.mode == modeForm {
		return m.formView()
	}

	var b strings.Builder
	if m.flash != "" {
		b.WriteString(theme.SuccessStyle.Render(m.flash))
		b.WriteString("\n")
	}
	b.WriteString(m.list.View())
	return b.String()
}

func (m Model) formView() string {
	if m.form == nil {
		return ""
	}
	content := theme.TitleStyle.Render("Post a Trip") + "\n"
	if m.formErr != "" {
		content += theme.ErrorStyle.Render(m.formErr) + "\n\n"
	}
	if m.submitting {
		content += theme.DimmedStyle.Render("Posting trip...") + "\n"
	}
	content += m.form.View()
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 10 {
		h = 10
	}
	return h
}

func renderTrip(t model.Trip, _ bool) string {
	title := fmt.Sprintf("%s → %s", orDash(t.FromCity), orDash(t.ToCity))

	parts := []string{"Departs " + ui.FormatDate(t.DepartureDate)}
	if t.ReturnDate != nil && *t.ReturnDate != "" {
		parts = append(parts, "returns "+ui.FormatDate(*t.ReturnDate))
	}
	parts = append(parts, t.AvailableLuggageSpace.String()+" available")
	desc := theme.DimmedStyle.Render(strings.Join(parts, " · "))

	matches := theme.DimmedStyle.Render(ui.Plural(t.Matches, "match", "matches"))
	if t.Matches > 0 {
		matches = theme.SuccessStyle.Render(ui.Plural(t.Matches, "match", "matches"))
	}
	return title + "  " + matches + "\n" + desc
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
