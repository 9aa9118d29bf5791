// Package requests implements the requester's "My Requests" list and the
// "Post Request" form.
package requests

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

// PageSize is the number of requests per page.
const PageSize = 5

// MsgPosted is flashed after a request is created.
const MsgPosted = "Request posted successfully!"

// API is the subset of the backend used by this screen.
type API interface {
	MyItemRequests(ctx context.Context, p model.PageRequest) (*model.Page[model.ItemRequest], error)
	CreateItemRequest(ctx context.Context, req model.NewItemRequest) (*model.ItemRequest, error)
}

// Places is the location catalogue plus the recent-location history.
type Places interface {
	locpicker.Catalogue
	RememberLocation(ctx context.Context, loc model.Location) error
}

// ShowMatchesMsg asks the app to open the match list filtered by a request.
type ShowMatchesMsg struct {
	ItemRequestID model.ID
}

type createdMsg struct {
	input model.NewItemRequest
	err   error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	itemName string
	weight   string
	pickup   locpicker.Selection
	delivery locpicker.Selection
	deadline string
	notes    string
}

// Model is the requests screen.
type Model struct {
	api        API
	places     Places
	picker     *locpicker.Picker
	validator  *validate.Validator
	keys       *keys.KeyMap
	logger     *slog.Logger
	list       pagedlist.Model[model.ItemRequest]
	inForm     bool
	form       *huh.Form
	fb         *formBindings
	formErr    string
	submitting bool
	flash      string
	width      int
	height     int
}

// New creates the requests screen.
func New(a API, places Places, v *validate.Validator, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	list := pagedlist.New(pagedlist.Options[model.ItemRequest]{
		ID:       "requests",
		Title:    "My Requests",
		Empty:    "You haven't posted any item requests yet.\n\nPress n to post one.",
		PageSize: PageSize,
		Lines:    2,
		Fetch:    a.MyItemRequests,
		Render:   renderRequest,
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
	m.inForm = false
	return m.list.Load()
}

// InForm reports whether the post form is open.
func (m Model) InForm() bool {
	return m.inForm
}

// StartCreate opens an empty post form.
func (m *Model) StartCreate() tea.Cmd {
	m.inForm = true
	m.formErr = ""
	m.flash = ""
	m.submitting = false
	*m.fb = formBindings{}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the requests screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if res, ok := msg.(createdMsg); ok {
		return m.handleCreated(res)
	}
	if m.inForm {
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
			if r, ok := m.list.Selected(); ok {
				id := r.ID
				return m, func() tea.Msg { return ShowMatchesMsg{ItemRequestID: id} }
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
		m.inForm = false
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
		_, err := api.CreateItemRequest(context.Background(), input)
		return createdMsg{input: input, err: err}
	}
}

func (m Model) handleCreated(res createdMsg) (Model, tea.Cmd) {
	m.submitting = false
	if res.err != nil {
		m.logger.Warn("posting item request failed", slog.Any("error", res.err))
		m.formErr = apperr.Message(res.err)
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	m.inForm = false
	m.form = nil
	m.flash = MsgPosted

	places, logger := m.places, m.logger
	locs := []model.Location{
		{Country: res.input.FromCountry, State: res.input.FromState, City: res.input.FromCity},
		{Country: res.input.ToCountry, State: res.input.ToState, City: res.input.ToCity},
	}
	remember := func() tea.Msg {
		for _, loc := range locs {
			if err := places.RememberLocation(context.Background(), loc); err != nil {
				logger.Debug("remembering location", slog.Any("error", err))
			}
		}
		return nil
	}
	return m, tea.Batch(m.list.Load(), remember)
}

func (m Model) input() (model.NewItemRequest, error) {
	fb := m.fb
	fb.pickup.Sync()
	fb.delivery.Sync()

	in := model.NewItemRequest{
		ItemName:            strings.TrimSpace(fb.itemName),
		FromCountry:         fb.pickup.Country,
		FromState:           fb.pickup.State,
		FromCity:            fb.pickup.City,
		ToCountry:           fb.delivery.Country,
		ToState:             fb.delivery.State,
		ToCity:              fb.delivery.City,
		DesiredDeliveryDate: strings.TrimSpace(fb.deadline),
		Notes:               strings.TrimSpace(fb.notes),
	}

	weight := strings.TrimSpace(fb.weight)
	if weight == "" {
		return in, &apperr.ValidationError{Field: "weightKg", Message: validate.MsgFillAllFields}
	}
	kg, err := strconv.ParseFloat(weight, 64)
	if err != nil {
		return in, &apperr.ValidationError{Field: "weightKg", Message: "Weight must be a number"}
	}
	in.WeightKg = kg
	return in, nil
}

func (m *Model) buildForm() *huh.Form {
	item := []huh.Field{
		huh.NewInput().
			Title("Item name").
			Placeholder("e.g. Documents, laptop, gift box").
			Value(&m.fb.itemName),
		huh.NewInput().
			Title("Weight (kg)").
			Placeholder("e.g. 2.5").
			Value(&m.fb.weight),
	}
	schedule := []huh.Field{
		huh.NewInput().
			Title("Desired delivery date").
			Placeholder("YYYY-MM-DD").
			Value(&m.fb.deadline),
		huh.NewText().
			Title("Additional notes").
			Placeholder("Fragile? Special handling?").
			Value(&m.fb.notes),
	}

	return huh.NewForm(
		huh.NewGroup(item...).Title("Item"),
		huh.NewGroup(m.picker.Fields("Pickup", &m.fb.pickup)...).Title("Pickup"),
		huh.NewGroup(m.picker.Fields("Delivery", &m.fb.delivery)...).Title("Delivery"),
		huh.NewGroup(schedule...).Title("Schedule"),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// View renders the list or the form.
func (m Model) View() string {
	if m.inForm {
		if m.form == nil {
			return ""
		}
		content := theme.TitleStyle.Render("Post an Item Request") + "\n"
		if m.formErr != "" {
			content += theme.ErrorStyle.Render(m.formErr) + "\n\n"
		}
		if m.submitting {
			content += theme.DimmedStyle.Render("Submitting request...") + "\n"
		}
		content += m.form.View()
		return lipgloss.NewStyle().Padding(1, 2).Render(content)
	}

	if m.flash == "" {
		return m.list.View()
	}
	return theme.SuccessStyle.Render(m.flash) + "\n" + m.list.View()
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-6, 10)
}

func renderRequest(r model.ItemRequest, _ bool) string {
	title := r.ItemName
	if r.Quantity > 1 {
		title = fmt.Sprintf("%s ×%d", title, r.Quantity)
	}
	title += "  " + theme.DimmedStyle.Render(r.WeightKg.String())

	route := fmt.Sprintf("%s → %s", r.FromCity, r.ToCity)
	desc := route + " · deliver by " + ui.FormatDate(r.DesiredDeliveryDate)

	matches := ui.Plural(r.PotentialMatches, "potential match", "potential matches")
	if r.PotentialMatches > 0 {
		matches = theme.SuccessStyle.Render(matches)
	} else {
		matches = theme.DimmedStyle.Render(matches)
	}
	return title + "  " + matches + "\n" + theme.DimmedStyle.Render(desc)
}
