// Package matches implements the match list and the match detail screen.
package matches

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/match"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
	"github.com/dconnect/courier/internal/ui/pagedlist"
)

// PageSize is the number of matches per page.
const PageSize = 10

// filterOptionsLimit bounds the trips and requests offered as filters.
const filterOptionsLimit = 100

// API is the subset of the backend used by the match screens.
type API interface {
	match.API
	MyTrips(ctx context.Context, p model.PageRequest) (*model.Page[model.Trip], error)
	MyItemRequests(ctx context.Context, p model.PageRequest) (*model.Page[model.ItemRequest], error)
}

// OpenChatMsg asks the app to open the conversation of an accepted match.
type OpenChatMsg struct {
	MatchID model.ID
}

// Scope restricts the list to one trip or one item request.
type Scope struct {
	Label         string
	TripID        model.ID
	ItemRequestID model.ID
}

var allScope = Scope{Label: "All trips & requests"}

var statusFilters = []model.MatchStatus{
	"",
	model.MatchPending,
	model.MatchAccepted,
	model.MatchRejected,
}

type scopesLoadedMsg struct {
	scopes []Scope
	err    error
}

type decisionMsg struct {
	detail bool
	id     model.ID
	match  model.Match
	err    error
}

// Model is the match list screen; it owns the detail screen it opens.
type Model struct {
	api        API
	rec        *match.Reconciler
	keys       *keys.KeyMap
	logger     *slog.Logger
	list       pagedlist.Model[model.Match]
	statusIdx  int
	scopes     []Scope
	scopeIdx   int
	detail     Detail
	showDetail bool
	notice     string
	width      int
	height     int
}

// New creates the match list for a user acting with role.
func New(a API, role model.Role, k *keys.KeyMap, logger *slog.Logger, width, height int) Model {
	rec := match.New(a, role, logger)
	m := Model{
		api:    a,
		rec:    rec,
		keys:   k,
		logger: logger,
		scopes: []Scope{allScope},
		detail: NewDetail(a, role, k, logger, width, height),
		width:  width,
		height: height,
	}
	m.list = pagedlist.New(pagedlist.Options[model.Match]{
		ID:       "matches",
		Title:    "Matches",
		Empty:    "No matches found.",
		PageSize: PageSize,
		Lines:    2,
		Fetch:    m.fetch(),
		Render:   m.renderer(),
	}, k, width, height-2)
	return m
}

// Init loads the filter options and the first page.
func (m *Model) Init() tea.Cmd {
	m.showDetail = false
	m.notice = ""
	return tea.Batch(m.loadScopes(), m.list.Load())
}

// ShowTrip opens the list filtered by a trip.
func (m *Model) ShowTrip(id model.ID) tea.Cmd {
	return m.focus(Scope{Label: "Trip " + id.String(), TripID: id})
}

// ShowItemRequest opens the list filtered by an item request.
func (m *Model) ShowItemRequest(id model.ID) tea.Cmd {
	return m.focus(Scope{Label: "Request " + id.String(), ItemRequestID: id})
}

// ShowStatus opens the list filtered by status; "" shows all.
func (m *Model) ShowStatus(status model.MatchStatus) tea.Cmd {
	m.showDetail = false
	m.notice = ""
	for i, f := range statusFilters {
		if f == status {
			m.statusIdx = i
		}
	}
	return m.list.SetFetch(m.fetch())
}

func (m *Model) focus(s Scope) tea.Cmd {
	m.showDetail = false
	m.notice = ""
	m.statusIdx = 0
	m.scopeIdx = 0
	for i, existing := range m.scopes {
		if existing.TripID == s.TripID && existing.ItemRequestID == s.ItemRequestID {
			m.scopeIdx = i
			return tea.Batch(m.loadScopes(), m.list.SetFetch(m.fetch()))
		}
	}
	m.scopes = append(m.scopes, s)
	m.scopeIdx = len(m.scopes) - 1
	return tea.Batch(m.loadScopes(), m.list.SetFetch(m.fetch()))
}

// InDetail reports whether the detail screen is showing.
func (m Model) InDetail() bool {
	return m.showDetail
}

// Update handles messages for the match screens.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scopesLoadedMsg:
		if msg.err != nil {
			m.logger.Debug("loading match filter options", slog.Any("error", msg.err))
			return m, nil
		}
		current := m.scopes[m.scopeIdx]
		m.scopes = msg.scopes
		m.scopeIdx = 0
		for i, s := range m.scopes {
			if s.TripID == current.TripID && s.ItemRequestID == current.ItemRequestID {
				m.scopeIdx = i
			}
		}
		if m.scopeIdx == 0 && current != allScope {
			m.scopes = append(m.scopes, current)
			m.scopeIdx = len(m.scopes) - 1
		}
		return m, nil

	case decisionMsg:
		if msg.detail {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
		if msg.err != nil {
			m.notice = apperr.Message(msg.err)
			return m, nil
		}
		m.notice = ""
		id := msg.id
		return m, m.list.Replace(func(x model.Match) bool { return x.ID == id }, msg.match)

	case DetailBackMsg:
		m.showDetail = false
		return m, m.list.Load()
	}

	if m.showDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, m.keys.CycleStatus):
			m.statusIdx = (m.statusIdx + 1) % len(statusFilters)
			return m, m.list.SetFetch(m.fetch())
		case key.Matches(km, m.keys.CycleScope):
			m.scopeIdx = (m.scopeIdx + 1) % len(m.scopes)
			return m, m.list.SetFetch(m.fetch())
		case key.Matches(km, m.keys.Refresh):
			m.notice = ""
			return m, m.list.Load()
		case key.Matches(km, m.keys.Select):
			if sel, ok := m.list.Selected(); ok {
				m.showDetail = true
				return m, m.detail.Open(sel)
			}
			return m, nil
		case key.Matches(km, m.keys.Accept):
			return m, m.decide(model.DecisionAccept)
		case key.Matches(km, m.keys.Reject):
			return m, m.decide(model.DecisionReject)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// decide submits a decision for the highlighted match if the user still
// owes one.
func (m *Model) decide(d model.Decision) tea.Cmd {
	sel, ok := m.list.Selected()
	if !ok {
		return nil
	}
	if !m.rec.NeedsAction(sel.ID) {
		if m.rec.Updating(sel.ID) {
			m.notice = "Update already in progress..."
		}
		return nil
	}
	m.notice = ""
	return submit(m.rec, sel.ID, d, false)
}

func submit(rec *match.Reconciler, id model.ID, d model.Decision, detail bool) tea.Cmd {
	return func() tea.Msg {
		updated, err := rec.SubmitDecision(context.Background(), id, d)
		return decisionMsg{detail: detail, id: id, match: updated, err: err}
	}
}

// fetch returns the list's data source for the current filters. Results
// go through the reconciler so its copies match what is on screen.
func (m Model) fetch() pagedlist.Fetch[model.Match] {
	rec := m.rec
	status := statusFilters[m.statusIdx]
	scope := m.scopes[m.scopeIdx]
	return func(ctx context.Context, p model.PageRequest) (*model.Page[model.Match], error) {
		matches, err := rec.Load(ctx, model.MatchFilter{
			PageRequest:   p,
			Status:        status,
			TripID:        scope.TripID,
			ItemRequestID: scope.ItemRequestID,
		})
		if err != nil {
			return nil, err
		}
		return &model.Page[model.Match]{
			Data:     matches,
			Page:     p.Page,
			LastPage: rec.LastPage(),
		}, nil
	}
}

func (m Model) loadScopes() tea.Cmd {
	a := m.api
	return func() tea.Msg {
		var (
			trips    *model.Page[model.Trip]
			requests *model.Page[model.ItemRequest]
		)
		p := model.PageRequest{Page: 1, Limit: filterOptionsLimit}

		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			var err error
			trips, err = a.MyTrips(ctx, p)
			return err
		})
		g.Go(func() error {
			var err error
			requests, err = a.MyItemRequests(ctx, p)
			return err
		})
		if err := g.Wait(); err != nil {
			return scopesLoadedMsg{err: err}
		}

		scopes := []Scope{allScope}
		for _, t := range trips.Data {
			scopes = append(scopes, Scope{
				Label:  fmt.Sprintf("Trip: %s → %s (%s)", t.FromCity, t.ToCity, ui.FormatDate(t.DepartureDate)),
				TripID: t.ID,
			})
		}
		for _, r := range requests.Data {
			scopes = append(scopes, Scope{
				Label:         fmt.Sprintf("Request: %s (%s → %s)", r.ItemName, r.FromCity, r.ToCity),
				ItemRequestID: r.ID,
			})
		}
		return scopesLoadedMsg{scopes: scopes}
	}
}

func (m Model) renderer() pagedlist.Renderer[model.Match] {
	rec := m.rec
	return func(x model.Match, _ bool) string {
		from, to := x.Route()
		item := "Item"
		if x.ItemRequest != nil && x.ItemRequest.ItemName != "" {
			item = x.ItemRequest.ItemName
		}

		badge := theme.MatchStatusStyle(string(x.Status.Normalize())).Render(strings.ToUpper(x.Status.Label()))
		title := fmt.Sprintf("%s  %s → %s  %s", item, from, to, badge)

		var parts []string
		if x.Trip != nil && x.Trip.DepartureDate != "" {
			parts = append(parts, "departs "+ui.FormatDate(x.Trip.DepartureDate))
		}
		parts = append(parts, x.Weight().String())
		switch {
		case rec.Updating(x.ID):
			parts = append(parts, "updating...")
		case match.NeedsAction(x.Status, rec.Role()):
			parts = append(parts, "a accept · x decline")
		}
		return title + "\n" + theme.DimmedStyle.Render(strings.Join(parts, " · "))
	}
}

// View renders the list or the detail screen.
func (m Model) View() string {
	if m.showDetail {
		return m.detail.View()
	}

	status := "all"
	if s := statusFilters[m.statusIdx]; s != "" {
		status = string(s)
	}
	filters := theme.DimmedStyle.Render(fmt.Sprintf("status: %s (s) · %s (tab)", status, m.scopes[m.scopeIdx].Label))

	body := m.list.View()
	if len(m.list.Items()) == 0 && !m.list.Loading() && m.list.Err() == nil && statusFilters[m.statusIdx] != "" {
		body = ui.Centered(m.width, m.height-2,
			fmt.Sprintf("No matches with status %q. Try changing the filter.", status))
	}

	lines := []string{filters}
	if m.notice != "" {
		lines = append(lines, theme.ErrorStyle.Render(m.notice))
	} else {
		lines = append(lines, "")
	}
	lines = append(lines, body)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.detail.SetSize(width, height)
}
