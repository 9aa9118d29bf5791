// Package pagedlist is a server-paged list view shared by the trip,
// request and match screens.
package pagedlist

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/ui"
)

// Fetch loads one page.
type Fetch[T any] func(ctx context.Context, p model.PageRequest) (*model.Page[T], error)

// Renderer draws one row. It may return several lines; the list's row
// height is fixed at construction.
type Renderer[T any] func(item T, selected bool) string

// LoadedMsg carries a fetched page back to the list that asked for it.
type LoadedMsg[T any] struct {
	ListID string
	Seq    int
	Page   *model.Page[T]
	Err    error
}

type row[T any] struct {
	value T
}

// FilterValue is unused; filtering happens server-side.
func (r row[T]) FilterValue() string { return "" }

type delegate[T any] struct {
	render Renderer[T]
	lines  int
}

func (d delegate[T]) Height() int                             { return d.lines }
func (d delegate[T]) Spacing() int                            { return 1 }
func (d delegate[T]) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d delegate[T]) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row[T])
	if !ok {
		return
	}
	selected := index == m.Index()
	line := d.render(r.value, selected)
	if selected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model is a list backed by a paged endpoint.
type Model[T any] struct {
	id       string
	title    string
	empty    string
	fetch    Fetch[T]
	keys     *keys.KeyMap
	list     list.Model
	items    []T
	pageSize int
	page     int
	lastPage int
	total    int
	seq      int
	loading  bool
	err      error
	width    int
	height   int
}

// Options configures a list.
type Options[T any] struct {
	// ID distinguishes lists of the same item type.
	ID       string
	Title    string
	Empty    string
	PageSize int
	Lines    int
	Fetch    Fetch[T]
	Render   Renderer[T]
}

// New creates a list on page 1. Nothing is fetched until Load.
func New[T any](opts Options[T], k *keys.KeyMap, width, height int) Model[T] {
	if opts.Lines <= 0 {
		opts.Lines = 1
	}
	l := list.New([]list.Item{}, delegate[T]{render: opts.Render, lines: opts.Lines}, width, height-3)
	l.Title = opts.Title
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	l.Styles.Title = theme.HeaderStyle

	return Model[T]{
		id:       opts.ID,
		title:    opts.Title,
		empty:    opts.Empty,
		fetch:    opts.Fetch,
		keys:     k,
		list:     l,
		pageSize: opts.PageSize,
		page:     1,
		lastPage: 1,
		width:    width,
		height:   height,
	}
}

// Load fetches the current page. Responses to earlier loads are ignored.
func (m *Model[T]) Load() tea.Cmd {
	m.seq++
	m.loading = true

	id, seq, fetch := m.id, m.seq, m.fetch
	req := model.PageRequest{Page: m.page, Limit: m.pageSize}
	return func() tea.Msg {
		page, err := fetch(context.Background(), req)
		return LoadedMsg[T]{ListID: id, Seq: seq, Page: page, Err: err}
	}
}

// SetFetch swaps the data source (e.g. a new filter) and returns to page 1.
func (m *Model[T]) SetFetch(f Fetch[T]) tea.Cmd {
	m.fetch = f
	m.page = 1
	return m.Load()
}

// Update handles messages for the list.
func (m Model[T]) Update(msg tea.Msg) (Model[T], tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg[T]:
		if msg.ListID != m.id || msg.Seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		return m, m.setPage(msg.Page)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.NextPage):
			if m.page < m.lastPage && !m.loading {
				m.page++
				return m, m.Load()
			}
			return m, nil
		case key.Matches(msg, m.keys.PrevPage):
			if m.page > 1 && !m.loading {
				m.page--
				return m, m.Load()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model[T]) setPage(p *model.Page[T]) tea.Cmd {
	if p == nil {
		p = &model.Page[T]{}
	}
	m.items = p.Data
	m.total = p.Total
	m.lastPage = p.LastPage
	if m.lastPage < 1 {
		m.lastPage = 1
	}
	if p.Page > 0 {
		m.page = p.Page
	}

	rows := make([]list.Item, len(p.Data))
	for i, v := range p.Data {
		rows[i] = row[T]{value: v}
	}
	return m.list.SetItems(rows)
}

// Replace swaps the first item for which match returns true.
func (m *Model[T]) Replace(match func(T) bool, v T) tea.Cmd {
	for i := range m.items {
		if match(m.items[i]) {
			m.items[i] = v
			return m.list.SetItem(i, row[T]{value: v})
		}
	}
	return nil
}

// Selected returns the highlighted item.
func (m Model[T]) Selected() (T, bool) {
	r, ok := m.list.SelectedItem().(row[T])
	if !ok {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Items returns the current page's items.
func (m Model[T]) Items() []T { return m.items }

// Page returns the current page number.
func (m Model[T]) Page() int { return m.page }

// LastPage returns the last page number reported by the server.
func (m Model[T]) LastPage() int { return m.lastPage }

// Loading reports whether a fetch is in flight.
func (m Model[T]) Loading() bool { return m.loading }

// Err returns the last load error.
func (m Model[T]) Err() error { return m.err }

// View renders the list with its pager.
func (m Model[T]) View() string {
	if m.loading && len(m.items) == 0 {
		return ui.Centered(m.width, m.height, "Loading "+strings.ToLower(m.title)+"...")
	}
	if m.err != nil && len(m.items) == 0 {
		return ui.Centered(m.width, m.height,
			theme.ErrorStyle.Render(apperr.Message(m.err))+"\n\nPress r to retry.")
	}
	if len(m.items) == 0 {
		return ui.Centered(m.width, m.height, m.empty)
	}

	footer := ui.Pager(m.page, m.lastPage)
	if m.total > 0 {
		footer += theme.DimmedStyle.Render(fmt.Sprintf("  (%d total)", m.total))
	}
	if m.err != nil {
		footer += "  " + theme.ErrorStyle.Render(apperr.Message(m.err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), footer)
}

// SetSize updates the list dimensions.
func (m *Model[T]) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-3)
}
