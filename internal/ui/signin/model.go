// Package signin implements the login and registration screens.
package signin

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/auth"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/theme"
	"github.com/dconnect/courier/internal/validate"
)

// MsgRegistered is shown on the login screen after a successful sign-up.
const MsgRegistered = "Registration successful! Please log in."

// Authenticator performs the sign-in and sign-up calls.
type Authenticator interface {
	Login(ctx context.Context, form validate.Login) (model.User, error)
	DemoLogin(ctx context.Context, email string) (model.User, error)
	Register(ctx context.Context, form validate.Register) error
}

// LoggedInMsg reports a successful sign-in; the session is already active.
type LoggedInMsg struct {
	User model.User
}

type loginResultMsg struct {
	user model.User
	err  error
}

type registerResultMsg struct {
	email string
	err   error
}

const (
	choiceEmail         = "email"
	choiceDemoCarrier   = "demo-carrier"
	choiceDemoRequester = "demo-requester"
	choiceRegister      = "register"
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	choice string
	login  validate.Login
	reg    validate.Register
	role   string
}

// Model is the sign-in screen.
type Model struct {
	auth     Authenticator
	logger   *slog.Logger
	form     *huh.Form
	fb       *formBindings
	register bool
	busy     bool
	err      string
	notice   string
	width    int
	height   int
}

// New creates the sign-in screen.
func New(a Authenticator, logger *slog.Logger, width, height int) Model {
	return Model{
		auth:   a,
		logger: logger,
		fb:     &formBindings{choice: choiceEmail, role: string(model.RoleCarrier)},
		width:  width,
		height: height,
	}
}

// Init shows the login form.
func (m *Model) Init() tea.Cmd {
	return m.showLogin()
}

// Expired shows the login form with a notice that the session ended.
func (m *Model) Expired() tea.Cmd {
	cmd := m.showLogin()
	m.notice = "Your session has ended. Please sign in again."
	return cmd
}

func (m *Model) showLogin() tea.Cmd {
	m.register = false
	m.busy = false
	m.err = ""
	m.notice = ""
	m.fb.choice = choiceEmail
	m.fb.login.Password = ""
	m.form = m.buildLoginForm()
	return m.form.Init()
}

func (m *Model) showRegister() tea.Cmd {
	m.register = true
	m.busy = false
	m.err = ""
	m.notice = ""
	m.fb.reg = validate.Register{}
	m.fb.role = string(model.RoleCarrier)
	m.form = m.buildRegisterForm()
	return m.form.Init()
}

// Update handles messages for the sign-in screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Debug("login failed", slog.Any("error", msg.err))
			m.err = apperr.Message(msg.err)
			m.fb.login.Password = ""
			m.form = m.buildLoginForm()
			return m, m.form.Init()
		}
		user := msg.user
		return m, func() tea.Msg { return LoggedInMsg{User: user} }

	case registerResultMsg:
		m.busy = false
		if msg.err != nil {
			m.err = apperr.Message(msg.err)
			m.form = m.buildRegisterForm()
			return m, m.form.Init()
		}
		m.fb.login.Email = msg.email
		cmd := m.showLogin()
		m.notice = MsgRegistered
		return m, cmd
	}

	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if m.register {
			return m.submitRegister()
		}
		return m.submitLogin()
	case huh.StateAborted:
		if m.register {
			return m, m.showLogin()
		}
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) submitLogin() (Model, tea.Cmd) {
	a := m.auth
	switch m.fb.choice {
	case choiceRegister:
		return m, m.showRegister()
	case choiceDemoCarrier, choiceDemoRequester:
		email := auth.DemoCarrierEmail
		if m.fb.choice == choiceDemoRequester {
			email = auth.DemoRequesterEmail
		}
		m.busy = true
		return m, func() tea.Msg {
			u, err := a.DemoLogin(context.Background(), email)
			return loginResultMsg{user: u, err: err}
		}
	default:
		form := m.fb.login
		m.busy = true
		return m, func() tea.Msg {
			u, err := a.Login(context.Background(), form)
			return loginResultMsg{user: u, err: err}
		}
	}
}

func (m Model) submitRegister() (Model, tea.Cmd) {
	form := m.fb.reg
	form.Role = model.Role(m.fb.role)
	a := m.auth
	m.busy = true
	return m, func() tea.Msg {
		err := a.Register(context.Background(), form)
		return registerResultMsg{email: form.Email, err: err}
	}
}

func (m *Model) buildLoginForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Sign in").
				Options(
					huh.NewOption("With email and password", choiceEmail),
					huh.NewOption("Demo carrier ("+auth.DemoCarrierEmail+")", choiceDemoCarrier),
					huh.NewOption("Demo requester ("+auth.DemoRequesterEmail+")", choiceDemoRequester),
					huh.NewOption("Create a new account", choiceRegister),
				).
				Value(&fb.choice),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&fb.login.Email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.login.Password),
		).WithHideFunc(func() bool { return fb.choice != choiceEmail }),
	).WithWidth(m.formWidth())
}

func (m *Model) buildRegisterForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Full name").Value(&fb.reg.FullName),
			huh.NewInput().Title("Email").Value(&fb.reg.Email),
			huh.NewInput().Title("Phone").Value(&fb.reg.Phone),
			huh.NewSelect[string]().
				Title("I want to").
				Options(
					huh.NewOption("Carry items on my trips (carrier)", string(model.RoleCarrier)),
					huh.NewOption("Send items with travelers (requester)", string(model.RoleRequester)),
				).
				Value(&fb.role),
			huh.NewInput().
				Title("Password").
				Description("At least 6 characters").
				EchoMode(huh.EchoModePassword).
				Value(&fb.reg.Password),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.reg.ConfirmPassword),
		),
	).WithWidth(m.formWidth())
}

// View renders the active form.
func (m Model) View() string {
	brand := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Render("Dconnect")
	title := "Sign in to your account"
	if m.register {
		title = "Create your account"
	}

	lines := []string{brand, theme.TitleStyle.Render(title)}
	if m.notice != "" {
		lines = append(lines, theme.SuccessStyle.Render(m.notice))
	}
	if m.err != "" {
		lines = append(lines, theme.ErrorStyle.Render(m.err))
	}
	if m.busy {
		lines = append(lines, theme.DimmedStyle.Render("Please wait..."))
	} else if m.form != nil {
		lines = append(lines, m.form.View())
	}

	box := theme.BorderStyle.Padding(1, 3).Width(m.formWidth() + 8).Render(
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-16, 30), 60)
}
