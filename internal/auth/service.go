// Package auth ties the login and register forms to the backend and the
// session store.
package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/dconnect/courier/internal/api"
	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/session"
	"github.com/dconnect/courier/internal/validate"
)

// DemoPassword is shared by the demo accounts offered on the login screen.
const DemoPassword = "demo123"

// Demo accounts, one per role.
const (
	DemoCarrierEmail   = "carrier@demo.com"
	DemoRequesterEmail = "requester@demo.com"
)

// API is the subset of the backend client used for authentication.
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	Profile(ctx context.Context) (*model.User, error)
}

// Service logs users in and out.
type Service struct {
	api       API
	session   *session.Store
	validator *validate.Validator
	logger    *slog.Logger
}

// NewService creates an authentication service.
func NewService(a API, sess *session.Store, v *validate.Validator, logger *slog.Logger) *Service {
	return &Service{api: a, session: sess, validator: v, logger: logger}
}

// Login validates the form, exchanges the credentials for a token and
// begins a session. A rejected login surfaces the server's message.
func (s *Service) Login(ctx context.Context, form validate.Login) (model.User, error) {
	if err := s.validator.Struct(form); err != nil {
		return model.User{}, err
	}

	resp, err := s.api.Login(ctx, api.LoginRequest{
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
	})
	if err != nil {
		// A 401 here means bad credentials, not an expired session.
		if apperr.IsAuth(err) {
			return model.User{}, &apperr.ValidationError{Field: "Password", Message: "Invalid email or password"}
		}
		return model.User{}, errors.Wrap(err, "logging in")
	}

	if err := s.session.Begin(resp.AccessToken, resp.User); err != nil {
		return model.User{}, errors.Wrap(err, "starting session")
	}

	s.logger.Info("logged in",
		slog.String("user_id", resp.User.ID),
		slog.String("role", string(resp.User.Role)),
	)
	return resp.User, nil
}

// DemoLogin signs in with one of the demo accounts.
func (s *Service) DemoLogin(ctx context.Context, email string) (model.User, error) {
	return s.Login(ctx, validate.Login{Email: email, Password: DemoPassword})
}

// Register validates the form and creates the account. The user logs in
// separately afterwards.
func (s *Service) Register(ctx context.Context, form validate.Register) error {
	if err := s.validator.Struct(form); err != nil {
		return err
	}

	first, last := model.SplitFullName(form.FullName)
	err := s.api.Register(ctx, api.RegisterRequest{
		Email:     strings.TrimSpace(form.Email),
		Password:  form.Password,
		FirstName: first,
		LastName:  last,
		Phone:     strings.TrimSpace(form.Phone),
		Role:      string(form.Role),
	})
	if err != nil {
		return errors.Wrap(err, "registering")
	}

	s.logger.Info("registered account", slog.String("role", string(form.Role)))
	return nil
}

// Profile refreshes the signed-in user's profile from the backend.
func (s *Service) Profile(ctx context.Context) (*model.User, error) {
	u, err := s.api.Profile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching profile")
	}
	return u, nil
}

// Logout ends the session. It reports false when no session was active.
func (s *Service) Logout() bool {
	return s.session.End()
}
