package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/api"
	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/credential"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/session"
	"github.com/dconnect/courier/internal/validate"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*api.LoginResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) Register(ctx context.Context, req api.RegisterRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAPI) Profile(ctx context.Context) (*model.User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

// bearer returns the session's current credential.
func bearer(s *session.Store) string {
	token, _ := s.Credential()
	return token
}

func newService(a API) (*Service, *session.Store) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := session.New(credential.NewWithBackend(keyring.NewArrayKeyring(nil)), logger)
	return NewService(a, sess, validate.New(), logger), sess
}

func TestService_LoginBeginsSession(t *testing.T) {
	user := model.User{ID: "u-1", FirstName: "Ada", Role: model.RoleCarrier}
	a := &mockAPI{}
	a.On("Login", mock.Anything, api.LoginRequest{Email: "ada@example.com", Password: "secret1"}).
		Return(&api.LoginResponse{AccessToken: "tok", User: user}, nil)

	svc, sess := newService(a)
	got, err := svc.Login(context.Background(), validate.Login{Email: " ada@example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user, got)

	current, active := sess.User()
	assert.True(t, active)
	assert.Equal(t, user, current)
	assert.Equal(t, "tok", bearer(sess))
}

func TestService_LoginBlankFields(t *testing.T) {
	a := &mockAPI{}
	svc, sess := newService(a)

	_, err := svc.Login(context.Background(), validate.Login{Email: "ada@example.com"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, validate.MsgFillAllFields, apperr.Message(err))
	assert.False(t, sess.Active())
	a.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestService_LoginRejectedCredentials(t *testing.T) {
	a := &mockAPI{}
	a.On("Login", mock.Anything, mock.Anything).Return(nil, &apperr.AuthError{Method: "POST", Path: "/auth/login"})

	svc, sess := newService(a)
	_, err := svc.Login(context.Background(), validate.Login{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err), "bad credentials are not a session expiry")
	assert.Equal(t, "Invalid email or password", apperr.Message(err))
	assert.False(t, sess.Active())
}

func TestService_DemoLogin(t *testing.T) {
	a := &mockAPI{}
	a.On("Login", mock.Anything, api.LoginRequest{Email: DemoRequesterEmail, Password: DemoPassword}).
		Return(&api.LoginResponse{AccessToken: "tok", User: model.User{ID: "demo", Role: model.RoleRequester}}, nil)

	svc, _ := newService(a)
	u, err := svc.DemoLogin(context.Background(), DemoRequesterEmail)
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequester, u.Role)
	a.AssertExpectations(t)
}

func TestService_RegisterSplitsName(t *testing.T) {
	a := &mockAPI{}
	a.On("Register", mock.Anything, api.RegisterRequest{
		Email:     "grace@example.com",
		Password:  "secret1",
		FirstName: "Grace",
		LastName:  ".",
		Phone:     "+2348000000",
		Role:      "requester",
	}).Return(nil)

	svc, sess := newService(a)
	err := svc.Register(context.Background(), validate.Register{
		FullName:        "Grace",
		Email:           "grace@example.com",
		Phone:           " +2348000000 ",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            model.RoleRequester,
	})
	require.NoError(t, err)
	assert.False(t, sess.Active(), "registering does not sign in")
	a.AssertExpectations(t)
}

func TestService_RegisterPasswordMismatch(t *testing.T) {
	a := &mockAPI{}
	svc, _ := newService(a)

	err := svc.Register(context.Background(), validate.Register{
		FullName:        "Grace Hopper",
		Email:           "grace@example.com",
		Phone:           "1",
		Password:        "secret1",
		ConfirmPassword: "secret2",
		Role:            model.RoleCarrier,
	})
	require.Error(t, err)
	assert.Equal(t, "Passwords do not match", apperr.Message(err))
	a.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestService_Logout(t *testing.T) {
	a := &mockAPI{}
	a.On("Login", mock.Anything, mock.Anything).Return(&api.LoginResponse{AccessToken: "tok", User: model.User{ID: "u-1"}}, nil)

	svc, sess := newService(a)
	var reasons []session.Reason
	sess.OnInvalidate(func(r session.Reason) { reasons = append(reasons, r) })

	_, err := svc.Login(context.Background(), validate.Login{Email: "a@b.co", Password: "x"})
	require.NoError(t, err)

	assert.True(t, svc.Logout())
	assert.False(t, svc.Logout())
	assert.Equal(t, []session.Reason{session.ReasonLogout}, reasons)
}
