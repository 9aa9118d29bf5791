// Package session holds the authenticated identity and bearer credential.
//
// A single Store exists per process. It is written once at login (Begin),
// read by every outbound call, and destroyed exactly once, either by the
// logout path (End) or by the API client after the server rejects the
// credential (InvalidateIfCurrent).
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dconnect/courier/internal/credential"
	"github.com/dconnect/courier/internal/model"
)

// Persisted keys. They mirror the two browser storage keys used by the web
// client so a shared backend sees the same session shape.
const (
	KeyAccessToken = "access_token"
	KeyUser        = "user"
)

// Reason records why a session ended.
type Reason string

const (
	ReasonLogout       Reason = "logout"
	ReasonAuthRejected Reason = "auth_rejected"
	ReasonExpired      Reason = "expired"
	ReasonCorrupt      Reason = "corrupt"
)

// Persister is the durable storage behind the session.
type Persister interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store is the process-wide session.
type Store struct {
	mu         sync.RWMutex
	persist    Persister
	logger     *slog.Logger
	now        func() time.Time
	token      string
	user       model.User
	active     bool
	generation uint64
	listeners  []func(Reason)
}

// New creates an empty (logged out) store backed by p.
func New(p Persister, logger *slog.Logger) *Store {
	return &Store{
		persist: p,
		logger:  logger,
		now:     time.Now,
	}
}

// Restore loads a previously persisted session. It reports whether a
// session is now active. Incomplete, unreadable or expired state is wiped
// so the next launch starts clean.
func (s *Store) Restore() (bool, error) {
	token, err := s.persist.Get(KeyAccessToken)
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		return false, fmt.Errorf("restoring session token: %w", err)
	}
	rawUser, err := s.persist.Get(KeyUser)
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		return false, fmt.Errorf("restoring session user: %w", err)
	}

	if token == "" || rawUser == "" {
		s.wipe()
		return false, nil
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.Warn("discarding unreadable persisted user", slog.Any("error", err))
		s.wipe()
		return false, nil
	}

	if s.expired(token) {
		s.logger.Info("persisted session token has expired")
		s.wipe()
		return false, nil
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.active = true
	s.generation++
	s.mu.Unlock()

	return true, nil
}

// Begin starts a new session after a successful login and persists it.
func (s *Store) Begin(token string, user model.User) error {
	if token == "" {
		return errors.New("beginning session: empty access token")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding session user: %w", err)
	}
	if err := s.persist.Set(KeyAccessToken, token); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	if err := s.persist.Set(KeyUser, string(data)); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.active = true
	s.generation++
	s.mu.Unlock()

	s.logger.Info("session started", slog.String("user_id", user.ID))
	return nil
}

// Credential returns the bearer credential together with the generation of
// the session it belongs to.
func (s *Store) Credential() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.generation
}

// User returns the session user and whether a session is active.
func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.active
}

// Active reports whether a session is active.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Generation identifies the current session. It changes on every Begin or
// Restore so late responses from an older session can be recognized.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// OnInvalidate registers fn to run once whenever an active session ends.
func (s *Store) OnInvalidate(fn func(Reason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// End is the logout path.
func (s *Store) End() bool {
	return s.Invalidate(ReasonLogout)
}

// Invalidate ends whatever session is active. It is idempotent and
// reports whether anything was cleared.
func (s *Store) Invalidate(reason Reason) bool {
	return s.invalidate(0, false, reason)
}

// InvalidateIfCurrent ends the session only if it is still the one
// identified by generation, so a 401 that arrives after a re-login does
// not destroy the new session. It reports whether anything was cleared.
func (s *Store) InvalidateIfCurrent(generation uint64, reason Reason) bool {
	return s.invalidate(generation, true, reason)
}

func (s *Store) invalidate(generation uint64, checkGeneration bool, reason Reason) bool {
	s.mu.Lock()
	if !s.active || (checkGeneration && generation != s.generation) {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.user = model.User{}
	s.active = false
	listeners := make([]func(Reason), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.wipe()
	s.logger.Info("session ended", slog.String("reason", string(reason)))

	for _, fn := range listeners {
		fn(reason)
	}
	return true
}

// wipe removes both persisted keys. Failures are logged: the in-memory
// session is already gone and nothing else can be done about them.
func (s *Store) wipe() {
	for _, key := range []string{KeyAccessToken, KeyUser} {
		if err := s.persist.Delete(key); err != nil {
			s.logger.Warn("removing persisted session value",
				slog.String("key", key), slog.Any("error", err))
		}
	}
}

// expired reports whether token is a JWT whose exp claim lies in the past.
// Opaque tokens are never considered expired; the server decides.
func (s *Store) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(s.now())
}
