package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/credential"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/session"
)

var testUser = model.User{ID: "u-1", Email: "carrier@example.com", FirstName: "Ada", Role: model.RoleCarrier}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bearer returns the session's current credential.
func bearer(s *session.Store) string {
	token, _ := s.Credential()
	return token
}

// newTestClient returns a client for srv with an active session.
func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *session.Store) {
	t.Helper()

	sess := session.New(credential.NewWithBackend(keyring.NewArrayKeyring(nil)), discardLogger())
	require.NoError(t, sess.Begin("token-1", testUser))
	return NewClient(srv.URL+"/", sess, WithLogger(discardLogger())), sess
}

func TestClient_MatchesSendsCredentialAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/matches", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		assert.Equal(t, "7", r.URL.Query().Get("tripId"))
		assert.Empty(t, r.URL.Query().Get("itemRequestId"))

		_, _ = io.WriteString(w, `{"data":[{"id":42,"status":"PENDING","tripId":7,"itemRequestId":"9"}],"total":11,"page":2,"lastPage":2}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	page, err := c.Matches(context.Background(), model.MatchFilter{
		PageRequest: model.PageRequest{Page: 2, Limit: 10},
		Status:      model.MatchPending,
		TripID:      "7",
	})
	require.NoError(t, err)

	require.Len(t, page.Data, 1)
	assert.Equal(t, model.ID("42"), page.Data[0].ID)
	assert.Equal(t, model.MatchPending, page.Data[0].Status.Normalize())
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, 2, page.LastPage)
}

func TestClient_UnauthorizedEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, sess := newTestClient(t, srv)
	var reasons []session.Reason
	sess.OnInvalidate(func(r session.Reason) { reasons = append(reasons, r) })

	_, err := c.TripCount(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsAuth(err))
	assert.False(t, sess.Active())
	assert.Empty(t, bearer(sess))

	// A second 401 finds nothing left to invalidate.
	_, err = c.TripCount(context.Background())
	assert.True(t, apperr.IsAuth(err))
	assert.Equal(t, []session.Reason{session.ReasonAuthRejected}, reasons)
}

func TestClient_LateUnauthorizedKeepsNewerSession(t *testing.T) {
	var sess *session.Store
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The user signs in again while the old request is in flight.
		assert.NoError(t, sess.Begin("token-2", testUser))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var c *Client
	c, sess = newTestClient(t, srv)

	_, err := c.PendingMatchCount(context.Background())
	assert.True(t, apperr.IsAuth(err))
	assert.True(t, sess.Active())
	assert.Equal(t, "token-2", bearer(sess))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found carries entity and id",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var nf *apperr.NotFoundOrStaleError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "matches", nf.Entity)
				assert.Equal(t, "42", nf.ID)
			},
		},
		{
			name:   "gone is stale",
			status: http.StatusGone,
			check: func(t *testing.T, err error) {
				assert.True(t, apperr.IsNotFound(err))
			},
		},
		{
			name:   "server message string",
			status: http.StatusBadRequest,
			body:   `{"message":"Match already decided","error":"Bad Request"}`,
			check: func(t *testing.T, err error) {
				var se *apperr.ServerError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusBadRequest, se.StatusCode)
				assert.Equal(t, "Match already decided", apperr.Message(err))
			},
		},
		{
			name:   "server message list",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":["status must be valid","id is required"]}`,
			check: func(t *testing.T, err error) {
				assert.Equal(t, "status must be valid; id is required", apperr.Message(err))
			},
		},
		{
			name:   "no body falls back to generic text",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.Equal(t, "Something went wrong. Please try again.", apperr.Message(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPatch, r.Method)
				assert.Equal(t, "/matches/42/status", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c, sess := newTestClient(t, srv)
			_, err := c.UpdateMatchStatus(context.Background(), "42", model.MatchAccepted)
			require.Error(t, err)
			tt.check(t, err)
			assert.True(t, sess.Active(), "only 401 ends the session")
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, _ := newTestClient(t, srv)
	srv.Close()

	_, err := c.Inbox(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsNetwork(err))
}

func TestClient_UpdateMatchStatusBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rejected", body["status"])
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"id":"42","status":"rejected"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	m, err := c.UpdateMatchStatus(context.Background(), "42", model.MatchRejected)
	require.NoError(t, err)
	assert.Equal(t, model.MatchRejected, m.Status)
}

func TestClient_LoginWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"user":{"id":"u-1"}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b.co", Password: "secret1"})
	assert.Error(t, err)
}

func TestClient_NotificationCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notifications/unread-count":
			_, _ = io.WriteString(w, `{"count":3}`)
		case "/notifications":
			_, _ = io.WriteString(w, `{"data":[],"total":0,"page":1,"lastPage":1,"unreadCount":0}`)
		case "/notifications/mark-all-read":
			assert.Equal(t, http.MethodPatch, r.Method)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	ctx := context.Background()

	n, err := c.UnreadNotificationCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := c.Notifications(ctx, model.PageRequest{Page: 1})
	require.NoError(t, err)
	require.NotNil(t, page.UnreadCount)
	assert.Equal(t, 0, *page.UnreadCount)

	require.NoError(t, c.MarkAllNotificationsRead(ctx))
}

func TestIDOf(t *testing.T) {
	assert.Equal(t, "42", idOf("/matches/42/status"))
	assert.Equal(t, "", idOf("/notifications/mark-all-read"))
	assert.Equal(t, "abc-123", idOf("/messages/match/abc-123"))
	assert.Equal(t, "trips", entityOf("/trips/my-trips?page=1"))
}
