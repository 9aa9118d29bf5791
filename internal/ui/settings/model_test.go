package settings

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dconnect/courier/internal/keys"
	"github.com/dconnect/courier/internal/model"
	appsync "github.com/dconnect/courier/internal/sync"
)

func newScreen() Model {
	user := model.User{ID: "u-1", FirstName: "Ada", Email: "ada@example.com", Role: model.RoleCarrier}
	return New(nil, user, Connection{APIBaseURL: "http://localhost:3000"}, keys.DefaultKeyMap(),
		slog.New(slog.NewTextHandler(io.Discard, nil)), 80, 24)
}

func TestSettings_ShowsBackgroundJobs(t *testing.T) {
	m := newScreen()
	assert.NotContains(t, m.View(), "Background refresh")

	m.SetJobs([]appsync.JobStatus{
		{Name: "unread-count", State: appsync.JobIdle, LastRun: time.Now()},
		{Name: "dashboard", State: appsync.JobError, Error: errors.New("connection refused")},
		{Name: "later", State: appsync.JobIdle},
	})
	view := m.View()

	assert.Contains(t, view, "Background refresh")
	assert.Contains(t, view, "unread-count")
	assert.Contains(t, view, "just now")
	assert.Contains(t, view, "failed:")
	assert.Contains(t, view, "waiting")
}

func TestJobLine_Running(t *testing.T) {
	assert.Contains(t, jobLine(appsync.JobStatus{State: appsync.JobRunning}), "refreshing")
}
