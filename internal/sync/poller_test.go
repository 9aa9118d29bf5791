package sync

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/apperr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextResult(t *testing.T, p *Poller) ResultMsg {
	t.Helper()

	done := make(chan ResultMsg, 1)
	go func() {
		done <- p.WaitForNextResult()().(ResultMsg)
	}()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a job result")
		return ResultMsg{}
	}
}

func TestPoller_RunOnStartAndTrigger(t *testing.T) {
	var runs atomic.Int32
	p := New(testLogger())
	p.Register(Job{
		Name:       "unread-count",
		RunOnStart: true,
		Run: func(ctx context.Context) (any, error) {
			return int(runs.Add(1)), nil
		},
	})

	require.NotNil(t, p.Start())
	assert.Nil(t, p.Start(), "second start is a no-op")
	defer p.Stop()

	msg := nextResult(t, p)
	assert.Equal(t, "unread-count", msg.Job)
	assert.Equal(t, 1, msg.Value)

	p.Trigger("unread-count")
	msg = nextResult(t, p)
	assert.Equal(t, 2, msg.Value)

	statuses := p.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, JobIdle, statuses[0].State)
	assert.False(t, statuses[0].LastRun.IsZero())
}

func TestPoller_AuthErrorFlagged(t *testing.T) {
	p := New(testLogger())
	p.Register(Job{
		Name:       "dashboard",
		RunOnStart: true,
		Run: func(ctx context.Context) (any, error) {
			return nil, &apperr.AuthError{Method: "GET", Path: "/trips/count"}
		},
	})

	p.Start()
	defer p.Stop()

	msg := nextResult(t, p)
	assert.True(t, msg.AuthError)
	require.Error(t, msg.Error)
	assert.Equal(t, JobError, p.Statuses()[0].State)
}

func TestPoller_StopDropsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	p := New(testLogger())
	p.Register(Job{
		Name:       "slow",
		RunOnStart: true,
		Run: func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	p.Start()
	<-started
	p.Stop()
	p.mu.Lock()
	assert.False(t, p.running)
	p.mu.Unlock()

	select {
	case msg := <-p.resultCh:
		t.Fatalf("unexpected result after stop: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
