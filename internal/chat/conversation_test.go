package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/model"
)

type fakeAPI struct {
	mu          sync.Mutex
	messages    []model.ChatMessage
	historyGate chan struct{}
	historyErr  error
	fetches     int
	sendGate    chan struct{}
	sendErr     error
	sent        []model.NewMessage
}

func (f *fakeAPI) ChatHistory(ctx context.Context, matchID model.ID) (*model.ChatHistory, error) {
	f.mu.Lock()
	gate := f.historyGate
	f.fetches++
	msgs := append([]model.ChatMessage(nil), f.messages...)
	err := f.historyErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &model.ChatHistory{ChatInfo: model.ChatInfo{MatchID: matchID}, Messages: msgs}, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, msg model.NewMessage) (*model.ChatMessage, error) {
	if f.sendGate != nil {
		<-f.sendGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return &model.ChatMessage{ID: "new", MatchID: msg.MatchID, Content: msg.Content}, nil
}

func (f *fakeAPI) setMessages(contents ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	for _, c := range contents {
		f.messages = append(f.messages, model.ChatMessage{Content: c})
	}
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newConversation(api API, interval time.Duration) *Conversation {
	return NewConversation(api, "m-1", interval, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func contents(h *model.ChatHistory) []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.Messages))
	for i, m := range h.Messages {
		out[i] = m.Content
	}
	return out
}

func running(c *Conversation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// fetchNow runs one fetch outside the polling schedule.
func fetchNow(c *Conversation) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.fetch(context.Background(), gen)
}

func TestConversation_StartFetchesImmediately(t *testing.T) {
	api := &fakeAPI{}
	api.setMessages("hi", "hello")
	c := newConversation(api, time.Hour)
	defer c.Stop()

	msg := c.Start()()
	require.IsType(t, UpdatedMsg{}, msg)
	assert.Equal(t, model.ID("m-1"), msg.(UpdatedMsg).MatchID)
	assert.NoError(t, msg.(UpdatedMsg).Err)
	assert.Equal(t, []string{"hi", "hello"}, contents(c.History()))
	assert.True(t, running(c))
}

func TestConversation_PollReplacesHistory(t *testing.T) {
	api := &fakeAPI{}
	api.setMessages("a", "b", "c")
	c := newConversation(api, 20*time.Millisecond)
	defer c.Stop()

	c.Start()()
	require.Len(t, c.History().Messages, 3)

	// The server dropped a message; the local copy follows, no merging.
	api.setMessages("b")
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"b"}, contents(c.History()))
	}, time.Second, 10*time.Millisecond)
}

func TestConversation_FailedPollKeepsHistory(t *testing.T) {
	api := &fakeAPI{}
	api.setMessages("a")
	c := newConversation(api, time.Hour)
	defer c.Stop()
	c.Start()()

	api.mu.Lock()
	api.historyErr = errors.New("boom")
	api.mu.Unlock()

	err := fetchNow(c)
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, contents(c.History()))
	assert.NoError(t, c.LoadErr(), "only the initial load reports LoadErr")
}

func TestConversation_InitialLoadError(t *testing.T) {
	api := &fakeAPI{historyErr: errors.New("boom")}
	c := newConversation(api, time.Hour)
	defer c.Stop()

	msg := c.Start()().(UpdatedMsg)
	assert.Error(t, msg.Err)
	assert.Error(t, c.LoadErr())
	assert.Nil(t, c.History())
}

func TestConversation_StopDiscardsInFlight(t *testing.T) {
	api := &fakeAPI{historyGate: make(chan struct{})}
	api.setMessages("late")
	c := newConversation(api, time.Hour)

	wait := c.Start()
	require.Eventually(t, func() bool { return api.fetchCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Stop()
	assert.False(t, running(c))
	assert.Nil(t, wait(), "a stopped conversation yields no update")

	close(api.historyGate)
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, c.History())
}

func TestConversation_SendValidation(t *testing.T) {
	api := &fakeAPI{}
	c := newConversation(api, time.Hour)

	_, err := c.Send(context.Background(), "   \n")
	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, api.sent)
}

func TestConversation_SendWhileSending(t *testing.T) {
	api := &fakeAPI{sendGate: make(chan struct{})}
	c := newConversation(api, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first")
		done <- err
	}()
	require.Eventually(t, c.Sending, time.Second, 5*time.Millisecond)

	_, err := c.Send(context.Background(), "second")
	assert.True(t, apperr.IsInProgress(err))

	close(api.sendGate)
	require.NoError(t, <-done)
	assert.False(t, c.Sending())
	require.Len(t, api.sent, 1)
	assert.Equal(t, "first", api.sent[0].Content)
}

func TestConversation_SendAppendsLocally(t *testing.T) {
	api := &fakeAPI{}
	api.setMessages("hi")
	c := newConversation(api, time.Hour)
	require.NoError(t, fetchNow(c))

	sent, err := c.Send(context.Background(), "  on my way  ")
	require.NoError(t, err)
	assert.Equal(t, "on my way", sent.Content)
	assert.Equal(t, []string{"hi", "on my way"}, contents(c.History()))
}

func TestConversation_SendTriggersRefetch(t *testing.T) {
	api := &fakeAPI{}
	api.setMessages("hi")
	c := newConversation(api, time.Hour)
	defer c.Stop()
	c.Start()()

	api.setMessages("hi", "on my way", "great")
	_, err := c.Send(context.Background(), "on my way")
	require.NoError(t, err)

	msg := c.WaitForUpdate()()
	require.IsType(t, UpdatedMsg{}, msg)
	assert.Equal(t, []string{"hi", "on my way", "great"}, contents(c.History()))
	assert.Equal(t, 2, api.fetchCount())
}

func TestConversation_SendFailure(t *testing.T) {
	api := &fakeAPI{sendErr: &apperr.ServerError{StatusCode: 403, Message: "Chat is only available for accepted matches"}}
	c := newConversation(api, time.Hour)

	_, err := c.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "Chat is only available for accepted matches", apperr.Message(err))
	assert.False(t, c.Sending())
}

func TestFilterInbox(t *testing.T) {
	items := []model.InboxItem{
		{MatchID: "1", OtherParty: model.Party{FirstName: "Ada", LastName: "Obi"}, TripInfo: model.Route{From: "Lagos", To: "London"}},
		{MatchID: "2", OtherParty: model.Party{FirstName: "Ben"}, TripInfo: model.Route{From: "Accra", To: "Paris"}},
	}

	assert.Len(t, FilterInbox(items, ""), 2)
	assert.Len(t, FilterInbox(items, "  "), 2)

	got := FilterInbox(items, "OBI")
	require.Len(t, got, 1)
	assert.Equal(t, model.ID("1"), got[0].MatchID)

	got = FilterInbox(items, "paris")
	require.Len(t, got, 1)
	assert.Equal(t, model.ID("2"), got[0].MatchID)

	assert.Empty(t, FilterInbox(items, "tokyo"))
}
