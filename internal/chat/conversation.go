package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/model"
)

// DefaultPollInterval matches the web client's chat refresh.
const DefaultPollInterval = 5 * time.Second

// API is the subset of the backend client used by a conversation.
type API interface {
	ChatHistory(ctx context.Context, matchID model.ID) (*model.ChatHistory, error)
	SendMessage(ctx context.Context, msg model.NewMessage) (*model.ChatMessage, error)
}

// UpdatedMsg is a tea.Msg sent after a poll or send changed the history.
// Err is set when a fetch failed; History() still returns the last good copy.
type UpdatedMsg struct {
	MatchID model.ID
	Err     error
}

// Conversation polls the history of one match while its view is open.
type Conversation struct {
	api      API
	matchID  model.ID
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	history *model.ChatHistory
	loadErr error
	sending bool
	gen     uint64
	cancel  context.CancelFunc
	updates chan UpdatedMsg
	refetch chan struct{}
	stopped <-chan struct{}
}

// NewConversation creates a stopped conversation for matchID.
func NewConversation(api API, matchID model.ID, interval time.Duration, logger *slog.Logger) *Conversation {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Conversation{
		api:      api,
		matchID:  matchID,
		interval: interval,
		logger:   logger,
	}
}

// MatchID returns the match the conversation belongs to.
func (c *Conversation) MatchID() model.ID {
	return c.matchID
}

// Start fetches the history immediately and then on every interval until
// Stop. It returns a tea.Cmd that waits for the first update; calling Start
// on a running conversation only returns a new wait command.
func (c *Conversation) Start() tea.Cmd {
	c.mu.Lock()
	if c.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.gen++
		c.cancel = cancel
		c.updates = make(chan UpdatedMsg, 4)
		c.refetch = make(chan struct{}, 1)
		c.stopped = ctx.Done()
		go c.poll(ctx, c.gen, c.updates, c.refetch)
	}
	c.mu.Unlock()

	return c.WaitForUpdate()
}

// Stop cancels the ticker and any in-flight fetch. Results that arrive
// afterwards are discarded.
func (c *Conversation) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.gen++
}

// WaitForUpdate returns a tea.Cmd that yields the next UpdatedMsg, or nil
// once the conversation is stopped.
func (c *Conversation) WaitForUpdate() tea.Cmd {
	c.mu.Lock()
	updates, stopped := c.updates, c.stopped
	c.mu.Unlock()

	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case msg := <-updates:
			return msg
		case <-stopped:
			return nil
		}
	}
}

// History returns a copy of the latest history, or nil before the first
// successful fetch.
func (c *Conversation) History() *model.ChatHistory {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history == nil {
		return nil
	}
	h := *c.history
	h.Messages = append([]model.ChatMessage(nil), c.history.Messages...)
	return &h
}

// LoadErr is the error of the initial load. Later poll failures keep the
// previous history and are not reported here.
func (c *Conversation) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Sending reports whether a send is in flight.
func (c *Conversation) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Send posts content to the conversation. Blank content is rejected and a
// second send while one is in flight fails with OperationInProgress.
func (c *Conversation) Send(ctx context.Context, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &apperr.ValidationError{Field: "content", Message: "Message cannot be empty"}
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return nil, &apperr.OperationInProgress{Operation: "send message", Key: c.matchID.String()}
	}
	c.sending = true
	gen := c.gen
	c.mu.Unlock()

	sent, err := c.api.SendMessage(ctx, model.NewMessage{MatchID: c.matchID, Content: content})

	c.mu.Lock()
	c.sending = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("sending chat message failed",
			slog.String("match_id", c.matchID.String()),
			slog.Any("error", err),
		)
		return nil, errors.Wrap(err, "sending message")
	}
	if gen == c.gen && c.history != nil && sent != nil {
		c.history.Messages = append(c.history.Messages, *sent)
	}
	refetch := c.refetch
	running := c.cancel != nil
	c.mu.Unlock()

	if running {
		select {
		case refetch <- struct{}{}:
		default:
		}
	}
	return sent, nil
}

func (c *Conversation) poll(ctx context.Context, gen uint64, updates chan<- UpdatedMsg, refetch <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.fetchAndNotify(ctx, gen, updates)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fetchAndNotify(ctx, gen, updates)
		case <-refetch:
			c.fetchAndNotify(ctx, gen, updates)
		}
	}
}

func (c *Conversation) fetchAndNotify(ctx context.Context, gen uint64, updates chan<- UpdatedMsg) {
	err := c.fetch(ctx, gen)
	if ctx.Err() != nil {
		return
	}
	select {
	case updates <- UpdatedMsg{MatchID: c.matchID, Err: err}:
	default:
		// The view has not consumed the previous update yet; it will read
		// the newest history when it does.
	}
}

// fetch replaces the local history with the server's, unless the
// conversation was stopped or restarted since gen was taken.
func (c *Conversation) fetch(ctx context.Context, gen uint64) error {
	history, err := c.api.ChatHistory(ctx, c.matchID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return nil
	}
	if err != nil {
		if c.history == nil {
			c.loadErr = err
		}
		c.logger.Debug("fetching chat history failed",
			slog.String("match_id", c.matchID.String()),
			slog.Any("error", err),
		)
		return errors.Wrap(err, "fetching chat history")
	}

	c.history = history
	c.loadErr = nil
	return nil
}
