// Package notify keeps the notification list and the unread badge count
// consistent across the push channel and on-demand fetches.
//
// Consistency is eventual, not linearizable. Every write to the count is
// stamped with the sequence number taken when its server contact began; a
// result older than the last applied one is dropped. Provisional push
// increments are replaced by the next server result, never added to it.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/dconnect/courier/internal/api"
	"github.com/dconnect/courier/internal/model"
)

// ListPageSize is the number of notifications fetched by RefreshList.
const ListPageSize = 20

// API is the subset of the backend the Synchronizer talks to.
type API interface {
	Notifications(ctx context.Context, p model.PageRequest) (*api.NotificationPage, error)
	UnreadNotificationCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id model.ID) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Event is one notification_received push.
type Event struct {
	// UnreadCount is authoritative when present.
	UnreadCount *int

	// Notification is the pushed notification, when the server embeds it.
	Notification *model.Notification
}

// Snapshot is a consistent copy of the synchronizer's state.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
}

// Synchronizer owns the notification list and unread count of a session.
type Synchronizer struct {
	api    API
	logger *slog.Logger

	// deliver serializes OnChange calls. Each call snapshots the state
	// while holding it, so the last delivery never shows older state than
	// the last change.
	deliver sync.Mutex

	mu            sync.Mutex
	notifications []model.Notification
	unread        int
	seq           uint64
	appliedSeq    uint64
	listSeq       uint64
	loading       int
	pendingRead   map[model.ID]int
	pendingAll    int
	readSeq       map[model.ID]uint64
	readAllSeq    uint64
	onChange      func(Snapshot)
}

// New creates a Synchronizer with an empty list and a zero count.
func New(a API, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		api:         a,
		logger:      logger,
		pendingRead: make(map[model.ID]int),
		readSeq:     make(map[model.ID]uint64),
	}
}

// OnChange registers fn to receive a snapshot after every state change.
// Calls are serialized and fn must not call back into methods that change
// state.
func (s *Synchronizer) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Snapshot returns a copy of the current list and count.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UnreadCount returns the local unread count.
func (s *Synchronizer) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// FetchUnreadCount reads the count from the server. It has no server-side
// effect and is safe to call on a timer.
func (s *Synchronizer) FetchUnreadCount(ctx context.Context) (int, error) {
	seq := s.begin()
	count, err := s.api.UnreadNotificationCount(ctx)
	if err != nil {
		s.end()
		return s.UnreadCount(), errors.Wrap(err, "fetching unread count")
	}

	s.mu.Lock()
	s.loading--
	s.applyCountLocked(seq, count)
	unread := s.unread
	s.mu.Unlock()

	s.changed()
	return unread, nil
}

// RefreshList fetches the first page of notifications. The server treats
// this as viewing the list and may zero its unread count, so the local
// count is re-derived from the same response when it carries one, and
// otherwise from an immediate FetchUnreadCount.
func (s *Synchronizer) RefreshList(ctx context.Context) ([]model.Notification, error) {
	seq := s.begin()
	page, err := s.api.Notifications(ctx, model.PageRequest{Page: 1, Limit: ListPageSize})
	if err != nil {
		s.end()
		return nil, errors.Wrap(err, "refreshing notifications")
	}

	s.mu.Lock()
	s.loading--
	if seq >= s.listSeq {
		s.listSeq = seq
		s.notifications = s.mergeReadFlagsLocked(seq, page.Data)
	}
	if page.UnreadCount != nil {
		s.applyCountLocked(seq, *page.UnreadCount)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed()

	if page.UnreadCount == nil {
		if _, err := s.FetchUnreadCount(ctx); err != nil {
			return snap.Notifications, err
		}
	}
	return s.Snapshot().Notifications, nil
}

// HandlePush applies a notification_received event. An explicit count is
// taken as is; without one the count is bumped by one provisionally and the
// returned bool tells the caller to run RefreshList for ground truth.
// HandlePush itself never blocks on the network.
func (s *Synchronizer) HandlePush(ev Event) bool {
	s.mu.Lock()
	if ev.UnreadCount != nil {
		s.seq++
		s.applyCountLocked(s.seq, *ev.UnreadCount)
	} else {
		s.unread++
	}
	if ev.Notification != nil {
		s.prependLocked(*ev.Notification)
	}
	s.mu.Unlock()

	s.changed()
	return ev.UnreadCount == nil
}

// MarkRead flags one notification as read locally before the server
// confirms. The count is left alone because the server's counting rule is
// not guaranteed to be one flag per unit; on failure nothing is rolled
// back and the caller should re-sync with FetchUnreadCount.
func (s *Synchronizer) MarkRead(ctx context.Context, id model.ID) error {
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
		}
	}
	s.pendingRead[id]++
	s.seq++
	s.readSeq[id] = s.seq
	s.mu.Unlock()
	s.changed()

	err := s.api.MarkNotificationRead(ctx, id)

	s.mu.Lock()
	s.pendingRead[id]--
	if s.pendingRead[id] <= 0 {
		delete(s.pendingRead, id)
	}
	s.mu.Unlock()

	if err != nil {
		return errors.Wrapf(err, "marking notification %s read", id)
	}
	return nil
}

// MarkAllRead flags every local notification as read and zeroes the count
// before the server confirms. A failure leaves the optimistic state in
// place until the next natural refresh corrects it.
func (s *Synchronizer) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.seq++
	s.applyCountLocked(s.seq, 0)
	s.readAllSeq = s.seq
	s.pendingAll++
	s.mu.Unlock()
	s.changed()

	err := s.api.MarkAllNotificationsRead(ctx)

	s.mu.Lock()
	s.pendingAll--
	s.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return nil
}

// Resync re-reads list and count. The push channel calls it after every
// reconnect because missed events are not buffered anywhere.
func (s *Synchronizer) Resync(ctx context.Context) error {
	if _, err := s.RefreshList(ctx); err != nil {
		return err
	}
	return nil
}

// Reset clears all state, e.g. when the session ends.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.notifications = nil
	s.unread = 0
	s.pendingRead = make(map[model.ID]int)
	s.pendingAll = 0
	s.readSeq = make(map[model.ID]uint64)
	s.seq++
	s.appliedSeq = s.seq
	s.listSeq = s.seq
	s.readAllSeq = 0
	s.mu.Unlock()
	s.changed()
}

func (s *Synchronizer) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.loading++
	return s.seq
}

func (s *Synchronizer) end() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
	s.changed()
}

// applyCountLocked overwrites the count if seq is not older than the last
// applied server result.
func (s *Synchronizer) applyCountLocked(seq uint64, count int) {
	if seq < s.appliedSeq {
		s.logger.Debug("dropping stale unread count",
			slog.Uint64("seq", seq), slog.Uint64("applied", s.appliedSeq))
		return
	}
	if count < 0 {
		count = 0
	}
	s.appliedSeq = seq
	s.unread = count
}

func (s *Synchronizer) prependLocked(n model.Notification) {
	for i := range s.notifications {
		if s.notifications[i].ID == n.ID {
			s.notifications[i] = n
			return
		}
	}
	s.notifications = append([]model.Notification{n}, s.notifications...)
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	list := make([]model.Notification, len(s.notifications))
	copy(list, s.notifications)
	return Snapshot{
		Notifications: list,
		UnreadCount:   s.unread,
		Loading:       s.loading > 0,
	}
}

func (s *Synchronizer) changed() {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	fn := s.onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// mergeReadFlagsLocked adopts the server's list fetched at seq. The
// server's read flag is authoritative except where the client marked a
// notification read while the mark is still in flight or after the fetch
// began; such a response predates the mark and keeps the local flag.
func (s *Synchronizer) mergeReadFlagsLocked(seq uint64, server []model.Notification) []model.Notification {
	out := make([]model.Notification, len(server))
	for i, n := range server {
		if s.pendingAll > 0 || s.pendingRead[n.ID] > 0 ||
			s.readAllSeq > seq || s.readSeq[n.ID] > seq {
			n.IsRead = true
		}
		out[i] = n
	}
	for id, at := range s.readSeq {
		if at <= seq && s.pendingRead[id] == 0 {
			delete(s.readSeq, id)
		}
	}
	return out
}
