// Package match owns a view's cached copies of matches and applies the
// two-party acceptance handshake against the server.
package match

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/model"
)

// API is the subset of the backend a Reconciler talks to.
type API interface {
	Matches(ctx context.Context, f model.MatchFilter) (*model.Page[model.Match], error)
	UpdateMatchStatus(ctx context.Context, id model.ID, status model.MatchStatus) (*model.Match, error)
}

// NeedsAction reports whether a user with the given role still has to
// decide on a match in status s. Unknown statuses never need action.
func NeedsAction(s model.MatchStatus, role model.Role) bool {
	if !s.Known() || s.Terminal() {
		return false
	}
	switch s.Normalize() {
	case model.MatchCarrierAccepted:
		return role != model.RoleCarrier
	case model.MatchRequesterAccepted:
		return role != model.RoleRequester
	}
	return true
}

// Reconciler holds one view's copies of matches. Copies are never shared
// with other views; Match and Matches return values, not pointers.
type Reconciler struct {
	api    API
	role   model.Role
	logger *slog.Logger

	mu       sync.Mutex
	order    []model.ID
	matches  map[model.ID]model.Match
	updating map[model.ID]bool
	lastPage int
}

// New creates a Reconciler acting on behalf of a user with role.
func New(api API, role model.Role, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		api:      api,
		role:     role,
		logger:   logger,
		matches:  make(map[model.ID]model.Match),
		updating: make(map[model.ID]bool),
	}
}

// Role returns the role the reconciler evaluates actions for.
func (r *Reconciler) Role() model.Role {
	return r.role
}

// Load fetches a page of matches and replaces the view's copies. Matches
// with a decision in flight keep their local copy until it resolves.
func (r *Reconciler) Load(ctx context.Context, f model.MatchFilter) ([]model.Match, error) {
	page, err := r.api.Matches(ctx, f)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[model.ID]model.Match, len(page.Data))
	order := make([]model.ID, 0, len(page.Data))
	for _, m := range page.Data {
		if r.updating[m.ID] {
			if local, ok := r.matches[m.ID]; ok {
				m = local
			}
		}
		fresh[m.ID] = cloneMatch(m)
		order = append(order, m.ID)
	}
	r.matches = fresh
	r.order = order
	r.lastPage = page.LastPage
	if r.lastPage < 1 {
		r.lastPage = 1
	}

	return r.snapshotLocked(), nil
}

// Track seeds the reconciler with a match handed over by another view.
// The value is copied; later changes on either side stay independent.
func (r *Reconciler) Track(m model.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.matches[m.ID]; !ok {
		r.order = append(r.order, m.ID)
	}
	r.matches[m.ID] = cloneMatch(m)
}

// Match returns the local copy of a match.
func (r *Reconciler) Match(id model.ID) (model.Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	return cloneMatch(m), ok
}

// Matches returns the local copies in server order.
func (r *Reconciler) Matches() []model.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// LastPage returns the page count reported by the last Load.
func (r *Reconciler) LastPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastPage < 1 {
		return 1
	}
	return r.lastPage
}

// Updating reports whether a decision for id is awaiting the server.
func (r *Reconciler) Updating(id model.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updating[id]
}

// NeedsAction reports whether the current user still has to decide on id.
// A match with a decision in flight needs no further action.
func (r *Reconciler) NeedsAction(id model.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || r.updating[id] {
		return false
	}
	return NeedsAction(m.Status, r.role)
}

// SubmitDecision sends the user's decision on a match. The server decides
// the resulting status; on success the local copy is replaced wholesale by
// the server's representation, on failure it is left untouched. A second
// submission for the same match while one is pending is refused without
// a network call. Nothing is retried.
func (r *Reconciler) SubmitDecision(ctx context.Context, id model.ID, d model.Decision) (model.Match, error) {
	r.mu.Lock()
	current, ok := r.matches[id]
	if !ok {
		r.mu.Unlock()
		return model.Match{}, &apperr.NotFoundOrStaleError{Entity: "match", ID: id.String()}
	}
	if r.updating[id] {
		r.mu.Unlock()
		return cloneMatch(current), &apperr.OperationInProgress{Operation: "status update", Key: id.String()}
	}
	if err := r.checkTransition(current, d); err != nil {
		r.mu.Unlock()
		return cloneMatch(current), err
	}
	r.updating[id] = true
	r.mu.Unlock()

	updated, err := r.api.UpdateMatchStatus(ctx, id, d.WireStatus())

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.updating, id)

	if err != nil {
		r.logger.Warn("match status update failed",
			slog.String("match_id", id.String()),
			slog.String("decision", string(d)),
			slog.Any("error", err))
		if local, ok := r.matches[id]; ok {
			current = local
		}
		return cloneMatch(current), errors.Wrapf(err, "updating match %s", id)
	}

	if updated.ID == "" {
		updated.ID = id
	}
	if !updated.Status.Known() {
		r.logger.Warn("server returned unrecognized match status",
			slog.String("match_id", id.String()),
			slog.String("status", string(updated.Status)))
	}
	if _, ok := r.matches[id]; !ok {
		r.order = append(r.order, id)
	}
	r.matches[id] = cloneMatch(*updated)
	return cloneMatch(*updated), nil
}

// checkTransition refuses decisions the handshake cannot accept: anything
// on a terminal or unrecognized status, and an acceptance by a party whose
// half is already satisfied. A rejection is allowed from every open state.
func (r *Reconciler) checkTransition(m model.Match, d model.Decision) error {
	invalid := &apperr.InvalidTransition{
		MatchID:  m.ID.String(),
		Status:   string(m.Status),
		Decision: string(d),
	}

	if d != model.DecisionAccept && d != model.DecisionReject {
		return invalid
	}
	if !m.Status.Known() || m.Status.Terminal() {
		return invalid
	}
	if d == model.DecisionAccept && !NeedsAction(m.Status, r.role) {
		return invalid
	}
	return nil
}

func (r *Reconciler) snapshotLocked() []model.Match {
	out := make([]model.Match, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.matches[id]; ok {
			out = append(out, cloneMatch(m))
		}
	}
	return out
}

// cloneMatch copies the pointer fields so the caller's value and the
// reconciler's copy share no mutable state.
func cloneMatch(m model.Match) model.Match {
	if m.AgreedWeightKg != nil {
		w := *m.AgreedWeightKg
		m.AgreedWeightKg = &w
	}
	if m.Trip != nil {
		t := *m.Trip
		if t.ReturnDate != nil {
			rd := *t.ReturnDate
			t.ReturnDate = &rd
		}
		m.Trip = &t
	}
	if m.ItemRequest != nil {
		ir := *m.ItemRequest
		m.ItemRequest = &ir
	}
	return m
}
