package match

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/model"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Matches(ctx context.Context, f model.MatchFilter) (*model.Page[model.Match], error) {
	args := m.Called(ctx, f)
	page, _ := args.Get(0).(*model.Page[model.Match])
	return page, args.Error(1)
}

func (m *mockAPI) UpdateMatchStatus(ctx context.Context, id model.ID, status model.MatchStatus) (*model.Match, error) {
	args := m.Called(ctx, id, status)
	updated, _ := args.Get(0).(*model.Match)
	return updated, args.Error(1)
}

func newReconciler(api API, role model.Role) *Reconciler {
	return New(api, role, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func page(matches ...model.Match) *model.Page[model.Match] {
	return &model.Page[model.Match]{Data: matches, Total: len(matches), Page: 1, LastPage: 3}
}

func TestNeedsAction(t *testing.T) {
	tests := []struct {
		status model.MatchStatus
		role   model.Role
		want   bool
	}{
		{model.MatchPending, model.RoleCarrier, true},
		{model.MatchPending, model.RoleRequester, true},
		{"PENDING", model.RoleCarrier, true},
		{model.MatchCarrierAccepted, model.RoleCarrier, false},
		{model.MatchCarrierAccepted, model.RoleRequester, true},
		{model.MatchRequesterAccepted, model.RoleRequester, false},
		{model.MatchRequesterAccepted, model.RoleCarrier, true},
		{model.MatchAccepted, model.RoleCarrier, false},
		{model.MatchRejected, model.RoleRequester, false},
		{"on_hold", model.RoleCarrier, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsAction(tt.status, tt.role))
		})
	}
}

func TestReconciler_LoadReplacesCopies(t *testing.T) {
	api := &mockAPI{}
	f := model.MatchFilter{PageRequest: model.PageRequest{Page: 1, Limit: 10}}
	api.On("Matches", mock.Anything, f).Return(page(
		model.Match{ID: "1", Status: model.MatchPending},
		model.Match{ID: "2", Status: model.MatchAccepted},
	), nil).Once()
	api.On("Matches", mock.Anything, f).Return(page(
		model.Match{ID: "2", Status: model.MatchAccepted},
	), nil).Once()

	r := newReconciler(api, model.RoleCarrier)

	got, err := r.Load(context.Background(), f)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, r.LastPage())
	assert.True(t, r.NeedsAction("1"))
	assert.False(t, r.NeedsAction("2"))

	got, err = r.Load(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, ok := r.Match("1")
	assert.False(t, ok, "copies not on the new page are dropped")
	api.AssertExpectations(t)
}

func TestReconciler_SubmitSuccessTakesServerCopy(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateMatchStatus", mock.Anything, model.ID("7"), model.MatchAccepted).
		Return(&model.Match{ID: "7", Status: model.MatchCarrierAccepted, DisplayStatus: "Waiting for requester"}, nil)

	r := newReconciler(api, model.RoleCarrier)
	r.Track(model.Match{ID: "7", Status: model.MatchPending})

	updated, err := r.SubmitDecision(context.Background(), "7", model.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCarrierAccepted, updated.Status)

	local, ok := r.Match("7")
	require.True(t, ok)
	assert.Equal(t, "Waiting for requester", local.DisplayStatus)
	assert.False(t, r.Updating("7"))
	assert.False(t, r.NeedsAction("7"), "carrier's half is done")
}

func TestReconciler_SubmitFailureKeepsCopy(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateMatchStatus", mock.Anything, model.ID("7"), model.MatchRejected).
		Return(nil, &apperr.ServerError{StatusCode: 409, Message: "Match already decided"})

	r := newReconciler(api, model.RoleRequester)
	r.Track(model.Match{ID: "7", Status: model.MatchCarrierAccepted})

	current, err := r.SubmitDecision(context.Background(), "7", model.DecisionReject)
	require.Error(t, err)
	assert.Equal(t, "Match already decided", apperr.Message(err))
	assert.Equal(t, model.MatchCarrierAccepted, current.Status)

	local, _ := r.Match("7")
	assert.Equal(t, model.MatchCarrierAccepted, local.Status)
	assert.False(t, r.Updating("7"))
	assert.True(t, r.NeedsAction("7"), "user can try again")
}

func TestReconciler_SubmitWhileInFlight(t *testing.T) {
	release := make(chan time.Time)
	api := &mockAPI{}
	api.On("UpdateMatchStatus", mock.Anything, model.ID("7"), model.MatchAccepted).
		WaitUntil(release).
		Return(&model.Match{ID: "7", Status: model.MatchAccepted}, nil).
		Once()
	api.On("Matches", mock.Anything, mock.Anything).
		Return(page(model.Match{ID: "7", Status: model.MatchPending, DisplayStatus: "stale"}), nil)

	r := newReconciler(api, model.RoleRequester)
	r.Track(model.Match{ID: "7", Status: model.MatchCarrierAccepted})

	done := make(chan error, 1)
	go func() {
		_, err := r.SubmitDecision(context.Background(), "7", model.DecisionAccept)
		done <- err
	}()

	require.Eventually(t, func() bool { return r.Updating("7") }, time.Second, 5*time.Millisecond)
	assert.False(t, r.NeedsAction("7"))

	_, err := r.SubmitDecision(context.Background(), "7", model.DecisionReject)
	assert.True(t, apperr.IsInProgress(err))

	// A reload during the update keeps the local copy.
	got, err := r.Load(context.Background(), model.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.MatchCarrierAccepted, got[0].Status)

	close(release)
	require.NoError(t, <-done)

	local, _ := r.Match("7")
	assert.Equal(t, model.MatchAccepted, local.Status)
	api.AssertNumberOfCalls(t, "UpdateMatchStatus", 1)
}

func TestReconciler_RefusedTransitions(t *testing.T) {
	tests := []struct {
		name     string
		status   model.MatchStatus
		role     model.Role
		decision model.Decision
	}{
		{"accept own half again", model.MatchCarrierAccepted, model.RoleCarrier, model.DecisionAccept},
		{"reject accepted", model.MatchAccepted, model.RoleCarrier, model.DecisionReject},
		{"accept rejected", model.MatchRejected, model.RoleRequester, model.DecisionAccept},
		{"unknown status", "on_hold", model.RoleRequester, model.DecisionReject},
		{"unknown decision", model.MatchPending, model.RoleRequester, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{}
			r := newReconciler(api, tt.role)
			r.Track(model.Match{ID: "7", Status: tt.status})

			_, err := r.SubmitDecision(context.Background(), "7", tt.decision)
			assert.True(t, apperr.IsInvalidTransition(err))
			api.AssertNotCalled(t, "UpdateMatchStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReconciler_RejectFromHalfAccepted(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateMatchStatus", mock.Anything, model.ID("7"), model.MatchRejected).
		Return(&model.Match{ID: "7", Status: model.MatchRejected}, nil)

	r := newReconciler(api, model.RoleCarrier)
	r.Track(model.Match{ID: "7", Status: model.MatchCarrierAccepted})

	updated, err := r.SubmitDecision(context.Background(), "7", model.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, model.MatchRejected, updated.Status)
}

func TestReconciler_SubmitUnknownMatch(t *testing.T) {
	r := newReconciler(&mockAPI{}, model.RoleCarrier)
	_, err := r.SubmitDecision(context.Background(), "404", model.DecisionAccept)
	assert.True(t, apperr.IsNotFound(err))
}

func TestReconciler_TrackCopiesAreIndependent(t *testing.T) {
	w := model.Kilograms(3)
	m := model.Match{ID: "7", Status: model.MatchPending, AgreedWeightKg: &w, Trip: &model.Trip{FromCity: "Lagos"}}

	a := newReconciler(&mockAPI{}, model.RoleCarrier)
	b := newReconciler(&mockAPI{}, model.RoleCarrier)
	a.Track(m)
	b.Track(m)

	w = 9
	m.Trip.FromCity = "Accra"

	got, _ := a.Match("7")
	assert.Equal(t, model.Kilograms(3), got.Weight())
	assert.Equal(t, "Lagos", got.Trip.FromCity)

	got.Trip.FromCity = "Abuja"
	other, _ := b.Match("7")
	assert.Equal(t, "Lagos", other.Trip.FromCity)
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "Custom", Description(model.Match{Status: model.MatchPending, DisplayStatus: "Custom"}))
	assert.Contains(t, Description(model.Match{Status: "Carrier_Accepted"}), "carrier has accepted")
	assert.Equal(t, "on_hold", Description(model.Match{Status: "on_hold"}))
}

func TestReconciler_ReturnedMatchesDoNotAliasLocalCopy(t *testing.T) {
	w := model.Kilograms(2)
	api := &mockAPI{}
	api.On("UpdateMatchStatus", mock.Anything, model.ID("7"), model.MatchAccepted).
		Return(&model.Match{ID: "7", Status: model.MatchCarrierAccepted, AgreedWeightKg: &w, Trip: &model.Trip{ToCity: "Lagos"}}, nil)

	r := newReconciler(api, model.RoleCarrier)
	r.Track(model.Match{ID: "7", Status: model.MatchPending})

	updated, err := r.SubmitDecision(context.Background(), "7", model.DecisionAccept)
	require.NoError(t, err)
	*updated.AgreedWeightKg = 50
	updated.Trip.ToCity = "Accra"
	w = 70

	got, ok := r.Match("7")
	require.True(t, ok)
	assert.Equal(t, model.Kilograms(2), got.Weight())
	assert.Equal(t, "Lagos", got.Trip.ToCity)

	got.Trip.ToCity = "Abuja"
	again, _ := r.Match("7")
	assert.Equal(t, "Lagos", again.Trip.ToCity)
	assert.Equal(t, "Lagos", r.Matches()[0].Trip.ToCity)
}

// The requester accepts first; the carrier's view sees the match waiting
// on them after its next load.
func TestReconciler_HandshakeSeenByOtherParty(t *testing.T) {
	server := model.Match{ID: "12", Status: model.MatchPending}
	filter := model.MatchFilter{PageRequest: model.PageRequest{Page: 1, Limit: 10}}

	requesterAPI := &mockAPI{}
	requesterAPI.On("Matches", mock.Anything, filter).Return(page(server), nil).Once()
	requesterAPI.On("UpdateMatchStatus", mock.Anything, model.ID("12"), model.MatchAccepted).
		Return(&model.Match{ID: "12", Status: model.MatchRequesterAccepted}, nil)

	carrierAPI := &mockAPI{}
	carrierAPI.On("Matches", mock.Anything, filter).Return(page(server), nil).Once()
	carrierAPI.On("Matches", mock.Anything, filter).
		Return(page(model.Match{ID: "12", Status: model.MatchRequesterAccepted}), nil).Once()

	requester := newReconciler(requesterAPI, model.RoleRequester)
	carrier := newReconciler(carrierAPI, model.RoleCarrier)
	ctx := context.Background()

	_, err := requester.Load(ctx, filter)
	require.NoError(t, err)
	_, err = carrier.Load(ctx, filter)
	require.NoError(t, err)

	updated, err := requester.SubmitDecision(ctx, "12", model.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, model.MatchRequesterAccepted, updated.Status)
	assert.False(t, requester.NeedsAction("12"))

	_, err = carrier.Load(ctx, filter)
	require.NoError(t, err)
	assert.True(t, carrier.NeedsAction("12"))

	requesterAPI.AssertExpectations(t)
	carrierAPI.AssertExpectations(t)
}
