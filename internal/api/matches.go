package api

import (
	"context"

	"github.com/dconnect/courier/internal/model"
)

// Matches returns a page of matches visible to the current user.
func (c *Client) Matches(ctx context.Context, f model.MatchFilter) (*model.Page[model.Match], error) {
	q := pageQuery(f.PageRequest)
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.TripID != "" {
		q.Set("tripId", f.TripID.String())
	}
	if f.ItemRequestID != "" {
		q.Set("itemRequestId", f.ItemRequestID.String())
	}

	var page model.Page[model.Match]
	if err := c.get(ctx, "/matches", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PendingMatchCount returns how many matches await any decision.
func (c *Client) PendingMatchCount(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.get(ctx, "/matches/count/pending", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type statusUpdate struct {
	Status model.MatchStatus `json:"status"`
}

// UpdateMatchStatus sends the current user's decision and returns the full
// match as the server now sees it.
func (c *Client) UpdateMatchStatus(ctx context.Context, id model.ID, status model.MatchStatus) (*model.Match, error) {
	var updated model.Match
	err := c.patch(ctx, "/matches/"+id.String()+"/status", statusUpdate{Status: status}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
