package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dconnect/courier/internal/model"
)

// countResponse is the body of every /count endpoint.
type countResponse struct {
	Count int `json:"count"`
}

func pageQuery(p model.PageRequest) url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// MyTrips returns a page of the current carrier's trips.
func (c *Client) MyTrips(ctx context.Context, p model.PageRequest) (*model.Page[model.Trip], error) {
	var page model.Page[model.Trip]
	if err := c.get(ctx, "/trips/my-trips", pageQuery(p), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateTrip posts a new trip and returns it as stored by the server.
func (c *Client) CreateTrip(ctx context.Context, trip model.NewTrip) (*model.Trip, error) {
	var created model.Trip
	if err := c.post(ctx, "/trips", trip, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// TripCount returns how many trips the current user has posted.
func (c *Client) TripCount(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.get(ctx, "/trips/count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
