// Package dashboard gathers the figures shown on the home screen.
package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// API is the subset of the backend client used by the home screen.
type API interface {
	TripCount(ctx context.Context) (int, error)
	ItemRequestCount(ctx context.Context) (int, error)
	PendingMatchCount(ctx context.Context) (int, error)
}

// Counts are the home screen's stat cards.
type Counts struct {
	Trips          int
	Requests       int
	PendingMatches int
}

// Load fetches the three counts in parallel. Any failure fails the whole
// load; the caller keeps showing its previous counts.
func Load(ctx context.Context, api API) (Counts, error) {
	var c Counts
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := api.TripCount(ctx)
		c.Trips = n
		return err
	})
	g.Go(func() error {
		n, err := api.ItemRequestCount(ctx)
		c.Requests = n
		return err
	})
	g.Go(func() error {
		n, err := api.PendingMatchCount(ctx)
		c.PendingMatches = n
		return err
	})

	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return c, nil
}
