package store

import (
	"context"
	"io"

	"github.com/dconnect/courier/internal/model"
)

// Store is the local, read-mostly catalogue behind the location pickers.
// Everything else the client shows comes from the backend.
type Store interface {
	// === Catalogue ===

	Countries(ctx context.Context) ([]model.Country, error)
	Regions(ctx context.Context, countryCode string) ([]model.Region, error)
	Cities(ctx context.Context, countryCode, regionCode string) ([]model.City, error)

	// Describe replaces ISO codes with display names, keeping unknown codes
	// verbatim.
	Describe(ctx context.Context, loc model.Location) (model.Location, error)

	// ImportJSON merges a catalogue export into the database.
	ImportJSON(ctx context.Context, r io.Reader) (int, error)

	// === Recently used locations ===

	RememberLocation(ctx context.Context, loc model.Location) error
	RecentLocations(ctx context.Context, limit int) ([]model.RecentLocation, error)
}
