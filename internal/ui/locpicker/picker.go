// Package locpicker provides the cascading country, state and city selects
// shared by the trip and request forms.
package locpicker

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/huh"

	"github.com/dconnect/courier/internal/model"
)

// Catalogue is the subset of the location store used by the picker.
type Catalogue interface {
	Countries(ctx context.Context) ([]model.Country, error)
	Regions(ctx context.Context, countryCode string) ([]model.Region, error)
	Cities(ctx context.Context, countryCode, regionCode string) ([]model.City, error)
	RecentLocations(ctx context.Context, limit int) ([]model.RecentLocation, error)
}

// recentLimit is how many recent locations the shortcut select offers.
const recentLimit = 5

// Selection is one cascading choice. Changing the country clears state and
// city; changing the state clears the city.
type Selection struct {
	Country string
	State   string
	City    string

	// Recent holds the id of a recently used location picked as shortcut.
	Recent string

	seenCountry string
	seenState   string
	seenRecent  string
	recent      map[string]model.Location
}

// Sync applies the cascade after the bound fields changed.
func (s *Selection) Sync() {
	if s.Recent != s.seenRecent {
		s.seenRecent = s.Recent
		if loc, ok := s.recent[s.Recent]; ok {
			s.Country, s.State, s.City = loc.Country, loc.State, loc.City
			s.seenCountry, s.seenState = loc.Country, loc.State
			return
		}
	}
	if s.Country != s.seenCountry {
		s.seenCountry = s.Country
		s.State = ""
		s.City = ""
		s.seenState = ""
	}
	if s.State != s.seenState {
		s.seenState = s.State
		s.City = ""
	}
}

// Reset clears the selection.
func (s *Selection) Reset() {
	*s = Selection{recent: s.recent}
}

// Location returns the chosen triple.
func (s *Selection) Location() model.Location {
	return model.Location{Country: s.Country, State: s.State, City: s.City}
}

// Picker builds huh fields for selections against a catalogue.
type Picker struct {
	cat    Catalogue
	logger *slog.Logger
}

// New creates a picker.
func New(cat Catalogue, logger *slog.Logger) *Picker {
	return &Picker{cat: cat, logger: logger}
}

// Fields returns the selects for sel. label prefixes the titles, e.g.
// "Origin" gives "Origin country".
func (p *Picker) Fields(label string, sel *Selection) []huh.Field {
	fields := make([]huh.Field, 0, 4)

	if recent := p.recentOptions(sel); len(recent) > 1 {
		fields = append(fields, huh.NewSelect[string]().
			Title(label+": recently used").
			Options(recent...).
			Value(&sel.Recent))
	}

	fields = append(fields,
		huh.NewSelect[string]().
			Title(label+" country").
			OptionsFunc(func() []huh.Option[string] {
				sel.Sync()
				return p.countryOptions()
			}, &sel.Recent).
			Value(&sel.Country),
		huh.NewSelect[string]().
			Title(label+" state/region").
			OptionsFunc(func() []huh.Option[string] {
				sel.Sync()
				return p.regionOptions(sel.Country)
			}, &sel.Country).
			Value(&sel.State),
		huh.NewSelect[string]().
			Title(label+" city").
			OptionsFunc(func() []huh.Option[string] {
				sel.Sync()
				return p.cityOptions(sel.Country, sel.State)
			}, []*string{&sel.Country, &sel.State}).
			Value(&sel.City),
	)
	return fields
}

func (p *Picker) recentOptions(sel *Selection) []huh.Option[string] {
	recent, err := p.cat.RecentLocations(context.Background(), recentLimit)
	if err != nil {
		p.logger.Debug("loading recent locations", slog.Any("error", err))
		return nil
	}

	sel.recent = make(map[string]model.Location, len(recent))
	opts := []huh.Option[string]{huh.NewOption("(choose manually)", "")}
	for _, r := range recent {
		sel.recent[r.ID] = r.Location()
		opts = append(opts, huh.NewOption(r.Location().String(), r.ID))
	}
	return opts
}

func (p *Picker) countryOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Select Country", "")}
	countries, err := p.cat.Countries(context.Background())
	if err != nil {
		p.logger.Warn("loading countries", slog.Any("error", err))
		return opts
	}
	for _, c := range countries {
		opts = append(opts, huh.NewOption(c.Name, c.Code))
	}
	return opts
}

func (p *Picker) regionOptions(country string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Select State/Region", "")}
	if country == "" {
		return opts
	}
	regions, err := p.cat.Regions(context.Background(), country)
	if err != nil {
		p.logger.Warn("loading regions", slog.String("country", country), slog.Any("error", err))
		return opts
	}
	for _, r := range regions {
		opts = append(opts, huh.NewOption(r.Name, r.Code))
	}
	return opts
}

func (p *Picker) cityOptions(country, state string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Select City", "")}
	if country == "" || state == "" {
		return opts
	}
	cities, err := p.cat.Cities(context.Background(), country, state)
	if err != nil {
		p.logger.Warn("loading cities",
			slog.String("country", country),
			slog.String("state", state),
			slog.Any("error", err),
		)
		return opts
	}
	for _, c := range cities {
		opts = append(opts, huh.NewOption(c.Name, c.Name))
	}
	return opts
}
