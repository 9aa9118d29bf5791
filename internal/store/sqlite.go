package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dconnect/courier/internal/model"
)

// seedCatalogue is imported into an empty database on first open.
//
//go:embed seed/locations.json
var seedCatalogue []byte

// maxRecentLocations bounds the recent_locations table.
const maxRecentLocations = 20

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, runs any pending schema migrations and seeds the
// catalogue when it is empty.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding catalogue: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) seed(ctx context.Context) error {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM countries"); err != nil {
		return fmt.Errorf("counting countries: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err := s.ImportJSON(ctx, bytes.NewReader(seedCatalogue))
	return err
}

// Countries returns every country ordered by name.
func (s *SQLiteStore) Countries(ctx context.Context) ([]model.Country, error) {
	var out []model.Country
	err := s.db.SelectContext(ctx, &out, "SELECT code, name FROM countries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying countries: %w", err)
	}
	return out, nil
}

// Regions returns the states of a country ordered by name.
func (s *SQLiteStore) Regions(ctx context.Context, countryCode string) ([]model.Region, error) {
	var out []model.Region
	err := s.db.SelectContext(ctx, &out,
		"SELECT country_code, code, name FROM regions WHERE country_code = ? ORDER BY name",
		countryCode,
	)
	if err != nil {
		return nil, fmt.Errorf("querying regions of %s: %w", countryCode, err)
	}
	return out, nil
}

// Cities returns the cities of a region ordered by name.
func (s *SQLiteStore) Cities(ctx context.Context, countryCode, regionCode string) ([]model.City, error) {
	var out []model.City
	err := s.db.SelectContext(ctx, &out,
		`SELECT country_code, region_code, name FROM cities
		 WHERE country_code = ? AND region_code = ? ORDER BY name`,
		countryCode, regionCode,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cities of %s/%s: %w", countryCode, regionCode, err)
	}
	return out, nil
}

// Describe resolves country and state codes to names.
func (s *SQLiteStore) Describe(ctx context.Context, loc model.Location) (model.Location, error) {
	out := loc

	var country string
	err := s.db.GetContext(ctx, &country, "SELECT name FROM countries WHERE code = ?", loc.Country)
	switch {
	case err == nil:
		out.Country = country
	case !errors.Is(err, sql.ErrNoRows):
		return loc, fmt.Errorf("resolving country %s: %w", loc.Country, err)
	}

	var region string
	err = s.db.GetContext(ctx, &region,
		"SELECT name FROM regions WHERE country_code = ? AND code = ?",
		loc.Country, loc.State,
	)
	switch {
	case err == nil:
		out.State = region
	case !errors.Is(err, sql.ErrNoRows):
		return loc, fmt.Errorf("resolving region %s/%s: %w", loc.Country, loc.State, err)
	}

	return out, nil
}

// catalogueCountry is the import format: countries with nested regions and
// city names.
type catalogueCountry struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Regions []struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Cities []string `json:"cities"`
	} `json:"regions"`
}

// ImportJSON upserts the countries in r and returns how many were read.
func (s *SQLiteStore) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var countries []catalogueCountry
	if err := json.NewDecoder(r).Decode(&countries); err != nil {
		return 0, fmt.Errorf("decoding catalogue: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range countries {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO countries (code, name) VALUES (?, ?)
			 ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
			code, c.Name,
		)
		if err != nil {
			return 0, fmt.Errorf("upserting country %s: %w", code, err)
		}

		for _, r := range c.Regions {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO regions (country_code, code, name) VALUES (?, ?, ?)
				 ON CONFLICT(country_code, code) DO UPDATE SET name = excluded.name`,
				code, r.Code, r.Name,
			)
			if err != nil {
				return 0, fmt.Errorf("upserting region %s/%s: %w", code, r.Code, err)
			}

			for _, city := range r.Cities {
				_, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO cities (country_code, region_code, name) VALUES (?, ?, ?)",
					code, r.Code, city,
				)
				if err != nil {
					return 0, fmt.Errorf("inserting city %s: %w", city, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing catalogue: %w", err)
	}
	return len(countries), nil
}

// RememberLocation records loc as the most recently used location and
// trims the history to its cap.
func (s *SQLiteStore) RememberLocation(ctx context.Context, loc model.Location) error {
	if loc.Country == "" || loc.City == "" {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recent_locations (id, country, state, city, used_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(country, state, city) DO UPDATE SET used_at = excluded.used_at`,
		uuid.NewString(), loc.Country, loc.State, loc.City, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("remembering location: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM recent_locations WHERE id NOT IN (
			SELECT id FROM recent_locations ORDER BY used_at DESC LIMIT ?
		)`,
		maxRecentLocations,
	)
	if err != nil {
		return fmt.Errorf("trimming recent locations: %w", err)
	}

	return tx.Commit()
}

// RecentLocations returns up to limit locations, newest first.
func (s *SQLiteStore) RecentLocations(ctx context.Context, limit int) ([]model.RecentLocation, error) {
	if limit <= 0 || limit > maxRecentLocations {
		limit = maxRecentLocations
	}

	var out []model.RecentLocation
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, country, state, city, used_at FROM recent_locations
		 ORDER BY used_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent locations: %w", err)
	}
	return out, nil
}

// SetClock overrides the time source used for recent locations.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}
