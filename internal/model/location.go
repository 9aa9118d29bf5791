package model

import "time"

// Country is an entry of the location catalogue, keyed by ISO 3166-1 code.
type Country struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Region is a state or province of a country.
type Region struct {
	CountryCode string `db:"country_code" json:"countryCode"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
}

// City belongs to a region. Trips and requests store the city by name.
type City struct {
	CountryCode string `db:"country_code" json:"countryCode"`
	RegionCode  string `db:"region_code" json:"regionCode"`
	Name        string `db:"name" json:"name"`
}

// RecentLocation is a location the user picked in an earlier form.
type RecentLocation struct {
	ID      string    `db:"id"`
	Country string    `db:"country"`
	State   string    `db:"state"`
	City    string    `db:"city"`
	UsedAt  time.Time `db:"used_at"`
}

// Location returns the picked triple.
func (r RecentLocation) Location() Location {
	return Location{Country: r.Country, State: r.State, City: r.City}
}
