package model

// Location is a country/state/city triple. Country and state hold ISO codes
// as chosen from the location catalogue; city holds the city name.
type Location struct {
	Country string
	State   string
	City    string
}

// String renders "City, State, Country", skipping empty parts.
func (l Location) String() string {
	out := ""
	for _, part := range []string{l.City, l.State, l.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// Trip is a carrier's posted travel plan.
type Trip struct {
	// ID is the backend's trip key.
	ID ID `json:"id"`

	// Origin and destination, flattened as the API sends them.
	FromCountry string `json:"fromCountry"`
	FromState   string `json:"fromState"`
	FromCity    string `json:"fromCity"`
	ToCountry   string `json:"toCountry"`
	ToState     string `json:"toState"`
	ToCity      string `json:"toCity"`

	// DepartureDate is an ISO date (YYYY-MM-DD).
	DepartureDate string `json:"departureDate"`

	// ReturnDate is optional.
	ReturnDate *string `json:"returnDate"`

	// AvailableLuggageSpace is the spare capacity in kilograms.
	AvailableLuggageSpace Kilograms `json:"availableLuggageSpace"`

	// Notes is free text shown to requesters.
	Notes string `json:"notes"`

	// Status is the server-side trip status (e.g. "active").
	Status string `json:"status,omitempty"`

	// Matches is the number of matches found for this trip.
	Matches int `json:"matches,omitempty"`
}

// Origin returns the trip's departure location.
func (t Trip) Origin() Location {
	return Location{Country: t.FromCountry, State: t.FromState, City: t.FromCity}
}

// Destination returns the trip's arrival location.
func (t Trip) Destination() Location {
	return Location{Country: t.ToCountry, State: t.ToState, City: t.ToCity}
}

// NewTrip is the payload for POST /trips.
type NewTrip struct {
	FromCountry           string  `json:"fromCountry" validate:"required" label:"Origin country"`
	FromState             string  `json:"fromState" validate:"required" label:"Origin state"`
	FromCity              string  `json:"fromCity" validate:"required" label:"Origin city"`
	ToCountry             string  `json:"toCountry" validate:"required" label:"Destination country"`
	ToState               string  `json:"toState" validate:"required" label:"Destination state"`
	ToCity                string  `json:"toCity" validate:"required" label:"Destination city"`
	DepartureDate         string  `json:"departureDate" validate:"required,datetime=2006-01-02" label:"Departure date"`
	ReturnDate            *string `json:"returnDate" validate:"omitempty,datetime=2006-01-02" label:"Return date"`
	AvailableLuggageSpace float64 `json:"availableLuggageSpace" validate:"min=0.1" label:"Available space"`
	Notes                 string  `json:"notes"`
}
