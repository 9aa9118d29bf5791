package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an entity identifier as sent by the backend. Trips, requests and
// notifications use numeric keys while users use UUID strings; ID accepts
// either form and always holds the textual value.
type ID string

// UnmarshalJSON decodes a JSON number or string into an ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the textual identifier.
func (id ID) String() string { return string(id) }

// Kilograms is a weight that the backend serializes either as a JSON number
// or as a decimal string (NUMERIC columns).
type Kilograms float64

// UnmarshalJSON decodes a JSON number, numeric string, or null.
func (k *Kilograms) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*k = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding weight: %w", err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("decoding weight %q: %w", s, err)
		}
		*k = Kilograms(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding weight: %w", err)
	}
	*k = Kilograms(f)
	return nil
}

// String formats the weight with one decimal place, e.g. "2.5 kg".
func (k Kilograms) String() string {
	return strconv.FormatFloat(float64(k), 'f', 1, 64) + " kg"
}

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

// PageRequest selects a page of a list endpoint. Zero values let the
// server apply its own defaults.
type PageRequest struct {
	Page  int
	Limit int
}

// MarshalJSON emits purely numeric IDs as JSON numbers so payloads round
// trip to the backend in the form it sent them.
func (id ID) MarshalJSON() ([]byte, error) {
	// Only canonical integers go out as numbers; "007" or "+5" stay strings.
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
