package model

import (
	"strings"
	"time"
)

// MatchStatus is the handshake state of a match. Values outside the known
// set are kept verbatim so they can be displayed without guessing.
type MatchStatus string

const (
	MatchPending           MatchStatus = "pending"
	MatchCarrierAccepted   MatchStatus = "carrier_accepted"
	MatchRequesterAccepted MatchStatus = "requester_accepted"
	MatchAccepted          MatchStatus = "accepted"
	MatchRejected          MatchStatus = "rejected"
)

// Normalize lower-cases the status as the backend is inconsistent about case.
func (s MatchStatus) Normalize() MatchStatus {
	return MatchStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

// Known reports whether s is one of the defined handshake states.
func (s MatchStatus) Known() bool {
	switch s.Normalize() {
	case MatchPending, MatchCarrierAccepted, MatchRequesterAccepted,
		MatchAccepted, MatchRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s MatchStatus) Terminal() bool {
	n := s.Normalize()
	return n == MatchAccepted || n == MatchRejected
}

// Label returns a short human label, e.g. "carrier accepted". Unknown
// statuses are returned verbatim.
func (s MatchStatus) Label() string {
	if !s.Known() {
		return string(s)
	}
	return strings.ReplaceAll(string(s.Normalize()), "_", " ")
}

// Match is a proposed pairing between one trip and one item request.
type Match struct {
	// ID is the backend's match key.
	ID ID `json:"id"`

	// Status is the handshake state.
	Status MatchStatus `json:"status"`

	// TripID and ItemRequestID reference the paired entities.
	TripID        ID `json:"tripId"`
	ItemRequestID ID `json:"itemRequestId"`

	// AgreedWeightKg is the weight both parties agreed on, if any.
	AgreedWeightKg *Kilograms `json:"agreedWeightKg,omitempty"`

	// DisplayStatus is a server-supplied human-readable override.
	DisplayStatus string `json:"displayStatus,omitempty"`

	// Trip and ItemRequest are embedded by list and detail endpoints.
	Trip        *Trip        `json:"trip,omitempty"`
	ItemRequest *ItemRequest `json:"itemRequest,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Weight returns the agreed weight, falling back to the request's weight.
func (m Match) Weight() Kilograms {
	if m.AgreedWeightKg != nil {
		return *m.AgreedWeightKg
	}
	if m.ItemRequest != nil {
		return m.ItemRequest.WeightKg
	}
	return 0
}

// Route returns "From → To" using whichever side has city data.
func (m Match) Route() (from, to string) {
	if m.Trip != nil {
		from, to = m.Trip.FromCity, m.Trip.ToCity
	}
	if from == "" && m.ItemRequest != nil {
		from = m.ItemRequest.FromCity
	}
	if to == "" && m.ItemRequest != nil {
		to = m.ItemRequest.ToCity
	}
	return from, to
}

// MatchFilter narrows GET /matches.
type MatchFilter struct {
	PageRequest

	// Status is empty for all statuses.
	Status MatchStatus

	TripID        ID
	ItemRequestID ID
}

// Decision is a party's answer to a proposed match.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// WireStatus is the status value PATCH /matches/{id}/status expects.
func (d Decision) WireStatus() MatchStatus {
	if d == DecisionAccept {
		return MatchAccepted
	}
	return MatchRejected
}
