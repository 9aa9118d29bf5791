package model

import "strings"

// Role distinguishes the two sides of the marketplace.
type Role string

const (
	// RoleCarrier is a traveler offering spare luggage space.
	RoleCarrier Role = "carrier"

	// RoleRequester is a user who wants an item transported.
	RoleRequester Role = "requester"
)

// User is the authenticated account as returned by login and profile calls.
type User struct {
	// ID is the user's UUID.
	ID string `json:"id"`

	// Email is the login address.
	Email string `json:"email"`

	// FirstName and LastName are stored separately by the backend.
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	// Phone is optional contact information.
	Phone string `json:"phone,omitempty"`

	// Role is "carrier" or "requester". Older accounts may carry other
	// values; callers should use IsCarrier/IsRequester.
	Role Role `json:"role"`
}

// FullName joins first and last names, skipping the "." placeholder the
// register form sends for single-word names.
func (u User) FullName() string {
	last := strings.TrimSpace(u.LastName)
	if last == "" || last == "." {
		return strings.TrimSpace(u.FirstName)
	}
	return strings.TrimSpace(u.FirstName + " " + last)
}

// IsCarrier reports whether the user acts as a carrier.
func (u User) IsCarrier() bool {
	return Role(strings.ToLower(string(u.Role))) == RoleCarrier
}

// IsRequester reports whether the user acts as a requester.
func (u User) IsRequester() bool {
	return Role(strings.ToLower(string(u.Role))) == RoleRequester
}

// Party is the other participant of a conversation or match.
type Party struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Name returns the party's display name.
func (p Party) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SplitFullName splits a full name at the first space. A single-word name
// gets "." as last name because the backend requires one.
func SplitFullName(full string) (first, last string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", "."
	}
	if len(fields) == 1 {
		return fields[0], "."
	}
	return fields[0], strings.Join(fields[1:], " ")
}
