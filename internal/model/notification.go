package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notification types emitted by the backend.
const (
	NotificationNewMatch      = "new_match"
	NotificationMatchAccepted = "match_accepted"
	NotificationMatchRejected = "match_rejected"
	NotificationMatchStatus   = "match_status_update"
	NotificationNewMessage    = "new_message"
)

// DetailsKind tags the variant held by Notification.Details.
type DetailsKind string

const (
	DetailsMatch   DetailsKind = "match"
	DetailsMessage DetailsKind = "message"
	DetailsUnknown DetailsKind = "unknown"
)

// Details is the structured payload attached to a notification. The
// concrete type is selected by the notification's type tag.
type Details interface {
	Kind() DetailsKind
}

// MatchDetails accompanies match lifecycle notifications.
type MatchDetails struct {
	ItemName      string      `json:"itemName,omitempty"`
	ToCity        string      `json:"toCity,omitempty"`
	DepartureDate string      `json:"departureDate,omitempty"`
	MatchStatus   MatchStatus `json:"matchStatus,omitempty"`
}

func (MatchDetails) Kind() DetailsKind { return DetailsMatch }

// MessageDetails accompanies chat notifications.
type MessageDetails struct {
	MatchID    ID     `json:"matchId,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	Preview    string `json:"preview,omitempty"`
}

func (MessageDetails) Kind() DetailsKind { return DetailsMessage }

// UnknownDetails keeps the raw payload of types this client does not know.
type UnknownDetails struct {
	Raw json.RawMessage
}

func (UnknownDetails) Kind() DetailsKind { return DetailsUnknown }

// Notification represents one event delivered to the user.
type Notification struct {
	// ID is the backend's notification key.
	ID ID `json:"id"`

	// UserID is the owning user.
	UserID string `json:"userId"`

	// Title and Message are the human-readable text.
	Title   string `json:"title"`
	Message string `json:"message"`

	// Type is the tag that selects the Details variant.
	Type string `json:"type"`

	// RelatedID points at the entity the notification is about, usually a match.
	RelatedID string `json:"relatedId,omitempty"`

	// IsRead is monotonic on the client: once true it only reverts when the
	// server says so.
	IsRead bool `json:"isRead"`

	// CreatedAt is when the notification was generated.
	CreatedAt time.Time `json:"createdAt"`

	// Details is nil when the server sent none.
	Details Details `json:"-"`
}

// UnmarshalJSON decodes the notification and dispatches its details
// payload on Type.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var raw struct {
		plain
		RelatedID json.RawMessage `json:"relatedId"`
		Details   json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding notification: %w", err)
	}

	*n = Notification(raw.plain)

	if len(raw.RelatedID) > 0 {
		var related ID
		if err := json.Unmarshal(raw.RelatedID, &related); err != nil {
			return fmt.Errorf("decoding notification %s related id: %w", n.ID, err)
		}
		n.RelatedID = string(related)
	}

	details, err := decodeDetails(n.Type, raw.Details)
	if err != nil {
		return fmt.Errorf("decoding notification %s details: %w", n.ID, err)
	}
	n.Details = details
	return nil
}

// MarshalJSON encodes the notification with its details variant.
func (n Notification) MarshalJSON() ([]byte, error) {
	type plain Notification
	out := struct {
		plain
		Details any `json:"details,omitempty"`
	}{plain: plain(n)}

	switch d := n.Details.(type) {
	case UnknownDetails:
		out.Details = d.Raw
	case nil:
	default:
		out.Details = d
	}
	return json.Marshal(out)
}

func decodeDetails(kind string, raw json.RawMessage) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch kind {
	case NotificationNewMatch, NotificationMatchAccepted,
		NotificationMatchRejected, NotificationMatchStatus:
		var d MatchDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case NotificationNewMessage:
		var d MessageDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		kept := make(json.RawMessage, len(raw))
		copy(kept, raw)
		return UnknownDetails{Raw: kept}, nil
	}
}
