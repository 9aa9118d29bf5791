package model

import "time"

// ChatMessage is one message exchanged between the two parties of a match.
type ChatMessage struct {
	ID        ID        `json:"id"`
	MatchID   ID        `json:"matchId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Route is a from/to pair of city names.
type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChatInfo describes the conversation's match and counterpart.
type ChatInfo struct {
	MatchID     ID     `json:"matchId"`
	Status      string `json:"status"`
	OtherParty  Party  `json:"otherParty"`
	TripDetails Route  `json:"tripDetails"`
}

// ChatHistory is the response of GET /messages/match/{matchId}.
type ChatHistory struct {
	ChatInfo ChatInfo      `json:"chatInfo"`
	Messages []ChatMessage `json:"messages"`
}

// InboxItem summarizes one conversation in GET /messages/inbox.
type InboxItem struct {
	MatchID         ID        `json:"matchId"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageDate time.Time `json:"lastMessageDate"`
	OtherParty      Party     `json:"otherParty"`
	TripInfo        Route     `json:"tripInfo"`
}

// NewMessage is the payload for POST /messages.
type NewMessage struct {
	MatchID ID     `json:"matchId"`
	Content string `json:"content"`
}
