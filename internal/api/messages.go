package api

import (
	"context"

	"github.com/dconnect/courier/internal/model"
)

// Inbox lists the user's conversations, one per match.
func (c *Client) Inbox(ctx context.Context) ([]model.InboxItem, error) {
	var items []model.InboxItem
	if err := c.get(ctx, "/messages/inbox", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ChatHistory returns the conversation for a match.
func (c *Client) ChatHistory(ctx context.Context, matchID model.ID) (*model.ChatHistory, error) {
	var history model.ChatHistory
	if err := c.get(ctx, "/messages/match/"+matchID.String(), nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// SendMessage posts a chat message and returns it as stored.
func (c *Client) SendMessage(ctx context.Context, msg model.NewMessage) (*model.ChatMessage, error) {
	var sent model.ChatMessage
	if err := c.post(ctx, "/messages", msg, &sent); err != nil {
		return nil, err
	}
	return &sent, nil
}
