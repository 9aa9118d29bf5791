package api

import (
	"context"

	"github.com/dconnect/courier/internal/model"
)

// NotificationPage is the response of GET /notifications. UnreadCount is
// set only when the server reports the count alongside the list.
type NotificationPage struct {
	model.Page[model.Notification]
	UnreadCount *int `json:"unreadCount,omitempty"`
}

// Notifications returns a page of the current user's notifications.
// Fetching page 1 marks notifications as seen on the server and may reset
// the unread count as a side effect.
func (c *Client) Notifications(ctx context.Context, p model.PageRequest) (*NotificationPage, error) {
	var page NotificationPage
	if err := c.get(ctx, "/notifications", pageQuery(p), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UnreadNotificationCount reads the unread count without side effects.
func (c *Client) UnreadNotificationCount(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.get(ctx, "/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id model.ID) error {
	return c.patch(ctx, "/notifications/"+id.String()+"/read", nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.patch(ctx, "/notifications/mark-all-read", nil, nil)
}
