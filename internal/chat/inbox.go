package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/dconnect/courier/internal/model"
)

// InboxAPI lists the caller's conversations.
type InboxAPI interface {
	Inbox(ctx context.Context) ([]model.InboxItem, error)
}

// Inbox fetches the conversation list and keeps the items matching query.
func Inbox(ctx context.Context, api InboxAPI, query string) ([]model.InboxItem, error) {
	items, err := api.Inbox(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching inbox")
	}
	return FilterInbox(items, query), nil
}

// FilterInbox matches query case-insensitively against the other party's
// name and both ends of the route. An empty query keeps everything.
func FilterInbox(items []model.InboxItem, query string) []model.InboxItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}

	var out []model.InboxItem
	for _, it := range items {
		name := strings.ToLower(it.OtherParty.FirstName + " " + it.OtherParty.LastName)
		switch {
		case strings.Contains(name, q),
			strings.Contains(strings.ToLower(it.TripInfo.From), q),
			strings.Contains(strings.ToLower(it.TripInfo.To), q):
			out = append(out, it)
		}
	}
	return out
}
