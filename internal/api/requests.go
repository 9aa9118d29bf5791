package api

import (
	"context"

	"github.com/dconnect/courier/internal/model"
)

// MyItemRequests returns a page of the current requester's item requests.
func (c *Client) MyItemRequests(ctx context.Context, p model.PageRequest) (*model.Page[model.ItemRequest], error) {
	var page model.Page[model.ItemRequest]
	if err := c.get(ctx, "/item-requests/my", pageQuery(p), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateItemRequest posts a new item request.
func (c *Client) CreateItemRequest(ctx context.Context, req model.NewItemRequest) (*model.ItemRequest, error) {
	var created model.ItemRequest
	if err := c.post(ctx, "/item-requests", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ItemRequestCount returns how many item requests the current user has posted.
func (c *Client) ItemRequestCount(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.get(ctx, "/item-requests/count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
