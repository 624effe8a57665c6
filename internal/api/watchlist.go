package api

import (
	"context"
	"fmt"
	"net/url"

	"tradewatch/internal/model"
)

// GetWatchlist retrieves the membership records for a user.
func (c *Client) GetWatchlist(ctx context.Context, userID string) ([]model.Membership, error) {
	var items []model.Membership
	if err := c.getJSON(ctx, "/watchlist/"+url.PathEscape(userID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToWatchlist adds (userID, symbol) to the remote watchlist.
func (c *Client) AddToWatchlist(ctx context.Context, userID, symbol string) error {
	path := fmt.Sprintf("/watchlist/%s/%s", url.PathEscape(userID), url.PathEscape(symbol))
	return c.postJSON(ctx, path, nil, nil)
}

// RemoveFromWatchlist removes (userID, symbol) from the remote watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, userID, symbol string) error {
	path := fmt.Sprintf("/watchlist/%s/%s", url.PathEscape(userID), url.PathEscape(symbol))
	return c.delete(ctx, path)
}
