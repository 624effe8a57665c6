package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"tradewatch/internal/model"
)

// GetStocks retrieves the full instrument catalog.
func (c *Client) GetStocks(ctx context.Context) ([]model.Instrument, error) {
	var stocks []model.Instrument
	if err := c.getJSON(ctx, "/stocks", nil, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// GetStockHistory retrieves historical daily quotes for one symbol.
func (c *Client) GetStockHistory(ctx context.Context, symbol string) ([]model.Quote, error) {
	var quotes []model.Quote
	if err := c.getJSON(ctx, "/stocks/"+url.PathEscape(symbol), nil, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// GetNasdaqSummary retrieves the NASDAQ composite snapshot.
func (c *Client) GetNasdaqSummary(ctx context.Context) (*model.IndexSummary, error) {
	var summary model.IndexSummary
	if err := c.getJSON(ctx, "/NASDAQ-summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetNews retrieves a page of news articles.
func (c *Client) GetNews(ctx context.Context, page, pageSize int) ([]model.Article, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var articles []model.Article
	if err := c.getJSON(ctx, "/news", query, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// GetTransactions retrieves the account transaction history.
func (c *Client) GetTransactions(ctx context.Context) ([]model.Transaction, error) {
	var txs []model.Transaction
	if err := c.getJSON(ctx, "/transactions", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// GetUser retrieves the full identity record for a user ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*model.Identity, error) {
	var identity model.Identity
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(userID), nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// GetUserBalance retrieves the cash balance for a user ID.
func (c *Client) GetUserBalance(ctx context.Context, userID string) (float64, error) {
	var resp struct {
		Balance float64 `json:"balance"`
	}
	path := fmt.Sprintf("/users/%s/balance", url.PathEscape(userID))
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}
