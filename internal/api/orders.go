package api

import (
	"context"
	"fmt"
)

// CreateOrderRequest is the body for POST /portfolio/orders. Prices are
// in cents; exactly one of YesPrice/NoPrice is set depending on side.
type CreateOrderRequest struct {
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`   // "yes" or "no"
	Action        string `json:"action"` // "buy" or "sell"
	Count         int64  `json:"count"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Type          string `json:"type,omitempty"` // "limit"
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
	TimeInForce   string `json:"time_in_force,omitempty"` // "ioc" or "gtc"
	PostOnly      *bool  `json:"post_only,omitempty"`
	ExpirationTS  *int64 `json:"expiration_ts,omitempty"`
	BuyMaxCost    *int64 `json:"buy_max_cost,omitempty"`
}

// APIOrder represents an order returned by the portfolio endpoints.
type APIOrder struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	Count          int64  `json:"count"`
	RemainingCount int64  `json:"remaining_count"`
	CreatedTime    string `json:"created_time"`
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Order APIOrder `json:"order"`
}

// CreateOrder submits a limit order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*APIOrder, error) {
	var resp OrderResponse
	if err := c.post(ctx, "/portfolio/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("create order %s: %w", req.Ticker, err)
	}
	return &resp.Order, nil
}

// CancelOrder cancels a resting order by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.del(ctx, "/portfolio/orders/"+orderID, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}
