package gateway

import (
	"context"
	"net/http"

	"storefront/internal/domain"
)

type orderResponse struct {
	Order domain.Order `json:"order"`
}

type storeAddressesResponse struct {
	StoreAddresses []domain.StoreAddress `json:"store_addresses"`
}

// CreateOrder places an order for the current cart. Failures come back as
// *domain.APIError carrying the backend status (409, 422, 404, ...).
func (c *Client) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/orders", body: in}, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// ListStoreAddresses returns the stores available for pick-up.
func (c *Client) ListStoreAddresses(ctx context.Context) ([]domain.StoreAddress, error) {
	var resp storeAddressesResponse
	if err := c.do(ctx, &call{method: http.MethodGet, path: "/store_addresses"}, &resp); err != nil {
		return nil, err
	}
	return resp.StoreAddresses, nil
}
