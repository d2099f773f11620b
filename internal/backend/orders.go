package backend

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain"
)

// OrderRequest creates an order from the session's backend cart.
type OrderRequest struct {
	ShippingAddress domain.StructuredAddress `json:"shipping_address"`
	PaymentMethod   domain.PaymentMethod     `json:"payment_method"`
	TotalAmount     domain.Money             `json:"total_amount"`
	Items           []OrderLine              `json:"items,omitempty"`
}

// OrderLine mirrors one cart line at submission time.
type OrderLine struct {
	ProductID domain.ID    `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Price     domain.Money `json:"price"`
}

func (c *Client) CreateOrder(ctx context.Context, in OrderRequest) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodPost, path: "orders/", body: in, auth: authRequired})
}

func (c *Client) ListOrders(ctx context.Context, page int) (domain.Page[domain.Order], error) {
	return fetchPage[domain.Order](ctx, c, request{method: http.MethodGet, path: "orders/", query: pageQuery(page), auth: authRequired})
}

func (c *Client) GetOrder(ctx context.Context, id domain.ID) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodGet, path: "orders/" + url.PathEscape(id.String()) + "/", auth: authRequired})
}
