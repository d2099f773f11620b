package backend

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain"
)

// CartItem is one server-side cart row with its nested product.
type CartItem struct {
	ID       domain.ID      `json:"id"`
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// WishlistItem is one server-side wishlist row.
type WishlistItem struct {
	ID      domain.ID      `json:"id"`
	Product domain.Product `json:"product"`
}

type addItemRequest struct {
	ProductID domain.ID `json:"product_id"`
	Quantity  int       `json:"quantity,omitempty"`
}

// ListCart returns every cart row, following pagination when the backend
// pages the listing.
func (c *Client) ListCart(ctx context.Context) ([]CartItem, error) {
	return fetchAll[CartItem](ctx, c, request{method: http.MethodGet, path: "cart/", auth: authRequired})
}

func (c *Client) AddToCart(ctx context.Context, productID domain.ID, quantity int) (CartItem, error) {
	return call[CartItem](ctx, c, request{
		method: http.MethodPost,
		path:   "cart/",
		body:   addItemRequest{ProductID: productID, Quantity: quantity},
		auth:   authRequired,
	})
}

func (c *Client) UpdateCartItem(ctx context.Context, lineID domain.ID, quantity int) (CartItem, error) {
	return call[CartItem](ctx, c, request{
		method: http.MethodPatch,
		path:   "cart/" + url.PathEscape(lineID.String()) + "/",
		body:   map[string]int{"quantity": quantity},
		auth:   authRequired,
	})
}

func (c *Client) RemoveCartItem(ctx context.Context, lineID domain.ID) error {
	return exec(ctx, c, request{method: http.MethodDelete, path: "cart/" + url.PathEscape(lineID.String()) + "/", auth: authRequired})
}

func (c *Client) ListWishlist(ctx context.Context) ([]WishlistItem, error) {
	return fetchAll[WishlistItem](ctx, c, request{method: http.MethodGet, path: "wishlist/", auth: authRequired})
}

func (c *Client) AddToWishlist(ctx context.Context, productID domain.ID) (WishlistItem, error) {
	return call[WishlistItem](ctx, c, request{
		method: http.MethodPost,
		path:   "wishlist/",
		body:   addItemRequest{ProductID: productID},
		auth:   authRequired,
	})
}

func (c *Client) RemoveWishlistItem(ctx context.Context, entryID domain.ID) error {
	return exec(ctx, c, request{method: http.MethodDelete, path: "wishlist/" + url.PathEscape(entryID.String()) + "/", auth: authRequired})
}
