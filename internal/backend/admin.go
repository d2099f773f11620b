package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/domain"
)

// AdminStats is the backend-computed dashboard aggregate.
type AdminStats struct {
	TotalOrders   int          `json:"total_orders"`
	TotalRevenue  domain.Money `json:"total_revenue"`
	TotalUsers    int          `json:"total_users"`
	TotalProducts int          `json:"total_products"`
	PendingOrders int          `json:"pending_orders"`
	LowStock      int          `json:"low_stock_products"`
}

// ProductInput is the admin create/update form. When Uploads is non-empty
// the request goes out as multipart; otherwise images are URL references.
type ProductInput struct {
	Name        string
	Description string
	Price       domain.Money
	Stock       int
	Category    string
	ImageURLs   []string
	Uploads     []Upload
}

// Validate checks the fields the backend requires.
func (in ProductInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	case in.Price <= 0:
		return fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", domain.ErrValidation)
	}
	return nil
}

type productJSON struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       domain.Money `json:"price"`
	Stock       int          `json:"stock"`
	Category    string       `json:"category,omitempty"`
	ImageURLs   []string     `json:"image_urls,omitempty"`
}

func (in ProductInput) request(method, path string) request {
	req := request{method: method, path: path, auth: authRequired}
	if len(in.Uploads) == 0 {
		req.body = productJSON{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.Stock,
			Category:    in.Category,
			ImageURLs:   in.ImageURLs,
		}
		return req
	}
	form := &multipartBody{uploads: in.Uploads}
	form.add("name", in.Name)
	form.add("description", in.Description)
	form.add("price", strconv.FormatFloat(float64(in.Price), 'f', 2, 64))
	form.add("stock", strconv.Itoa(in.Stock))
	if in.Category != "" {
		form.add("category", in.Category)
	}
	for _, u := range in.ImageURLs {
		form.add("image_urls", u)
	}
	req.form = form
	return req
}

// NotificationInput is a notification to send. A blank Recipient
// broadcasts to every user.
type NotificationInput struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Recipient domain.ID `json:"recipient,omitempty"`
}

// SendResult reports how many users a notification reached.
type SendResult struct {
	Sent   int    `json:"sent"`
	Detail string `json:"detail"`
}

// AdminOrderQuery filters the admin order listing.
type AdminOrderQuery struct {
	Status domain.OrderStatus
	Page   int
}

func (c *Client) AdminStats(ctx context.Context) (AdminStats, error) {
	return call[AdminStats](ctx, c, request{method: http.MethodGet, path: "admin/stats/", auth: authRequired})
}

func (c *Client) AdminOrders(ctx context.Context, q AdminOrderQuery) (domain.Page[domain.Order], error) {
	query := pageQuery(q.Page)
	if q.Status != "" {
		query.Set("status", string(q.Status))
	}
	return fetchPage[domain.Order](ctx, c, request{method: http.MethodGet, path: "admin/orders/", query: query, auth: authRequired})
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id domain.ID, status domain.OrderStatus) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{
		method: http.MethodPatch,
		path:   "admin/orders/" + url.PathEscape(id.String()) + "/",
		body:   map[string]domain.OrderStatus{"status": status},
		auth:   authRequired,
	})
}

func (c *Client) AdminUsers(ctx context.Context, search string, page int) (domain.Page[domain.User], error) {
	query := pageQuery(page)
	if s := strings.TrimSpace(search); s != "" {
		query.Set("search", s)
	}
	return fetchPage[domain.User](ctx, c, request{method: http.MethodGet, path: "admin/users/", query: query, auth: authRequired})
}

// SetUserActive blocks (active=false) or unblocks a user.
func (c *Client) SetUserActive(ctx context.Context, id domain.ID, active bool) (domain.User, error) {
	return call[domain.User](ctx, c, request{
		method: http.MethodPatch,
		path:   "admin/users/" + url.PathEscape(id.String()) + "/",
		body:   map[string]bool{"is_active": active},
		auth:   authRequired,
	})
}

func (c *Client) DeleteUser(ctx context.Context, id domain.ID) error {
	return exec(ctx, c, request{method: http.MethodDelete, path: "admin/users/" + url.PathEscape(id.String()) + "/", auth: authRequired})
}

func (c *Client) AdminProducts(ctx context.Context, search string, page int) (domain.Page[domain.Product], error) {
	query := pageQuery(page)
	if s := strings.TrimSpace(search); s != "" {
		query.Set("search", s)
	}
	return fetchPage[domain.Product](ctx, c, request{method: http.MethodGet, path: "admin/products/", query: query, auth: authRequired})
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	return call[domain.Product](ctx, c, in.request(http.MethodPost, "admin/products/"))
}

func (c *Client) UpdateProduct(ctx context.Context, id domain.ID, in ProductInput) (domain.Product, error) {
	return call[domain.Product](ctx, c, in.request(http.MethodPatch, "admin/products/"+url.PathEscape(id.String())+"/"))
}

func (c *Client) DeleteProduct(ctx context.Context, id domain.ID) error {
	return exec(ctx, c, request{method: http.MethodDelete, path: "admin/products/" + url.PathEscape(id.String()) + "/", auth: authRequired})
}

func (c *Client) SendNotification(ctx context.Context, in NotificationInput) (SendResult, error) {
	return call[SendResult](ctx, c, request{method: http.MethodPost, path: "admin/notifications/send/", body: in, auth: authRequired})
}
