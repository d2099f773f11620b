package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/domain"
)

// ProductQuery is the catalog filter sent as query parameters.
type ProductQuery struct {
	Search   string
	Category string
	Ordering string
	Page     int
}

func (q ProductQuery) values() url.Values {
	v := pageQuery(q.Page)
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	if s := strings.TrimSpace(q.Category); s != "" {
		v.Set("category", s)
	}
	if s := strings.TrimSpace(q.Ordering); s != "" {
		v.Set("ordering", s)
	}
	return v
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (domain.Page[domain.Product], error) {
	return fetchPage[domain.Product](ctx, c, request{method: http.MethodGet, path: "products/", query: q.values()})
}

func (c *Client) GetProduct(ctx context.Context, id domain.ID) (domain.Product, error) {
	return call[domain.Product](ctx, c, request{method: http.MethodGet, path: "products/" + url.PathEscape(id.String()) + "/"})
}
