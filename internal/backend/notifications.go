package backend

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain"
)

func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	page, err := fetchPage[domain.Notification](ctx, c, request{method: http.MethodGet, path: "notifications/", auth: authRequired})
	return page.Results, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id domain.ID) error {
	return exec(ctx, c, request{
		method: http.MethodPost,
		path:   "notifications/" + url.PathEscape(id.String()) + "/read/",
		auth:   authRequired,
	})
}
