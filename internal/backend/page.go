package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"storefront/internal/domain"
)

// decodePage accepts the paginated envelope or a bare JSON array.
func decodePage[T any](payload []byte) (domain.Page[T], error) {
	var page domain.Page[T]
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return page, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Results); err != nil {
			return page, err
		}
		page.Count = len(page.Results)
		return page, nil
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return page, err
	}
	if page.Count == 0 {
		page.Count = len(page.Results)
	}
	return page, nil
}

func fetchPage[T any](ctx context.Context, c *Client, req request) (domain.Page[T], error) {
	payload, err := c.do(ctx, req)
	if err != nil {
		return domain.Page[T]{}, err
	}
	page, err := decodePage[T](payload)
	if err != nil {
		return page, fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return page, nil
}

// maxPages bounds fetchAll against a backend whose next links never end.
const maxPages = 100

// fetchAll walks the next links of a paginated listing and returns every
// row. Links are reduced to their page number so requests stay on the
// configured base URL.
func fetchAll[T any](ctx context.Context, c *Client, req request) ([]T, error) {
	var all []T
	for pageNum := 1; pageNum <= maxPages; {
		page, err := fetchPage[T](ctx, c, req)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		next := PageNumber(page.Next)
		if next <= pageNum {
			return all, nil
		}
		pageNum = next
		q := url.Values{}
		for k, v := range req.query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(pageNum))
		req.query = q
	}
	return nil, fmt.Errorf("%s %s: more than %d pages", req.method, req.path, maxPages)
}

// PageNumber extracts the page query parameter from a next/previous link.
// A previous link without a page parameter points at page 1; a blank link
// yields 0.
func PageNumber(link string) int {
	if link == "" {
		return 0
	}
	u, err := url.Parse(link)
	if err != nil {
		return 0
	}
	p := u.Query().Get("page")
	if p == "" {
		return 1
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 {
		return 0
	}
	return n
}
