package catalog

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

// Orderings are the sort keys the product list accepts.
var Orderings = []string{"price", "-price", "name", "-name", "created_at", "-created_at"}

// Filter is the catalog state carried in the page URL.
type Filter struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
	Ordering string `json:"ordering,omitempty"`
	Page     int    `json:"page,omitempty"`
}

// ParseFilter reads a filter from URL query values. Unknown orderings and
// page numbers below 1 are dropped.
func ParseFilter(v url.Values) Filter {
	f := Filter{
		Search:   strings.TrimSpace(v.Get("search")),
		Category: strings.TrimSpace(v.Get("category")),
		Ordering: strings.TrimSpace(v.Get("ordering")),
	}
	if !slices.Contains(Orderings, f.Ordering) {
		f.Ordering = ""
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 1 {
		f.Page = n
	}
	return f
}

// Query encodes f back into URL values so the page stays shareable.
func (f Filter) Query() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.Ordering != "" {
		v.Set("ordering", f.Ordering)
	}
	if f.Page > 1 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	return v
}

// WithPage returns a copy of f pointing at page n.
func (f Filter) WithPage(n int) Filter {
	f.Page = n
	return f
}

// Listing is one rendered catalog page.
type Listing struct {
	Filter     Filter           `json:"filter"`
	Products   []domain.Product `json:"products"`
	Categories []string         `json:"categories"`
	Count      int              `json:"count"`
	NextPage   int              `json:"nextPage,omitempty"`
	PrevPage   int              `json:"previousPage,omitempty"`
	NextURL    string           `json:"nextUrl,omitempty"`
	PrevURL    string           `json:"previousUrl,omitempty"`
}

type API interface {
	ListProducts(ctx context.Context, q backend.ProductQuery) (domain.Page[domain.Product], error)
	GetProduct(ctx context.Context, id domain.ID) (domain.Product, error)
}

type Service struct {
	api API
}

func New(api API) *Service {
	return &Service{api: api}
}

// List fetches the page described by f. Image references are resolved
// against imageHost when they are relative.
func (s *Service) List(ctx context.Context, f Filter, imageHost string) (Listing, error) {
	page, err := s.api.ListProducts(ctx, backend.ProductQuery{
		Search:   f.Search,
		Category: f.Category,
		Ordering: f.Ordering,
		Page:     f.Page,
	})
	if err != nil {
		return Listing{}, err
	}
	products := page.Results
	for i := range products {
		resolveImages(&products[i], imageHost)
	}
	out := Listing{
		Filter:     f,
		Products:   products,
		Categories: Categories(products),
		Count:      page.Count,
		NextPage:   backend.PageNumber(page.Next),
		PrevPage:   backend.PageNumber(page.Previous),
	}
	if out.NextPage > 0 {
		out.NextURL = "/api/products?" + f.WithPage(out.NextPage).Query().Encode()
	}
	if out.PrevPage > 0 {
		out.PrevURL = "/api/products?" + f.WithPage(out.PrevPage).Query().Encode()
	}
	if out.Products == nil {
		out.Products = []domain.Product{}
	}
	return out, nil
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, id domain.ID, imageHost string) (domain.Product, error) {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	resolveImages(&p, imageHost)
	return p, nil
}

// Categories lists the distinct category names on a page, sorted.
func Categories(products []domain.Product) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range products {
		name := strings.TrimSpace(string(p.Category))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func resolveImages(p *domain.Product, host string) {
	for i := range p.Images {
		p.Images[i].URL = p.Images[i].ResolveURL(host)
	}
	p.Image = p.PrimaryImage()
	p.Image.URL = p.Image.ResolveURL(host)
}
