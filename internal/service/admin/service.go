package admin

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/optimistic"
)

// LowStockThreshold marks products at or below this stock as low.
const LowStockThreshold = 5

type API interface {
	AdminStats(ctx context.Context) (backend.AdminStats, error)
	AdminOrders(ctx context.Context, q backend.AdminOrderQuery) (domain.Page[domain.Order], error)
	UpdateOrderStatus(ctx context.Context, id domain.ID, status domain.OrderStatus) (domain.Order, error)
	AdminUsers(ctx context.Context, search string, page int) (domain.Page[domain.User], error)
	SetUserActive(ctx context.Context, id domain.ID, active bool) (domain.User, error)
	DeleteUser(ctx context.Context, id domain.ID) error
	AdminProducts(ctx context.Context, search string, page int) (domain.Page[domain.Product], error)
	CreateProduct(ctx context.Context, in backend.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id domain.ID, in backend.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ID) error
	SendNotification(ctx context.Context, in backend.NotificationInput) (backend.SendResult, error)
}

// Service backs the admin screens of one browser. Each table keeps the
// last loaded page so inline edits show immediately and roll back when
// the backend refuses them.
type Service struct {
	api      API
	orders   *optimistic.Value[domain.Page[domain.Order]]
	users    *optimistic.Value[domain.Page[domain.User]]
	products *optimistic.Value[domain.Page[domain.Product]]
}

func New(api API) *Service {
	return &Service{
		api:      api,
		orders:   optimistic.NewValue(domain.Page[domain.Order]{}, clonePage[domain.Order]),
		users:    optimistic.NewValue(domain.Page[domain.User]{}, clonePage[domain.User]),
		products: optimistic.NewValue(domain.Page[domain.Product]{}, clonePage[domain.Product]),
	}
}

func clonePage[T any](p domain.Page[T]) domain.Page[T] {
	p.Results = slices.Clone(p.Results)
	return p
}

// Reset forgets every loaded table.
func (s *Service) Reset() {
	s.orders.Reset(domain.Page[domain.Order]{})
	s.users.Reset(domain.Page[domain.User]{})
	s.products.Reset(domain.Page[domain.Product]{})
}

// Dashboard returns the backend's aggregate figures.
func (s *Service) Dashboard(ctx context.Context) (backend.AdminStats, error) {
	return s.api.AdminStats(ctx)
}

// OrderSummary is computed from the loaded page only.
type OrderSummary struct {
	Orders   int                        `json:"orders"`
	Revenue  domain.Money               `json:"revenue"`
	ByStatus map[domain.OrderStatus]int `json:"byStatus"`
}

// OrderTable is one admin orders page with its summary.
type OrderTable struct {
	Orders   []domain.Order `json:"orders"`
	Count    int            `json:"count"`
	NextPage int            `json:"nextPage,omitempty"`
	PrevPage int            `json:"previousPage,omitempty"`
	Summary  OrderSummary   `json:"summary"`
}

// SummarizeOrders totals revenue over non-cancelled orders and counts
// orders per status.
func SummarizeOrders(orders []domain.Order) OrderSummary {
	sum := OrderSummary{Orders: len(orders), ByStatus: make(map[domain.OrderStatus]int, len(domain.OrderStatuses))}
	for _, st := range domain.OrderStatuses {
		sum.ByStatus[st] = 0
	}
	for _, o := range orders {
		sum.ByStatus[o.Status]++
		if o.Status != domain.OrderCancelled {
			sum.Revenue += o.TotalAmount
		}
	}
	sum.Revenue = sum.Revenue.Round2()
	return sum
}

func (s *Service) Orders(ctx context.Context, q backend.AdminOrderQuery) (OrderTable, error) {
	gen := s.orders.Generation()
	page, err := s.api.AdminOrders(ctx, q)
	if err != nil {
		return OrderTable{}, err
	}
	s.orders.Store(gen, page)
	return orderTable(page), nil
}

func orderTable(page domain.Page[domain.Order]) OrderTable {
	orders := page.Results
	if orders == nil {
		orders = []domain.Order{}
	}
	return OrderTable{
		Orders:   orders,
		Count:    page.Count,
		NextPage: backend.PageNumber(page.Next),
		PrevPage: backend.PageNumber(page.Previous),
		Summary:  SummarizeOrders(orders),
	}
}

// SetOrderStatus edits a status inline. The loaded page shows the new
// status at once and reverts if the backend refuses.
func (s *Service) SetOrderStatus(ctx context.Context, id domain.ID, raw string) (OrderTable, error) {
	status, err := domain.ParseOrderStatus(raw)
	if err != nil {
		return OrderTable{}, err
	}
	var confirmed domain.Order
	err = optimistic.Run(ctx, s.orders, optimistic.Op[domain.Page[domain.Order]]{
		Mutate: func(p domain.Page[domain.Order]) domain.Page[domain.Order] {
			for i := range p.Results {
				if p.Results[i].ID == id {
					p.Results[i].Status = status
				}
			}
			return p
		},
		Confirm: func(ctx context.Context) error {
			o, err := s.api.UpdateOrderStatus(ctx, id, status)
			confirmed = o
			return err
		},
		Settle: func(p domain.Page[domain.Order]) domain.Page[domain.Order] {
			if confirmed.ID == "" {
				return p
			}
			for i := range p.Results {
				if p.Results[i].ID == confirmed.ID {
					p.Results[i] = confirmed
				}
			}
			return p
		},
		Recovery: optimistic.RecoverRollback,
	})
	if err != nil {
		return OrderTable{}, err
	}
	return orderTable(s.orders.Get()), nil
}

// UserSummary is computed from the loaded page only.
type UserSummary struct {
	Users   int `json:"users"`
	Active  int `json:"active"`
	Blocked int `json:"blocked"`
	Staff   int `json:"staff"`
}

type UserTable struct {
	Users    []domain.User `json:"users"`
	Count    int           `json:"count"`
	NextPage int           `json:"nextPage,omitempty"`
	PrevPage int           `json:"previousPage,omitempty"`
	Summary  UserSummary   `json:"summary"`
}

func SummarizeUsers(users []domain.User) UserSummary {
	sum := UserSummary{Users: len(users)}
	for _, u := range users {
		if u.IsActive {
			sum.Active++
		} else {
			sum.Blocked++
		}
		if u.IsStaff {
			sum.Staff++
		}
	}
	return sum
}

func (s *Service) Users(ctx context.Context, search string, page int) (UserTable, error) {
	gen := s.users.Generation()
	p, err := s.api.AdminUsers(ctx, search, page)
	if err != nil {
		return UserTable{}, err
	}
	s.users.Store(gen, p)
	return userTable(p), nil
}

func userTable(p domain.Page[domain.User]) UserTable {
	users := p.Results
	if users == nil {
		users = []domain.User{}
	}
	return UserTable{
		Users:    users,
		Count:    p.Count,
		NextPage: backend.PageNumber(p.Next),
		PrevPage: backend.PageNumber(p.Previous),
		Summary:  SummarizeUsers(users),
	}
}

// SetUserBlocked blocks or unblocks a user.
func (s *Service) SetUserBlocked(ctx context.Context, id domain.ID, blocked bool) (UserTable, error) {
	err := optimistic.Run(ctx, s.users, optimistic.Op[domain.Page[domain.User]]{
		Mutate: func(p domain.Page[domain.User]) domain.Page[domain.User] {
			for i := range p.Results {
				if p.Results[i].ID == id {
					p.Results[i].IsActive = !blocked
				}
			}
			return p
		},
		Confirm: func(ctx context.Context) error {
			_, err := s.api.SetUserActive(ctx, id, !blocked)
			return err
		},
		Recovery: optimistic.RecoverRollback,
	})
	if err != nil {
		return UserTable{}, err
	}
	return userTable(s.users.Get()), nil
}

func (s *Service) DeleteUser(ctx context.Context, id domain.ID) (UserTable, error) {
	err := optimistic.Run(ctx, s.users, optimistic.Op[domain.Page[domain.User]]{
		Mutate: func(p domain.Page[domain.User]) domain.Page[domain.User] {
			before := len(p.Results)
			p.Results = slices.DeleteFunc(p.Results, func(u domain.User) bool { return u.ID == id })
			p.Count -= before - len(p.Results)
			return p
		},
		Confirm: func(ctx context.Context) error {
			return s.api.DeleteUser(ctx, id)
		},
		Recovery: optimistic.RecoverRollback,
	})
	if err != nil {
		return UserTable{}, err
	}
	return userTable(s.users.Get()), nil
}

// ProductSummary is computed from the loaded page only.
type ProductSummary struct {
	Products   int          `json:"products"`
	LowStock   int          `json:"lowStock"`
	OutOfStock int          `json:"outOfStock"`
	StockValue domain.Money `json:"stockValue"`
}

type ProductTable struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
	NextPage int              `json:"nextPage,omitempty"`
	PrevPage int              `json:"previousPage,omitempty"`
	Summary  ProductSummary   `json:"summary"`
}

func SummarizeProducts(products []domain.Product) ProductSummary {
	sum := ProductSummary{Products: len(products)}
	for _, p := range products {
		switch {
		case p.Stock <= 0:
			sum.OutOfStock++
		case p.Stock <= LowStockThreshold:
			sum.LowStock++
		}
		if p.Stock > 0 {
			sum.StockValue += p.Price * domain.Money(p.Stock)
		}
	}
	sum.StockValue = sum.StockValue.Round2()
	return sum
}

func (s *Service) Products(ctx context.Context, search string, page int) (ProductTable, error) {
	gen := s.products.Generation()
	p, err := s.api.AdminProducts(ctx, search, page)
	if err != nil {
		return ProductTable{}, err
	}
	s.products.Store(gen, p)
	return productTable(p), nil
}

func productTable(p domain.Page[domain.Product]) ProductTable {
	products := p.Results
	if products == nil {
		products = []domain.Product{}
	}
	return ProductTable{
		Products: products,
		Count:    p.Count,
		NextPage: backend.PageNumber(p.Next),
		PrevPage: backend.PageNumber(p.Previous),
		Summary:  SummarizeProducts(products),
	}
}

// CreateProduct sends the form and mirrors the created product at the top
// of the loaded page.
func (s *Service) CreateProduct(ctx context.Context, in backend.ProductInput) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}
	gen := s.products.Generation()
	created, err := s.api.CreateProduct(ctx, in)
	if err != nil {
		return domain.Product{}, err
	}
	p := s.products.Get()
	p.Results = append([]domain.Product{created}, p.Results...)
	p.Count++
	s.products.Store(gen, p)
	return created, nil
}

// UpdateProduct sends the form and mirrors the answer into the loaded page.
func (s *Service) UpdateProduct(ctx context.Context, id domain.ID, in backend.ProductInput) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}
	gen := s.products.Generation()
	updated, err := s.api.UpdateProduct(ctx, id, in)
	if err != nil {
		return domain.Product{}, err
	}
	p := s.products.Get()
	for i := range p.Results {
		if p.Results[i].ID == id {
			p.Results[i] = updated
		}
	}
	s.products.Store(gen, p)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id domain.ID) (ProductTable, error) {
	err := optimistic.Run(ctx, s.products, optimistic.Op[domain.Page[domain.Product]]{
		Mutate: func(p domain.Page[domain.Product]) domain.Page[domain.Product] {
			before := len(p.Results)
			p.Results = slices.DeleteFunc(p.Results, func(pr domain.Product) bool { return pr.ID == id })
			p.Count -= before - len(p.Results)
			return p
		},
		Confirm: func(ctx context.Context) error {
			return s.api.DeleteProduct(ctx, id)
		},
		Recovery: optimistic.RecoverRollback,
	})
	if err != nil {
		return ProductTable{}, err
	}
	return productTable(s.products.Get()), nil
}

// Broadcast sends a notification. A blank recipient reaches every user.
func (s *Service) Broadcast(ctx context.Context, in backend.NotificationInput) (backend.SendResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Title == "" || in.Message == "" {
		return backend.SendResult{}, fmt.Errorf("%w: title and message are required", domain.ErrValidation)
	}
	return s.api.SendNotification(ctx, in)
}
