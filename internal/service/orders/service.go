package orders

import (
	"context"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type API interface {
	ListOrders(ctx context.Context, page int) (domain.Page[domain.Order], error)
	GetOrder(ctx context.Context, id domain.ID) (domain.Order, error)
}

// History is one page of the customer's orders with the backend's cursor
// links turned into page numbers.
type History struct {
	Orders   []domain.Order `json:"orders"`
	Count    int            `json:"count"`
	Page     int            `json:"page"`
	NextPage int            `json:"nextPage,omitempty"`
	PrevPage int            `json:"previousPage,omitempty"`
}

type Service struct {
	api API
}

func New(api API) *Service {
	return &Service{api: api}
}

func (s *Service) History(ctx context.Context, page int) (History, error) {
	if page < 1 {
		page = 1
	}
	p, err := s.api.ListOrders(ctx, page)
	if err != nil {
		return History{}, err
	}
	h := History{
		Orders:   p.Results,
		Count:    p.Count,
		Page:     page,
		NextPage: backend.PageNumber(p.Next),
		PrevPage: backend.PageNumber(p.Previous),
	}
	if h.Orders == nil {
		h.Orders = []domain.Order{}
	}
	return h, nil
}

func (s *Service) Order(ctx context.Context, id domain.ID) (domain.Order, error) {
	return s.api.GetOrder(ctx, id)
}
