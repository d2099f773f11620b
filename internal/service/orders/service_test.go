package orders

import (
	"context"
	"testing"

	"storefront/internal/domain"
)

type stubAPI struct {
	requested int
	page      domain.Page[domain.Order]
}

func (s *stubAPI) ListOrders(_ context.Context, page int) (domain.Page[domain.Order], error) {
	s.requested = page
	return s.page, nil
}

func (s *stubAPI) GetOrder(_ context.Context, id domain.ID) (domain.Order, error) {
	return domain.Order{ID: id}, nil
}

func TestHistoryConvertsCursors(t *testing.T) {
	api := &stubAPI{page: domain.Page[domain.Order]{
		Count:    25,
		Next:     "https://api.test/api/orders/?page=3",
		Previous: "https://api.test/api/orders/",
		Results:  []domain.Order{{ID: "11"}},
	}}
	s := New(api)

	h, err := s.History(context.Background(), 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if api.requested != 2 || h.NextPage != 3 || h.PrevPage != 1 || h.Count != 25 {
		t.Fatalf("unexpected history %+v", h)
	}
}

func TestHistoryDefaultsToFirstPage(t *testing.T) {
	api := &stubAPI{}
	h, err := New(api).History(context.Background(), 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if api.requested != 1 || h.Orders == nil || h.NextPage != 0 {
		t.Fatalf("unexpected history %+v", h)
	}
}
