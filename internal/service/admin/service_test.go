package admin

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type stubAPI struct {
	orders    domain.Page[domain.Order]
	users     domain.Page[domain.User]
	products  domain.Page[domain.Product]
	statusErr error
	userErr   error
	deleteErr error
	sent      []backend.NotificationInput
}

func (s *stubAPI) AdminStats(context.Context) (backend.AdminStats, error) {
	return backend.AdminStats{TotalOrders: 120}, nil
}

func (s *stubAPI) AdminOrders(context.Context, backend.AdminOrderQuery) (domain.Page[domain.Order], error) {
	return s.orders, nil
}

func (s *stubAPI) UpdateOrderStatus(_ context.Context, id domain.ID, status domain.OrderStatus) (domain.Order, error) {
	if s.statusErr != nil {
		return domain.Order{}, s.statusErr
	}
	return domain.Order{ID: id, Status: status, TotalAmount: 10}, nil
}

func (s *stubAPI) AdminUsers(context.Context, string, int) (domain.Page[domain.User], error) {
	return s.users, nil
}

func (s *stubAPI) SetUserActive(_ context.Context, id domain.ID, active bool) (domain.User, error) {
	return domain.User{ID: id, IsActive: active}, s.userErr
}

func (s *stubAPI) DeleteUser(context.Context, domain.ID) error { return s.deleteErr }

func (s *stubAPI) AdminProducts(context.Context, string, int) (domain.Page[domain.Product], error) {
	return s.products, nil
}

func (s *stubAPI) CreateProduct(_ context.Context, in backend.ProductInput) (domain.Product, error) {
	return domain.Product{ID: "new", Name: in.Name, Price: in.Price, Stock: in.Stock}, nil
}

func (s *stubAPI) UpdateProduct(_ context.Context, id domain.ID, in backend.ProductInput) (domain.Product, error) {
	return domain.Product{ID: id, Name: in.Name, Price: in.Price, Stock: in.Stock}, nil
}

func (s *stubAPI) DeleteProduct(context.Context, domain.ID) error { return s.deleteErr }

func (s *stubAPI) SendNotification(_ context.Context, in backend.NotificationInput) (backend.SendResult, error) {
	s.sent = append(s.sent, in)
	return backend.SendResult{Sent: 3}, nil
}

func TestOrderSummaryUsesLoadedPageOnly(t *testing.T) {
	api := &stubAPI{orders: domain.Page[domain.Order]{
		Count: 240,
		Next:  "http://api/admin/orders/?page=2",
		Results: []domain.Order{
			{ID: "1", Status: domain.OrderDelivered, TotalAmount: 100},
			{ID: "2", Status: domain.OrderCancelled, TotalAmount: 900},
			{ID: "3", Status: domain.OrderPending, TotalAmount: 50.5},
		},
	}}
	s := New(api)

	table, err := s.Orders(context.Background(), backend.AdminOrderQuery{})
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if table.Summary.Revenue != 150.5 || table.Summary.Orders != 3 {
		t.Fatalf("unexpected summary %+v", table.Summary)
	}
	if table.Summary.ByStatus[domain.OrderCancelled] != 1 || table.Summary.ByStatus[domain.OrderShipped] != 0 {
		t.Fatalf("unexpected status counts %v", table.Summary.ByStatus)
	}
	if table.Count != 240 || table.NextPage != 2 {
		t.Fatalf("pagination lost: %+v", table)
	}
}

func TestSetOrderStatus(t *testing.T) {
	api := &stubAPI{orders: domain.Page[domain.Order]{Results: []domain.Order{{ID: "1", Status: domain.OrderPending}}}}
	s := New(api)
	ctx := context.Background()
	if _, err := s.Orders(ctx, backend.AdminOrderQuery{}); err != nil {
		t.Fatalf("orders: %v", err)
	}

	if _, err := s.SetOrderStatus(ctx, "1", "teleported"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	table, err := s.SetOrderStatus(ctx, "1", "Shipped")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if table.Orders[0].Status != domain.OrderShipped {
		t.Fatalf("status not applied: %+v", table.Orders[0])
	}

	api.statusErr = &backend.APIError{Status: 400, Message: "invalid transition"}
	if _, err := s.SetOrderStatus(ctx, "1", "pending"); err == nil {
		t.Fatalf("expected error")
	}
	if got := s.orders.Get().Results[0].Status; got != domain.OrderShipped {
		t.Fatalf("status should roll back to shipped, got %s", got)
	}
}

func TestBlockAndDeleteUsers(t *testing.T) {
	api := &stubAPI{users: domain.Page[domain.User]{Count: 2, Results: []domain.User{
		{ID: "1", IsActive: true},
		{ID: "2", IsActive: true, IsStaff: true},
	}}}
	s := New(api)
	ctx := context.Background()
	if _, err := s.Users(ctx, "", 1); err != nil {
		t.Fatalf("users: %v", err)
	}

	table, err := s.SetUserBlocked(ctx, "1", true)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if table.Summary.Blocked != 1 || table.Summary.Active != 1 || table.Summary.Staff != 1 {
		t.Fatalf("unexpected summary %+v", table.Summary)
	}

	api.deleteErr = errors.New("forbidden")
	if _, err := s.DeleteUser(ctx, "2"); err == nil {
		t.Fatalf("expected delete error")
	}
	if len(s.users.Get().Results) != 2 {
		t.Fatalf("user should be restored after failed delete")
	}
	api.deleteErr = nil
	table, err = s.DeleteUser(ctx, "2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(table.Users) != 1 || table.Count != 1 {
		t.Fatalf("unexpected table %+v", table)
	}
}

func TestProductsMirrorMutations(t *testing.T) {
	api := &stubAPI{products: domain.Page[domain.Product]{Count: 2, Results: []domain.Product{
		{ID: "1", Price: 10, Stock: 3},
		{ID: "2", Price: 4, Stock: 0},
	}}}
	s := New(api)
	ctx := context.Background()

	table, err := s.Products(ctx, "", 1)
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if table.Summary.LowStock != 1 || table.Summary.OutOfStock != 1 || table.Summary.StockValue != 30 {
		t.Fatalf("unexpected summary %+v", table.Summary)
	}

	if _, err := s.CreateProduct(ctx, backend.ProductInput{Name: "", Price: 5}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.CreateProduct(ctx, backend.ProductInput{Name: "Desk", Price: 200, Stock: 20}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p := s.products.Get(); p.Count != 3 || p.Results[0].ID != "new" {
		t.Fatalf("created product not mirrored: %+v", p)
	}
	if _, err := s.UpdateProduct(ctx, "1", backend.ProductInput{Name: "Lamp", Price: 12, Stock: 9}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if p := s.products.Get(); p.Results[1].Name != "Lamp" {
		t.Fatalf("update not mirrored: %+v", p.Results)
	}
	table, err = s.DeleteProduct(ctx, "2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if table.Count != 2 || len(table.Products) != 2 {
		t.Fatalf("unexpected table %+v", table)
	}
}

func TestBroadcastValidates(t *testing.T) {
	api := &stubAPI{}
	s := New(api)

	if _, err := s.Broadcast(context.Background(), backend.NotificationInput{Title: " "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	res, err := s.Broadcast(context.Background(), backend.NotificationInput{Title: " Sale ", Message: "Half off"})
	if err != nil || res.Sent != 3 {
		t.Fatalf("broadcast: res=%+v err=%v", res, err)
	}
	if api.sent[0].Title != "Sale" || api.sent[0].Recipient != "" {
		t.Fatalf("unexpected payload %+v", api.sent[0])
	}
}
