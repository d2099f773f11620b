package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type stubSession struct{ live bool }

func (s stubSession) Authenticated() bool { return s.live }

// stubAPI keeps an authoritative server-side cart.
type stubAPI struct {
	mu        sync.Mutex
	items     []backend.CartItem
	nextID    int
	calls     int
	addErr    error
	removeErr map[domain.ID]error
	patches   map[domain.ID]int
	onList    func()
}

func newStubAPI(items ...backend.CartItem) *stubAPI {
	return &stubAPI{items: items, nextID: 100, removeErr: map[domain.ID]error{}, patches: map[domain.ID]int{}}
}

func (a *stubAPI) ListCart(context.Context) ([]backend.CartItem, error) {
	a.mu.Lock()
	a.calls++
	out := slices.Clone(a.items)
	hook := a.onList
	a.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (a *stubAPI) AddToCart(_ context.Context, productID domain.ID, quantity int) (backend.CartItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.addErr != nil {
		return backend.CartItem{}, a.addErr
	}
	for i := range a.items {
		if a.items[i].Product.ID == productID {
			a.items[i].Quantity += quantity
			return a.items[i], nil
		}
	}
	a.nextID++
	item := backend.CartItem{ID: domain.ID(fmt.Sprint(a.nextID)), Product: domain.Product{ID: productID}, Quantity: quantity}
	a.items = append(a.items, item)
	return item, nil
}

func (a *stubAPI) UpdateCartItem(_ context.Context, lineID domain.ID, quantity int) (backend.CartItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.patches[lineID] = quantity
	for i := range a.items {
		if a.items[i].ID == lineID {
			a.items[i].Quantity = quantity
			return a.items[i], nil
		}
	}
	return backend.CartItem{}, &backend.APIError{Status: 404, Message: "Not found."}
}

func (a *stubAPI) RemoveCartItem(_ context.Context, lineID domain.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if err := a.removeErr[lineID]; err != nil {
		return err
	}
	a.items = slices.DeleteFunc(a.items, func(it backend.CartItem) bool { return it.ID == lineID })
	return nil
}

var (
	productA = domain.Product{ID: "a", Name: "Lamp", Price: 1000, Stock: 5}
	productB = domain.Product{ID: "b", Name: "Mug", Price: 500, Stock: 3}
)

func loaded(t *testing.T, api *stubAPI) *Service {
	t.Helper()
	s := New(api, stubSession{live: true}, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestTotalFollowsQuantities(t *testing.T) {
	api := newStubAPI(
		backend.CartItem{ID: "1", Product: productA, Quantity: 2},
		backend.CartItem{ID: "2", Product: productB, Quantity: 1},
	)
	s := loaded(t, api)

	if got := s.Total(); got != 2500 {
		t.Fatalf("expected total 2500, got %v", got)
	}
	if err := s.Increment(context.Background(), "b"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := s.Total(); got != 3500 {
		t.Fatalf("expected total 3500, got %v", got)
	}
	if s.Count() != 4 {
		t.Fatalf("expected 4 units, got %d", s.Count())
	}
}

func TestTotalMatchesLinesAcrossMutations(t *testing.T) {
	api := newStubAPI()
	s := loaded(t, api)
	ctx := context.Background()

	steps := []func() error{
		func() error { return s.Add(ctx, productA) },
		func() error { return s.Add(ctx, productB) },
		func() error { return s.Add(ctx, productA) },
		func() error { return s.Remove(ctx, "b") },
		func() error { return s.Add(ctx, productB) },
		func() error { return s.Decrement(ctx, "a") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		var want domain.Money
		for _, l := range s.Lines() {
			want += l.UnitPrice * domain.Money(l.Quantity)
		}
		if s.Total() != want.Round2() {
			t.Fatalf("step %d: total %v, lines sum %v", i, s.Total(), want)
		}
	}
}

func TestAddWithoutSessionDoesNothing(t *testing.T) {
	api := newStubAPI()
	s := New(api, stubSession{}, nil)

	if err := s.Add(context.Background(), productA); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
	if len(s.Lines()) != 0 || api.calls != 0 {
		t.Fatalf("no local change or request expected, lines=%v calls=%d", s.Lines(), api.calls)
	}
}

func TestFailedAddReconcilesWithServer(t *testing.T) {
	api := newStubAPI(backend.CartItem{ID: "1", Product: productA, Quantity: 1})
	s := loaded(t, api)
	api.addErr = &backend.APIError{Status: 400, Message: "Product is unavailable."}

	if err := s.Add(context.Background(), productB); err == nil {
		t.Fatalf("expected add error")
	}
	lines := s.Lines()
	if len(lines) != 1 || lines[0].ProductID != "a" || lines[0].Quantity != 1 {
		t.Fatalf("cart should match server state, got %+v", lines)
	}
}

func TestDecrement(t *testing.T) {
	api := newStubAPI(
		backend.CartItem{ID: "1", Product: productA, Quantity: 3},
		backend.CartItem{ID: "2", Product: productB, Quantity: 1},
	)
	s := loaded(t, api)
	ctx := context.Background()

	if err := s.Decrement(ctx, "a"); err != nil {
		t.Fatalf("decrement a: %v", err)
	}
	if got := s.Quantity("a"); got != 2 {
		t.Fatalf("expected qty 2, got %d", got)
	}
	if api.patches["1"] != 2 {
		t.Fatalf("expected PATCH to quantity 2, got %v", api.patches)
	}

	if err := s.Decrement(ctx, "b"); err != nil {
		t.Fatalf("decrement b: %v", err)
	}
	for _, l := range s.Lines() {
		if l.ProductID == "b" {
			t.Fatalf("line with quantity 1 should be removed")
		}
	}
}

func TestIncrementRespectsStock(t *testing.T) {
	api := newStubAPI(backend.CartItem{ID: "2", Product: productB, Quantity: 3})
	s := loaded(t, api)

	if err := s.Increment(context.Background(), "b"); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if s.Quantity("b") != 3 {
		t.Fatalf("quantity should stay at stock level")
	}
}

func TestRemoveFailureRestoresSnapshot(t *testing.T) {
	api := newStubAPI(backend.CartItem{ID: "1", Product: productA, Quantity: 2})
	s := loaded(t, api)
	api.removeErr["1"] = &backend.APIError{Status: 404, Message: "Not found."}

	if err := s.Remove(context.Background(), "a"); err == nil {
		t.Fatalf("expected remove error")
	}
	if s.Quantity("a") != 2 {
		t.Fatalf("line should be restored, got %+v", s.Lines())
	}
}

func TestRemoveUnacknowledgedLineReloads(t *testing.T) {
	api := newStubAPI()
	s := loaded(t, api)
	s.lines.Reset([]domain.CartLine{domain.LineFromProduct(productA)})

	if err := s.Remove(context.Background(), "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(s.Lines()) != 0 {
		t.Fatalf("reload should have produced the server's empty cart")
	}
}

func TestClearIsAtomicForDisplay(t *testing.T) {
	api := newStubAPI(
		backend.CartItem{ID: "1", Product: productA, Quantity: 1},
		backend.CartItem{ID: "2", Product: productB, Quantity: 2},
	)
	s := loaded(t, api)
	api.removeErr["2"] = errors.New("connection reset")

	if err := s.Clear(context.Background()); err == nil {
		t.Fatalf("expected clear error")
	}
	if len(s.Lines()) != 2 || s.Total() != 2000 {
		t.Fatalf("previous cart should be restored, got %+v", s.Lines())
	}

	delete(api.removeErr, "2")
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(s.Lines()) != 0 || s.Total() != 0 {
		t.Fatalf("cart should be empty")
	}
}

func TestResetDiscardsLateLoad(t *testing.T) {
	api := newStubAPI(backend.CartItem{ID: "1", Product: productA, Quantity: 1})
	s := New(api, stubSession{live: true}, nil)
	api.onList = s.Reset

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Lines()) != 0 {
		t.Fatalf("load that finished after reset must not apply, got %+v", s.Lines())
	}
}
