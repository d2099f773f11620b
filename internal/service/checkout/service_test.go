package checkout

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type stubAPI struct {
	calls int
	last  backend.OrderRequest
	err   error
}

func (s *stubAPI) CreateOrder(_ context.Context, in backend.OrderRequest) (domain.Order, error) {
	s.calls++
	s.last = in
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return domain.Order{ID: "77", Status: domain.OrderPending, TotalAmount: in.TotalAmount}, nil
}

type stubCart struct {
	lines    []domain.CartLine
	clearErr error
	cleared  bool
	reset    bool
}

func (c *stubCart) Lines() []domain.CartLine { return c.lines }

func (c *stubCart) Clear(context.Context) error {
	if c.clearErr != nil {
		return c.clearErr
	}
	c.cleared = true
	c.lines = nil
	return nil
}

func (c *stubCart) Reset() { c.reset = true; c.lines = nil }

var fullShipping = domain.StructuredAddress{
	FullName:   "Ana Perez",
	Phone:      "+34 600 000 000",
	Address:    "Calle Mayor 1",
	City:       "Madrid",
	PostalCode: "28013",
	Country:    "ES",
}

func cartWithLines() *stubCart {
	return &stubCart{lines: []domain.CartLine{
		{LineID: "1", ProductID: "a", UnitPrice: 1000, Quantity: 2},
		{LineID: "2", ProductID: "b", UnitPrice: 500, Quantity: 1},
	}}
}

func TestIncompleteShippingSendsNothing(t *testing.T) {
	api := &stubAPI{}
	s := New(api, DefaultCODFee, nil)
	form := Form{Shipping: domain.StructuredAddress{FullName: "Ana", City: "Madrid"}, Payment: Payment{Method: domain.PaymentCOD}}

	_, err := s.Submit(context.Background(), form, cartWithLines())
	if !errors.Is(err, ErrIncompleteShipping) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected incomplete shipping warning, got %v", err)
	}
	if api.calls != 0 {
		t.Fatalf("no request expected, got %d", api.calls)
	}
}

func TestSubmitAddsCODFeeAndClearsCart(t *testing.T) {
	api := &stubAPI{}
	s := New(api, DefaultCODFee, nil)
	cart := cartWithLines()

	order, err := s.Submit(context.Background(), Form{Shipping: fullShipping, Payment: Payment{Method: domain.PaymentCOD}}, cart)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if api.last.TotalAmount != 2550 || order.TotalAmount != 2550 {
		t.Fatalf("expected total 2550, got %v", api.last.TotalAmount)
	}
	if len(api.last.Items) != 2 || api.last.PaymentMethod != domain.PaymentCOD {
		t.Fatalf("unexpected request %+v", api.last)
	}
	if !cart.cleared {
		t.Fatalf("cart should be cleared")
	}
}

func TestSubmitFailureKeepsCart(t *testing.T) {
	api := &stubAPI{err: &backend.APIError{Status: 400, Message: "Insufficient stock"}}
	s := New(api, DefaultCODFee, nil)
	cart := cartWithLines()

	if _, err := s.Submit(context.Background(), Form{Shipping: fullShipping, Payment: Payment{Method: domain.PaymentCOD}}, cart); err == nil {
		t.Fatalf("expected error")
	}
	if cart.cleared || len(cart.lines) != 2 {
		t.Fatalf("cart must be kept when the order fails")
	}
}

func TestSubmitResetsWhenClearFails(t *testing.T) {
	s := New(&stubAPI{}, DefaultCODFee, nil)
	cart := cartWithLines()
	cart.clearErr = errors.New("gone")

	if _, err := s.Submit(context.Background(), Form{Shipping: fullShipping, Payment: Payment{Method: domain.PaymentCOD}}, cart); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !cart.reset {
		t.Fatalf("local cart should be reset after a placed order")
	}
}

func TestCardReview(t *testing.T) {
	s := New(&stubAPI{}, DefaultCODFee, nil)
	form := Form{Shipping: fullShipping, Payment: Payment{
		Method: domain.PaymentCard, CardNumber: "4242-4242 4242 4242", CardName: "ANA PEREZ", Expiry: "0729", CVV: "123",
	}}

	r, err := s.Review(form, cartWithLines().lines)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if r.Fee != 0 || r.Total != 2500 {
		t.Fatalf("card payments carry no fee, got fee=%v total=%v", r.Fee, r.Total)
	}
	if r.CardNumber != "•••• •••• •••• 4242" || r.Expiry != "07/29" {
		t.Fatalf("unexpected display values %q %q", r.CardNumber, r.Expiry)
	}

	form.Payment.Expiry = "1399"
	if _, err := s.Review(form, cartWithLines().lines); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected invalid expiry, got %v", err)
	}
}

func TestEmptyCartRejected(t *testing.T) {
	s := New(&stubAPI{}, DefaultCODFee, nil)
	if _, err := s.Review(Form{Shipping: fullShipping, Payment: Payment{Method: domain.PaymentCOD}}, nil); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestFormatting(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"4111":                   "4111",
		"41111":                  "4111 1",
		"4111111111111111":       "4111 1111 1111 1111",
		"4111 1111 1111 1111 99": "4111 1111 1111 1111",
	}
	for in, want := range cases {
		if got := FormatCardNumber(in); got != want {
			t.Fatalf("FormatCardNumber(%q) = %q, want %q", in, got, want)
		}
	}
	for in, want := range map[string]string{"1": "1", "12": "12", "123": "12/3", "12/34": "12/34", "123456": "12/34"} {
		if got := FormatExpiry(in); got != want {
			t.Fatalf("FormatExpiry(%q) = %q, want %q", in, got, want)
		}
	}
}
