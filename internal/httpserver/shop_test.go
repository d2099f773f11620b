package httpserver

import (
	"net/http"
	"testing"
)

const checkoutForm = `{
	"shipping": {"full_name":"Ana Tamm","phone":"5550100","address":"Main 1","city":"Tallinn","postal_code":"10111","country":"EE"},
	"payment": {"method":"cod"}
}`

func TestAddToCartWithoutSessionPromptsLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/cart/items", `{"productId":"10"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if decode(t, rec)["login"] != "/login" {
		t.Fatalf("expected a login hint: %s", rec.Body.String())
	}
	if env.fake.Count("POST cart/") != 0 {
		t.Fatalf("nothing may be sent without a session")
	}
}

func TestCartLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ana")

	rec := env.do(http.MethodPost, "/api/cart/items", `{"productId":"10"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["total"]; got != float64(1000) {
		t.Fatalf("expected total 1000, got %v", got)
	}

	rec = env.do(http.MethodPost, "/api/cart/items/10/increment", "")
	if got := decode(t, rec); got["count"] != float64(2) || got["total"] != float64(2000) {
		t.Fatalf("after increment: %v", got)
	}

	rec = env.do(http.MethodPost, "/api/cart/items/10/decrement", "")
	if got := decode(t, rec); got["count"] != float64(1) {
		t.Fatalf("after decrement: %v", got)
	}

	rec = env.do(http.MethodDelete, "/api/cart/items/10", "")
	if got := decode(t, rec); got["count"] != float64(0) {
		t.Fatalf("after remove: %v", got)
	}

	rec = env.do(http.MethodDelete, "/api/cart/items/10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("removing a missing line is a no-op, got %d", rec.Code)
	}
}

func TestAddBeyondStockConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ana")
	for i := 0; i < 2; i++ {
		if rec := env.do(http.MethodPost, "/api/cart/items", `{"productId":"11"}`); rec.Code != http.StatusOK {
			t.Fatalf("add %d: %d", i, rec.Code)
		}
	}
	rec := env.do(http.MethodPost, "/api/cart/items", `{"productId":"11"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestWishlistMoveToCart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ana")
	rec := env.do(http.MethodPost, "/api/wishlist/toggle", `{"productId":"11"}`)
	if got := decode(t, rec); got["count"] != float64(1) {
		t.Fatalf("toggle on: %v", got)
	}
	rec = env.do(http.MethodPost, "/api/wishlist/items/11/move-to-cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("move: %d body=%s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["wishlist"].(map[string]any)["count"] != float64(0) || got["cart"].(map[string]any)["count"] != float64(1) {
		t.Fatalf("unexpected state after move: %v", got)
	}
}

func TestCheckoutIncompleteShippingSendsNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ana")
	env.do(http.MethodPost, "/api/cart/items", `{"productId":"10"}`)

	rec := env.do(http.MethodPost, "/api/checkout/submit", `{"shipping":{"full_name":"Ana"},"payment":{"method":"cod"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env.fake.Count("POST orders/") != 0 {
		t.Fatalf("no order may be posted")
	}
}

func TestCheckoutSubmitAndConfirmationOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ana")
	env.do(http.MethodPost, "/api/cart/items", `{"productId":"10"}`)

	rec := env.do(http.MethodPost, "/api/checkout/review", checkoutForm)
	if got := decode(t, rec); got["total"] != float64(1050) {
		t.Fatalf("review should add the COD fee: %v", got)
	}

	rec = env.do(http.MethodPost, "/api/checkout/submit", checkoutForm)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d body=%s", rec.Code, rec.Body.String())
	}
	if env.fake.Count("POST orders/") != 1 {
		t.Fatalf("expected one order")
	}
	if got := decode(t, env.do(http.MethodGet, "/api/cart", "")); got["count"] != float64(0) {
		t.Fatalf("cart should be empty after ordering: %v", got)
	}

	rec = env.do(http.MethodGet, "/api/checkout/confirmation", "")
	if rec.Code != http.StatusOK || decode(t, rec)["orderId"] != "1" {
		t.Fatalf("confirmation: %d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodGet, "/api/checkout/confirmation", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("second visit should go home, got %d", rec.Code)
	}
}

func TestProductListingCarriesFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/products?category=Kitchen&ordering=bogus", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	got := decode(t, rec)
	if got["count"] != float64(1) {
		t.Fatalf("expected one kitchen product: %v", got)
	}
	filter := got["filter"].(map[string]any)
	if filter["ordering"] != nil && filter["ordering"] != "" {
		t.Fatalf("unknown ordering should be dropped: %v", filter)
	}
}

func TestCartLoadReadsEveryPage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ana")
	env.do(http.MethodPost, "/api/cart/items", `{"productId":"10"}`)
	env.do(http.MethodPost, "/api/cart/items", `{"productId":"11"}`)
	env.do(http.MethodPost, "/logout", "")

	env.fake.Lock()
	env.fake.CollectionPageSize = 1
	env.fake.Unlock()

	env.login("ana")
	got := decode(t, env.do(http.MethodGet, "/api/cart", ""))
	if got["count"] != float64(2) || got["total"] != float64(1500) {
		t.Fatalf("cart should hold both pages: %v", got)
	}
	if env.fake.Count("GET cart/") < 2 {
		t.Fatalf("expected the second page to be requested")
	}
}
