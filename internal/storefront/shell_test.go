package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/backend/backendtest"
	"storefront/internal/domain"
	"storefront/internal/repository/localstore"
	"storefront/internal/service/cart"
	"storefront/internal/service/session"
)

func newRegistry(t *testing.T) (*Registry, *backendtest.Server, localstore.Repository) {
	t.Helper()
	fake := backendtest.New()
	t.Cleanup(fake.Close)
	base, err := backend.New(fake.BaseURL(), time.Second, nil)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	storage := localstore.NewMemory()
	return NewRegistry(storage, base, Options{CODFee: 50}), fake, storage
}

func login(t *testing.T, sh *Shell, user string) {
	t.Helper()
	if _, err := sh.Session.Login(context.Background(), session.LoginInput{Identifier: user, Password: "secret123"}); err != nil {
		t.Fatalf("login %s: %v", user, err)
	}
}

func TestLoginLoadsCartAndLogoutClearsIt(t *testing.T) {
	reg, fake, _ := newRegistry(t)
	ctx := context.Background()
	sh, err := reg.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := sh.Cart.Add(ctx, domain.Product{ID: "10"}); !errors.Is(err, cart.ErrLoginRequired) {
		t.Fatalf("expected login prompt before session, got %v", err)
	}

	login(t, sh, "ana")
	if sh.Notifications.Unread() != 1 {
		t.Fatalf("login should load notifications, unread=%d", sh.Notifications.Unread())
	}
	if err := sh.Cart.Add(ctx, domain.Product{ID: "10", Price: 1000, Stock: 5}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := sh.Wishlist.Add(ctx, domain.Product{ID: "11", Price: 500}); err != nil {
		t.Fatalf("wishlist add: %v", err)
	}
	if fake.Count("POST cart/") != 1 {
		t.Fatalf("expected one cart POST, got %d", fake.Count("POST cart/"))
	}

	sh.Session.Logout(ctx)
	if len(sh.Cart.Lines()) != 0 || sh.Wishlist.Count() != 0 || sh.Notifications.Unread() != 0 {
		t.Fatalf("logout must empty cart, wishlist and notifications")
	}

	// Logging back in reloads the server-side cart.
	login(t, sh, "ana")
	if sh.Cart.Count() != 1 || sh.Wishlist.Count() != 1 {
		t.Fatalf("state not reloaded: cart=%d wishlist=%d", sh.Cart.Count(), sh.Wishlist.Count())
	}
}

func TestAdminUnauthorizedTearsDownSession(t *testing.T) {
	reg, fake, storage := newRegistry(t)
	ctx := context.Background()
	sh, err := reg.Get(ctx, "admin-browser")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	login(t, sh, "root")
	if !sh.Session.IsAdmin() {
		t.Fatalf("staff account should be admin")
	}

	fake.Lock()
	fake.RejectAll = true
	fake.Unlock()

	_, err = sh.Admin.Orders(ctx, backend.AdminOrderQuery{})
	if !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	if sh.Session.Authenticated() {
		t.Fatalf("session should be cleared after 401")
	}
	if _, err := storage.Get(ctx, "admin-browser", localstore.KeyTokens); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("persisted tokens should be removed")
	}

	before := len(fake.AuthHeaders)
	if _, err := sh.Admin.Orders(ctx, backend.AdminOrderQuery{}); !errors.Is(err, backend.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if len(fake.AuthHeaders) != before {
		t.Fatalf("no request may be sent with the stale credential")
	}
}

func TestShellRebuiltFromStorage(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()
	sh, err := reg.Get(ctx, "b2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	login(t, sh, "ana")
	if err := sh.Cart.Add(ctx, domain.Product{ID: "11", Price: 500, Stock: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	reg.now = func() time.Time { return time.Now().Add(time.Hour) }
	if n := reg.Sweep(time.Minute); n != 1 || reg.Len() != 0 {
		t.Fatalf("expected eviction, n=%d len=%d", n, reg.Len())
	}

	again, err := reg.Get(ctx, "b2")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again == sh {
		t.Fatalf("expected a fresh shell")
	}
	cur, ok := again.Session.Current()
	if !ok || cur.User.Username != "ana" {
		t.Fatalf("session not restored: %+v", cur)
	}
	if again.Cart.Quantity("11") != 1 {
		t.Fatalf("cart not reloaded: %+v", again.Cart.Lines())
	}
}

func TestSameBrowserSharesShell(t *testing.T) {
	reg, _, _ := newRegistry(t)
	a, err := reg.Get(context.Background(), "same")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := reg.Get(context.Background(), "same")
	if a != b || reg.Len() != 1 {
		t.Fatalf("expected one shell per browser")
	}
	if _, err := reg.Get(context.Background(), ""); err == nil {
		t.Fatalf("blank browser id must be refused")
	}
}

func TestSweepNeverSplitsABrowserAcrossShells(t *testing.T) {
	for round := 0; round < 20; round++ {
		reg, _, _ := newRegistry(t)
		start := time.Now()
		reg.now = func() time.Time { return start }
		if _, err := reg.Get(context.Background(), "busy"); err != nil {
			t.Fatalf("get: %v", err)
		}
		// The shell is now idle past the limit; lookups and a sweep race.
		later := start.Add(2 * time.Hour)
		reg.now = func() time.Time { return later }

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = map[*Shell]bool{}
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Sweep(time.Hour)
		}()
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sh, err := reg.Get(context.Background(), "busy")
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				mu.Lock()
				seen[sh] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(seen) != 1 {
			t.Fatalf("round %d: one browser was served %d different shells", round, len(seen))
		}
		for sh := range seen {
			if got, _ := reg.acquire("busy"); got != sh {
				t.Fatalf("round %d: the shell handed out is no longer registered", round)
			}
		}
	}
}
