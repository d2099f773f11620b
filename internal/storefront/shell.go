// Package storefront assembles the per-browser shell: the session store,
// the gateway bound to it, and the stores that depend on the session.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/repository/localstore"
	"storefront/internal/service/admin"
	"storefront/internal/service/cart"
	"storefront/internal/service/catalog"
	"storefront/internal/service/checkout"
	"storefront/internal/service/notifications"
	"storefront/internal/service/orders"
	"storefront/internal/service/session"
	"storefront/internal/service/wishlist"
)

// Shell is everything one browser sees. Fields are set once by the
// registry and never reassigned.
type Shell struct {
	BrowserID     string
	Session       *session.Store
	API           *backend.Client
	Cart          *cart.Service
	Wishlist      *wishlist.Service
	Notifications *notifications.Service
	Admin         *admin.Service
	Catalog       *catalog.Service
	Orders        *orders.Service
	Checkout      *checkout.Service

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Shell) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Shell) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Options configures a Registry.
type Options struct {
	CODFee domain.Money
	Logger *log.Logger
}

// Registry owns the shells of every browser seen by this process. A shell
// is rebuilt from durable storage after eviction or restart.
type Registry struct {
	storage localstore.Repository
	base    *backend.Client
	opts    Options
	logger  *log.Logger
	now     func() time.Time

	mu     sync.RWMutex
	shells map[string]*Shell
	builds singleflight.Group
}

func NewRegistry(storage localstore.Repository, base *backend.Client, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		storage: storage,
		base:    base,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		shells:  make(map[string]*Shell),
	}
}

// Get returns the shell for browserID, building it on first use. Every
// lookup re-checks the access credential's expiry.
func (r *Registry) Get(ctx context.Context, browserID string) (*Shell, error) {
	if browserID == "" {
		return nil, errors.New("browser id required")
	}
	for attempt := 0; attempt < 3; attempt++ {
		if sh, ok := r.acquire(browserID); ok {
			sh.Session.CheckExpiry(ctx)
			return sh, nil
		}
		_, err, _ := r.builds.Do(browserID, func() (any, error) {
			r.mu.RLock()
			_, ok := r.shells[browserID]
			r.mu.RUnlock()
			if ok {
				return nil, nil
			}
			built, err := r.build(context.WithoutCancel(ctx), browserID)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			built.touch(r.now())
			r.shells[browserID] = built
			r.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("shell for browser %s evicted during lookup", browserID)
}

// acquire looks the shell up and marks it used in one critical section, so
// Sweep never drops a shell between the two.
func (r *Registry) acquire(browserID string) (*Shell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sh, ok := r.shells[browserID]
	if ok {
		sh.touch(r.now())
	}
	return sh, ok
}

// build wires a shell in dependency order: session store over local
// storage, gateway bound to the session, then the session's dependents.
func (r *Registry) build(ctx context.Context, browserID string) (*Shell, error) {
	store := session.New(browserID, r.storage, r.logger)
	api := r.base.Bind(store, func(ctx context.Context) {
		r.logger.Printf("storefront: browser=%s backend rejected credential, logging out", browserID)
		store.Logout(ctx)
	})
	if err := store.Boot(ctx, api); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	sh := &Shell{
		BrowserID:     browserID,
		Session:       store,
		API:           api,
		Cart:          cart.New(api, store, r.logger),
		Wishlist:      wishlist.New(api, store, r.logger),
		Notifications: notifications.New(api),
		Admin:         admin.New(api),
		Catalog:       catalog.New(api),
		Orders:        orders.New(api),
		Checkout:      checkout.New(api, r.opts.CODFee, r.logger),
	}
	store.Subscribe(sh.onSessionChange(r.logger))

	if store.Authenticated() {
		sh.loadUserState(ctx, r.logger)
	}
	return sh, nil
}

// onSessionChange keeps the dependent stores valid only for the live
// session. Clearing happens before the session transition returns.
func (s *Shell) onSessionChange(logger *log.Logger) session.Listener {
	return func(ctx context.Context, prev, next *domain.Session) {
		if next == nil {
			s.resetUserState()
			return
		}
		if prev == nil || prev.User.ID != next.User.ID {
			s.resetUserState()
			s.loadUserState(ctx, logger)
		}
	}
}

func (s *Shell) resetUserState() {
	s.Cart.Reset()
	s.Wishlist.Reset()
	s.Notifications.Reset()
	s.Admin.Reset()
}

func (s *Shell) loadUserState(ctx context.Context, logger *log.Logger) {
	if err := s.Cart.Load(ctx); err != nil {
		logger.Printf("storefront: browser=%s %v", s.BrowserID, err)
	}
	if err := s.Wishlist.Load(ctx); err != nil {
		logger.Printf("storefront: browser=%s %v", s.BrowserID, err)
	}
	if _, err := s.Notifications.Load(ctx); err != nil {
		logger.Printf("storefront: browser=%s %v", s.BrowserID, err)
	}
}

// Len is the number of live shells.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shells)
}

// Sweep drops shells unused for longer than maxIdle and returns how many
// were dropped. Their sessions stay in durable storage.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, sh := range r.shells {
		if sh.idleSince().Before(cutoff) {
			delete(r.shells, id)
			n++
		}
	}
	return n
}

// Run sweeps idle shells every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				r.logger.Printf("storefront: evicted %d idle shells", n)
			}
		}
	}
}
