package wishlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/optimistic"
)

// ErrLoginRequired is returned when a mutation is attempted without a
// live session.
var ErrLoginRequired = errors.New("login required")

// API is the wishlist part of the backend gateway.
type API interface {
	ListWishlist(ctx context.Context) ([]backend.WishlistItem, error)
	AddToWishlist(ctx context.Context, productID domain.ID) (backend.WishlistItem, error)
	RemoveWishlistItem(ctx context.Context, entryID domain.ID) error
}

// SessionView tells the store whether a live session exists.
type SessionView interface {
	Authenticated() bool
}

// CartAdder is the cart operation used by MoveToCart.
type CartAdder interface {
	Add(ctx context.Context, p domain.Product) error
}

type Service struct {
	api     API
	session SessionView
	entries *optimistic.Value[[]domain.WishlistEntry]
	logger  *log.Logger
}

func New(api API, session SessionView, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		api:     api,
		session: session,
		entries: optimistic.NewValue[[]domain.WishlistEntry](nil, func(in []domain.WishlistEntry) []domain.WishlistEntry {
			return slices.Clone(in)
		}),
		logger: logger,
	}
}

func (s *Service) Entries() []domain.WishlistEntry {
	return s.entries.Get()
}

func (s *Service) Contains(productID domain.ID) bool {
	return indexOf(s.entries.Get(), productID) >= 0
}

func (s *Service) Count() int {
	return len(s.entries.Get())
}

// Reset empties the wishlist and drops any in-flight confirmation.
func (s *Service) Reset() {
	s.entries.Reset(nil)
}

// Load replaces local entries with the backend's. Without a live session
// it does nothing.
func (s *Service) Load(ctx context.Context) error {
	if !s.session.Authenticated() {
		return nil
	}
	gen := s.entries.Generation()
	entries, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("load wishlist: %w", err)
	}
	if !s.entries.Store(gen, entries) {
		s.logger.Printf("wishlist: discarded load that finished after a session change")
	}
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]domain.WishlistEntry, error) {
	items, err := s.api.ListWishlist(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.WishlistEntry, 0, len(items))
	for _, item := range items {
		e := domain.EntryFromProduct(item.Product)
		e.EntryID = item.ID
		entries = append(entries, e)
	}
	return entries, nil
}

// Add saves p. Adding a saved product is a no-op.
func (s *Service) Add(ctx context.Context, p domain.Product) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	if s.Contains(p.ID) {
		return nil
	}
	var confirmed backend.WishlistItem
	return optimistic.Run(ctx, s.entries, optimistic.Op[[]domain.WishlistEntry]{
		Mutate: func(entries []domain.WishlistEntry) []domain.WishlistEntry {
			if indexOf(entries, p.ID) >= 0 {
				return entries
			}
			return append(entries, domain.EntryFromProduct(p))
		},
		Confirm: func(ctx context.Context) error {
			item, err := s.api.AddToWishlist(ctx, p.ID)
			confirmed = item
			return err
		},
		Settle: func(entries []domain.WishlistEntry) []domain.WishlistEntry {
			if i := indexOf(entries, p.ID); i >= 0 && confirmed.ID != "" {
				entries[i].EntryID = confirmed.ID
			}
			return entries
		},
		Recovery: optimistic.RecoverReload,
		Reload:   s.fetch,
	})
}

// Remove drops the entry for productID. An entry without a server id is
// resolved by reloading.
func (s *Service) Remove(ctx context.Context, productID domain.ID) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	entries := s.entries.Get()
	i := indexOf(entries, productID)
	if i < 0 {
		return nil
	}
	entryID := entries[i].EntryID
	if entryID == "" {
		return s.Load(ctx)
	}
	return optimistic.Run(ctx, s.entries, optimistic.Op[[]domain.WishlistEntry]{
		Mutate: func(entries []domain.WishlistEntry) []domain.WishlistEntry {
			return slices.DeleteFunc(entries, func(e domain.WishlistEntry) bool { return e.ProductID == productID })
		},
		Confirm: func(ctx context.Context) error {
			return s.api.RemoveWishlistItem(ctx, entryID)
		},
		Recovery: optimistic.RecoverRollback,
	})
}

// Toggle removes a saved product or saves an unsaved one.
func (s *Service) Toggle(ctx context.Context, p domain.Product) error {
	if s.Contains(p.ID) {
		return s.Remove(ctx, p.ID)
	}
	return s.Add(ctx, p)
}

// MoveToCart adds the product to the cart and then removes it from the
// wishlist. The two calls are independent: if the removal fails the
// product stays in both and the error is returned.
func (s *Service) MoveToCart(ctx context.Context, cart CartAdder, productID domain.ID) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	entries := s.entries.Get()
	i := indexOf(entries, productID)
	if i < 0 {
		return fmt.Errorf("%w: product %s is not in the wishlist", domain.ErrNotFound, productID)
	}
	if err := cart.Add(ctx, entries[i].Product()); err != nil {
		return fmt.Errorf("move to cart: %w", err)
	}
	if err := s.Remove(ctx, productID); err != nil {
		s.logger.Printf("wishlist: product %s added to cart but still saved: %v", productID, err)
		return fmt.Errorf("move to cart: remove from wishlist: %w", err)
	}
	return nil
}

func indexOf(entries []domain.WishlistEntry, productID domain.ID) int {
	return slices.IndexFunc(entries, func(e domain.WishlistEntry) bool { return e.ProductID == productID })
}
