package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"

	"golang.org/x/sync/errgroup"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/optimistic"
)

var (
	// ErrLoginRequired is returned when a mutation is attempted without a
	// live session. No local change is made and nothing is sent.
	ErrLoginRequired = errors.New("login required")
	// ErrOutOfStock is returned when an increment would exceed known stock.
	ErrOutOfStock = errors.New("not enough stock")
	// ErrNotInCart is returned for operations on a product with no line.
	ErrNotInCart = errors.New("product not in cart")
)

// API is the cart part of the backend gateway.
type API interface {
	ListCart(ctx context.Context) ([]backend.CartItem, error)
	AddToCart(ctx context.Context, productID domain.ID, quantity int) (backend.CartItem, error)
	UpdateCartItem(ctx context.Context, lineID domain.ID, quantity int) (backend.CartItem, error)
	RemoveCartItem(ctx context.Context, lineID domain.ID) error
}

// SessionView tells the store whether a live session exists.
type SessionView interface {
	Authenticated() bool
}

type Service struct {
	api     API
	session SessionView
	lines   *optimistic.Value[[]domain.CartLine]
	logger  *log.Logger
}

func New(api API, session SessionView, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		api:     api,
		session: session,
		lines:   optimistic.NewValue[[]domain.CartLine](nil, cloneLines),
		logger:  logger,
	}
}

func cloneLines(in []domain.CartLine) []domain.CartLine {
	return slices.Clone(in)
}

// Lines returns a copy of the current lines.
func (s *Service) Lines() []domain.CartLine {
	return s.lines.Get()
}

// Total is the sum of unit price times quantity over current lines.
func (s *Service) Total() domain.Money {
	return domain.CartTotal(s.lines.Get())
}

// Count is the number of units in the cart.
func (s *Service) Count() int {
	n := 0
	for _, l := range s.lines.Get() {
		n += l.Quantity
	}
	return n
}

// Quantity returns the units held for productID.
func (s *Service) Quantity(productID domain.ID) int {
	for _, l := range s.lines.Get() {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// Reset empties the cart and drops any in-flight confirmation.
func (s *Service) Reset() {
	s.lines.Reset(nil)
}

// Load replaces local lines with the backend's. Without a live session it
// does nothing.
func (s *Service) Load(ctx context.Context) error {
	if !s.session.Authenticated() {
		return nil
	}
	gen := s.lines.Generation()
	lines, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if !s.lines.Store(gen, lines) {
		s.logger.Printf("cart: discarded load that finished after a session change")
	}
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]domain.CartLine, error) {
	items, err := s.api.ListCart(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, lineFromItem(item))
	}
	return lines, nil
}

func lineFromItem(item backend.CartItem) domain.CartLine {
	line := domain.LineFromProduct(item.Product)
	line.LineID = item.ID
	line.Quantity = item.Quantity
	return line
}

// Add puts one unit of p in the cart. The line appears immediately; if the
// backend rejects it the cart is reloaded from the backend.
func (s *Service) Add(ctx context.Context, p domain.Product) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	if line, ok := s.line(p.ID); ok && line.Stock > 0 && line.Quantity >= line.Stock {
		return ErrOutOfStock
	}

	var confirmed backend.CartItem
	return optimistic.Run(ctx, s.lines, optimistic.Op[[]domain.CartLine]{
		Mutate: func(lines []domain.CartLine) []domain.CartLine {
			if i := indexOf(lines, p.ID); i >= 0 {
				lines[i].Quantity++
				return lines
			}
			return append(lines, domain.LineFromProduct(p))
		},
		Confirm: func(ctx context.Context) error {
			item, err := s.api.AddToCart(ctx, p.ID, 1)
			confirmed = item
			return err
		},
		Settle: func(lines []domain.CartLine) []domain.CartLine {
			i := indexOf(lines, p.ID)
			if i < 0 || confirmed.ID == "" {
				return lines
			}
			lines[i].LineID = confirmed.ID
			if confirmed.Quantity > 0 {
				lines[i].Quantity = confirmed.Quantity
			}
			return lines
		},
		Recovery: optimistic.RecoverReload,
		Reload:   s.fetch,
	})
}

// Increment adds one more unit of a product already in the cart.
func (s *Service) Increment(ctx context.Context, productID domain.ID) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	line, ok := s.line(productID)
	if !ok {
		return ErrNotInCart
	}
	return s.Add(ctx, domain.Product{
		ID:    line.ProductID,
		Name:  line.Name,
		Price: line.UnitPrice,
		Stock: line.Stock,
		Image: line.Image,
	})
}

// Remove drops the whole line for productID. A line the backend never
// acknowledged has no id to delete, so the cart is reloaded instead.
func (s *Service) Remove(ctx context.Context, productID domain.ID) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	line, ok := s.line(productID)
	if !ok {
		return nil
	}
	if line.LineID == "" {
		return s.Load(ctx)
	}
	return optimistic.Run(ctx, s.lines, optimistic.Op[[]domain.CartLine]{
		Mutate: func(lines []domain.CartLine) []domain.CartLine {
			return slices.DeleteFunc(lines, func(l domain.CartLine) bool { return l.ProductID == productID })
		},
		Confirm: func(ctx context.Context) error {
			return s.api.RemoveCartItem(ctx, line.LineID)
		},
		Recovery: optimistic.RecoverRollback,
	})
}

// Decrement takes one unit away. A line holding a single unit is removed.
func (s *Service) Decrement(ctx context.Context, productID domain.ID) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	line, ok := s.line(productID)
	if !ok {
		return nil
	}
	if line.Quantity <= 1 {
		return s.Remove(ctx, productID)
	}
	if line.LineID == "" {
		return s.Load(ctx)
	}
	want := line.Quantity - 1
	return optimistic.Run(ctx, s.lines, optimistic.Op[[]domain.CartLine]{
		Mutate: func(lines []domain.CartLine) []domain.CartLine {
			if i := indexOf(lines, productID); i >= 0 && lines[i].Quantity > 1 {
				lines[i].Quantity--
			}
			return lines
		},
		Confirm: func(ctx context.Context) error {
			_, err := s.api.UpdateCartItem(ctx, line.LineID, want)
			return err
		},
		Recovery: optimistic.RecoverRollback,
	})
}

// Clear empties the cart with one delete per line, sent concurrently. If
// any delete fails the whole previous cart is shown again.
func (s *Service) Clear(ctx context.Context) error {
	if !s.session.Authenticated() {
		return ErrLoginRequired
	}
	snapshot := s.lines.Get()
	if len(snapshot) == 0 {
		return nil
	}
	return optimistic.Run(ctx, s.lines, optimistic.Op[[]domain.CartLine]{
		Mutate: func([]domain.CartLine) []domain.CartLine { return nil },
		Confirm: func(ctx context.Context) error {
			g, gctx := errgroup.WithContext(ctx)
			for _, line := range snapshot {
				if line.LineID == "" {
					continue
				}
				id := line.LineID
				g.Go(func() error {
					return s.api.RemoveCartItem(gctx, id)
				})
			}
			return g.Wait()
		},
		Recovery: optimistic.RecoverRollback,
	})
}

func (s *Service) line(productID domain.ID) (domain.CartLine, bool) {
	lines := s.lines.Get()
	if i := indexOf(lines, productID); i >= 0 {
		return lines[i], true
	}
	return domain.CartLine{}, false
}

func indexOf(lines []domain.CartLine, productID domain.ID) int {
	return slices.IndexFunc(lines, func(l domain.CartLine) bool { return l.ProductID == productID })
}
