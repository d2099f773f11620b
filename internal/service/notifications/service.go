package notifications

import (
	"context"
	"fmt"
	"slices"

	"storefront/internal/domain"
	"storefront/internal/optimistic"
)

type API interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id domain.ID) error
}

// Service keeps the loaded notifications of one browser.
type Service struct {
	api   API
	items *optimistic.Value[[]domain.Notification]
}

func New(api API) *Service {
	return &Service{
		api: api,
		items: optimistic.NewValue[[]domain.Notification](nil, func(in []domain.Notification) []domain.Notification {
			return slices.Clone(in)
		}),
	}
}

// Load fetches the user's notifications, newest first as served.
func (s *Service) Load(ctx context.Context) ([]domain.Notification, error) {
	gen := s.items.Generation()
	items, err := s.api.ListNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	s.items.Store(gen, items)
	return slices.Clone(items), nil
}

func (s *Service) Items() []domain.Notification {
	return s.items.Get()
}

// Unread counts loaded notifications not yet read.
func (s *Service) Unread() int {
	n := 0
	for _, it := range s.items.Get() {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead flags id as read locally before confirming it; a rejected
// confirmation restores the previous flag.
func (s *Service) MarkRead(ctx context.Context, id domain.ID) error {
	return optimistic.Run(ctx, s.items, optimistic.Op[[]domain.Notification]{
		Mutate: func(items []domain.Notification) []domain.Notification {
			for i := range items {
				if items[i].ID == id {
					items[i].Read = true
				}
			}
			return items
		},
		Confirm: func(ctx context.Context) error {
			return s.api.MarkNotificationRead(ctx, id)
		},
		Recovery: optimistic.RecoverRollback,
	})
}

func (s *Service) Reset() {
	s.items.Reset(nil)
}
