package chat

import (
	"context"

	"pricebot/internal/domain"
)

// Directory is the read-only source of current product data
type Directory interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Mutator applies product changes against persistent storage.
// Calls are single-shot; the resolver never retries them.
type Mutator interface {
	DeleteProduct(ctx context.Context, id string) error
	UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error)
}

// Notifier receives fire-and-forget toast notifications
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notification) {}
