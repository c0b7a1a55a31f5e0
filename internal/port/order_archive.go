package port

import (
	"context"

	"github.com/rl1809/redis-cart/internal/core/domain"
)

type OrderArchive interface {
	// ArchiveOrder persists a completed checkout. The order stream stays the
	// source of truth; archiving the same order twice must not duplicate it.
	ArchiveOrder(ctx context.Context, order domain.Order) error

	// ArchivedOrder retrieves an archived order by ID, nil when absent.
	ArchivedOrder(ctx context.Context, orderID string) (*domain.Order, error)
}
