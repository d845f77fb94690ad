package offer

import (
	"context"

	domain "carimport/internal/domain/offer"
)

// Store persists Offer state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Offer, error)
	Save(ctx context.Context, value domain.Offer) error
	ListByRequest(ctx context.Context, requestID string) ([]domain.Offer, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
