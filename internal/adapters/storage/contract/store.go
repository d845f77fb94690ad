package contract

import (
	"context"

	domain "carimport/internal/domain/contract"
)

// Store persists Contract state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Contract, error)
	Save(ctx context.Context, value domain.Contract) error
	List(ctx context.Context, filter ListFilter) ([]domain.Contract, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	NextNumber(ctx context.Context, year int) (string, error)
}

// ListFilter carries filtering parameters for List and Count.
type ListFilter struct {
	Limit     int
	Offset    int
	Status    string
	AccountID string
	RequestID string
}
