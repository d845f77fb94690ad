package carrequest

import (
	"context"

	domain "carimport/internal/domain/carrequest"
)

// Store persists CarRequest state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.CarRequest, error)
	GetByReference(ctx context.Context, reference string) (domain.CarRequest, error)
	Save(ctx context.Context, value domain.CarRequest) error
	List(ctx context.Context, filter ListFilter) ([]domain.CarRequest, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByMonth(ctx context.Context, since string) (map[string]int, error)
}

// ListFilter carries filtering parameters for List and Count.
type ListFilter struct {
	Limit     int
	Offset    int
	AccountID string
	Status    string
	Search    string // matches reference, contact name/email, make, model
	Sort      string // created_at, budget, status, make
	Dir       string
}
