package account

import (
	"context"

	domain "carimport/internal/domain/account"
)

// Store persists Account state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, value domain.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Account, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
	Role   string
	Status string
	Search string // matches email or name
	Sort   string // email, name, role, created_at
	Dir    string
}
