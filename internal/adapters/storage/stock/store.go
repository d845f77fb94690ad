package stock

import (
	"context"

	domain "carimport/internal/domain/stock"
)

// Store persists stock cars.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Car, error)
	Save(ctx context.Context, value domain.Car) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Car, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// ListFilter carries filtering parameters for List and Count.
type ListFilter struct {
	Limit         int
	Offset        int
	Status        string
	Make          string // case-insensitive exact match
	Fuel          string
	MaxPriceCents int64
	Sort          string // price, year, mileage, created_at
	Dir           string
}
