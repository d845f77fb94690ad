package blog

import (
	"context"

	domain "carimport/internal/domain/blog"
)

// Store persists blog posts.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Post, error)
	GetBySlug(ctx context.Context, slug string) (domain.Post, error)
	Save(ctx context.Context, value domain.Post) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Post, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter carries filtering parameters for List and Count.
type ListFilter struct {
	Limit         int
	Offset        int
	PublishedOnly bool
	Search        string // matches title or summary
}
