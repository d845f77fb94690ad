package document

import (
	"context"

	domain "carimport/internal/domain/document"
)

// Store persists Document state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Document, error)
	GetByAccountSHA(ctx context.Context, accountID, sha256 string) (domain.Document, error)
	Save(ctx context.Context, value domain.Document) error
	List(ctx context.Context, filter ListFilter) ([]domain.Document, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter carries filtering parameters for List and Count.
type ListFilter struct {
	Limit          int
	Offset         int
	AccountID      string
	RequestID      string
	Status         string
	AwaitingReview bool // extracted or ocr_failed
}
