package projections

import (
	"context"

	accountStore "carimport/internal/adapters/storage/account"
	auditStore "carimport/internal/adapters/storage/audit"
	blogStore "carimport/internal/adapters/storage/blog"
	carrequestStore "carimport/internal/adapters/storage/carrequest"
	contractStore "carimport/internal/adapters/storage/contract"
	documentStore "carimport/internal/adapters/storage/document"
	stockStore "carimport/internal/adapters/storage/stock"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/blog"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/document"
	"carimport/internal/domain/offer"
	domainOutbox "carimport/internal/domain/outbox"
	"carimport/internal/domain/stock"
)

// CarRequestStore interface for car request queries.
type CarRequestStore interface {
	GetByID(ctx context.Context, id string) (carrequest.CarRequest, error)
	List(ctx context.Context, filter carrequestStore.ListFilter) ([]carrequest.CarRequest, error)
	Count(ctx context.Context, filter carrequestStore.ListFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByMonth(ctx context.Context, since string) (map[string]int, error)
}

// OfferStore interface for offer queries.
type OfferStore interface {
	ListByRequest(ctx context.Context, requestID string) ([]offer.Offer, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// DocumentStore interface for document queries.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (document.Document, error)
	List(ctx context.Context, filter documentStore.ListFilter) ([]document.Document, error)
	Count(ctx context.Context, filter documentStore.ListFilter) (int, error)
}

// ContractStore interface for contract queries.
type ContractStore interface {
	GetByID(ctx context.Context, id string) (contract.Contract, error)
	List(ctx context.Context, filter contractStore.ListFilter) ([]contract.Contract, error)
	Count(ctx context.Context, filter contractStore.ListFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// StockStore interface for stock catalog queries.
type StockStore interface {
	GetByID(ctx context.Context, id string) (stock.Car, error)
	List(ctx context.Context, filter stockStore.ListFilter) ([]stock.Car, error)
	Count(ctx context.Context, filter stockStore.ListFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// BlogStore interface for blog queries.
type BlogStore interface {
	GetByID(ctx context.Context, id string) (blog.Post, error)
	GetBySlug(ctx context.Context, slug string) (blog.Post, error)
	List(ctx context.Context, filter blogStore.ListFilter) ([]blog.Post, error)
	Count(ctx context.Context, filter blogStore.ListFilter) (int, error)
}

// AccountStore interface for account queries.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	List(ctx context.Context, filter accountStore.ListFilter) ([]account.Account, error)
	Count(ctx context.Context, filter accountStore.ListFilter) (int, error)
}

// AuditStore interface for audit log queries.
type AuditStore interface {
	List(ctx context.Context, filter auditStore.Filter, limit int) ([]audit.Event, error)
}

// OutboxStore interface for outbox queries.
type OutboxStore interface {
	List(ctx context.Context, status, actionType string, limit int) ([]domainOutbox.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
