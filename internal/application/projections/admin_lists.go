package projections

import (
	"context"
	"fmt"
	"strings"
	"time"

	accountStore "carimport/internal/adapters/storage/account"
	auditStore "carimport/internal/adapters/storage/audit"
	contractStore "carimport/internal/adapters/storage/contract"
	documentStore "carimport/internal/adapters/storage/document"
	"carimport/internal/application/listutil"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/document"
	domainOutbox "carimport/internal/domain/outbox"
)

// AccountSortColumns are the columns the account list can be sorted by.
var AccountSortColumns = []string{"email", "name", "role", "created_at"}

// ListAccountsQuery carries query parameters.
type ListAccountsQuery struct {
	Role    string
	Status  string
	Search  string
	Sort    string
	Dir     string
	Page    int
	PerPage int
}

// ListAccountsResult carries the query result.
type ListAccountsResult struct {
	Accounts []account.Account
	Page     listutil.PageInfo
}

// QueryListAccounts returns one page of accounts for the users console.
// PRE: none
// POST: Accounts holds at most PerPage rows
func QueryListAccounts(ctx context.Context, query ListAccountsQuery, store AccountStore) (ListAccountsResult, error) {
	filter := accountStore.ListFilter{
		Role:   query.Role,
		Status: query.Status,
		Search: query.Search,
		Sort:   query.Sort,
		Dir:    query.Dir,
	}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return ListAccountsResult{}, fmt.Errorf("count accounts: %w", err)
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()
	rows, err := store.List(ctx, filter)
	if err != nil {
		return ListAccountsResult{}, fmt.Errorf("list accounts: %w", err)
	}
	return ListAccountsResult{Accounts: rows, Page: page}, nil
}

// ListDocumentsQuery carries query parameters.
type ListDocumentsQuery struct {
	AccountID      string
	RequestID      string
	Status         string
	AwaitingReview bool // the review queue; oldest first
	Page           int
	PerPage        int
}

// ListDocumentsResult carries the query result.
type ListDocumentsResult struct {
	Documents []document.Document
	Page      listutil.PageInfo
}

// QueryListDocuments returns one page of documents.
// PRE: none
// POST: With AwaitingReview set only extracted and ocr_failed documents are returned
func QueryListDocuments(ctx context.Context, query ListDocumentsQuery, store DocumentStore) (ListDocumentsResult, error) {
	filter := documentStore.ListFilter{
		AccountID:      query.AccountID,
		RequestID:      query.RequestID,
		Status:         query.Status,
		AwaitingReview: query.AwaitingReview,
	}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return ListDocumentsResult{}, fmt.Errorf("count documents: %w", err)
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()
	rows, err := store.List(ctx, filter)
	if err != nil {
		return ListDocumentsResult{}, fmt.Errorf("list documents: %w", err)
	}
	return ListDocumentsResult{Documents: rows, Page: page}, nil
}

// GetDocumentQuery carries query parameters.
type GetDocumentQuery struct {
	DocumentID string
	ViewerID   string
	ViewerRole string
}

// QueryGetDocument loads one document for its owner or for staff.
// PRE: DocumentID is set
// POST: Returns ErrNotVisible for other customers' documents
func QueryGetDocument(ctx context.Context, query GetDocumentQuery, store DocumentStore) (document.Document, error) {
	d, err := store.GetByID(ctx, query.DocumentID)
	if err != nil {
		return document.Document{}, err
	}
	if !isStaffRole(query.ViewerRole) && d.AccountID != query.ViewerID {
		return document.Document{}, ErrNotVisible
	}
	return d, nil
}

// ListContractsQuery carries query parameters.
type ListContractsQuery struct {
	AccountID string
	RequestID string
	Status    string
	Page      int
	PerPage   int
}

// ListContractsResult carries the query result.
type ListContractsResult struct {
	Contracts []contract.Contract
	Page      listutil.PageInfo
}

// QueryListContracts returns one page of contracts, newest first.
// PRE: Status is empty or a known contract status
// POST: Contracts holds at most PerPage rows
func QueryListContracts(ctx context.Context, query ListContractsQuery, store ContractStore) (ListContractsResult, error) {
	switch query.Status {
	case "", contract.StatusDraft, contract.StatusSent, contract.StatusSigned, contract.StatusCancelled:
	default:
		return ListContractsResult{}, contract.ErrInvalidStatus
	}
	filter := contractStore.ListFilter{AccountID: query.AccountID, RequestID: query.RequestID, Status: query.Status}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return ListContractsResult{}, fmt.Errorf("count contracts: %w", err)
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()
	rows, err := store.List(ctx, filter)
	if err != nil {
		return ListContractsResult{}, fmt.Errorf("list contracts: %w", err)
	}
	return ListContractsResult{Contracts: rows, Page: page}, nil
}

// AuditLimit caps one page of the audit log.
const AuditLimit = 200

// ListAuditQuery carries query parameters.
type ListAuditQuery struct {
	Category     string
	Action       string
	Severity     string
	ActorID      string
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
	Limit        int
}

// QueryListAudit returns the newest audit events matching the filter.
// PRE: none
// POST: Returns at most AuditLimit events, newest first
func QueryListAudit(ctx context.Context, query ListAuditQuery, store AuditStore) ([]audit.Event, error) {
	limit := query.Limit
	if limit <= 0 || limit > AuditLimit {
		limit = AuditLimit
	}
	events, err := store.List(ctx, auditStore.Filter{
		Category:     audit.Category(strings.TrimSpace(query.Category)),
		Action:       audit.Action(strings.TrimSpace(query.Action)),
		Severity:     audit.Severity(strings.TrimSpace(query.Severity)),
		ActorID:      query.ActorID,
		ResourceType: query.ResourceType,
		ResourceID:   query.ResourceID,
		From:         query.From,
		To:           query.To,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// ListOutboxQuery carries query parameters.
type ListOutboxQuery struct {
	Status     string
	ActionType string
	Limit      int
}

// ListOutboxResult carries entries plus the per-status totals for the tab bar.
type ListOutboxResult struct {
	Entries  []domainOutbox.Entry
	ByStatus map[string]int
}

// QueryListOutbox returns outbox entries for the admin console.
// PRE: none
// POST: Entries are newest first; ByStatus covers the whole outbox
func QueryListOutbox(ctx context.Context, query ListOutboxQuery, store OutboxStore) (ListOutboxResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	entries, err := store.List(ctx, query.Status, query.ActionType, limit)
	if err != nil {
		return ListOutboxResult{}, fmt.Errorf("list outbox: %w", err)
	}
	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return ListOutboxResult{}, fmt.Errorf("count outbox: %w", err)
	}
	return ListOutboxResult{Entries: entries, ByStatus: counts}, nil
}

func isStaffRole(role string) bool {
	return role == account.RoleStaff || role == account.RoleAdmin
}
