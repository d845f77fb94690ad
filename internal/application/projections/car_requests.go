package projections

import (
	"context"
	"errors"
	"fmt"

	carrequestStore "carimport/internal/adapters/storage/carrequest"
	contractStore "carimport/internal/adapters/storage/contract"
	documentStore "carimport/internal/adapters/storage/document"
	"carimport/internal/application/listutil"
	"carimport/internal/domain/account"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/document"
	"carimport/internal/domain/offer"
)

// ErrNotVisible is returned when a viewer asks for a record they may not see.
var ErrNotVisible = errors.New("record not visible to this account")

// RequestSortColumns are the columns the request list can be sorted by.
var RequestSortColumns = []string{"created_at", "budget", "status", "make"}

// ListCarRequestsQuery carries query parameters.
type ListCarRequestsQuery struct {
	AccountID string // restricts to one customer when set
	Status    string
	Search    string
	Sort      string
	Dir       string
	Page      int
	PerPage   int
}

// ListCarRequestsResult carries the query result.
type ListCarRequestsResult struct {
	Requests []carrequest.CarRequest
	Page     listutil.PageInfo
}

// ListCarRequestsDeps holds dependencies for ListCarRequests.
type ListCarRequestsDeps struct {
	CarRequestStore CarRequestStore
}

// QueryListCarRequests returns one page of car requests.
// PRE: Status is empty or a known request status
// POST: Requests holds at most PerPage rows; Page describes the full result
func QueryListCarRequests(ctx context.Context, query ListCarRequestsQuery, deps ListCarRequestsDeps) (ListCarRequestsResult, error) {
	if query.Status != "" && !carrequest.IsValidStatus(query.Status) {
		return ListCarRequestsResult{}, carrequest.ErrInvalidStatus
	}
	filter := carrequestStore.ListFilter{
		AccountID: query.AccountID,
		Status:    query.Status,
		Search:    query.Search,
		Sort:      query.Sort,
		Dir:       query.Dir,
	}
	total, err := deps.CarRequestStore.Count(ctx, filter)
	if err != nil {
		return ListCarRequestsResult{}, fmt.Errorf("count requests: %w", err)
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()
	rows, err := deps.CarRequestStore.List(ctx, filter)
	if err != nil {
		return ListCarRequestsResult{}, fmt.Errorf("list requests: %w", err)
	}
	return ListCarRequestsResult{Requests: rows, Page: page}, nil
}

// GetCarRequestDetailQuery carries query parameters.
type GetCarRequestDetailQuery struct {
	RequestID  string
	ViewerID   string
	ViewerRole string
}

// GetCarRequestDetailResult carries a request with everything attached to it.
type GetCarRequestDetailResult struct {
	Request   carrequest.CarRequest
	Offers    []offer.Offer
	Documents []document.Document
	Contracts []contract.Contract
	Assignee  *account.Account
}

// GetCarRequestDetailDeps holds dependencies for GetCarRequestDetail.
type GetCarRequestDetailDeps struct {
	CarRequestStore CarRequestStore
	OfferStore      OfferStore
	DocumentStore   DocumentStore
	ContractStore   ContractStore
	AccountStore    AccountStore // optional, resolves the assignee
}

// QueryGetCarRequestDetail loads one request for its owner or for staff.
// PRE: RequestID is set
// POST: Customers only see their own requests and never see draft contracts
// INVARIANT: Offers are newest first as returned by the store
func QueryGetCarRequestDetail(ctx context.Context, query GetCarRequestDetailQuery, deps GetCarRequestDetailDeps) (GetCarRequestDetailResult, error) {
	req, err := deps.CarRequestStore.GetByID(ctx, query.RequestID)
	if err != nil {
		return GetCarRequestDetailResult{}, err
	}
	staff := isStaffRole(query.ViewerRole)
	if !staff && !req.OwnedBy(query.ViewerID) {
		return GetCarRequestDetailResult{}, ErrNotVisible
	}

	res := GetCarRequestDetailResult{Request: req}
	if res.Offers, err = deps.OfferStore.ListByRequest(ctx, req.ID); err != nil {
		return GetCarRequestDetailResult{}, fmt.Errorf("list offers: %w", err)
	}
	if res.Documents, err = deps.DocumentStore.List(ctx, documentStore.ListFilter{RequestID: req.ID, Limit: 100}); err != nil {
		return GetCarRequestDetailResult{}, fmt.Errorf("list documents: %w", err)
	}
	contracts, err := deps.ContractStore.List(ctx, contractStore.ListFilter{RequestID: req.ID, Limit: 20})
	if err != nil {
		return GetCarRequestDetailResult{}, fmt.Errorf("list contracts: %w", err)
	}
	for _, c := range contracts {
		if !staff && c.Status == contract.StatusDraft {
			continue
		}
		res.Contracts = append(res.Contracts, c)
	}
	if staff && req.AssignedTo != "" && deps.AccountStore != nil {
		if a, err := deps.AccountStore.GetByID(ctx, req.AssignedTo); err == nil {
			res.Assignee = &a
		}
	}
	return res, nil
}
