package projections

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"carimport/internal/adapters/storage"
	documentStore "carimport/internal/adapters/storage/document"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/offer"
	domainOutbox "carimport/internal/domain/outbox"
	"carimport/internal/domain/stock"
)

// DashboardMonths is how many calendar months the request trend covers.
const DashboardMonths = 6

// GetDashboardQuery carries query parameters.
type GetDashboardQuery struct {
	Now time.Time // zero means time.Now
}

// MonthCount is one bar of the request trend.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// GetDashboardResult carries the admin overview numbers.
type GetDashboardResult struct {
	RequestsByStatus        map[string]int `json:"requests_by_status"`
	OpenRequests            int            `json:"open_requests"`
	RequestsPerMonth        []MonthCount   `json:"requests_per_month"` // oldest first
	OffersByStatus          map[string]int `json:"offers_by_status"`
	AcceptanceRate          float64        `json:"acceptance_rate"` // 0..1 over offers that reached an outcome
	DocumentsAwaitingReview int            `json:"documents_awaiting_review"`
	ContractsByStatus       map[string]int `json:"contracts_by_status"`
	ContractsSigned         int            `json:"contracts_signed"`
	StockByStatus           map[string]int `json:"stock_by_status"`
	OutboxFailed            int            `json:"outbox_failed"`
}

// GetDashboardDeps holds dependencies for GetDashboard.
type GetDashboardDeps struct {
	CarRequestStore CarRequestStore
	OfferStore      OfferStore
	DocumentStore   DocumentStore
	ContractStore   ContractStore
	StockStore      StockStore
	OutboxStore     OutboxStore // optional
}

// QueryGetDashboard gathers the admin dashboard numbers.
// PRE: all stores except OutboxStore are set
// POST: Returns counts from every store; the first failing query aborts the rest
// INVARIANT: RequestsPerMonth always has DashboardMonths entries, zero-filled
func QueryGetDashboard(ctx context.Context, query GetDashboardQuery, deps GetDashboardDeps) (GetDashboardResult, error) {
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}
	months := trailingMonths(now, DashboardMonths)
	since, _ := time.Parse("2006-01", months[0])

	var (
		res      GetDashboardResult
		perMonth map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		res.RequestsByStatus, err = deps.CarRequestStore.CountByStatus(gctx)
		return wrap("requests by status", err)
	})
	g.Go(func() (err error) {
		perMonth, err = deps.CarRequestStore.CountByMonth(gctx, storage.FormatTime(since))
		return wrap("requests by month", err)
	})
	g.Go(func() (err error) {
		res.OffersByStatus, err = deps.OfferStore.CountByStatus(gctx)
		return wrap("offers by status", err)
	})
	g.Go(func() (err error) {
		res.DocumentsAwaitingReview, err = deps.DocumentStore.Count(gctx, documentStore.ListFilter{AwaitingReview: true})
		return wrap("documents awaiting review", err)
	})
	g.Go(func() (err error) {
		res.ContractsByStatus, err = deps.ContractStore.CountByStatus(gctx)
		return wrap("contracts by status", err)
	})
	g.Go(func() (err error) {
		res.StockByStatus, err = deps.StockStore.CountByStatus(gctx)
		return wrap("stock by status", err)
	})
	if deps.OutboxStore != nil {
		g.Go(func() error {
			counts, err := deps.OutboxStore.CountByStatus(gctx)
			res.OutboxFailed = counts[domainOutbox.StatusFailed]
			return wrap("outbox by status", err)
		})
	}
	if err := g.Wait(); err != nil {
		return GetDashboardResult{}, err
	}

	for _, s := range []string{carrequest.StatusNew, carrequest.StatusInReview, carrequest.StatusOffered} {
		res.OpenRequests += res.RequestsByStatus[s]
	}
	res.RequestsPerMonth = make([]MonthCount, 0, len(months))
	for _, m := range months {
		res.RequestsPerMonth = append(res.RequestsPerMonth, MonthCount{Month: m, Count: perMonth[m]})
	}
	res.AcceptanceRate = acceptanceRate(res.OffersByStatus)
	res.ContractsSigned = res.ContractsByStatus[contract.StatusSigned]
	if res.StockByStatus == nil {
		res.StockByStatus = map[string]int{}
	}
	for _, s := range []string{stock.StatusAvailable, stock.StatusReserved, stock.StatusSold} {
		res.StockByStatus[s] += 0
	}
	return res, nil
}

// acceptanceRate is accepted / (accepted + declined + expired); open offers do not count.
func acceptanceRate(byStatus map[string]int) float64 {
	accepted := byStatus[offer.StatusAccepted]
	decided := accepted + byStatus[offer.StatusDeclined] + byStatus[offer.StatusExpired]
	if decided == 0 {
		return 0
	}
	return float64(accepted) / float64(decided)
}

// trailingMonths returns n YYYY-MM keys ending with the month of now, oldest first.
func trailingMonths(now time.Time, n int) []string {
	first := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = first.AddDate(0, -i, 0).Format("2006-01")
	}
	return out
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("dashboard %s: %w", what, err)
	}
	return nil
}
