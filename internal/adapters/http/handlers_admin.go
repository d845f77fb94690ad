package web

import (
	"net/http"
	"time"

	"carimport/internal/application/listutil"
	"carimport/internal/application/orchestrators"
	"carimport/internal/application/projections"
	"carimport/internal/domain/document"
)

// perfWindow is how far back the perf snapshot looks by default.
const perfWindow = time.Hour

func (s *server) dashboardDeps() projections.GetDashboardDeps {
	return projections.GetDashboardDeps{
		CarRequestStore: s.Stores.CarRequestStore,
		OfferStore:      s.Stores.OfferStore,
		DocumentStore:   s.Stores.DocumentStore,
		ContractStore:   s.Stores.ContractStore,
		StockStore:      s.Stores.StockStore,
		OutboxStore:     s.Stores.OutboxStore,
	}
}

// handleAdminPage renders the staff console shell with the dashboard numbers.
func (s *server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	dash, err := projections.QueryGetDashboard(r.Context(), projections.GetDashboardQuery{Now: s.Now()}, s.dashboardDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	queue, err := projections.QueryListDocuments(r.Context(), projections.ListDocumentsQuery{
		AwaitingReview: true, PerPage: 10,
	}, s.Stores.DocumentStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recent, err := projections.QueryListCarRequests(r.Context(), projections.ListCarRequestsQuery{PerPage: 10},
		projections.ListCarRequestsDeps{CarRequestStore: s.Stores.CarRequestStore})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_dashboard.html", "Dashboard", map[string]any{
		"Dashboard": dash,
		"Queue":     queue.Documents,
		"Requests":  recent.Requests,
	})
}

// handleAdminDashboard returns the dashboard numbers as JSON.
func (s *server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := projections.QueryGetDashboard(r.Context(), projections.GetDashboardQuery{Now: s.Now()}, s.dashboardDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// handleAdminRequests lists requests with status filter, search and sort.
func (s *server) handleAdminRequests(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), projections.RequestSortColumns, []string{"status", "account_id"})
	res, err := projections.QueryListCarRequests(r.Context(), projections.ListCarRequestsQuery{
		AccountID: p.Filters["account_id"],
		Status:    p.Filters["status"],
		Search:    p.Search,
		Sort:      p.Sort,
		Dir:       p.Dir,
		Page:      p.Page,
		PerPage:   p.PerPage,
	}, projections.ListCarRequestsDeps{CarRequestStore: s.Stores.CarRequestStore})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": toRequests(res.Requests, true),
		"page":     toPage(res.Page),
	})
}

func (s *server) manageRequestDeps() orchestrators.ManageCarRequestDeps {
	return orchestrators.ManageCarRequestDeps{
		RequestStore: s.Stores.CarRequestStore,
		AccountStore: s.Stores.AccountStore,
		AuditStore:   s.Stores.AuditStore,
		Now:          s.Now,
	}
}

type statusBody struct {
	Status string `json:"status"`
}

// handleAdminRequestStatus moves a request along its lifecycle.
func (s *server) handleAdminRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := orchestrators.ExecuteUpdateRequestStatus(r.Context(), orchestrators.UpdateRequestStatusInput{
		RequestID: r.PathValue("id"),
		Status:    body.Status,
		Actor:     s.actor(r),
	}, s.manageRequestDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequest(req, true))
}

// assignBody leaves a field untouched when it is absent.
type assignBody struct {
	AssignedTo *string `json:"assigned_to"`
	AdminNotes *string `json:"admin_notes"`
}

func (s *server) handleAdminAssignRequest(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := orchestrators.ExecuteAssignRequest(r.Context(), orchestrators.AssignRequestInput{
		RequestID:  r.PathValue("id"),
		AssignedTo: body.AssignedTo,
		AdminNotes: body.AdminNotes,
		Actor:      s.actor(r),
	}, s.manageRequestDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequest(req, true))
}

type offerBody struct {
	VehicleDescription string `json:"vehicle_description"`
	PriceCents         int64  `json:"price_cents"`
	ListingURL         string `json:"listing_url"`
	Message            string `json:"message"`
	ValidDays          int    `json:"valid_days"`
}

// handleAdminSendOffer proposes a vehicle for a request.
// PRE: request is open
// POST: 201 with the offer; earlier open offers on the request are expired
func (s *server) handleAdminSendOffer(w http.ResponseWriter, r *http.Request) {
	var body offerBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.ValidDays < 0 {
		s.fail(w, r, errBadInput)
		return
	}
	o, err := orchestrators.ExecuteSendOffer(r.Context(), orchestrators.SendOfferInput{
		RequestID:          r.PathValue("id"),
		VehicleDescription: body.VehicleDescription,
		PriceCents:         body.PriceCents,
		ListingURL:         body.ListingURL,
		Message:            body.Message,
		ValidFor:           time.Duration(body.ValidDays) * 24 * time.Hour,
		Actor:              s.actor(r),
	}, s.offerDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOffer(o))
}

func (s *server) contractDeps() orchestrators.ContractDeps {
	return orchestrators.ContractDeps{
		ContractStore: s.Stores.ContractStore,
		RequestStore:  s.Stores.CarRequestStore,
		OfferStore:    s.Stores.OfferStore,
		AccountStore:  s.Stores.AccountStore,
		AuditStore:    s.Stores.AuditStore,
		Notifier:      s.Notifier,
		GenerateID:    s.GenerateID,
		Now:           s.Now,
	}
}

func (s *server) handleAdminContracts(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), nil, []string{"status", "account_id", "request_id"})
	res, err := projections.QueryListContracts(r.Context(), projections.ListContractsQuery{
		AccountID: p.Filters["account_id"],
		RequestID: p.Filters["request_id"],
		Status:    p.Filters["status"],
		Page:      p.Page,
		PerPage:   p.PerPage,
	}, s.Stores.ContractStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contracts": toContracts(res.Contracts),
		"page":      toPage(res.Page),
	})
}

type createContractBody struct {
	RequestID          string `json:"request_id"`
	AccountID          string `json:"account_id"`
	VehicleDescription string `json:"vehicle_description"`
	VIN                string `json:"vin"`
	PriceCents         int64  `json:"price_cents"`
	DepositCents       int64  `json:"deposit_cents"`
}

// handleAdminCreateContract drafts the sale contract of an accepted request.
func (s *server) handleAdminCreateContract(w http.ResponseWriter, r *http.Request) {
	var body createContractBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := orchestrators.ExecuteCreateContract(r.Context(), orchestrators.CreateContractInput{
		RequestID:          body.RequestID,
		AccountID:          body.AccountID,
		VehicleDescription: body.VehicleDescription,
		VIN:                body.VIN,
		PriceCents:         body.PriceCents,
		DepositCents:       body.DepositCents,
		Actor:              s.actor(r),
	}, s.contractDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContract(c))
}

type updateContractBody struct {
	Status       string  `json:"status"`
	VIN          *string `json:"vin"`
	DepositCents *int64  `json:"deposit_cents"`
}

// handleAdminUpdateContract edits a contract or moves it along
// draft, sent, signed (PATCH /api/admin/contracts/{id}).
func (s *server) handleAdminUpdateContract(w http.ResponseWriter, r *http.Request) {
	var body updateContractBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := orchestrators.ExecuteUpdateContract(r.Context(), orchestrators.UpdateContractInput{
		ContractID:   r.PathValue("id"),
		Status:       body.Status,
		VIN:          body.VIN,
		DepositCents: body.DepositCents,
		Actor:        s.actor(r),
	}, s.contractDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContract(c))
}

// handleAdminDocuments lists documents; ?queue=1 gives the review queue.
func (s *server) handleAdminDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := listutil.ParseListParams(q, nil, []string{"status", "account_id", "request_id"})
	if st := p.Filters["status"]; st != "" && !validDocumentStatus(st) {
		s.fail(w, r, errBadInput)
		return
	}
	res, err := projections.QueryListDocuments(r.Context(), projections.ListDocumentsQuery{
		AccountID:      p.Filters["account_id"],
		RequestID:      p.Filters["request_id"],
		Status:         p.Filters["status"],
		AwaitingReview: q.Get("queue") == "1",
		Page:           p.Page,
		PerPage:        p.PerPage,
	}, s.Stores.DocumentStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": toDocuments(res.Documents, true),
		"page":      toPage(res.Page),
	})
}

func validDocumentStatus(st string) bool {
	switch st {
	case document.StatusUploaded, document.StatusProcessing, document.StatusExtracted,
		document.StatusOCRFailed, document.StatusApproved, document.StatusRejected:
		return true
	}
	return false
}

func (s *server) handleAdminDocument(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	doc, err := projections.QueryGetDocument(r.Context(), projections.GetDocumentQuery{
		DocumentID: r.PathValue("id"),
		ViewerID:   sess.AccountID,
		ViewerRole: sess.Role,
	}, s.Stores.DocumentStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocument(doc, true))
}

type reviewBody struct {
	Approve     bool            `json:"approve"`
	Note        string          `json:"note"`
	Corrections document.Fields `json:"corrections"`
}

// handleAdminReviewDocument approves or rejects an extracted document.
// POST: Customer is emailed the decision; audit written
func (s *server) handleAdminReviewDocument(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := orchestrators.ExecuteReviewDocument(r.Context(), orchestrators.ReviewDocumentInput{
		DocumentID:  r.PathValue("id"),
		Approve:     body.Approve,
		Note:        body.Note,
		Corrections: body.Corrections,
		Actor:       s.actor(r),
	}, orchestrators.ReviewDocumentDeps{
		DocumentStore: s.Stores.DocumentStore,
		AccountStore:  s.Stores.AccountStore,
		AuditStore:    s.Stores.AuditStore,
		Notifier:      s.Notifier,
		Now:           s.Now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocument(doc, true))
}

// handleAdminRerunOCR queues OCR again; 202 because it runs in the outbox worker.
func (s *server) handleAdminRerunOCR(w http.ResponseWriter, r *http.Request) {
	entryID, err := orchestrators.ExecuteRerunDocumentOCR(r.Context(), orchestrators.RerunDocumentOCRInput{
		DocumentID: r.PathValue("id"),
		Actor:      s.actor(r),
	}, orchestrators.RerunDocumentOCRDeps{
		DocumentStore: s.Stores.DocumentStore,
		Outbox:        s.Stores.OutboxStore,
		AuditStore:    s.Stores.AuditStore,
		GenerateID:    s.GenerateID,
		Now:           s.Now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"outbox_entry_id": entryID})
}

func (s *server) manageAccountDeps() orchestrators.ManageAccountDeps {
	return orchestrators.ManageAccountDeps{
		AccountStore: s.Stores.AccountStore,
		Sessions:     s.Sessions,
		AuditStore:   s.Stores.AuditStore,
	}
}

// handleAdminAccounts lists accounts with role/status filters and search.
func (s *server) handleAdminAccounts(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), projections.AccountSortColumns, []string{"role", "status"})
	res, err := projections.QueryListAccounts(r.Context(), projections.ListAccountsQuery{
		Role:    p.Filters["role"],
		Status:  p.Filters["status"],
		Search:  p.Search,
		Sort:    p.Sort,
		Dir:     p.Dir,
		Page:    p.Page,
		PerPage: p.PerPage,
	}, s.Stores.AccountStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]accountJSON, 0, len(res.Accounts))
	for _, a := range res.Accounts {
		out = append(out, toAccount(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out, "page": toPage(res.Page)})
}

type createAccountBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleAdminCreateAccount creates staff, admin or customer accounts.
func (s *server) handleAdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	acct, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:    body.Email,
		Name:     body.Name,
		Phone:    body.Phone,
		Password: body.Password,
		Role:     body.Role,
		Actor:    s.actor(r),
	}, s.createAccountDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccount(acct))
}

type roleBody struct {
	Role string `json:"role"`
}

// handleAdminChangeRole changes an account's role; its sessions are revoked.
func (s *server) handleAdminChangeRole(w http.ResponseWriter, r *http.Request) {
	var body roleBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	acct, err := orchestrators.ExecuteChangeRole(r.Context(), orchestrators.ChangeRoleInput{
		AccountID: r.PathValue("id"),
		Role:      body.Role,
		Actor:     s.actor(r),
	}, s.manageAccountDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acct))
}

// handleAdminAccountStatus disables or re-enables an account.
func (s *server) handleAdminAccountStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	acct, err := orchestrators.ExecuteSetAccountStatus(r.Context(), orchestrators.SetAccountStatusInput{
		AccountID: r.PathValue("id"),
		Status:    body.Status,
		Actor:     s.actor(r),
	}, s.manageAccountDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acct))
}

// handleAdminPerf returns request, query and external call timings.
// ?minutes= widens or narrows the window.
func (s *server) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if s.Perf == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	window := perfWindow
	if m, err := atoi(r.URL.Query().Get("minutes")); err == nil && m > 0 {
		window = time.Duration(m) * time.Minute
	}
	writeJSON(w, http.StatusOK, s.Perf.Snapshot(s.Now().Add(-window), 10))
}
