package web

import (
	"errors"
	"net/http"

	"carimport/internal/adapters/http/middleware"
	"carimport/internal/application/listutil"
	"carimport/internal/application/orchestrators"
	"carimport/internal/application/projections"
	"carimport/internal/domain/account"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/document"
	"carimport/internal/domain/upload"
)

// documentKinds are offered on the upload form.
var documentKinds = []string{document.KindPassport, document.KindIDCard, document.KindDrivingLicense}

func (s *server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", "Log in", map[string]any{
		"Next": safeNext(r.URL.Query().Get("next")),
	})
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// startSession issues a fresh session cookie and drops any session the
// browser already carried.
// POST: Cookie set; the old token no longer resolves
func (s *server) startSession(w http.ResponseWriter, r *http.Request, sess middleware.Session) error {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		s.Sessions.Delete(r.Context(), cookie.Value)
	}
	sess.CreatedAt = s.Now().UTC()
	token, err := s.Sessions.Create(r.Context(), sess)
	if err != nil {
		return err
	}
	middleware.SetSessionCookie(w, token, s.Secure)
	return nil
}

// handleLogin authenticates with email and password (POST /login).
// PRE: form or JSON credentials
// POST: On success a session cookie is set. Forms redirect to next or the
// role's landing page; JSON gets the session. Failures are audited by ExecuteLogin.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := isFormPost(r)
	var body credentialsBody
	next := ""
	if form {
		if err := r.ParseForm(); err != nil {
			s.fail(w, r, errors.Join(errBadInput, err))
			return
		}
		body.Email = r.PostFormValue("email")
		body.Password = r.PostFormValue("password")
		next = safeNext(r.PostFormValue("next"))
	} else if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    body.Email,
		Password: body.Password,
		IP:       s.ip(r),
		Agent:    r.UserAgent(),
	}, orchestrators.LoginDeps{
		AccountStore: s.Stores.AccountStore,
		AuditStore:   s.Stores.AuditStore,
		Now:          s.Now,
	})
	if err != nil {
		status, msg := classify(err)
		if form && status < http.StatusInternalServerError {
			s.render(w, r, status, "login.html", "Log in", map[string]any{
				"Next":  next,
				"Email": body.Email,
				"Error": msg,
			})
			return
		}
		s.fail(w, r, err)
		return
	}

	sess := middleware.Session{AccountID: res.AccountID, Email: res.Email, Name: res.Name, Role: res.Role}
	if err := s.startSession(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	if form {
		if next == "" {
			next = "/account"
			if isStaffSession(res.Role) {
				next = "/admin"
			}
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, toSession(sess))
}

// handleLogout ends the session (POST /logout).
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.Sessions.Delete(r.Context(), cookie.Value); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	middleware.ClearSessionCookie(w, s.Secure)
	if isFormPost(r) || isHTMLRequest(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", "Create an account", nil)
}

type registerBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// handleRegister creates a customer account and logs it in (POST /register).
// PRE: form or JSON body
// POST: Customer account saved, session started, registration tracked
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := isFormPost(r)
	var body registerBody
	if form {
		if err := r.ParseForm(); err != nil {
			s.fail(w, r, errors.Join(errBadInput, err))
			return
		}
		body = registerBody{
			Email:    r.PostFormValue("email"),
			Name:     r.PostFormValue("name"),
			Phone:    r.PostFormValue("phone"),
			Password: r.PostFormValue("password"),
		}
	} else if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	acct, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:    body.Email,
		Name:     body.Name,
		Phone:    body.Phone,
		Password: body.Password,
		Role:     account.RoleCustomer,
		Actor:    s.actor(r),
	}, s.createAccountDeps())
	if err != nil {
		status, msg := classify(err)
		if form && status < http.StatusInternalServerError {
			s.render(w, r, status, "register.html", "Create an account", map[string]any{
				"Form":  body,
				"Error": msg,
			})
			return
		}
		s.fail(w, r, err)
		return
	}

	sess := middleware.Session{AccountID: acct.ID, Email: acct.Email, Name: acct.Name, Role: acct.Role}
	if err := s.startSession(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	if form {
		http.Redirect(w, r, "/account", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, toAccount(acct))
}

func (s *server) createAccountDeps() orchestrators.CreateAccountDeps {
	return orchestrators.CreateAccountDeps{
		AccountStore: s.Stores.AccountStore,
		AuditStore:   s.Stores.AuditStore,
		Tracker:      s.Tracker,
		GenerateID:   s.GenerateID,
		Now:          s.Now,
	}
}

// handleAccountPage renders the customer portal shell (GET /account).
func (s *server) handleAccountPage(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	ctx := r.Context()
	reqs, err := projections.QueryListCarRequests(ctx, projections.ListCarRequestsQuery{
		AccountID: sess.AccountID, PerPage: listutil.DefaultPerPage,
	}, projections.ListCarRequestsDeps{CarRequestStore: s.Stores.CarRequestStore})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	docs, err := projections.QueryListDocuments(ctx, projections.ListDocumentsQuery{
		AccountID: sess.AccountID, PerPage: listutil.DefaultPerPage,
	}, s.Stores.DocumentStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	contracts, err := projections.QueryListContracts(ctx, projections.ListContractsQuery{
		AccountID: sess.AccountID, PerPage: listutil.DefaultPerPage,
	}, s.Stores.ContractStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "account.html", "My account", map[string]any{
		"Requests":  reqs.Requests,
		"Documents": docs.Documents,
		"Contracts": visibleContracts(contracts.Contracts),
		"Kinds":     documentKinds,
	})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, err := s.Stores.AccountStore.GetByID(r.Context(), session(r).AccountID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acct))
}

type changePasswordBody struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword updates the caller's password (POST /api/me/password).
func (s *server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		AccountID:       session(r).AccountID,
		CurrentPassword: body.CurrentPassword,
		NewPassword:     body.NewPassword,
	}, orchestrators.ChangePasswordDeps{AccountStore: s.Stores.AccountStore})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMyRequests lists the caller's requests.
func (s *server) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), projections.RequestSortColumns, []string{"status"})
	res, err := projections.QueryListCarRequests(r.Context(), projections.ListCarRequestsQuery{
		AccountID: session(r).AccountID,
		Status:    p.Filters["status"],
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
		"requests": toRequests(res.Requests, false),
		"page":     toPage(res.Page),
	})
}

// handleRequestDetail returns a request with its offers, documents and contracts.
// Serves both the customer and the staff route; visibility is decided by role.
func (s *server) handleRequestDetail(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	res, err := projections.QueryGetCarRequestDetail(r.Context(), projections.GetCarRequestDetailQuery{
		RequestID:  r.PathValue("id"),
		ViewerID:   sess.AccountID,
		ViewerRole: sess.Role,
	}, projections.GetCarRequestDetailDeps{
		CarRequestStore: s.Stores.CarRequestStore,
		OfferStore:      s.Stores.OfferStore,
		DocumentStore:   s.Stores.DocumentStore,
		ContractStore:   s.Stores.ContractStore,
		AccountStore:    s.Stores.AccountStore,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	staff := isStaffSession(sess.Role)
	offers := make([]offerJSON, 0, len(res.Offers))
	for _, o := range res.Offers {
		offers = append(offers, toOffer(o))
	}
	out := map[string]any{
		"request":   toRequest(res.Request, staff),
		"offers":    offers,
		"documents": toDocuments(res.Documents, staff),
		"contracts": toContracts(res.Contracts),
	}
	if staff && res.Assignee != nil {
		out["assignee"] = toAccount(*res.Assignee)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCancelMyRequest withdraws one of the caller's open requests.
func (s *server) handleCancelMyRequest(w http.ResponseWriter, r *http.Request) {
	req, err := orchestrators.ExecuteCancelMyRequest(r.Context(), orchestrators.CancelMyRequestInput{
		RequestID: r.PathValue("id"),
		AccountID: session(r).AccountID,
	}, orchestrators.CancelMyRequestDeps{RequestStore: s.Stores.CarRequestStore, Now: s.Now})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequest(req, false))
}

type respondBody struct {
	Accept bool `json:"accept"`
}

func (s *server) offerDeps() orchestrators.OfferDeps {
	return orchestrators.OfferDeps{
		RequestStore: s.Stores.CarRequestStore,
		OfferStore:   s.Stores.OfferStore,
		AuditStore:   s.Stores.AuditStore,
		Notifier:     s.Notifier,
		Tracker:      s.Tracker,
		GenerateID:   s.GenerateID,
		Now:          s.Now,
	}
}

// handleRespondToOffer accepts or declines an offer. Customers answer their
// own offers; staff record answers given outside the site.
func (s *server) handleRespondToOffer(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := orchestrators.ExecuteRespondToOffer(r.Context(), orchestrators.RespondToOfferInput{
		OfferID: r.PathValue("id"),
		Accept:  body.Accept,
		Actor:   s.actor(r),
	}, s.offerDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOffer(o))
}

func (s *server) handleMyDocuments(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParsePageParams(r.URL.Query())
	res, err := projections.QueryListDocuments(r.Context(), projections.ListDocumentsQuery{
		AccountID: session(r).AccountID,
		RequestID: r.URL.Query().Get("request_id"),
		Page:      p.Page,
		PerPage:   p.PerPage,
	}, s.Stores.DocumentStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": toDocuments(res.Documents, false),
		"page":      toPage(res.Page),
	})
}

// handleUploadDocument takes an identity document as multipart form data
// (POST /api/me/documents, fields kind, request_id and file).
// PRE: caller is logged in; file is at most upload.MaxDocumentBytes
// POST: 201 with the new document, or 200 with the existing one for a
// repeated upload. OCR runs later from the outbox.
func (s *server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, upload.MaxDocumentBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	res, err := orchestrators.ExecuteUploadDocument(r.Context(), orchestrators.UploadDocumentInput{
		AccountID: session(r).AccountID,
		RequestID: r.FormValue("request_id"),
		Kind:      r.FormValue("kind"),
		FileName:  name,
		Data:      data,
		IP:        s.ip(r),
		UserAgent: r.UserAgent(),
	}, orchestrators.UploadDocumentDeps{
		DocumentStore: s.Stores.DocumentStore,
		RequestStore:  s.Stores.CarRequestStore,
		Blob:          s.Blob,
		Outbox:        s.Stores.OutboxStore,
		Tracker:       s.Tracker,
		GenerateID:    s.GenerateID,
		Now:           s.Now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"document":  toDocument(res.Document, false),
		"duplicate": res.Duplicate,
	})
}

// visibleContracts drops drafts, which customers never see.
func visibleContracts(cs []contract.Contract) []contract.Contract {
	out := make([]contract.Contract, 0, len(cs))
	for _, c := range cs {
		if c.Status != contract.StatusDraft {
			out = append(out, c)
		}
	}
	return out
}

// handleMyContracts lists the caller's contracts; drafts stay with staff.
func (s *server) handleMyContracts(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParsePageParams(r.URL.Query())
	res, err := projections.QueryListContracts(r.Context(), projections.ListContractsQuery{
		AccountID: session(r).AccountID,
		Page:      p.Page,
		PerPage:   p.PerPage,
	}, s.Stores.ContractStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contracts": toContracts(visibleContracts(res.Contracts)),
		"page":      toPage(res.Page),
	})
}
