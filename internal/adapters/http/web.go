package web

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"

	"carimport/internal/adapters/analytics"
	"carimport/internal/adapters/blob"
	"carimport/internal/adapters/http/middleware"
	"carimport/internal/adapters/http/perf"
	accountStore "carimport/internal/adapters/storage/account"
	auditStore "carimport/internal/adapters/storage/audit"
	blogStore "carimport/internal/adapters/storage/blog"
	carrequestStore "carimport/internal/adapters/storage/carrequest"
	contractStore "carimport/internal/adapters/storage/contract"
	documentStore "carimport/internal/adapters/storage/document"
	offerStore "carimport/internal/adapters/storage/offer"
	outboxStore "carimport/internal/adapters/storage/outbox"
	stockStore "carimport/internal/adapters/storage/stock"
	"carimport/internal/application/orchestrators"
	"carimport/internal/domain/account"
	"carimport/internal/domain/calculator"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore    accountStore.Store
	CarRequestStore carrequestStore.Store
	OfferStore      offerStore.Store
	ContractStore   contractStore.Store
	DocumentStore   documentStore.Store
	StockStore      stockStore.Store
	BlogStore       blogStore.Store
	OutboxStore     outboxStore.Store
	AuditStore      auditStore.Store
}

// Config wires the HTTP layer. Zero values fall back to safe development defaults.
type Config struct {
	Stores   Stores
	Sessions middleware.SessionStore
	Blob     blob.Store
	Notifier *orchestrators.Notifier
	Tracker  analytics.Tracker
	Outbox   *orchestrators.OutboxProcessor
	Rates    *calculator.Rates
	Perf     *perf.Collector

	SiteURL        string // absolute base for analytics page URLs
	CSRFKey        []byte // 32 bytes
	Secure         bool   // HTTPS: Secure cookies and HSTS
	TrustProxy     bool   // key rate limits on X-Forwarded-For
	TrustedOrigins []string
	SlowRequest    time.Duration

	// GlobalLimiter applies to every request; StrictLimiter to intake, login and uploads.
	GlobalLimiter middleware.Limiter
	StrictLimiter middleware.Limiter

	Now        func() time.Time
	GenerateID func() string
}

// server carries the wired dependencies for handlers.
type server struct {
	Config
	pages map[string]*template.Template
	ip    middleware.KeyFunc
}

// NewMux wires HTTP handlers for the app.
// PRE: cfg.Stores are all set and cfg.CSRFKey is 32 bytes
// POST: Returns the full middleware chain around the route table
func NewMux(cfg Config) (http.Handler, error) {
	if len(cfg.CSRFKey) != 32 {
		return nil, errors.New("web: CSRF key must be 32 bytes")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = middleware.NewMemorySessionStore()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = analytics.Noop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GenerateID == nil {
		cfg.GenerateID = func() string { return uuid.NewString() }
	}
	if cfg.Rates == nil {
		cfg.Rates = calculator.DefaultRates()
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &server{Config: cfg, pages: pages, ip: middleware.ClientIP(cfg.TrustProxy)}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	chain := []func(http.Handler) http.Handler{
		middleware.Timing(cfg.Perf, cfg.SlowRequest),
		middleware.SecurityHeaders(cfg.Secure),
	}
	if cfg.GlobalLimiter != nil {
		chain = append(chain, middleware.RateLimit(cfg.GlobalLimiter, s.ip))
	}
	chain = append(chain,
		middleware.Auth(cfg.Sessions),
		middleware.CSRF(cfg.CSRFKey, cfg.Secure, cfg.TrustedOrigins),
	)
	return middleware.Chain(mux, chain...), nil
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	staff := middleware.RequireRole(account.RoleStaff, account.RoleAdmin)
	admin := middleware.RequireRole(account.RoleAdmin)
	customer := middleware.RequireAuth

	fn := func(f http.HandlerFunc) http.Handler { return f }
	strict := s.strict

	// Public pages
	mux.Handle("GET /{$}", fn(s.handleHome))
	mux.Handle("GET /stock", fn(s.handleStockPage))
	mux.Handle("GET /stock/{id}", fn(s.handleStockCarPage))
	mux.Handle("GET /blog", fn(s.handleBlogPage))
	mux.Handle("GET /blog/{slug}", fn(s.handleBlogPostPage))
	mux.Handle("GET /calculator", fn(s.handleCalculatorPage))
	mux.Handle("GET /request", fn(s.handleRequestForm))
	mux.Handle("GET /request/thanks", fn(s.handleRequestThanks))
	mux.Handle("POST /requests", strict(fn(s.handleSubmitCarRequest)))
	mux.Handle("GET /login", fn(s.handleLoginPage))
	mux.Handle("POST /login", strict(fn(s.handleLogin)))
	mux.Handle("POST /logout", fn(s.handleLogout))
	mux.Handle("GET /register", fn(s.handleRegisterPage))
	mux.Handle("POST /register", strict(fn(s.handleRegister)))
	mux.Handle("GET /media/{key...}", fn(s.handleMedia))
	mux.Handle("GET /healthz", fn(s.handleHealth))
	mux.Handle("GET /static/", staticHandler())

	// Public JSON
	mux.Handle("GET /api/stock", fn(s.handleAPIStockList))
	mux.Handle("GET /api/stock/{id}", fn(s.handleAPIStockCar))
	mux.Handle("GET /api/blog", fn(s.handleAPIPosts))
	mux.Handle("GET /api/blog/{slug}", fn(s.handleAPIPost))
	mux.Handle("POST /api/calculator", fn(s.handleAPICalculate))
	mux.Handle("GET /api/calculator/countries", fn(s.handleAPICountries))

	// Customers
	mux.Handle("GET /account", customer(fn(s.handleAccountPage)))
	mux.Handle("GET /api/me", customer(fn(s.handleMe)))
	mux.Handle("POST /api/me/password", customer(fn(s.handleChangePassword)))
	mux.Handle("GET /api/me/requests", customer(fn(s.handleMyRequests)))
	mux.Handle("GET /api/me/requests/{id}", customer(fn(s.handleRequestDetail)))
	mux.Handle("POST /api/me/requests/{id}/cancel", customer(fn(s.handleCancelMyRequest)))
	mux.Handle("POST /api/me/offers/{id}/respond", customer(fn(s.handleRespondToOffer)))
	mux.Handle("GET /api/me/documents", customer(fn(s.handleMyDocuments)))
	mux.Handle("POST /api/me/documents", customer(strict(fn(s.handleUploadDocument))))
	mux.Handle("GET /api/me/contracts", customer(fn(s.handleMyContracts)))

	// Staff console
	mux.Handle("GET /admin", staff(fn(s.handleAdminPage)))
	mux.Handle("GET /api/admin/dashboard", staff(fn(s.handleAdminDashboard)))
	mux.Handle("GET /api/admin/requests", staff(fn(s.handleAdminRequests)))
	mux.Handle("GET /api/admin/requests/{id}", staff(fn(s.handleRequestDetail)))
	mux.Handle("POST /api/admin/requests/{id}/status", staff(fn(s.handleAdminRequestStatus)))
	mux.Handle("POST /api/admin/requests/{id}/assign", staff(fn(s.handleAdminAssignRequest)))
	mux.Handle("POST /api/admin/requests/{id}/offers", staff(fn(s.handleAdminSendOffer)))
	mux.Handle("POST /api/admin/offers/{id}/respond", staff(fn(s.handleRespondToOffer)))
	mux.Handle("GET /api/admin/contracts", staff(fn(s.handleAdminContracts)))
	mux.Handle("POST /api/admin/contracts", staff(fn(s.handleAdminCreateContract)))
	mux.Handle("PATCH /api/admin/contracts/{id}", staff(fn(s.handleAdminUpdateContract)))
	mux.Handle("GET /api/admin/documents", staff(fn(s.handleAdminDocuments)))
	mux.Handle("GET /api/admin/documents/{id}", staff(fn(s.handleAdminDocument)))
	mux.Handle("POST /api/admin/documents/{id}/review", staff(fn(s.handleAdminReviewDocument)))
	mux.Handle("POST /api/admin/documents/{id}/rerun", staff(fn(s.handleAdminRerunOCR)))
	mux.Handle("GET /api/admin/stock", staff(fn(s.handleAdminStockList)))
	mux.Handle("POST /api/admin/stock", staff(fn(s.handleAdminSaveCar)))
	mux.Handle("PUT /api/admin/stock/{id}", staff(fn(s.handleAdminSaveCar)))
	mux.Handle("DELETE /api/admin/stock/{id}", staff(fn(s.handleAdminDeleteCar)))
	mux.Handle("POST /api/admin/stock/{id}/images", staff(fn(s.handleAdminAddCarImage)))
	mux.Handle("DELETE /api/admin/stock/{id}/images", staff(fn(s.handleAdminRemoveCarImage)))
	mux.Handle("GET /api/admin/posts", staff(fn(s.handleAdminPosts)))
	mux.Handle("POST /api/admin/posts", staff(fn(s.handleAdminSavePost)))
	mux.Handle("GET /api/admin/posts/{id}", staff(fn(s.handleAdminPreviewPost)))
	mux.Handle("PUT /api/admin/posts/{id}", staff(fn(s.handleAdminSavePost)))
	mux.Handle("DELETE /api/admin/posts/{id}", staff(fn(s.handleAdminDeletePost)))
	mux.Handle("POST /api/admin/posts/{id}/publish", staff(fn(s.handleAdminPublishPost)))
	mux.Handle("POST /api/admin/posts/{id}/unpublish", staff(fn(s.handleAdminPublishPost)))

	// Admin only
	mux.Handle("GET /api/admin/accounts", admin(fn(s.handleAdminAccounts)))
	mux.Handle("POST /api/admin/accounts", admin(fn(s.handleAdminCreateAccount)))
	mux.Handle("POST /api/admin/accounts/{id}/role", admin(fn(s.handleAdminChangeRole)))
	mux.Handle("POST /api/admin/accounts/{id}/status", admin(fn(s.handleAdminAccountStatus)))
	mux.Handle("GET /api/admin/audit", admin(fn(s.handleAdminAuditTrail)))
	mux.Handle("GET /api/admin/outbox", admin(fn(s.handleAdminOutbox)))
	mux.Handle("POST /api/admin/outbox/{id}/retry", admin(fn(s.handleAdminOutboxAction)))
	mux.Handle("POST /api/admin/outbox/{id}/abandon", admin(fn(s.handleAdminOutboxAction)))
	mux.Handle("GET /api/admin/perf", admin(fn(s.handleAdminPerf)))
}

// strict applies the scoped limiter, when configured.
func (s *server) strict(h http.Handler) http.Handler {
	if s.StrictLimiter == nil {
		return h
	}
	return middleware.RateLimit(s.StrictLimiter, s.ip)(h)
}
