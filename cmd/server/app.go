package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"carimport/internal/adapters/analytics"
	"carimport/internal/adapters/blob"
	emailAdapter "carimport/internal/adapters/email"
	web "carimport/internal/adapters/http"
	"carimport/internal/adapters/http/middleware"
	"carimport/internal/adapters/http/perf"
	"carimport/internal/adapters/ocr"
	"carimport/internal/adapters/storage"
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
	"carimport/internal/config"
	"carimport/internal/domain/calculator"
	domainOutbox "carimport/internal/domain/outbox"
)

// janitorInterval is how often idle local rate-limit keys are evicted.
const janitorInterval = 5 * time.Minute

// openDB opens, instruments and migrates the database.
// POST: the schema is at storage.LatestVersion
func openDB(ctx context.Context, cfg *config.Config, collector *perf.Collector) (*storage.TimedDB, error) {
	raw, dialect, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db := storage.NewTimedDB(raw, dialect, collector, cfg.SlowQuery)
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func newStores(db storage.SQLDB) web.Stores {
	return web.Stores{
		AccountStore:    accountStore.NewSQLStore(db),
		CarRequestStore: carrequestStore.NewSQLStore(db),
		OfferStore:      offerStore.NewSQLStore(db),
		ContractStore:   contractStore.NewSQLStore(db),
		DocumentStore:   documentStore.NewSQLStore(db),
		StockStore:      stockStore.NewSQLStore(db),
		BlogStore:       blogStore.NewSQLStore(db),
		OutboxStore:     outboxStore.NewSQLStore(db),
		AuditStore:      auditStore.NewSQLStore(db),
	}
}

func newBlobStore(cfg *config.Config, collector *perf.Collector) (blob.Store, error) {
	if cfg.Blob.Backend == "r2" {
		r2 := cfg.Blob.R2
		return blob.NewR2Store(blob.R2Config{
			AccountID:       r2.AccountID,
			AccessKeyID:     r2.AccessKeyID,
			SecretAccessKey: r2.SecretAccessKey,
			Bucket:          r2.Bucket,
			Endpoint:        r2.Endpoint,
			URLExpiry:       r2.URLExpiry,
		}, collector)
	}
	return blob.NewLocalStore(cfg.Blob.LocalDir, "/media")
}

func newEmailSender(cfg *config.Config, collector *perf.Collector) emailAdapter.Sender {
	switch cfg.Email.Provider {
	case "brevo":
		return emailAdapter.NewBrevoSender(cfg.Email.BrevoKey, cfg.Email.From, emailAdapter.WithBrevoCollector(collector))
	case "resend":
		return emailAdapter.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, collector)
	default:
		slog.Warn("email_delivery_disabled", "provider", cfg.Email.Provider)
		return emailAdapter.NewNoopSender()
	}
}

func newTracker(cfg *config.Config, collector *perf.Collector) analytics.Tracker {
	var trackers analytics.Multi
	a := cfg.Analytics
	if a.PlausibleURL != "" && a.PlausibleDomain != "" {
		trackers = append(trackers, analytics.NewPlausibleTracker(a.PlausibleURL, a.PlausibleDomain, collector))
	}
	if a.UmamiURL != "" && a.UmamiWebsiteID != "" {
		trackers = append(trackers, analytics.NewUmamiTracker(a.UmamiURL, a.UmamiWebsiteID, collector))
	}
	if len(trackers) == 0 {
		return analytics.Noop{}
	}
	return trackers
}

func loadRates(path string) (*calculator.Rates, error) {
	if path == "" {
		return calculator.DefaultRates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rates: %w", err)
	}
	return calculator.ParseRates(data)
}

// csrfKey returns the configured key, or a random one outside production.
// A random key invalidates open forms on every restart.
func csrfKey(cfg *config.Config) ([]byte, error) {
	if cfg.CSRFKey != "" {
		return cfg.CSRFKeyBytes()
	}
	if cfg.IsProduction() {
		return nil, config.ErrInvalidCSRFKey
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("csrf_key_generated", "reason", "csrf_key not set")
	return key, nil
}

// limits holds the session store and limiters, backed by Redis when configured.
type limits struct {
	sessions middleware.SessionStore
	global   middleware.Limiter
	strict   middleware.Limiter
	redis    *redis.Client
}

func newLimits(ctx context.Context, cfg *config.Config) (limits, error) {
	rl := cfg.RateLimit
	if cfg.Redis.URL == "" {
		global := middleware.NewLocalLimiter(rl.PerMinute, rl.Burst)
		global.StartJanitor(ctx, janitorInterval)
		window := rl.StrictWindow
		if window <= 0 {
			window = time.Minute
		}
		strictPerMinute := int(float64(rl.StrictLimit) * float64(time.Minute) / float64(window))
		strict := middleware.NewLocalLimiter(max(strictPerMinute, 1), rl.StrictLimit)
		strict.StartJanitor(ctx, janitorInterval)
		return limits{sessions: middleware.NewMemorySessionStore(), global: global, strict: strict}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return limits{}, fmt.Errorf("redis.url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return limits{}, fmt.Errorf("ping redis: %w", err)
	}
	return limits{
		sessions: middleware.NewRedisSessionStore(rdb),
		global:   middleware.NewRedisLimiter(rdb, "global", rl.PerMinute, time.Minute),
		strict:   middleware.NewRedisLimiter(rdb, "strict", rl.StrictLimit, rl.StrictWindow),
		redis:    rdb,
	}, nil
}

// app is the fully wired process.
type app struct {
	cfg     *config.Config
	db      *storage.TimedDB
	stores  web.Stores
	outbox  *orchestrators.OutboxProcessor
	tracker *analytics.Async // nil when no provider is configured
	handler http.Handler
	redis   *redis.Client
}

// buildApp wires every adapter from cfg.
// PRE: cfg passed Validate; ctx bounds background janitors
// POST: caller must Close the app
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	collector := perf.NewCollector(perf.DefaultRingSize)
	db, err := openDB(ctx, cfg, collector)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, stores: newStores(db)}
	if err := a.wire(ctx, collector); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, collector *perf.Collector) error {
	cfg := a.cfg
	blobs, err := newBlobStore(cfg, collector)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	provider, err := ocr.New(ctx, ocr.Config{
		Provider:      cfg.OCR.Provider,
		AzureEndpoint: cfg.OCR.AzureEndpoint,
		AzureKey:      cfg.OCR.AzureKey,
		OpenAIKey:     cfg.OCR.OpenAIKey,
		OpenAIModel:   cfg.OCR.OpenAIModel,
		GeminiKey:     cfg.OCR.GeminiKey,
		GeminiModel:   cfg.OCR.GeminiModel,
	}, ocr.WithCollector(collector))
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	renderer, err := emailAdapter.NewRenderer(cfg.SiteURL, cfg.Brand)
	if err != nil {
		return fmt.Errorf("email templates: %w", err)
	}
	rates, err := loadRates(cfg.RatesFile)
	if err != nil {
		return err
	}
	key, err := csrfKey(cfg)
	if err != nil {
		return err
	}
	lim, err := newLimits(ctx, cfg)
	if err != nil {
		return err
	}
	a.redis = lim.redis

	tracker := newTracker(cfg, collector)
	if _, off := tracker.(analytics.Noop); !off {
		a.tracker = analytics.NewAsync(tracker, analytics.DefaultQueueSize)
		tracker = a.tracker
	}

	genID := uuid.NewString
	a.outbox = orchestrators.NewOutboxProcessor(a.stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		domainOutbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: newEmailSender(cfg, collector)},
		domainOutbox.ActionTypeDocumentOCR: &orchestrators.DocumentOCRExecutor{
			Documents: a.stores.DocumentStore,
			Blob:      blobs,
			Provider:  provider,
			Now:       time.Now,
		},
	},
		orchestrators.WithOutboxBackoff(cfg.Outbox.BaseDelay, cfg.Outbox.MaxDelay),
		orchestrators.WithOutboxAudit(a.stores.AuditStore),
	)

	a.handler, err = web.NewMux(web.Config{
		Stores:   a.stores,
		Sessions: lim.sessions,
		Blob:     blobs,
		Notifier: &orchestrators.Notifier{
			Renderer:   renderer,
			Outbox:     a.stores.OutboxStore,
			AdminInbox: cfg.Email.AdminInbox,
			GenerateID: genID,
			Now:        time.Now,
		},
		Tracker:        tracker,
		Outbox:         a.outbox,
		Rates:          rates,
		Perf:           collector,
		SiteURL:        cfg.SiteURL,
		CSRFKey:        key,
		Secure:         strings.HasPrefix(cfg.SiteURL, "https://"),
		TrustProxy:     cfg.TrustProxy,
		TrustedOrigins: cfg.TrustedOrigins,
		SlowRequest:    cfg.SlowRequest,
		GlobalLimiter:  lim.global,
		StrictLimiter:  lim.strict,
		Now:            time.Now,
		GenerateID:     genID,
	})
	return err
}

// seedAdmin creates the configured administrator when it is missing.
func (a *app) seedAdmin(ctx context.Context) error {
	admin := a.cfg.Admin
	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	acct, created, err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.SeedAdminInput{
		Email:    admin.Email,
		Password: admin.Password,
		Name:     admin.Name,
	}, orchestrators.CreateAccountDeps{
		AccountStore: a.stores.AccountStore,
		AuditStore:   a.stores.AuditStore,
		GenerateID:   uuid.NewString,
		Now:          time.Now,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		slog.Info("admin_seeded", "account_id", acct.ID, "email", acct.Email)
	}
	return nil
}

// Close releases the database and Redis connections.
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
