package orchestrators

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"carimport/internal/adapters/analytics"
	"carimport/internal/adapters/blob"
	emailAdapter "carimport/internal/adapters/email"
	accountStore "carimport/internal/adapters/storage/account"
	auditStore "carimport/internal/adapters/storage/audit"
	blogStore "carimport/internal/adapters/storage/blog"
	carrequestStore "carimport/internal/adapters/storage/carrequest"
	contractStore "carimport/internal/adapters/storage/contract"
	documentStore "carimport/internal/adapters/storage/document"
	offerStore "carimport/internal/adapters/storage/offer"
	outboxStore "carimport/internal/adapters/storage/outbox"
	stockStore "carimport/internal/adapters/storage/stock"
	"carimport/internal/adapters/storage/storagetest"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/carrequest"
	domainOutbox "carimport/internal/domain/outbox"
)

// testEnv wires real SQL stores over an in-memory database.
type testEnv struct {
	now   time.Time
	seq   int
	admin audit.Actor

	accounts  *accountStore.SQLStore
	audits    *auditStore.SQLStore
	blogs     *blogStore.SQLStore
	requests  *carrequestStore.SQLStore
	contracts *contractStore.SQLStore
	documents *documentStore.SQLStore
	offers    *offerStore.SQLStore
	outbox    *outboxStore.SQLStore
	stock     *stockStore.SQLStore
	blob      *blob.LocalStore
	tracker   *recordingTracker
	notifier  *Notifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storagetest.Open(t)
	local, err := blob.NewLocalStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("local blob store: %v", err)
	}
	renderer, err := emailAdapter.NewRenderer("https://example.test", "Car Import")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	env := &testEnv{
		now:       time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
		admin:     audit.Actor{ID: "admin-1", Email: "admin@example.test", Role: account.RoleAdmin},
		accounts:  accountStore.NewSQLStore(db),
		audits:    auditStore.NewSQLStore(db),
		blogs:     blogStore.NewSQLStore(db),
		requests:  carrequestStore.NewSQLStore(db),
		contracts: contractStore.NewSQLStore(db),
		documents: documentStore.NewSQLStore(db),
		offers:    offerStore.NewSQLStore(db),
		outbox:    outboxStore.NewSQLStore(db),
		stock:     stockStore.NewSQLStore(db),
		blob:      local,
		tracker:   &recordingTracker{},
	}
	env.notifier = &Notifier{
		Renderer:   renderer,
		Outbox:     env.outbox,
		AdminInbox: "desk@example.test",
		GenerateID: env.nextID,
		Now:        env.clock,
	}
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) nextID() string {
	e.seq++
	return fmt.Sprintf("id-%04d", e.seq)
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

// submitRequest stores a valid request, owned by accountID when non-empty.
func (e *testEnv) submitRequest(t *testing.T, accountID string) carrequest.CarRequest {
	t.Helper()
	req, err := ExecuteSubmitCarRequest(context.Background(), SubmitCarRequestInput{
		AccountID:    accountID,
		ContactName:  "Ana Novak",
		ContactEmail: "ana@example.test",
		Country:      "de",
		Make:         "Volkswagen",
		Model:        "Golf",
		YearFrom:     2019,
		YearTo:       2022,
		BudgetCents:  18_000_00,
		Fuel:         "diesel",
	}, e.submitDeps())
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	return req
}

func (e *testEnv) submitDeps() SubmitCarRequestDeps {
	return SubmitCarRequestDeps{
		RequestStore: e.requests,
		Notifier:     e.notifier,
		Tracker:      e.tracker,
		GenerateID:   e.nextID,
		Now:          e.clock,
	}
}

func (e *testEnv) offerDeps() OfferDeps {
	return OfferDeps{
		RequestStore: e.requests,
		OfferStore:   e.offers,
		AuditStore:   e.audits,
		Notifier:     e.notifier,
		Tracker:      e.tracker,
		GenerateID:   e.nextID,
		Now:          e.clock,
	}
}

func (e *testEnv) contractDeps() ContractDeps {
	return ContractDeps{
		ContractStore: e.contracts,
		RequestStore:  e.requests,
		OfferStore:    e.offers,
		AccountStore:  e.accounts,
		AuditStore:    e.audits,
		Notifier:      e.notifier,
		GenerateID:    e.nextID,
		Now:           e.clock,
	}
}

func (e *testEnv) manageDeps() ManageCarRequestDeps {
	return ManageCarRequestDeps{RequestStore: e.requests, AccountStore: e.accounts, AuditStore: e.audits, Now: e.clock}
}

func (e *testEnv) createAccountDeps() CreateAccountDeps {
	return CreateAccountDeps{
		AccountStore: e.accounts,
		AuditStore:   e.audits,
		Tracker:      e.tracker,
		GenerateID:   e.nextID,
		Now:          e.clock,
	}
}

// createAccount stores an active account with the given role.
func (e *testEnv) createAccount(t *testing.T, email, role string) account.Account {
	t.Helper()
	acct, err := ExecuteCreateAccount(context.Background(), CreateAccountInput{
		Email:    email,
		Name:     "Test User",
		Password: "correct-horse-battery",
		Role:     role,
	}, e.createAccountDeps())
	if err != nil {
		t.Fatalf("create account %s: %v", email, err)
	}
	return acct
}

// pendingEntries returns the queued outbox entries of one action type.
func (e *testEnv) pendingEntries(t *testing.T, actionType string) []domainOutbox.Entry {
	t.Helper()
	entries, err := e.outbox.List(context.Background(), domainOutbox.StatusPending, actionType, 100)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	return entries
}

// queuedEmails decodes pending email entries.
func (e *testEnv) queuedEmails(t *testing.T) []emailAdapter.SendRequest {
	t.Helper()
	var out []emailAdapter.SendRequest
	for _, entry := range e.pendingEntries(t, domainOutbox.ActionTypeEmail) {
		var req emailAdapter.SendRequest
		if err := entry.Decode(&req); err != nil {
			t.Fatalf("decode email entry: %v", err)
		}
		out = append(out, req)
	}
	return out
}

// auditActions lists recorded audit actions for a category.
func (e *testEnv) auditActions(t *testing.T, category audit.Category) []string {
	t.Helper()
	events, err := e.audits.List(context.Background(), auditStore.Filter{Category: category}, 100)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	var actions []string
	for _, ev := range events {
		actions = append(actions, string(ev.Action))
	}
	return actions
}

// --- Recording tracker ---

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.Event
}

// Track records the event.
// PRE: none
// POST: Event appended
func (r *recordingTracker) Track(_ context.Context, e analytics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTracker) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

// --- Recording session revoker ---

type recordingRevoker struct {
	revoked []string
}

// DeleteAccount records the revoked account.
func (r *recordingRevoker) DeleteAccount(_ context.Context, accountID string) (int, error) {
	r.revoked = append(r.revoked, accountID)
	return 1, nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
