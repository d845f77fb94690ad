//go:build browser

package browser_test

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"carimport/internal/adapters/blob"
	emailAdapter "carimport/internal/adapters/email"
	web "carimport/internal/adapters/http"
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
	"carimport/internal/adapters/storage/storagetest"
	"carimport/internal/application/orchestrators"
	"carimport/internal/domain/account"
)

const (
	adminEmail    = "admin@example.test"
	customerEmail = "customer@example.test"
	testPassword  = "browser test password"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *storage.TimedDB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	Stores  web.Stores
}

// newTestApp starts the full site over a migrated in-memory database.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	db := storagetest.Open(t)
	stores := web.Stores{
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

	ctx := context.Background()
	for _, seed := range []struct{ email, role string }{
		{adminEmail, account.RoleAdmin},
		{customerEmail, account.RoleCustomer},
	} {
		if _, err := orchestrators.ExecuteCreateAccount(ctx, orchestrators.CreateAccountInput{
			Email:    seed.email,
			Name:     "Browser " + seed.role,
			Password: testPassword,
			Role:     seed.role,
		}, orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore}); err != nil {
			t.Fatalf("failed to seed %s: %v", seed.role, err)
		}
	}

	local, err := blob.NewLocalStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	renderer, err := emailAdapter.NewRenderer("http://127.0.0.1", "Car Import")
	if err != nil {
		t.Fatalf("failed to create email renderer: %v", err)
	}

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	handler, err := web.NewMux(web.Config{
		Stores: stores,
		Blob:   local,
		Notifier: &orchestrators.Notifier{
			Renderer:   renderer,
			Outbox:     stores.OutboxStore,
			AdminInbox: adminEmail,
		},
		SiteURL:        baseURL,
		CSRFKey:        []byte("0123456789abcdef0123456789abcdef"),
		TrustedOrigins: []string{fmt.Sprintf("127.0.0.1:%d", port)},
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
	})

	return &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		Stores:  stores,
	}
}

// newPage creates a new browser page (tab) in a fresh context, so cookies do not leak between pages.
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	bctx, err := a.Browser.NewContext()
	if err != nil {
		t.Fatalf("failed to create browser context: %v", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { bctx.Close() })
	return page
}

// login signs in through the form and waits for the role's landing page.
func (a *testApp) login(t *testing.T, page playwright.Page, email, landing string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=email]").Fill(email); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=password]").Fill(testPassword); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("main button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click login: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+landing, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to %s: %v", landing, err)
	}
}

// expectText fails unless the page body contains text.
func expectText(t *testing.T, page playwright.Page, text string) {
	t.Helper()
	if err := page.GetByText(text).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(5000),
	}); err != nil {
		body, _ := page.Locator("body").InnerText()
		t.Fatalf("expected %q on %s, got:\n%s", text, page.URL(), body)
	}
}
