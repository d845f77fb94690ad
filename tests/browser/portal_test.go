//go:build browser

package browser_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/playwright-community/playwright-go"

	carrequestStore "carimport/internal/adapters/storage/carrequest"
)

// TestPortal_RegisterThenSubmit registers a customer and checks the request shows up on the account page.
func TestPortal_RegisterThenSubmit(t *testing.T) {
	app := newTestApp(t)
	page := app.newPage(t)

	if _, err := page.Goto(app.BaseURL + "/register"); err != nil {
		t.Fatalf("failed to open register: %v", err)
	}
	page.Locator("input[name=name]").Fill("Iva Horvat")
	page.Locator("input[name=email]").Fill("iva@example.test")
	page.Locator("input[name=password]").Fill("a long enough password")
	if err := page.Locator("main button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := page.WaitForURL(app.BaseURL + "/account"); err != nil {
		t.Fatalf("expected account page after register, at %s: %v", page.URL(), err)
	}

	if _, err := page.Goto(app.BaseURL + "/request"); err != nil {
		t.Fatalf("failed to open request form: %v", err)
	}
	// Contact details are prefilled from the session.
	email, _ := page.Locator("input[name=contact_email]").InputValue()
	if email != "iva@example.test" {
		t.Errorf("contact email not prefilled, got %q", email)
	}
	page.Locator("input[name=make]").Fill("Toyota")
	page.Locator("input[name=budget]").Fill("15000")
	if err := page.Locator("main button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	if err := page.WaitForURL("**/request/thanks?ref=*"); err != nil {
		t.Fatalf("expected thank-you page: %v", err)
	}

	reqs, err := app.Stores.CarRequestStore.List(context.Background(), carrequestStore.ListFilter{Limit: 5})
	if err != nil || len(reqs) != 1 {
		t.Fatalf("expected one stored request, got %d (%v)", len(reqs), err)
	}
	if reqs[0].AccountID == "" {
		t.Error("request submitted while logged in has no owner")
	}

	if _, err := page.Goto(app.BaseURL + "/account"); err != nil {
		t.Fatalf("failed to open account: %v", err)
	}
	expectText(t, page, reqs[0].Reference)
}

// TestPortal_UploadDocument uploads a passport scan through the account page script.
func TestPortal_UploadDocument(t *testing.T) {
	app := newTestApp(t)
	page := app.newPage(t)
	app.login(t, page, customerEmail, "/account")

	scan := filepath.Join(t.TempDir(), "passport.pdf")
	if err := os.WriteFile(scan, []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n"), 0o600); err != nil {
		t.Fatalf("write scan: %v", err)
	}
	if err := page.Locator("#document-upload input[type=file]").SetInputFiles(scan); err != nil {
		t.Fatalf("attach file: %v", err)
	}
	if _, err := page.Locator("#document-upload select[name=kind]").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("passport"),
	}); err != nil {
		t.Fatalf("pick kind: %v", err)
	}
	if err := page.Locator("#document-upload button[type=submit]").Click(); err != nil {
		t.Fatalf("upload: %v", err)
	}
	expectText(t, page, "passport.pdf")
}
