package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a notification that can be rendered into an email.
type Message interface {
	templateName() string
	subject(brand string) string
}

// Rendered is a message ready to hand to a Sender.
type Rendered struct {
	Subject string
	HTML    string
}

// RequestConfirmation acknowledges a submitted car request to the customer.
type RequestConfirmation struct {
	Name        string
	Reference   string
	Make        string
	Model       string
	BudgetCents int64
}

func (RequestConfirmation) templateName() string { return "request_confirmation" }
func (m RequestConfirmation) subject(brand string) string {
	return fmt.Sprintf("%s: we received your request %s", brand, m.Reference)
}

// AdminNewRequest tells the admin inbox a request arrived.
type AdminNewRequest struct {
	RequestID    string
	Reference    string
	ContactName  string
	ContactEmail string
	Make         string
	Model        string
	BudgetCents  int64
	Notes        string
}

func (AdminNewRequest) templateName() string { return "admin_new_request" }
func (m AdminNewRequest) subject(string) string {
	return fmt.Sprintf("New car request %s (%s %s)", m.Reference, m.Make, m.Model)
}

// OfferSent presents a vehicle offer to the customer.
type OfferSent struct {
	Name               string
	Reference          string
	VehicleDescription string
	PriceCents         int64
	ListingURL         string
	Message            string
	ExpiresAt          time.Time
}

func (OfferSent) templateName() string { return "offer" }
func (m OfferSent) subject(brand string) string {
	return fmt.Sprintf("%s: an offer for your request %s", brand, m.Reference)
}

// OfferAnswered tells the admin inbox how the customer answered an offer.
type OfferAnswered struct {
	RequestID          string
	Reference          string
	VehicleDescription string
	Accepted           bool
}

func (OfferAnswered) templateName() string { return "offer_answered" }
func (m OfferAnswered) subject(string) string {
	verb := "declined"
	if m.Accepted {
		verb = "accepted"
	}
	return fmt.Sprintf("Offer %s for %s", verb, m.Reference)
}

// DocumentReviewed tells the customer the outcome of a document review.
type DocumentReviewed struct {
	Name     string
	Kind     string
	Approved bool
	Note     string
}

func (DocumentReviewed) templateName() string { return "document_reviewed" }
func (m DocumentReviewed) subject(brand string) string {
	if m.Approved {
		return brand + ": your document was approved"
	}
	return brand + ": your document needs attention"
}

// ContractSent delivers the contract summary to the customer.
type ContractSent struct {
	Name               string
	Number             string
	VehicleDescription string
	VIN                string
	PriceCents         int64
	DepositCents       int64
}

func (ContractSent) templateName() string { return "contract_sent" }
func (m ContractSent) subject(brand string) string {
	return fmt.Sprintf("%s: contract %s is ready", brand, m.Number)
}

var pageNames = []string{
	RequestConfirmation{}.templateName(),
	AdminNewRequest{}.templateName(),
	OfferSent{}.templateName(),
	OfferAnswered{}.templateName(),
	DocumentReviewed{}.templateName(),
	ContractSent{}.templateName(),
}

// FormatMoney renders cents as euros, e.g. 2500000 -> "25.000,00 €".
func FormatMoney(cents int64) string {
	return humanize.FormatFloat("#.###,##", float64(cents)/100) + " €"
}

var kindLabels = map[string]string{
	"passport":        "passport",
	"id_card":         "ID card",
	"driving_license": "driving license",
}

// Renderer turns Messages into HTML emails with a shared layout.
type Renderer struct {
	siteURL string
	brand   string
	pages   map[string]*template.Template
}

// NewRenderer parses the embedded templates once.
// PRE: siteURL is the public base URL without trailing slash
// POST: Returns a renderer for every Message type, or a parse error
func NewRenderer(siteURL, brand string) (*Renderer, error) {
	funcs := template.FuncMap{
		"money": FormatMoney,
		"date":  func(t time.Time) string { return t.Format("2 January 2006") },
		"kind": func(k string) string {
			if l, ok := kindLabels[k]; ok {
				return l
			}
			return k
		},
	}
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse email layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{siteURL: strings.TrimRight(siteURL, "/"), brand: brand, pages: pages}, nil
}

// Render executes the message template inside the layout.
// PRE: m is one of the Message types in this package
// POST: Returns subject and HTML body
func (r *Renderer) Render(m Message) (Rendered, error) {
	t, ok := r.pages[m.templateName()]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown email template %q", m.templateName())
	}
	data := struct {
		Brand   string
		SiteURL string
		Subject string
		Data    Message
	}{r.brand, r.siteURL, m.subject(r.brand), m}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", m.templateName(), err)
	}
	return Rendered{Subject: data.Subject, HTML: buf.String()}, nil
}
