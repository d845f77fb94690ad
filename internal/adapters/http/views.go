package web

import (
	"time"

	"carimport/internal/adapters/http/middleware"
	"carimport/internal/application/listutil"
	"carimport/internal/application/projections"
	"carimport/internal/domain/account"
	"carimport/internal/domain/blog"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/document"
	"carimport/internal/domain/offer"
	domainOutbox "carimport/internal/domain/outbox"
)

// JSON shapes returned by the API. Domain types stay free of wire tags;
// password hashes and lockout counters never leave the server.

type pageJSON struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func toPage(p listutil.PageInfo) pageJSON {
	return pageJSON{Page: p.Page, PerPage: p.PerPage, Total: p.Total, TotalPages: p.TotalPages}
}

// optTime renders zero times as null.
func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type accountJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccount(a account.Account) accountJSON {
	return accountJSON{ID: a.ID, Email: a.Email, Name: a.Name, Phone: a.Phone,
		Role: a.Role, Status: a.Status, CreatedAt: a.CreatedAt}
}

type sessionJSON struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func toSession(s middleware.Session) sessionJSON {
	return sessionJSON{AccountID: s.AccountID, Email: s.Email, Name: s.Name, Role: s.Role}
}

type requestJSON struct {
	ID           string    `json:"id"`
	Reference    string    `json:"reference"`
	AccountID    string    `json:"account_id,omitempty"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Country      string    `json:"country,omitempty"`
	Make         string    `json:"make"`
	Model        string    `json:"model,omitempty"`
	YearFrom     int       `json:"year_from,omitempty"`
	YearTo       int       `json:"year_to,omitempty"`
	BudgetCents  int64     `json:"budget_cents"`
	Fuel         string    `json:"fuel"`
	Transmission string    `json:"transmission"`
	MaxMileageKm int       `json:"max_mileage_km,omitempty"`
	Color        string    `json:"color,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Status       string    `json:"status"`
	AdminNotes   string    `json:"admin_notes,omitempty"`
	AssignedTo   string    `json:"assigned_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// toRequest drops staff-only fields unless staff is true.
func toRequest(r carrequest.CarRequest, staff bool) requestJSON {
	v := requestJSON{
		ID: r.ID, Reference: r.Reference, AccountID: r.AccountID,
		ContactName: r.ContactName, ContactEmail: r.ContactEmail, ContactPhone: r.ContactPhone,
		Country: r.Country, Make: r.Make, Model: r.Model, YearFrom: r.YearFrom, YearTo: r.YearTo,
		BudgetCents: r.BudgetCents, Fuel: r.Fuel, Transmission: r.Transmission,
		MaxMileageKm: r.MaxMileageKm, Color: r.Color, Notes: r.Notes, Status: r.Status,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if staff {
		v.AdminNotes = r.AdminNotes
		v.AssignedTo = r.AssignedTo
	}
	return v
}

func toRequests(rs []carrequest.CarRequest, staff bool) []requestJSON {
	out := make([]requestJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequest(r, staff))
	}
	return out
}

type offerJSON struct {
	ID                 string     `json:"id"`
	RequestID          string     `json:"request_id"`
	VehicleDescription string     `json:"vehicle_description"`
	PriceCents         int64      `json:"price_cents"`
	ListingURL         string     `json:"listing_url,omitempty"`
	Message            string     `json:"message,omitempty"`
	Status             string     `json:"status"`
	ExpiresAt          time.Time  `json:"expires_at"`
	CreatedAt          time.Time  `json:"created_at"`
	RespondedAt        *time.Time `json:"responded_at"`
}

func toOffer(o offer.Offer) offerJSON {
	return offerJSON{ID: o.ID, RequestID: o.RequestID, VehicleDescription: o.VehicleDescription,
		PriceCents: o.PriceCents, ListingURL: o.ListingURL, Message: o.Message, Status: o.Status,
		ExpiresAt: o.ExpiresAt, CreatedAt: o.CreatedAt, RespondedAt: optTime(o.RespondedAt)}
}

type contractJSON struct {
	ID                 string     `json:"id"`
	Number             string     `json:"number"`
	RequestID          string     `json:"request_id"`
	AccountID          string     `json:"account_id"`
	VehicleDescription string     `json:"vehicle_description"`
	VIN                string     `json:"vin,omitempty"`
	PriceCents         int64      `json:"price_cents"`
	DepositCents       int64      `json:"deposit_cents"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	SentAt             *time.Time `json:"sent_at"`
	SignedAt           *time.Time `json:"signed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
}

func toContract(c contract.Contract) contractJSON {
	return contractJSON{ID: c.ID, Number: c.Number, RequestID: c.RequestID, AccountID: c.AccountID,
		VehicleDescription: c.VehicleDescription, VIN: c.VIN, PriceCents: c.PriceCents,
		DepositCents: c.DepositCents, Status: c.Status, CreatedAt: c.CreatedAt,
		SentAt: optTime(c.SentAt), SignedAt: optTime(c.SignedAt), CancelledAt: optTime(c.CancelledAt)}
}

func toContracts(cs []contract.Contract) []contractJSON {
	out := make([]contractJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toContract(c))
	}
	return out
}

type documentJSON struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	RequestID   string          `json:"request_id,omitempty"`
	Kind        string          `json:"kind"`
	FileName    string          `json:"file_name"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	Status      string          `json:"status"`
	Fields      document.Fields `json:"fields"`
	Provider    string          `json:"provider,omitempty"`
	OCRError    string          `json:"ocr_error,omitempty"`
	ReviewNote  string          `json:"review_note,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	// Staff only.
	RawText string `json:"raw_text,omitempty"`
	FileURL string `json:"file_url,omitempty"`
}

func toDocument(d document.Document, staff bool) documentJSON {
	v := documentJSON{ID: d.ID, AccountID: d.AccountID, RequestID: d.RequestID, Kind: d.Kind,
		FileName: d.FileName, ContentType: d.ContentType, SizeBytes: d.SizeBytes, Status: d.Status,
		Fields: d.Fields, ReviewNote: d.ReviewNote, ReviewedAt: optTime(d.ReviewedAt), CreatedAt: d.CreatedAt}
	if staff {
		v.Provider = d.Provider
		v.OCRError = d.OCRError
		v.RawText = d.RawText
		v.FileURL = "/media/" + d.BlobKey
	}
	return v
}

func toDocuments(ds []document.Document, staff bool) []documentJSON {
	out := make([]documentJSON, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDocument(d, staff))
	}
	return out
}

type carJSON struct {
	ID           string    `json:"id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	MileageKm    int       `json:"mileage_km"`
	Fuel         string    `json:"fuel"`
	Transmission string    `json:"transmission"`
	PriceCents   int64     `json:"price_cents"`
	Color        string    `json:"color,omitempty"`
	Description  string    `json:"description,omitempty"`
	Status       string    `json:"status"`
	Images       []string  `json:"images"`
	ImageKeys    []string  `json:"image_keys,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCar(c projections.CarView, staff bool) carJSON {
	v := carJSON{ID: c.ID, Make: c.Make, Model: c.Model, Year: c.Year, MileageKm: c.MileageKm,
		Fuel: c.Fuel, Transmission: c.Transmission, PriceCents: c.PriceCents, Color: c.Color,
		Description: c.Description, Status: c.Status, Images: c.ImageURLs, CreatedAt: c.CreatedAt}
	if v.Images == nil {
		v.Images = []string{}
	}
	if staff {
		v.ImageKeys = c.Images
	}
	return v
}

type postJSON struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	CoverImage  string     `json:"cover_image,omitempty"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Body        string     `json:"body_markdown,omitempty"`
	BodyHTML    string     `json:"body_html,omitempty"`
}

func toPost(p blog.Post) postJSON {
	return postJSON{ID: p.ID, Slug: p.Slug, Title: p.Title, Summary: p.Summary,
		CoverImage: p.CoverImage, Published: p.Published, PublishedAt: optTime(p.PublishedAt),
		UpdatedAt: p.UpdatedAt}
}

func toPosts(ps []blog.Post) []postJSON {
	out := make([]postJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPost(p))
	}
	return out
}

type outboxJSON struct {
	ID              string     `json:"id"`
	ActionType      string     `json:"action_type"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	LastAttemptedAt *time.Time `json:"last_attempted_at"`
	CreatedAt       time.Time  `json:"created_at"`
	ExternalID      string     `json:"external_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

func toOutbox(e domainOutbox.Entry) outboxJSON {
	return outboxJSON{ID: e.ID, ActionType: e.ActionType, Status: e.Status, Attempts: e.Attempts,
		MaxAttempts: e.MaxAttempts, LastAttemptedAt: optTime(e.LastAttemptedAt), CreatedAt: e.CreatedAt,
		ExternalID: e.ExternalID, ErrorMessage: e.ErrorMessage}
}
