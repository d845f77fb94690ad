package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"carimport/internal/adapters/analytics"
	emailAdapter "carimport/internal/adapters/email"
	"carimport/internal/domain/carrequest"
)

// CarRequestStore defines the store interface needed by car request orchestrators.
type CarRequestStore interface {
	GetByID(ctx context.Context, id string) (carrequest.CarRequest, error)
	Save(ctx context.Context, r carrequest.CarRequest) error
}

// SubmitCarRequestInput carries the intake form.
type SubmitCarRequestInput struct {
	AccountID    string // empty for anonymous visitors
	ContactName  string
	ContactEmail string
	ContactPhone string
	Country      string
	Make         string
	Model        string
	YearFrom     int
	YearTo       int
	BudgetCents  int64
	Fuel         string
	Transmission string
	MaxMileageKm int
	Color        string
	Notes        string

	// Request metadata for analytics.
	PageURL   string
	Referrer  string
	UserAgent string
	IP        string
}

// SubmitCarRequestDeps holds dependencies for SubmitCarRequest.
type SubmitCarRequestDeps struct {
	RequestStore CarRequestStore
	Notifier     *Notifier         // optional
	Tracker      analytics.Tracker // optional
	GenerateID   func() string
	Now          func() time.Time
}

// ExecuteSubmitCarRequest validates and stores a new car request.
// PRE: input comes from the public intake form or the customer area
// POST: Request saved with status new; confirmation and admin emails queued; event tracked
// INVARIANT: email and analytics failures never fail the submission
func ExecuteSubmitCarRequest(ctx context.Context, input SubmitCarRequestInput, deps SubmitCarRequestDeps) (carrequest.CarRequest, error) {
	now := nowFrom(deps.Now)
	id := newID(deps.GenerateID)
	req := carrequest.CarRequest{
		ID:           id,
		Reference:    carrequest.NewReference(now, id),
		AccountID:    input.AccountID,
		ContactName:  input.ContactName,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		Country:      input.Country,
		Make:         input.Make,
		Model:        input.Model,
		YearFrom:     input.YearFrom,
		YearTo:       input.YearTo,
		BudgetCents:  input.BudgetCents,
		Fuel:         input.Fuel,
		Transmission: input.Transmission,
		MaxMileageKm: input.MaxMileageKm,
		Color:        input.Color,
		Notes:        input.Notes,
		Status:       carrequest.StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	req.Normalize()
	if err := req.Validate(now); err != nil {
		return carrequest.CarRequest{}, err
	}
	if err := deps.RequestStore.Save(ctx, req); err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("save car request: %w", err)
	}
	slog.Info("car_request_submitted", "request_id", req.ID, "reference", req.Reference,
		"make", req.Make, "anonymous", req.AccountID == "")

	queueOrLog(ctx, deps.Notifier, req.ContactEmail, emailAdapter.RequestConfirmation{
		Name:        req.ContactName,
		Reference:   req.Reference,
		Make:        req.Make,
		Model:       req.Model,
		BudgetCents: req.BudgetCents,
	})
	queueAdminOrLog(ctx, deps.Notifier, emailAdapter.AdminNewRequest{
		RequestID:    req.ID,
		Reference:    req.Reference,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		Make:         req.Make,
		Model:        req.Model,
		BudgetCents:  req.BudgetCents,
		Notes:        req.Notes,
	})

	if deps.Tracker != nil {
		deps.Tracker.Track(ctx, analytics.Event{
			Name:      analytics.EventCarRequestSubmitted,
			URL:       input.PageURL,
			Referrer:  input.Referrer,
			UserAgent: input.UserAgent,
			IP:        input.IP,
			Props:     map[string]string{"make": req.Make, "fuel": req.Fuel},
		})
	}
	return req, nil
}

// CancelMyRequestInput carries input for a customer cancelling their own request.
type CancelMyRequestInput struct {
	RequestID string
	AccountID string
}

// CancelMyRequestDeps holds dependencies for CancelMyRequest.
type CancelMyRequestDeps struct {
	RequestStore CarRequestStore
	Now          func() time.Time
}

// ExecuteCancelMyRequest lets a customer withdraw an open request.
// PRE: AccountID is the logged-in customer
// POST: Request status is cancelled
// INVARIANT: customers only cancel their own requests
func ExecuteCancelMyRequest(ctx context.Context, input CancelMyRequestInput, deps CancelMyRequestDeps) (carrequest.CarRequest, error) {
	req, err := deps.RequestStore.GetByID(ctx, input.RequestID)
	if err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("load car request: %w", err)
	}
	if !req.OwnedBy(input.AccountID) {
		return carrequest.CarRequest{}, carrequest.ErrNotOwner
	}
	if err := req.TransitionTo(carrequest.StatusCancelled, nowFrom(deps.Now)); err != nil {
		return carrequest.CarRequest{}, err
	}
	if err := deps.RequestStore.Save(ctx, req); err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("save car request: %w", err)
	}
	slog.Info("car_request_cancelled", "request_id", req.ID, "account_id", input.AccountID)
	return req, nil
}
