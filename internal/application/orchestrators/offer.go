package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carimport/internal/adapters/analytics"
	emailAdapter "carimport/internal/adapters/email"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/offer"
)

// OfferStore defines the store interface needed by offer orchestrators.
type OfferStore interface {
	GetByID(ctx context.Context, id string) (offer.Offer, error)
	Save(ctx context.Context, o offer.Offer) error
	ListByRequest(ctx context.Context, requestID string) ([]offer.Offer, error)
}

// ErrRequestNotOpen is returned when an offer targets a request staff can no longer act on.
var ErrRequestNotOpen = errors.New("request is not open for offers")

// OfferDeps holds dependencies for offer orchestrators.
type OfferDeps struct {
	RequestStore CarRequestStore
	OfferStore   OfferStore
	AuditStore   AuditRecorder
	Notifier     *Notifier         // optional
	Tracker      analytics.Tracker // optional
	GenerateID   func() string
	Now          func() time.Time
}

// SendOfferInput carries input for ExecuteSendOffer.
type SendOfferInput struct {
	RequestID          string
	VehicleDescription string
	PriceCents         int64
	ListingURL         string
	Message            string
	ValidFor           time.Duration // zero uses offer.DefaultValidity
	Actor              audit.Actor
}

// ExecuteSendOffer proposes a vehicle for a request and emails the customer.
// PRE: request is new, in_review or offered
// POST: Offer saved as sent; earlier unanswered offers expire; request is offered; email queued
func ExecuteSendOffer(ctx context.Context, input SendOfferInput, deps OfferDeps) (offer.Offer, error) {
	now := nowFrom(deps.Now)
	req, err := deps.RequestStore.GetByID(ctx, input.RequestID)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("load car request: %w", err)
	}
	if !req.IsOpen() {
		return offer.Offer{}, fmt.Errorf("%w: status %s", ErrRequestNotOpen, req.Status)
	}

	validFor := input.ValidFor
	if validFor <= 0 {
		validFor = offer.DefaultValidity
	}
	o := offer.Offer{
		ID:                 newID(deps.GenerateID),
		RequestID:          req.ID,
		VehicleDescription: input.VehicleDescription,
		PriceCents:         input.PriceCents,
		ListingURL:         input.ListingURL,
		Message:            input.Message,
		Status:             offer.StatusSent,
		ExpiresAt:          now.Add(validFor),
		CreatedBy:          input.Actor.ID,
		CreatedAt:          now,
	}
	o.Normalize()
	if err := o.Validate(); err != nil {
		return offer.Offer{}, err
	}

	if req.Status == carrequest.StatusNew {
		if err := req.TransitionTo(carrequest.StatusInReview, now); err != nil {
			return offer.Offer{}, err
		}
	}
	if req.Status != carrequest.StatusOffered {
		if err := req.TransitionTo(carrequest.StatusOffered, now); err != nil {
			return offer.Offer{}, err
		}
	}

	if err := expireOpenOffers(ctx, deps.OfferStore, req.ID, "", now); err != nil {
		return offer.Offer{}, err
	}
	if err := deps.OfferStore.Save(ctx, o); err != nil {
		return offer.Offer{}, fmt.Errorf("save offer: %w", err)
	}
	if err := deps.RequestStore.Save(ctx, req); err != nil {
		return offer.Offer{}, fmt.Errorf("save car request: %w", err)
	}

	queueOrLog(ctx, deps.Notifier, req.ContactEmail, emailAdapter.OfferSent{
		Name:               req.ContactName,
		Reference:          req.Reference,
		VehicleDescription: o.VehicleDescription,
		PriceCents:         o.PriceCents,
		ListingURL:         o.ListingURL,
		Message:            o.Message,
		ExpiresAt:          o.ExpiresAt,
	})
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryOffer, audit.ActionSend).
		WithResource("offer", o.ID).
		WithDescription(fmt.Sprintf("offer for %s: %s at %s", req.Reference, o.VehicleDescription, emailAdapter.FormatMoney(o.PriceCents))))
	slog.Info("offer_sent", "offer_id", o.ID, "request_id", req.ID, "price_cents", o.PriceCents, "actor_id", input.Actor.ID)
	return o, nil
}

// expireOpenOffers marks every sent offer of the request, except keepID, as expired.
func expireOpenOffers(ctx context.Context, store OfferStore, requestID, keepID string, now time.Time) error {
	offers, err := store.ListByRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("list offers: %w", err)
	}
	for _, o := range offers {
		if o.ID == keepID || o.Status != offer.StatusSent {
			continue
		}
		o.Status = offer.StatusExpired
		o.RespondedAt = now
		if err := store.Save(ctx, o); err != nil {
			return fmt.Errorf("expire offer %s: %w", o.ID, err)
		}
	}
	return nil
}

// RespondToOfferInput carries input for ExecuteRespondToOffer.
type RespondToOfferInput struct {
	OfferID string
	Accept  bool
	// Actor is the customer owning the request, or staff recording an answer
	// given by phone or email for an anonymous request.
	Actor audit.Actor
}

// ExecuteRespondToOffer records the customer's answer.
// PRE: offer is sent and not expired; Actor owns the request or is staff
// POST: accept -> offer accepted, other offers expired, request accepted;
// decline -> offer declined, request back to in_review. Admin inbox notified.
func ExecuteRespondToOffer(ctx context.Context, input RespondToOfferInput, deps OfferDeps) (offer.Offer, error) {
	now := nowFrom(deps.Now)
	o, err := deps.OfferStore.GetByID(ctx, input.OfferID)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("load offer: %w", err)
	}
	req, err := deps.RequestStore.GetByID(ctx, o.RequestID)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("load car request: %w", err)
	}
	staff := input.Actor.Role == account.RoleAdmin || input.Actor.Role == account.RoleStaff
	if !staff && !req.OwnedBy(input.Actor.ID) {
		return offer.Offer{}, carrequest.ErrNotOwner
	}

	if input.Accept {
		err = o.Accept(now)
	} else {
		err = o.Decline(now)
	}
	if errors.Is(err, offer.ErrOfferExpired) {
		if saveErr := deps.OfferStore.Save(ctx, o); saveErr != nil {
			slog.Error("offer_expire_save_failed", "offer_id", o.ID, "error", saveErr)
		}
		return offer.Offer{}, err
	}
	if err != nil {
		return offer.Offer{}, err
	}

	target := carrequest.StatusInReview
	if input.Accept {
		target = carrequest.StatusAccepted
	}
	if err := req.TransitionTo(target, now); err != nil {
		return offer.Offer{}, err
	}

	if err := deps.OfferStore.Save(ctx, o); err != nil {
		return offer.Offer{}, fmt.Errorf("save offer: %w", err)
	}
	if input.Accept {
		if err := expireOpenOffers(ctx, deps.OfferStore, req.ID, o.ID, now); err != nil {
			return offer.Offer{}, err
		}
	}
	if err := deps.RequestStore.Save(ctx, req); err != nil {
		return offer.Offer{}, fmt.Errorf("save car request: %w", err)
	}

	queueAdminOrLog(ctx, deps.Notifier, emailAdapter.OfferAnswered{
		RequestID:          req.ID,
		Reference:          req.Reference,
		VehicleDescription: o.VehicleDescription,
		Accepted:           input.Accept,
	})
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryOffer, audit.ActionStatusChange).
		WithResource("offer", o.ID).
		WithDescription(fmt.Sprintf("offer for %s %s", req.Reference, o.Status)))
	if input.Accept && deps.Tracker != nil {
		deps.Tracker.Track(ctx, analytics.Event{
			Name:      analytics.EventOfferAccepted,
			IP:        input.Actor.IP,
			UserAgent: input.Actor.Agent,
			Props:     map[string]string{"make": req.Make},
		})
	}
	slog.Info("offer_answered", "offer_id", o.ID, "request_id", req.ID, "status", o.Status, "actor_id", input.Actor.ID)
	return o, nil
}
