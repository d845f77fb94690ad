package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "carimport/internal/adapters/email"
	"carimport/internal/adapters/storage"
	contractStore "carimport/internal/adapters/storage/contract"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/offer"
)

// ContractStore defines the store interface needed by contract orchestrators.
type ContractStore interface {
	GetByID(ctx context.Context, id string) (contract.Contract, error)
	Save(ctx context.Context, c contract.Contract) error
	List(ctx context.Context, filter contractStore.ListFilter) ([]contract.Contract, error)
	NextNumber(ctx context.Context, year int) (string, error)
}

// Contract orchestration errors.
var (
	ErrRequestNotAccepted = errors.New("contracts can only be created for accepted requests")
	ErrContractExists     = errors.New("the request already has an active contract")
	ErrNoCustomerAccount  = errors.New("link a customer account before creating the contract")
	ErrNotCustomerAccount = errors.New("the linked account must be an active customer")
)

// ContractDeps holds dependencies for contract orchestrators.
type ContractDeps struct {
	ContractStore ContractStore
	RequestStore  CarRequestStore
	OfferStore    OfferStore
	AccountStore  AccountLookup
	AuditStore    AuditRecorder
	Notifier      *Notifier // optional
	GenerateID    func() string
	Now           func() time.Time
}

// CreateContractInput carries input for ExecuteCreateContract.
// Empty description and zero price are taken from the accepted offer.
type CreateContractInput struct {
	RequestID          string
	AccountID          string // required when the request was submitted anonymously
	VehicleDescription string
	VIN                string
	PriceCents         int64
	DepositCents       int64
	Actor              audit.Actor
}

// ExecuteCreateContract drafts the purchase contract for an accepted request.
// PRE: request is accepted and has no draft, sent or signed contract
// PRE: input.AccountID, used only for anonymous requests, names an active customer
// POST: Contract saved as draft with the next CI-YYYY-NNNNNN number
func ExecuteCreateContract(ctx context.Context, input CreateContractInput, deps ContractDeps) (contract.Contract, error) {
	now := nowFrom(deps.Now)
	req, err := deps.RequestStore.GetByID(ctx, input.RequestID)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("load car request: %w", err)
	}
	if req.Status != carrequest.StatusAccepted {
		return contract.Contract{}, ErrRequestNotAccepted
	}

	existing, err := deps.ContractStore.List(ctx, contractStore.ListFilter{RequestID: req.ID})
	if err != nil {
		return contract.Contract{}, fmt.Errorf("list contracts: %w", err)
	}
	for _, c := range existing {
		if c.Status != contract.StatusCancelled {
			return contract.Contract{}, ErrContractExists
		}
	}

	accountID := req.AccountID
	if accountID == "" {
		if input.AccountID == "" {
			return contract.Contract{}, ErrNoCustomerAccount
		}
		if err := requireCustomer(ctx, deps.AccountStore, input.AccountID); err != nil {
			return contract.Contract{}, err
		}
		accountID = input.AccountID
	}

	c := contract.Contract{
		ID:                 newID(deps.GenerateID),
		RequestID:          req.ID,
		AccountID:          accountID,
		VehicleDescription: input.VehicleDescription,
		VIN:                input.VIN,
		PriceCents:         input.PriceCents,
		DepositCents:       input.DepositCents,
		Status:             contract.StatusDraft,
		CreatedAt:          now,
	}
	if c.VehicleDescription == "" || c.PriceCents == 0 {
		accepted, err := acceptedOffer(ctx, deps.OfferStore, req.ID)
		if err != nil {
			return contract.Contract{}, err
		}
		if c.VehicleDescription == "" {
			c.VehicleDescription = accepted.VehicleDescription
		}
		if c.PriceCents == 0 {
			c.PriceCents = accepted.PriceCents
		}
	}
	if err := c.Validate(); err != nil {
		return contract.Contract{}, err
	}

	number, err := deps.ContractStore.NextNumber(ctx, now.Year())
	if err != nil {
		return contract.Contract{}, err
	}
	c.Number = number
	if err := deps.ContractStore.Save(ctx, c); err != nil {
		return contract.Contract{}, fmt.Errorf("save contract: %w", err)
	}
	if req.AccountID == "" {
		req.AccountID = accountID
		req.UpdatedAt = now
		if err := deps.RequestStore.Save(ctx, req); err != nil {
			return contract.Contract{}, fmt.Errorf("link request to account: %w", err)
		}
	}

	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryContract, audit.ActionCreate).
		WithResource("contract", c.ID).
		WithDescription(fmt.Sprintf("contract %s drafted for %s", c.Number, req.Reference)))
	slog.Info("contract_created", "contract_id", c.ID, "number", c.Number, "request_id", req.ID, "actor_id", input.Actor.ID)
	return c, nil
}

// requireCustomer rejects IDs that do not name an active customer account.
func requireCustomer(ctx context.Context, accounts AccountLookup, id string) error {
	if accounts == nil {
		return ErrNotCustomerAccount
	}
	acct, err := accounts.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotCustomerAccount
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct.Role != account.RoleCustomer || acct.IsDisabled() {
		return ErrNotCustomerAccount
	}
	return nil
}

func acceptedOffer(ctx context.Context, store OfferStore, requestID string) (offer.Offer, error) {
	if store == nil {
		return offer.Offer{}, contract.ErrEmptyDescription
	}
	offers, err := store.ListByRequest(ctx, requestID)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("list offers: %w", err)
	}
	for _, o := range offers {
		if o.Status == offer.StatusAccepted {
			return o, nil
		}
	}
	return offer.Offer{}, contract.ErrEmptyDescription
}

// UpdateContractInput carries input for ExecuteUpdateContract.
// Nil fields are left unchanged; Status "" keeps the status.
type UpdateContractInput struct {
	ContractID   string
	Status       string
	VIN          *string
	DepositCents *int64
	Actor        audit.Actor
}

// ExecuteUpdateContract edits a draft and moves a contract through its workflow.
// PRE: VIN and deposit may only change while the contract is a draft
// POST: sent -> customer emailed; signed -> request closed; every change audited
func ExecuteUpdateContract(ctx context.Context, input UpdateContractInput, deps ContractDeps) (contract.Contract, error) {
	now := nowFrom(deps.Now)
	c, err := deps.ContractStore.GetByID(ctx, input.ContractID)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("load contract: %w", err)
	}

	if input.VIN != nil || input.DepositCents != nil {
		if c.Status != contract.StatusDraft {
			return contract.Contract{}, fmt.Errorf("%w: only drafts can be edited", contract.ErrInvalidTransition)
		}
		if input.VIN != nil {
			c.VIN = *input.VIN
		}
		if input.DepositCents != nil {
			c.DepositCents = *input.DepositCents
		}
		if err := c.Validate(); err != nil {
			return contract.Contract{}, err
		}
	}

	previous := c.Status
	if input.Status != "" && input.Status != c.Status {
		if err := c.TransitionTo(input.Status, now); err != nil {
			return contract.Contract{}, err
		}
	}
	if err := deps.ContractStore.Save(ctx, c); err != nil {
		return contract.Contract{}, fmt.Errorf("save contract: %w", err)
	}

	if c.Status != previous {
		req, err := deps.RequestStore.GetByID(ctx, c.RequestID)
		if err != nil {
			return contract.Contract{}, fmt.Errorf("load car request: %w", err)
		}
		switch c.Status {
		case contract.StatusSent:
			queueOrLog(ctx, deps.Notifier, req.ContactEmail, emailAdapter.ContractSent{
				Name:               req.ContactName,
				Number:             c.Number,
				VehicleDescription: c.VehicleDescription,
				VIN:                c.VIN,
				PriceCents:         c.PriceCents,
				DepositCents:       c.DepositCents,
			})
		case contract.StatusSigned:
			if req.CanTransition(carrequest.StatusClosed) {
				if err := req.TransitionTo(carrequest.StatusClosed, now); err != nil {
					return contract.Contract{}, err
				}
				if err := deps.RequestStore.Save(ctx, req); err != nil {
					return contract.Contract{}, fmt.Errorf("close car request: %w", err)
				}
			}
		}
	}

	desc := fmt.Sprintf("contract %s updated", c.Number)
	action := audit.ActionUpdate
	if c.Status != previous {
		desc = fmt.Sprintf("contract %s: %s -> %s", c.Number, previous, c.Status)
		action = audit.ActionStatusChange
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryContract, action).
		WithResource("contract", c.ID).
		WithDescription(desc))
	slog.Info("contract_updated", "contract_id", c.ID, "status", c.Status, "actor_id", input.Actor.ID)
	return c, nil
}
