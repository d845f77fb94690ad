package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"carimport/internal/adapters/storage"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/sanitize"
)

// ManageCarRequestDeps holds dependencies for staff changes to a request.
type ManageCarRequestDeps struct {
	RequestStore CarRequestStore
	AccountStore AccountLookup // resolves assignees
	AuditStore   AuditRecorder
	Now          func() time.Time
}

// UpdateRequestStatusInput carries input for ExecuteUpdateRequestStatus.
type UpdateRequestStatusInput struct {
	RequestID string
	Status    string
	Actor     audit.Actor
}

// ExecuteUpdateRequestStatus moves a request through its workflow.
// PRE: Actor is staff or admin
// POST: Status saved and audited, or ErrInvalidTransition
func ExecuteUpdateRequestStatus(ctx context.Context, input UpdateRequestStatusInput, deps ManageCarRequestDeps) (carrequest.CarRequest, error) {
	req, err := deps.RequestStore.GetByID(ctx, input.RequestID)
	if err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("load car request: %w", err)
	}
	previous := req.Status
	if err := req.TransitionTo(input.Status, nowFrom(deps.Now)); err != nil {
		return carrequest.CarRequest{}, err
	}
	if err := deps.RequestStore.Save(ctx, req); err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("save car request: %w", err)
	}

	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryRequest, audit.ActionStatusChange).
		WithResource("car_request", req.ID).
		WithDescription(fmt.Sprintf("%s: %s -> %s", req.Reference, previous, req.Status)))
	slog.Info("car_request_status_changed", "request_id", req.ID, "from", previous, "to", req.Status, "actor_id", input.Actor.ID)
	return req, nil
}

// ErrInvalidAssignee is returned when the assignee is not an active staff member.
var ErrInvalidAssignee = errors.New("requests can only be assigned to active staff or admins")

// AssignRequestInput carries input for ExecuteAssignRequest.
// Nil fields are left unchanged.
type AssignRequestInput struct {
	RequestID  string
	AssignedTo *string // staff account ID, "" to unassign
	AdminNotes *string
	Actor      audit.Actor
}

// ExecuteAssignRequest sets the handling staff member and internal notes.
// PRE: Actor is staff or admin; AssignedTo, when non-empty, names an active staff or admin account
// POST: Assignment and notes saved and audited; status unchanged
func ExecuteAssignRequest(ctx context.Context, input AssignRequestInput, deps ManageCarRequestDeps) (carrequest.CarRequest, error) {
	req, err := deps.RequestStore.GetByID(ctx, input.RequestID)
	if err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("load car request: %w", err)
	}
	if input.AssignedTo != nil {
		assignee := sanitize.Line(*input.AssignedTo)
		if assignee != "" {
			if err := requireStaff(ctx, deps.AccountStore, assignee); err != nil {
				return carrequest.CarRequest{}, err
			}
		}
		req.AssignedTo = assignee
	}
	if input.AdminNotes != nil {
		req.AdminNotes = sanitize.Text(*input.AdminNotes)
		if utf8.RuneCountInString(req.AdminNotes) > carrequest.MaxAdminNotesLen {
			return carrequest.CarRequest{}, carrequest.ErrFieldTooLong
		}
	}
	req.UpdatedAt = nowFrom(deps.Now)
	if err := deps.RequestStore.Save(ctx, req); err != nil {
		return carrequest.CarRequest{}, fmt.Errorf("save car request: %w", err)
	}

	action := audit.ActionUpdate
	desc := req.Reference + ": notes updated"
	if input.AssignedTo != nil {
		action = audit.ActionAssign
		desc = req.Reference + ": assigned to " + req.AssignedTo
		if req.AssignedTo == "" {
			desc = req.Reference + ": unassigned"
		}
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryRequest, action).
		WithResource("car_request", req.ID).
		WithDescription(desc))
	return req, nil
}

func requireStaff(ctx context.Context, accounts AccountLookup, id string) error {
	if accounts == nil {
		return ErrInvalidAssignee
	}
	acct, err := accounts.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidAssignee
	}
	if err != nil {
		return fmt.Errorf("load assignee: %w", err)
	}
	if !acct.IsStaffOrAdmin() || acct.IsDisabled() {
		return ErrInvalidAssignee
	}
	return nil
}
