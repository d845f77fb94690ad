package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
)

// Account management errors.
var (
	ErrCannotDemoteSelf  = errors.New("admins cannot remove their own admin role")
	ErrCannotDisableSelf = errors.New("admins cannot disable their own account")
)

// ManageAccountDeps holds dependencies for admin account changes.
type ManageAccountDeps struct {
	AccountStore AccountStoreForChangePassword
	Sessions     SessionRevoker // optional
	AuditStore   AuditRecorder
}

// ChangeRoleInput carries input for ExecuteChangeRole.
type ChangeRoleInput struct {
	AccountID string
	Role      string
	Actor     audit.Actor
}

// ExecuteChangeRole sets an account's role.
// PRE: Actor is an admin
// POST: Role saved, sessions of the account dropped so the new role applies at next login
// INVARIANT: an admin cannot demote themself
func ExecuteChangeRole(ctx context.Context, input ChangeRoleInput, deps ManageAccountDeps) (account.Account, error) {
	if input.Actor.Role != account.RoleAdmin {
		return account.Account{}, ErrForbidden
	}
	if !account.IsValidRole(input.Role) {
		return account.Account{}, account.ErrInvalidRole
	}
	if input.AccountID == input.Actor.ID && input.Role != account.RoleAdmin {
		return account.Account{}, ErrCannotDemoteSelf
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return account.Account{}, fmt.Errorf("load account: %w", err)
	}
	if acct.Role == input.Role {
		return acct, nil
	}
	previous := acct.Role
	acct.Role = input.Role
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, fmt.Errorf("save account: %w", err)
	}
	revokeSessions(ctx, deps.Sessions, acct.ID)

	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryAccount, audit.ActionUpdate).
		WithSeverity(audit.SeverityWarning).
		WithResource("account", acct.ID).
		WithDescription(fmt.Sprintf("role changed from %s to %s for %s", previous, acct.Role, acct.Email)))
	slog.Info("account_role_changed", "account_id", acct.ID, "from", previous, "to", acct.Role, "actor_id", input.Actor.ID)
	return acct, nil
}

// SetAccountStatusInput carries input for ExecuteSetAccountStatus.
type SetAccountStatusInput struct {
	AccountID string
	Status    string // active or disabled
	Actor     audit.Actor
}

// ExecuteSetAccountStatus enables or disables an account.
// PRE: Actor is an admin
// POST: Status saved; disabling drops every session of the account
func ExecuteSetAccountStatus(ctx context.Context, input SetAccountStatusInput, deps ManageAccountDeps) (account.Account, error) {
	if input.Actor.Role != account.RoleAdmin {
		return account.Account{}, ErrForbidden
	}
	if input.Status == account.StatusDisabled && input.AccountID == input.Actor.ID {
		return account.Account{}, ErrCannotDisableSelf
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return account.Account{}, fmt.Errorf("load account: %w", err)
	}
	switch input.Status {
	case account.StatusDisabled:
		err = acct.Disable()
	case account.StatusActive:
		err = acct.Enable()
	default:
		err = account.ErrInvalidStatus
	}
	if err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, fmt.Errorf("save account: %w", err)
	}
	if acct.IsDisabled() {
		revokeSessions(ctx, deps.Sessions, acct.ID)
	}

	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryAccount, audit.ActionStatusChange).
		WithSeverity(audit.SeverityWarning).
		WithResource("account", acct.ID).
		WithDescription(fmt.Sprintf("account %s set to %s", acct.Email, acct.Status)))
	slog.Info("account_status_changed", "account_id", acct.ID, "status", acct.Status, "actor_id", input.Actor.ID)
	return acct, nil
}

func revokeSessions(ctx context.Context, sessions SessionRevoker, accountID string) {
	if sessions == nil {
		return
	}
	n, err := sessions.DeleteAccount(ctx, accountID)
	if err != nil {
		slog.Error("session_revoke_failed", "account_id", accountID, "error", err)
		return
	}
	slog.Info("sessions_revoked", "account_id", accountID, "count", n)
}
