package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
)

// AccountStoreForLogin defines the store interface needed by Login.
type AccountStoreForLogin interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
	IP       string
	Agent    string
}

// LoginResult carries the result of a successful login.
type LoginResult struct {
	AccountID string
	Email     string
	Name      string
	Role      string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	AccountStore AccountStoreForLogin
	AuditStore   AuditRecorder // optional
	Now          func() time.Time
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// ExecuteLogin validates credentials and returns account info for session creation.
// PRE: Valid email and password provided
// POST: Returns account info on success, records failed login on failure
// INVARIANT: Locked and disabled accounts never log in, even with the right password
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (LoginResult, error) {
	email := account.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	now := nowFrom(deps.Now)

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "not_found")
		return LoginResult{}, ErrInvalidCredentials
	}
	actor := audit.Actor{ID: acct.ID, Email: acct.Email, Role: acct.Role, IP: input.IP, Agent: input.Agent}

	if acct.IsDisabled() {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "disabled")
		return LoginResult{}, ErrAccountDisabled
	}
	if acct.IsLocked(now) {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "locked")
		return LoginResult{}, ErrAccountLocked
	}

	if err := acct.CheckPassword(input.Password); err != nil {
		acct.RecordFailedLogin(now)
		if saveErr := deps.AccountStore.Save(ctx, acct); saveErr != nil {
			slog.Error("login_failure_save_failed", "account_id", acct.ID, "error", saveErr)
		}
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "wrong_password", "failed_logins", acct.FailedLogins)
		ev := audit.NewEvent(actor, audit.CategorySecurity, audit.ActionLoginFailed).
			WithResource("account", acct.ID).
			WithDescription("wrong password")
		if acct.IsLocked(now) {
			ev = ev.WithSeverity(audit.SeverityWarning).WithDescription("account locked after repeated failures")
		}
		recordAudit(ctx, deps.AuditStore, ev)
		return LoginResult{}, ErrInvalidCredentials
	}

	if acct.FailedLogins > 0 || !acct.LockedUntil.IsZero() {
		acct.ResetFailedLogins()
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			slog.Error("login_reset_save_failed", "account_id", acct.ID, "error", err)
		}
	}

	slog.Info("auth_event", "event", "login_success", "email", email, "role", acct.Role)
	if acct.IsStaffOrAdmin() {
		recordAudit(ctx, deps.AuditStore, audit.NewEvent(actor, audit.CategorySecurity, audit.ActionLogin).
			WithResource("account", acct.ID))
	}

	return LoginResult{
		AccountID: acct.ID,
		Email:     acct.Email,
		Name:      acct.Name,
		Role:      acct.Role,
	}, nil
}
