package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"carimport/internal/adapters/analytics"
	"carimport/internal/adapters/storage"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/sanitize"
)

// AccountStoreForCreate defines the store interface needed to create accounts.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// ErrEmailAlreadyExists is returned when the address is registered already.
var ErrEmailAlreadyExists = errors.New("an account with this email already exists")

// CreateAccountInput carries input for account creation.
type CreateAccountInput struct {
	Email    string
	Name     string
	Phone    string
	Password string
	Role     string // customers self-register; staff and admin are created by an admin
	Actor    audit.Actor
}

// CreateAccountDeps holds dependencies for account creation.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	AuditStore   AuditRecorder     // optional
	Tracker      analytics.Tracker // optional
	GenerateID   func() string
	Now          func() time.Time
}

// ExecuteCreateAccount creates an account with a hashed password.
// PRE: Valid email, password >= 12 chars, valid role
// POST: Account created with status active
// INVARIANT: Email must be unique (case-insensitive)
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (account.Account, error) {
	email := account.NormalizeEmail(input.Email)
	if input.Role == "" {
		input.Role = account.RoleCustomer
	}
	acct := account.Account{
		ID:        newID(deps.GenerateID),
		Email:     email,
		Name:      sanitize.Line(input.Name),
		Phone:     sanitize.Line(input.Phone),
		Role:      input.Role,
		Status:    account.StatusActive,
		CreatedAt: nowFrom(deps.Now),
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, err
	}

	_, err := deps.AccountStore.GetByEmail(ctx, email)
	if err == nil {
		return account.Account{}, ErrEmailAlreadyExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return account.Account{}, fmt.Errorf("check existing account: %w", err)
	}

	if err := acct.SetPassword(input.Password); err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return account.Account{}, fmt.Errorf("save account: %w", err)
	}

	slog.Info("auth_event", "event", "account_created", "account_id", acct.ID, "role", acct.Role)
	if input.Actor.ID != "" {
		recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryAccount, audit.ActionCreate).
			WithResource("account", acct.ID).
			WithDescription("created " + acct.Role + " account " + acct.Email))
	}
	if acct.Role == account.RoleCustomer && deps.Tracker != nil {
		deps.Tracker.Track(ctx, analytics.Event{Name: analytics.EventAccountRegistered, IP: input.Actor.IP, UserAgent: input.Actor.Agent})
	}
	return acct, nil
}

// SeedAdminInput names the bootstrap administrator.
type SeedAdminInput struct {
	Email    string
	Password string
	Name     string
}

// ExecuteSeedAdmin ensures an admin account exists for the given email.
// Running it again is a no-op, and an existing non-admin account is left untouched.
// PRE: Email and Password are set
// POST: created reports whether a new account was written
func ExecuteSeedAdmin(ctx context.Context, input SeedAdminInput, deps CreateAccountDeps) (acct account.Account, created bool, err error) {
	existing, err := deps.AccountStore.GetByEmail(ctx, input.Email)
	if err == nil {
		if existing.Role != account.RoleAdmin {
			slog.Warn("seed_admin_skipped", "email", existing.Email, "role", existing.Role)
		}
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return account.Account{}, false, fmt.Errorf("look up admin: %w", err)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Administrator"
	}
	acct, err = ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    input.Email,
		Name:     name,
		Password: input.Password,
		Role:     account.RoleAdmin,
	}, deps)
	if err != nil {
		return account.Account{}, false, err
	}
	return acct, true, nil
}
