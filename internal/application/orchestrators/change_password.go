package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carimport/internal/domain/account"
)

// ChangePasswordInput carries input for the change-password orchestrator.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
}

// AccountStoreForChangePassword defines the store interface needed by ChangePassword.
type AccountStoreForChangePassword interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// SessionRevoker drops sessions of an account.
type SessionRevoker interface {
	DeleteAccount(ctx context.Context, accountID string) (int, error)
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	AccountStore AccountStoreForChangePassword
}

var (
	ErrCurrentPasswordWrong = errors.New("current password is incorrect")
	ErrNewPasswordSame      = errors.New("new password must be different from current password")
	ErrPasswordFieldsEmpty  = errors.New("current and new password are required")
)

// ExecuteChangePassword validates the current password and updates to the new one.
// PRE: AccountID is valid, both passwords are non-empty
// POST: Password is updated and any lockout cleared
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return ErrPasswordFieldsEmpty
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return ErrNewPasswordSame
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	acct.ResetFailedLogins()

	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	slog.Info("auth_event", "event", "password_changed", "account_id", input.AccountID)
	return nil
}
