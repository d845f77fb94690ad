package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.createAccount(t, "Staff@Example.test", account.RoleStaff)
	deps := LoginDeps{AccountStore: env.accounts, AuditStore: env.audits, Now: env.clock}

	res, err := ExecuteLogin(ctx, LoginInput{Email: " STAFF@example.test ", Password: "correct-horse-battery"}, deps)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.AccountID != staff.ID || res.Role != account.RoleStaff {
		t.Errorf("result = %+v", res)
	}
	if actions := env.auditActions(t, audit.CategorySecurity); !contains(actions, string(audit.ActionLogin)) {
		t.Errorf("audit actions = %v", actions)
	}

	_, err = ExecuteLogin(ctx, LoginInput{Email: "nobody@example.test", Password: "correct-horse-battery"}, deps)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", err)
	}
	_, err = ExecuteLogin(ctx, LoginInput{Email: "staff@example.test"}, deps)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty password err = %v", err)
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAccount(t, "ana@example.test", account.RoleCustomer)
	deps := LoginDeps{AccountStore: env.accounts, AuditStore: env.audits, Now: env.clock}

	for i := 0; i < account.MaxFailedLogins; i++ {
		_, err := ExecuteLogin(ctx, LoginInput{Email: "ana@example.test", Password: "wrong-password-123"}, deps)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d err = %v", i+1, err)
		}
	}
	_, err := ExecuteLogin(ctx, LoginInput{Email: "ana@example.test", Password: "correct-horse-battery"}, deps)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked login err = %v, want ErrAccountLocked", err)
	}

	env.advance(account.LockoutDuration + time.Minute)
	if _, err := ExecuteLogin(ctx, LoginInput{Email: "ana@example.test", Password: "correct-horse-battery"}, deps); err != nil {
		t.Fatalf("login after lockout: %v", err)
	}
	acct, _ := env.accounts.GetByEmail(ctx, "ana@example.test")
	if acct.FailedLogins != 0 {
		t.Errorf("failed logins = %d, want reset", acct.FailedLogins)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.createAccount(t, "ana@example.test", account.RoleCustomer)
	if _, err := ExecuteSetAccountStatus(ctx, SetAccountStatusInput{AccountID: acct.ID, Status: account.StatusDisabled, Actor: env.admin},
		ManageAccountDeps{AccountStore: env.accounts}); err != nil {
		t.Fatal(err)
	}

	_, err := ExecuteLogin(ctx, LoginInput{Email: "ana@example.test", Password: "correct-horse-battery"},
		LoginDeps{AccountStore: env.accounts, Now: env.clock})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    "Ana@Example.test",
		Name:     "  Ana Novak ",
		Phone:    "+386 40 123 456",
		Password: "correct-horse-battery",
	}, env.createAccountDeps())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.Email != "ana@example.test" || acct.Role != account.RoleCustomer || acct.Name != "Ana Novak" {
		t.Errorf("account = %+v", acct)
	}
	if acct.CheckPassword("correct-horse-battery") != nil {
		t.Error("password not hashed correctly")
	}
	if names := env.tracker.names(); !contains(names, "account_registered") {
		t.Errorf("tracked = %v", names)
	}

	_, err = ExecuteCreateAccount(ctx, CreateAccountInput{Email: "ANA@example.test", Password: "another-password-1"}, env.createAccountDeps())
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
	_, err = ExecuteCreateAccount(ctx, CreateAccountInput{Email: "short@example.test", Password: "short"}, env.createAccountDeps())
	if !errors.Is(err, account.ErrPasswordTooShort) {
		t.Errorf("short password err = %v", err)
	}
	_, err = ExecuteCreateAccount(ctx, CreateAccountInput{Email: "x@example.test", Phone: "call me", Password: "correct-horse-battery"}, env.createAccountDeps())
	if !errors.Is(err, account.ErrInvalidPhone) {
		t.Errorf("bad phone err = %v", err)
	}
}

func TestSeedAdmin_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := SeedAdminInput{Email: "root@example.test", Password: "correct-horse-battery"}

	first, created, err := ExecuteSeedAdmin(ctx, in, env.createAccountDeps())
	if err != nil || !created {
		t.Fatalf("first seed created=%v err=%v", created, err)
	}
	if first.Role != account.RoleAdmin || first.Name != "Administrator" {
		t.Errorf("admin = %+v", first)
	}
	again, created, err := ExecuteSeedAdmin(ctx, in, env.createAccountDeps())
	if err != nil || created || again.ID != first.ID {
		t.Errorf("second seed created=%v id=%q err=%v", created, again.ID, err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.createAccount(t, "ana@example.test", account.RoleCustomer)
	deps := ChangePasswordDeps{AccountStore: env.accounts}

	tests := []struct {
		name    string
		current string
		next    string
		want    error
	}{
		{"empty", "", "", ErrPasswordFieldsEmpty},
		{"wrong current", "not-my-password", "brand-new-password", ErrCurrentPasswordWrong},
		{"same", "correct-horse-battery", "correct-horse-battery", ErrNewPasswordSame},
		{"too short", "correct-horse-battery", "short", account.ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExecuteChangePassword(ctx, ChangePasswordInput{AccountID: acct.ID, CurrentPassword: tt.current, NewPassword: tt.next}, deps)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := ExecuteChangePassword(ctx, ChangePasswordInput{AccountID: acct.ID, CurrentPassword: "correct-horse-battery", NewPassword: "brand-new-password"}, deps); err != nil {
		t.Fatalf("change: %v", err)
	}
	stored, _ := env.accounts.GetByID(ctx, acct.ID)
	if stored.CheckPassword("brand-new-password") != nil {
		t.Error("new password not stored")
	}
}

func TestChangeRole_RevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.createAccount(t, "ana@example.test", account.RoleCustomer)
	revoker := &recordingRevoker{}
	deps := ManageAccountDeps{AccountStore: env.accounts, Sessions: revoker, AuditStore: env.audits}

	got, err := ExecuteChangeRole(ctx, ChangeRoleInput{AccountID: acct.ID, Role: account.RoleStaff, Actor: env.admin}, deps)
	if err != nil {
		t.Fatalf("change role: %v", err)
	}
	if got.Role != account.RoleStaff {
		t.Errorf("role = %q", got.Role)
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != acct.ID {
		t.Errorf("revoked = %v", revoker.revoked)
	}

	staffActor := audit.Actor{ID: "staff-9", Role: account.RoleStaff}
	if _, err := ExecuteChangeRole(ctx, ChangeRoleInput{AccountID: acct.ID, Role: account.RoleAdmin, Actor: staffActor}, deps); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff actor err = %v, want ErrForbidden", err)
	}
	if _, err := ExecuteChangeRole(ctx, ChangeRoleInput{AccountID: env.admin.ID, Role: account.RoleStaff, Actor: env.admin}, deps); !errors.Is(err, ErrCannotDemoteSelf) {
		t.Errorf("self demote err = %v", err)
	}
}

func TestSetAccountStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.createAccount(t, "ana@example.test", account.RoleCustomer)
	revoker := &recordingRevoker{}
	deps := ManageAccountDeps{AccountStore: env.accounts, Sessions: revoker, AuditStore: env.audits}

	if _, err := ExecuteSetAccountStatus(ctx, SetAccountStatusInput{AccountID: env.admin.ID, Status: account.StatusDisabled, Actor: env.admin}, deps); !errors.Is(err, ErrCannotDisableSelf) {
		t.Errorf("self disable err = %v", err)
	}
	got, err := ExecuteSetAccountStatus(ctx, SetAccountStatusInput{AccountID: acct.ID, Status: account.StatusDisabled, Actor: env.admin}, deps)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDisabled() || len(revoker.revoked) != 1 {
		t.Errorf("disabled = %v revoked = %v", got.IsDisabled(), revoker.revoked)
	}
	got, err = ExecuteSetAccountStatus(ctx, SetAccountStatusInput{AccountID: acct.ID, Status: account.StatusActive, Actor: env.admin}, deps)
	if err != nil || got.IsDisabled() {
		t.Errorf("enable: disabled=%v err=%v", got.IsDisabled(), err)
	}
	if len(revoker.revoked) != 1 {
		t.Errorf("enabling revoked sessions: %v", revoker.revoked)
	}
}
