package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-core/internal/config"
	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:               "test-secret",
		AccessTokenTTLMinutes:   60 * 24 * 8,
		PasswordResetTTLMinutes: 30,
		BcryptCost:              bcrypt.MinCost,
		MinPasswordLength:       8,
	}
}

func newCredentialFixture(t *testing.T) (*CredentialService, *fakeUserRepo, *fakeResetRepo) {
	t.Helper()
	users := newFakeUserRepo()
	resets := newFakeResetRepo()
	svc := NewCredentialService(testAuthConfig(), CredentialDependencies{
		UserRepo:          users,
		PasswordResetRepo: resets,
	})
	return svc, users, resets
}

func mustRegister(t *testing.T, svc *CredentialService, email, password string) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Register(%q) error: %v", email, err)
	}
	return user
}

func TestRegister(t *testing.T) {
	svc, _, _ := newCredentialFixture(t)
	ctx := context.Background()

	user := mustRegister(t, svc, "alice@example.com", "password123")
	if user.IsAdmin {
		t.Error("new user IsAdmin = true, want false")
	}
	if !user.IsActive {
		t.Error("new user IsActive = false, want true")
	}
	if user.PasswordHash == "password123" {
		t.Error("password stored in plaintext")
	}

	if _, err := svc.Register(ctx, "alice@example.com", "password456"); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("duplicate register error = %v, want CONFLICT", err)
	}
	if _, err := svc.Register(ctx, "bob@example.com", "short"); !apperrors.HasCode(err, apperrors.CodeWeakPassword) {
		t.Errorf("short password error = %v, want WEAK_PASSWORD", err)
	}
	if _, err := svc.Register(ctx, "not-an-email", "password123"); !apperrors.HasCode(err, apperrors.CodeValidationFailed) {
		t.Errorf("bad email error = %v, want VALIDATION_FAILED", err)
	}
}

func TestLogin(t *testing.T) {
	svc, users, _ := newCredentialFixture(t)
	ctx := context.Background()
	user := mustRegister(t, svc, "alice@example.com", "password123")

	token, expiresAt, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if token == "" {
		t.Fatal("Login() returned empty token")
	}
	horizon := time.Until(expiresAt)
	if horizon < 8*24*time.Hour-time.Minute || horizon > 8*24*time.Hour+time.Minute {
		t.Errorf("session horizon = %v, want about 8 days", horizon)
	}

	claims, err := svc.TokenManager().ParseSession(token)
	if err != nil {
		t.Fatalf("ParseSession() error: %v", err)
	}
	if claims.Subject != "alice@example.com" {
		t.Errorf("token subject = %q, want alice@example.com", claims.Subject)
	}

	// Unknown email and wrong password must be indistinguishable.
	_, _, unknownErr := svc.Login(ctx, "nobody@example.com", "password123")
	_, _, wrongErr := svc.Login(ctx, "alice@example.com", "wrong-password")
	if !apperrors.HasCode(unknownErr, apperrors.CodeInvalidCredentials) {
		t.Errorf("unknown email error = %v, want INVALID_CREDENTIALS", unknownErr)
	}
	if !apperrors.HasCode(wrongErr, apperrors.CodeInvalidCredentials) {
		t.Errorf("wrong password error = %v, want INVALID_CREDENTIALS", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("error messages differ: %q vs %q", unknownErr, wrongErr)
	}

	user.IsActive = false
	if err := users.Update(ctx, user); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "password123"); !apperrors.HasCode(err, apperrors.CodeInvalidCredentials) {
		t.Errorf("deactivated login error = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestRequestPasswordReset(t *testing.T) {
	svc, _, resets := newCredentialFixture(t)
	ctx := context.Background()
	user := mustRegister(t, svc, "alice@example.com", "password123")

	// Unknown email succeeds with no token issued.
	if err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset(unknown) error: %v", err)
	}
	if len(resets.tokens) != 0 {
		t.Fatalf("tokens issued for unknown email: %d", len(resets.tokens))
	}

	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error: %v", err)
	}
	first := resets.tokens[user.ID].Token
	if first == "" {
		t.Fatal("no token stored")
	}

	// A second request replaces the outstanding token.
	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error: %v", err)
	}
	second := resets.tokens[user.ID].Token
	if second == first {
		t.Error("second request did not replace the token")
	}
	if _, err := resets.Consume(ctx, first); err == nil {
		t.Error("replaced token still consumable")
	}
}

func TestResetPassword(t *testing.T) {
	svc, _, resets := newCredentialFixture(t)
	ctx := context.Background()
	user := mustRegister(t, svc, "alice@example.com", "password123")

	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error: %v", err)
	}
	token := resets.tokens[user.ID].Token

	if err := svc.ResetPassword(ctx, token, "short"); !apperrors.HasCode(err, apperrors.CodeWeakPassword) {
		t.Errorf("weak password error = %v, want WEAK_PASSWORD", err)
	}

	if err := svc.ResetPassword(ctx, token, "new-password-1"); err != nil {
		t.Fatalf("ResetPassword() error: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "new-password-1"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "password123"); err == nil {
		t.Error("login with old password still succeeds")
	}

	// Tokens are single use.
	if err := svc.ResetPassword(ctx, token, "new-password-2"); !apperrors.HasCode(err, apperrors.CodeInvalidResetToken) {
		t.Errorf("reused token error = %v, want INVALID_OR_EXPIRED_TOKEN", err)
	}
	if err := svc.ResetPassword(ctx, "bogus-token", "new-password-2"); !apperrors.HasCode(err, apperrors.CodeInvalidResetToken) {
		t.Errorf("unknown token error = %v, want INVALID_OR_EXPIRED_TOKEN", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, _, resets := newCredentialFixture(t)
	ctx := context.Background()
	user := mustRegister(t, svc, "alice@example.com", "password123")

	expired := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := resets.Replace(ctx, expired); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}

	if err := svc.ResetPassword(ctx, "expired-token", "new-password-1"); !apperrors.HasCode(err, apperrors.CodeInvalidResetToken) {
		t.Errorf("expired token error = %v, want INVALID_OR_EXPIRED_TOKEN", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newCredentialFixture(t)
	ctx := context.Background()
	user := mustRegister(t, svc, "alice@example.com", "password123")

	if err := svc.ChangePassword(ctx, user, "wrong", "new-password-1"); !apperrors.HasCode(err, apperrors.CodeIncorrectCurrentPassword) {
		t.Errorf("wrong current error = %v, want INCORRECT_CURRENT_PASSWORD", err)
	}
	if err := svc.ChangePassword(ctx, user, "password123", "short"); !apperrors.HasCode(err, apperrors.CodeWeakPassword) {
		t.Errorf("weak new error = %v, want WEAK_PASSWORD", err)
	}
	if err := svc.ChangePassword(ctx, user, "password123", "password123"); !apperrors.HasCode(err, apperrors.CodePasswordReuse) {
		t.Errorf("reuse error = %v, want PASSWORD_REUSE", err)
	}

	if err := svc.ChangePassword(ctx, user, "password123", "new-password-1"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "new-password-1"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestSessionsSurvivePasswordChange(t *testing.T) {
	svc, _, _ := newCredentialFixture(t)
	ctx := context.Background()
	user := mustRegister(t, svc, "alice@example.com", "password123")

	token, _, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if err := svc.ChangePassword(ctx, user, "password123", "new-password-1"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}

	// Sessions are stateless; the change does not revoke them.
	if _, err := svc.TokenManager().ParseSession(token); err != nil {
		t.Errorf("session invalid after password change: %v", err)
	}
}

func TestSetAdminRole(t *testing.T) {
	svc, _, _ := newCredentialFixture(t)
	ctx := context.Background()
	admin := mustRegister(t, svc, "admin@example.com", "password123")
	admin.IsAdmin = true
	target := mustRegister(t, svc, "bob@example.com", "password123")

	if _, err := svc.SetAdminRole(ctx, target, admin.ID, false); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("non-admin actor error = %v, want FORBIDDEN", err)
	}
	if _, err := svc.SetAdminRole(ctx, admin, admin.ID, false); !apperrors.HasCode(err, apperrors.CodeSelfDemotionForbidden) {
		t.Errorf("self demotion error = %v, want SELF_DEMOTION_FORBIDDEN", err)
	}
	if _, err := svc.SetAdminRole(ctx, admin, "missing-id", true); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("missing target error = %v, want NOT_FOUND", err)
	}

	updated, err := svc.SetAdminRole(ctx, admin, target.ID, true)
	if err != nil {
		t.Fatalf("SetAdminRole() error: %v", err)
	}
	if !updated.IsAdmin {
		t.Error("target not promoted")
	}

	// Promoting self again is allowed; only self-demotion is blocked.
	if _, err := svc.SetAdminRole(ctx, admin, admin.ID, true); err != nil {
		t.Errorf("self promotion error = %v, want nil", err)
	}
}

func TestSetActiveAndDelete(t *testing.T) {
	svc, users, _ := newCredentialFixture(t)
	ctx := context.Background()
	admin := mustRegister(t, svc, "admin@example.com", "password123")
	admin.IsAdmin = true
	target := mustRegister(t, svc, "bob@example.com", "password123")

	updated, err := svc.SetActive(ctx, admin, target.ID, false)
	if err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	if updated.IsActive {
		t.Error("target still active")
	}

	if err := svc.DeleteUser(ctx, target, admin.ID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("non-admin delete error = %v, want FORBIDDEN", err)
	}
	if err := svc.DeleteUser(ctx, admin, admin.ID); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("self delete error = %v, want CONFLICT", err)
	}
	if err := svc.DeleteUser(ctx, admin, target.ID); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	if _, err := users.GetByID(ctx, target.ID); err == nil {
		t.Error("target still present after hard delete")
	}
}
