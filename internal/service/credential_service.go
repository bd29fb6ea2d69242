package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-core/internal/auth"
	"github.com/spec-kit/helpdesk-core/internal/config"
	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// CredentialService owns registration, sessions, password flows and role
// administration.
type CredentialService struct {
	users       repository.UserRepository
	resets      repository.PasswordResetRepository
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	resetTTL    time.Duration
	minPassword int
	logger      *zap.Logger
}

// CredentialDependencies encapsulates repo requirements.
type CredentialDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Logger            *zap.Logger
}

// NewCredentialService builds the service.
func NewCredentialService(cfg config.AuthConfig, deps CredentialDependencies) *CredentialService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{
		users:       deps.UserRepo,
		resets:      deps.PasswordResetRepo,
		tokenMgr:    auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		bcryptCost:  cfg.BcryptCost,
		resetTTL:    cfg.PasswordResetTTL(),
		minPassword: cfg.MinPasswordLength,
		logger:      logger,
	}
}

// Register creates a new active, non-admin account.
func (s *CredentialService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("valid email required", nil)
	}
	if len(password) < s.minPassword {
		return nil, apperrors.NewWeakPassword(s.minPassword)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      false,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates an account and issues a session token. Unknown emails,
// wrong passwords and deactivated accounts all fail identically.
func (s *CredentialService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, apperrors.NewInvalidCredentials()
		}
		return "", time.Time{}, err
	}
	if !user.IsActive {
		return "", time.Time{}, apperrors.NewInvalidCredentials()
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewInvalidCredentials()
	}
	return s.IssueSession(user)
}

// IssueSession signs a stateless session token for the user. Subject is the
// email; there is no revocation list, so the token stays valid until expiry.
func (s *CredentialService) IssueSession(user *domain.User) (string, time.Time, error) {
	return s.tokenMgr.IssueSession(user.Email)
}

// RequestPasswordReset issues a single-use reset token when the email
// matches an active account, replacing any token already outstanding for
// that user. It succeeds regardless of whether the email exists; the caller
// must never learn which it was.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	tokenValue, err := randomToken()
	if err != nil {
		return err
	}
	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     tokenValue,
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Replace(ctx, token); err != nil {
		return err
	}

	// Delivery of the token belongs to the notification side; the core only
	// records that one was issued.
	s.logger.Info("password reset token issued", zap.String("user_id", user.ID))
	return nil
}

// ResetPassword consumes the token exactly once and stores the new hash.
// The old password is unknown in this flow, so no reuse check applies.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < s.minPassword {
		return apperrors.NewWeakPassword(s.minPassword)
	}

	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewInvalidResetToken()
		}
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// ChangePassword verifies the current password before storing the new hash.
// Sessions issued before the change stay valid; that is the stateless-token
// tradeoff, not an oversight.
func (s *CredentialService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if err := auth.ComparePassword(actor.PasswordHash, currentPassword); err != nil {
		return apperrors.NewIncorrectCurrentPassword()
	}
	if len(newPassword) < s.minPassword {
		return apperrors.NewWeakPassword(s.minPassword)
	}
	if auth.ComparePassword(actor.PasswordHash, newPassword) == nil {
		return apperrors.NewPasswordReuse()
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	actor.PasswordHash = hash
	return s.users.Update(ctx, actor)
}

// SetAdminRole grants or revokes the admin flag on the target account.
// Admins cannot revoke their own flag; the system must keep at least the
// acting admin able to undo a mistake.
func (s *CredentialService) SetAdminRole(ctx context.Context, actor *domain.User, targetID string, isAdmin bool) (*domain.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if actor.ID == targetID && !isAdmin {
		return nil, apperrors.NewSelfDemotionForbidden()
	}

	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	target.IsAdmin = isAdmin
	if err := s.users.Update(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// SetActive flips the target account's active flag. Deactivated accounts
// cannot log in and their existing sessions stop passing the auth
// middleware's account check.
func (s *CredentialService) SetActive(ctx context.Context, actor *domain.User, targetID string, isActive bool) (*domain.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	target.IsActive = isActive
	if err := s.users.Update(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// DeleteUser hard-deletes the target account.
func (s *CredentialService) DeleteUser(ctx context.Context, actor *domain.User, targetID string) error {
	if !actor.IsAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	if actor.ID == targetID {
		return apperrors.NewConflict("cannot delete own account", nil)
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user")
		}
		return err
	}
	return nil
}

// ListUsers returns accounts for admin review.
func (s *CredentialService) ListUsers(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return s.users.List(ctx, limit, offset)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *CredentialService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *CredentialService) getUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, err
	}
	return user, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
