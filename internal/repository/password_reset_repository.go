package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordResetToken is a single-use credential for the reset flow. At most
// one outstanding token exists per user.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	// Replace stores the token, discarding any outstanding token for the
	// same user.
	Replace(ctx context.Context, token *PasswordResetToken) error
	// Consume atomically marks an unexpired, unused token as used and
	// returns the owning user id. A second call for the same token (or a
	// call with an expired or unknown token) returns pgx.ErrNoRows.
	Consume(ctx context.Context, token string) (userID string, err error)
}

type passwordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(pool *pgxpool.Pool) PasswordResetRepository {
	return &passwordResetRepository{pool: pool}
}

func (r *passwordResetRepository) Replace(ctx context.Context, token *PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (user_id, token, expires_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id)
        DO UPDATE SET token=EXCLUDED.token, expires_at=EXCLUDED.expires_at,
            used_at=NULL, created_at=NOW()
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *passwordResetRepository) Consume(ctx context.Context, tokenStr string) (string, error) {
	const query = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
        RETURNING user_id`
	var userID string
	if err := r.pool.QueryRow(ctx, query, tokenStr).Scan(&userID); err != nil {
		return "", err
	}
	return userID, nil
}
