package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
)

// SessionRepo persists web sessions. Only the SHA-256 hash of the opaque
// session token ever reaches this layer.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts an active session row.
func (r *SessionRepo) Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token_hash, expires_at, is_active, ip, user_agent) VALUES (?,?,?,1,?,?)",
		userID, tokenHash, exp.UTC(), ip, userAgent)
	return err
}

// GetActiveByHash returns the session for a token hash if it is active and
// unexpired; otherwise sql.ErrNoRows. Validity is decided here against the
// database clock so that application and database never disagree on expiry.
func (r *SessionRepo) GetActiveByHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, is_active, ip, user_agent, created_at
		 FROM sessions
		 WHERE token_hash=? AND is_active=1 AND expires_at > UTC_TIMESTAMP() LIMIT 1`,
		tokenHash).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.IsActive,
		&s.IP, &s.UserAgent, &s.CreatedAt)
	return s, err
}

// Deactivate flips is_active for one token hash. Running it against an
// already-inactive or unknown session is not an error, which makes logout
// idempotent.
func (r *SessionRepo) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE token_hash=?", tokenHash)
	return err
}

// DeactivateAllForUser revokes every active session of a user. Called on
// password change and ban.
func (r *SessionRepo) DeactivateAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE user_id=? AND is_active=1", userID)
	return err
}
