package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
)

// ApiTokenRepo manages the long-lived plugin credentials. The bearer secret
// is generated once at creation time and only its SHA-256 hash is stored;
// lookups are by hash, which gives constant-time compare semantics since the
// presented secret is hashed before it ever reaches a query.
type ApiTokenRepo struct{ DB *sql.DB }

func NewApiTokenRepo(db *sql.DB) *ApiTokenRepo { return &ApiTokenRepo{DB: db} }

// Create inserts a token row for a service account and returns its ID.
func (r *ApiTokenRepo) Create(ctx context.Context, userID uint64, name, tokenHash, permissions string, expiresAt *time.Time) (uint64, error) {
	var exp interface{}
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO api_tokens (user_id, name, token_hash, permissions, is_active, expires_at) VALUES (?,?,?,?,1,?)",
		userID, name, tokenHash, permissions, exp)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetActiveByHash returns the token for a hash if it is active and not past
// its optional expiry; otherwise sql.ErrNoRows.
func (r *ApiTokenRepo) GetActiveByHash(ctx context.Context, tokenHash string) (model.ApiToken, error) {
	var t model.ApiToken
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, name, token_hash, permissions, is_active, expires_at, last_used_at, created_at
		 FROM api_tokens
		 WHERE token_hash=? AND is_active=1
		   AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())
		 LIMIT 1`,
		tokenHash).Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Permissions,
		&t.IsActive, &t.ExpiresAt, &t.LastUsedAt, &t.CreatedAt)
	return t, err
}

// TouchLastUsed records token activity. Failures here are non-fatal to the
// request, so callers may ignore the error.
func (r *ApiTokenRepo) TouchLastUsed(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE api_tokens SET last_used_at=UTC_TIMESTAMP() WHERE id=?", id)
	return err
}

// Revoke flips is_active; revocation takes effect on the very next request
// because authentication always goes through GetActiveByHash. Returns
// sql.ErrNoRows when no active token matched the id.
func (r *ApiTokenRepo) Revoke(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE api_tokens SET is_active=0 WHERE id=? AND is_active=1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
