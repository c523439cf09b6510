package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
)

// GameTokenRepo manages one-time game login tokens. All timestamp
// comparisons use the database clock in UTC.
type GameTokenRepo struct{ DB *sql.DB }

func NewGameTokenRepo(db *sql.DB) *GameTokenRepo { return &GameTokenRepo{DB: db} }

// Issue stores a new token hash for the user and marks any prior unused,
// unexpired token as used, inside a single transaction. The FOR UPDATE lock
// on the user's live rows serializes concurrent issuance so two
// simultaneously-valid tokens can never exist.
func (r *GameTokenRepo) Issue(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock live rows for this user before touching them.
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM game_login_tokens
		 WHERE user_id=? AND is_used=0 AND expires_at > UTC_TIMESTAMP() FOR UPDATE`,
		userID)
	if err != nil {
		return err
	}
	var liveIDs []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		liveIDs = append(liveIDs, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	if len(liveIDs) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE game_login_tokens SET is_used=1
			 WHERE user_id=? AND is_used=0 AND expires_at > UTC_TIMESTAMP()`,
			userID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO game_login_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// Peek looks up a token by hash and validates it without consuming it, so
// callers can run identity checks first; a failed check must not burn the
// owner's one-time token. Uses the same failure sentinels as Consume.
func (r *GameTokenRepo) Peek(ctx context.Context, tokenHash string) (model.GameLoginToken, error) {
	var t model.GameLoginToken
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, is_used, created_at
		 FROM game_login_tokens WHERE token_hash=? LIMIT 1`,
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsUsed, &t.CreatedAt)
	if err != nil {
		return model.GameLoginToken{}, err
	}
	if t.IsUsed {
		return model.GameLoginToken{}, ErrTokenUsed
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return model.GameLoginToken{}, ErrTokenExpired
	}
	return t, nil
}

// Consume looks up a token by hash, validates it and marks it used, all in
// one transaction with a row lock so a token can be consumed at most once
// even under concurrent verification calls. It distinguishes the failure
// modes so the caller can report TokenAlreadyUsed versus expired/not-found.
func (r *GameTokenRepo) Consume(ctx context.Context, tokenHash string) (model.GameLoginToken, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.GameLoginToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var t model.GameLoginToken
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, is_used, created_at
		 FROM game_login_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE`,
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsUsed, &t.CreatedAt)
	if err != nil {
		return model.GameLoginToken{}, err
	}
	if t.IsUsed {
		return model.GameLoginToken{}, ErrTokenUsed
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return model.GameLoginToken{}, ErrTokenExpired
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE game_login_tokens SET is_used=1 WHERE id=?", t.ID); err != nil {
		return model.GameLoginToken{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.GameLoginToken{}, err
	}
	t.IsUsed = true
	return t, nil
}
