package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/craft-community/internal/model"
)

// GameSessionRepo manages the 7-day bindings between users and verified
// in-game player identities.
type GameSessionRepo struct{ DB *sql.DB }

func NewGameSessionRepo(db *sql.DB) *GameSessionRepo { return &GameSessionRepo{DB: db} }

// Create establishes a new active game session for (user, playerUUID) and
// deactivates any prior active session for that pair in the same
// transaction, keeping the at-most-one-active invariant.
func (r *GameSessionRepo) Create(ctx context.Context, s model.GameSession) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE game_sessions SET is_active=0 WHERE user_id=? AND player_uuid=? AND is_active=1",
		s.UserID, s.PlayerUUID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_sessions (user_id, player_uuid, nickname, ip, expires_at, is_active, last_login_at)
		 VALUES (?,?,?,?,?,1,UTC_TIMESTAMP())`,
		s.UserID, s.PlayerUUID, s.Nickname, s.IP, s.ExpiresAt.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// CheckActive returns the session matching nickname, player UUID and IP
// exactly, provided it is active and unexpired; otherwise sql.ErrNoRows.
// The IP pin is a lightweight anti-hijack measure: a session only validates
// from the address it was created from.
func (r *GameSessionRepo) CheckActive(ctx context.Context, nickname, playerUUID, ip string) (model.GameSession, error) {
	var s model.GameSession
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, player_uuid, nickname, ip, expires_at, is_active, last_login_at, created_at
		 FROM game_sessions
		 WHERE LOWER(nickname)=LOWER(?) AND player_uuid=? AND ip=?
		   AND is_active=1 AND expires_at > UTC_TIMESTAMP()
		 LIMIT 1`,
		nickname, playerUUID, ip).Scan(&s.ID, &s.UserID, &s.PlayerUUID, &s.Nickname,
		&s.IP, &s.ExpiresAt, &s.IsActive, &s.LastLoginAt, &s.CreatedAt)
	return s, err
}

// TouchLastLogin updates the last_login_at marker after a successful check.
func (r *GameSessionRepo) TouchLastLogin(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE game_sessions SET last_login_at=UTC_TIMESTAMP() WHERE id=?", id)
	return err
}

// DeactivateExpired clears out sessions past their expiry. Invoked
// opportunistically; correctness never depends on it because CheckActive
// filters on expires_at anyway.
func (r *GameSessionRepo) DeactivateExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE game_sessions SET is_active=0 WHERE is_active=1 AND expires_at <= UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
