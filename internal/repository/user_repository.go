package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, nickname, email, password_hash, role, trust_level,
	is_email_verified, is_banned, ban_reason, ban_expires_at, last_login_at,
	created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Nickname, &u.Email, &u.PasswordHash, &u.Role,
		&u.TrustLevel, &u.IsEmailVerified, &u.IsBanned, &u.BanReason,
		&u.BanExpiresAt, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a user with an already-bcrypt-hashed password and returns
// its ID. Duplicate email/nickname violations are mapped onto the package
// sentinels via the MySQL 1062 error code.
func (r *UserRepo) Create(ctx context.Context, nickname, email, passwordHash, role string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (nickname, email, password_hash, role, trust_level) VALUES (?,?,?,?,0)",
		nickname, email, passwordHash, role)
	if err != nil {
		return 0, mapUserDupErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func mapUserDupErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "1062") {
		if strings.Contains(msg, "nickname") {
			return ErrNicknameExists
		}
		return ErrEmailExists
	}
	return err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByNickname fetches a user by nickname, case-insensitively (the column
// uses a case-insensitive collation; LOWER comparison keeps the behavior
// explicit).
func (r *UserRepo) GetByNickname(ctx context.Context, nickname string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(nickname)=LOWER(?) LIMIT 1", nickname))
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=UTC_TIMESTAMP() WHERE id=?", id)
	return err
}

// SetPassword replaces the stored hash. Callers revoke all sessions after a
// password change.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// SetVerifyCode stores the hash of a freshly issued email verification code.
// Issuing a new code replaces any previous one.
func (r *UserRepo) SetVerifyCode(ctx context.Context, id uint64, codeHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET verify_code_hash=? WHERE id=?", codeHash, id)
	return err
}

// VerifyEmailByCode marks the email verified when the presented code matches
// the stored hash, clearing the code so it is single-use. Returns false when
// the code does not match.
func (r *UserRepo) VerifyEmailByCode(ctx context.Context, id uint64, codeHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_email_verified=1, verify_code_hash=NULL
		 WHERE id=? AND verify_code_hash=?`, id, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetTrustLevel writes the trust level directly. The admin override escape
// hatch; the normal path goes through the trust level review transaction.
func (r *UserRepo) SetTrustLevel(ctx context.Context, id uint64, level int) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET trust_level=? WHERE id=?", level, id)
	return err
}

// SetBan flips the ban flag with an optional reason and expiry. Unbanning
// clears both.
func (r *UserRepo) SetBan(ctx context.Context, id uint64, banned bool, reason string, expiresAt *time.Time) error {
	if !banned {
		_, err := r.DB.ExecContext(ctx,
			"UPDATE users SET is_banned=0, ban_reason=NULL, ban_expires_at=NULL WHERE id=?", id)
		return err
	}
	var exp interface{}
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_banned=1, ban_reason=?, ban_expires_at=? WHERE id=?",
		reason, exp, id)
	return err
}
