package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
)

// ApplicationRepo manages whitelist applications and the transactional
// approval flow that provisions user accounts.
type ApplicationRepo struct{ DB *sql.DB }

func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{DB: db} }

const applicationColumns = `id, nickname, email, discord, motivation, plans,
	status, ip, user_id, reviewer_id, review_comment, submitted_at, reviewed_at`

func scanApplication(scan func(dest ...interface{}) error) (model.Application, error) {
	var a model.Application
	err := scan(&a.ID, &a.Nickname, &a.Email, &a.Discord, &a.Motivation, &a.Plans,
		&a.Status, &a.IP, &a.UserID, &a.ReviewerID, &a.ReviewComment,
		&a.SubmittedAt, &a.ReviewedAt)
	return a, err
}

// Create inserts a pending application after checking the duplicate-active
// rule: at most one pending or approved application may exist per email or
// nickname. The check and insert run in one transaction so two concurrent
// submissions cannot both pass the check.
func (r *ApplicationRepo) Create(ctx context.Context, a *model.Application) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications
		 WHERE status IN ('PENDING','APPROVED') AND (email=? OR LOWER(nickname)=LOWER(?)) FOR UPDATE`,
		a.Email, a.Nickname).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateActive
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO applications (nickname, email, discord, motivation, plans, status, ip)
		 VALUES (?,?,?,?,?,'PENDING',?)`,
		a.Nickname, a.Email, a.Discord, a.Motivation, a.Plans, a.IP)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	a.ID = uint64(id)
	a.Status = model.ApplicationPending
	a.SubmittedAt = time.Now().UTC()
	return nil
}

// CountRecentByIP returns how many applications the IP filed inside the
// window. Backs the 10-per-24h abuse guard; small races at the boundary are
// acceptable.
func (r *ApplicationRepo) CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	since := time.Now().UTC().Add(-window)
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM applications WHERE ip=? AND submitted_at > ?",
		ip, since).Scan(&n)
	return n, err
}

// GetByID fetches one application.
func (r *ApplicationRepo) GetByID(ctx context.Context, id uint64) (model.Application, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE id=? LIMIT 1", id)
	return scanApplication(row.Scan)
}

// LatestByEmail returns the most recent application for an email. Used by
// the anonymous status lookup so applicants without accounts can check on
// their submission.
func (r *ApplicationRepo) LatestByEmail(ctx context.Context, email string) (model.Application, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE email=? ORDER BY submitted_at DESC LIMIT 1",
		email)
	return scanApplication(row.Scan)
}

// ListPending returns pending applications, oldest first, for the review
// queue.
func (r *ApplicationRepo) ListPending(ctx context.Context, limit int) ([]model.Application, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE status='PENDING' ORDER BY submitted_at ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Application
	for rows.Next() {
		a, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Approve marks the application approved, creates the user with the given
// bcrypt hash, seeds a zeroed stats row and an empty reputation record, and
// links the application to the new account, all in one transaction so a
// partial failure never leaves an approved application without a usable
// account. The row lock on the application serializes competing reviews.
func (r *ApplicationRepo) Approve(ctx context.Context, appID, reviewerID uint64, comment, passwordHash string) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status   string
		nickname string
		email    string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT status, nickname, email FROM applications WHERE id=? LIMIT 1 FOR UPDATE",
		appID).Scan(&status, &nickname, &email)
	if err != nil {
		return 0, err
	}
	if status != model.ApplicationPending {
		return 0, ErrAlreadyReviewed
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (nickname, email, password_hash, role, trust_level) VALUES (?,?,?,?,0)",
		nickname, email, passwordHash, model.RoleUser)
	if err != nil {
		return 0, mapUserDupErr(err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	userID := uint64(newID)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO player_stats (user_id, playtime_minutes, kills, deaths) VALUES (?,0,0,0)",
		userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO reputation_records (user_id, score, positive_votes, negative_votes) VALUES (?,0,0,0)",
		userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE applications
		 SET status='APPROVED', user_id=?, reviewer_id=?, review_comment=?, reviewed_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		userID, reviewerID, comment, appID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

// Reject records a terminal rejection. The conditional UPDATE doubles as the
// already-reviewed guard: zero affected rows means the application was not
// pending (or does not exist).
func (r *ApplicationRepo) Reject(ctx context.Context, appID, reviewerID uint64, comment string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE applications
		 SET status='REJECTED', reviewer_id=?, review_comment=?, reviewed_at=UTC_TIMESTAMP()
		 WHERE id=? AND status='PENDING'`,
		reviewerID, comment, appID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, appID); err != nil {
			return err // sql.ErrNoRows -> 404
		}
		return ErrAlreadyReviewed
	}
	return nil
}

// HasApprovedForUser reports whether the user's account came out of an
// approved application, i.e. the user has server access. Gates game login
// token issuance.
func (r *ApplicationRepo) HasApprovedForUser(ctx context.Context, userID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM applications WHERE user_id=? AND status='APPROVED'",
		userID).Scan(&n)
	return n > 0, err
}
