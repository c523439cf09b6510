package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
)

// TrustApplicationRepo manages trust level advancement requests.
type TrustApplicationRepo struct{ DB *sql.DB }

func NewTrustApplicationRepo(db *sql.DB) *TrustApplicationRepo {
	return &TrustApplicationRepo{DB: db}
}

const trustAppColumns = `id, user_id, current_level, requested_level, motivation,
	snap_playtime_minutes, snap_reputation, snap_email_verified,
	status, reviewer_id, review_comment, submitted_at, reviewed_at`

func scanTrustApp(scan func(dest ...interface{}) error) (model.TrustLevelApplication, error) {
	var a model.TrustLevelApplication
	err := scan(&a.ID, &a.UserID, &a.CurrentLevel, &a.RequestedLevel, &a.Motivation,
		&a.SnapPlaytime, &a.SnapReputation, &a.SnapEmailOK,
		&a.Status, &a.ReviewerID, &a.ReviewComment, &a.SubmittedAt, &a.ReviewedAt)
	return a, err
}

// Create inserts a pending application with the metrics snapshot, enforcing
// the single-pending-per-user rule inside one transaction.
func (r *TrustApplicationRepo) Create(ctx context.Context, a *model.TrustLevelApplication) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trust_level_applications WHERE user_id=? AND status='PENDING' FOR UPDATE",
		a.UserID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicatePending
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO trust_level_applications
		 (user_id, current_level, requested_level, motivation,
		  snap_playtime_minutes, snap_reputation, snap_email_verified, status)
		 VALUES (?,?,?,?,?,?,?,'PENDING')`,
		a.UserID, a.CurrentLevel, a.RequestedLevel, a.Motivation,
		a.SnapPlaytime, a.SnapReputation, a.SnapEmailOK)
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

// GetByID fetches one application.
func (r *TrustApplicationRepo) GetByID(ctx context.Context, id uint64) (model.TrustLevelApplication, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+trustAppColumns+" FROM trust_level_applications WHERE id=? LIMIT 1", id)
	return scanTrustApp(row.Scan)
}

// ListPending returns the review queue, oldest first.
func (r *TrustApplicationRepo) ListPending(ctx context.Context, limit int) ([]model.TrustLevelApplication, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+trustAppColumns+" FROM trust_level_applications WHERE status='PENDING' ORDER BY submitted_at ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TrustLevelApplication
	for rows.Next() {
		a, err := scanTrustApp(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Review decides a pending application. Approval writes the user's new trust
// level in the same transaction as the status flip; this is the only
// normal-path way trust_level advances. The row lock prevents two reviewers
// from deciding the same application.
func (r *TrustApplicationRepo) Review(ctx context.Context, appID, reviewerID uint64, approve bool, comment string) (model.TrustLevelApplication, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.TrustLevelApplication{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+trustAppColumns+" FROM trust_level_applications WHERE id=? LIMIT 1 FOR UPDATE", appID)
	a, err := scanTrustApp(row.Scan)
	if err != nil {
		return model.TrustLevelApplication{}, err
	}
	if a.Status != model.ApplicationPending {
		return model.TrustLevelApplication{}, ErrAlreadyReviewed
	}

	status := model.ApplicationRejected
	if approve {
		status = model.ApplicationApproved
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET trust_level=? WHERE id=?",
			a.RequestedLevel, a.UserID); err != nil {
			return model.TrustLevelApplication{}, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE trust_level_applications
		 SET status=?, reviewer_id=?, review_comment=?, reviewed_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		status, reviewerID, comment, appID); err != nil {
		return model.TrustLevelApplication{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.TrustLevelApplication{}, err
	}
	a.Status = status
	a.ReviewerID = &reviewerID
	return a, nil
}
