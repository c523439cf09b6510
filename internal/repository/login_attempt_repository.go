package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// LoginAttemptRepo writes and queries the append-only login attempt log.
// The log backs the credential rate limiter (5 failures per email or per IP
// inside a rolling hour) and serves as the login audit trail. Rows are never
// updated or deleted by the application.
type LoginAttemptRepo struct{ DB *sql.DB }

func NewLoginAttemptRepo(db *sql.DB) *LoginAttemptRepo { return &LoginAttemptRepo{DB: db} }

// Record appends one attempt, success or failure.
func (r *LoginAttemptRepo) Record(ctx context.Context, email, ip string, success bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO login_attempts (email, ip, success) VALUES (?,?,?)",
		email, ip, success)
	return err
}

// CountRecentFailures returns the number of failed attempts against the
// email or from the IP within the window. Exact-count races at the threshold
// are acceptable; this is an abuse deterrent, not a hard security boundary.
func (r *LoginAttemptRepo) CountRecentFailures(ctx context.Context, email, ip string, window time.Duration) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	since := time.Now().UTC().Add(-window)
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_attempts
		 WHERE success=0 AND created_at > ? AND (email=? OR ip=?)`,
		since, email, ip).Scan(&n)
	return n, err
}
