package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
)

// VoteCooldown is the rolling window within which a voter may rate the same
// target at most once. Admin adjustments are exempt.
const VoteCooldown = 24 * time.Hour

// ReputationRepo owns the append-only reputation ledger and its cached
// per-user aggregate. The two are only ever written together, inside one
// transaction, so the aggregate is always the replayed sum of the ledger.
type ReputationRepo struct{ DB *sql.DB }

func NewReputationRepo(db *sql.DB) *ReputationRepo { return &ReputationRepo{DB: db} }

// Append inserts a ReputationEvent and folds its delta into the aggregate in
// a single transaction. The aggregate row is created on first use. For peer
// votes the cooldown is re-checked under the aggregate row lock, so two
// concurrent votes from the same voter cannot both land; the loser gets
// ErrVoteCooldown.
func (r *ReputationRepo) Append(ctx context.Context, ev model.ReputationEvent) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var voter interface{}
	if ev.VoterID != nil {
		voter = *ev.VoterID
	}

	if !ev.IsAdminAction && ev.VoterID != nil {
		// Take the target's aggregate row lock before checking the window,
		// creating the row first so there is always something to lock.
		if _, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO reputation_records (user_id, score, positive_votes, negative_votes)
			 VALUES (?,0,0,0)`,
			ev.TargetUserID); err != nil {
			return err
		}
		var locked uint64
		if err := tx.QueryRowContext(ctx,
			"SELECT user_id FROM reputation_records WHERE user_id=? FOR UPDATE",
			ev.TargetUserID).Scan(&locked); err != nil {
			return err
		}
		var last time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM reputation_events
			 WHERE voter_id=? AND target_user_id=? AND is_admin_action=0
			 ORDER BY created_at DESC LIMIT 1`,
			*ev.VoterID, ev.TargetUserID).Scan(&last)
		switch {
		case err == nil:
			if time.Now().UTC().Sub(last) < VoteCooldown {
				return ErrVoteCooldown
			}
		case err != sql.ErrNoRows:
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reputation_events (target_user_id, voter_id, delta, reason, is_admin_action)
		 VALUES (?,?,?,?,?)`,
		ev.TargetUserID, voter, ev.Delta, ev.Reason, ev.IsAdminAction); err != nil {
		return err
	}

	pos, neg := 0, 0
	if ev.Delta > 0 {
		pos = 1
	} else if ev.Delta < 0 {
		neg = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reputation_records (user_id, score, positive_votes, negative_votes)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   score = score + VALUES(score),
		   positive_votes = positive_votes + VALUES(positive_votes),
		   negative_votes = negative_votes + VALUES(negative_votes)`,
		ev.TargetUserID, ev.Delta, pos, neg); err != nil {
		return err
	}
	return tx.Commit()
}

// LastVoteAt returns when the voter last rated the target, or sql.ErrNoRows
// if never. Admin adjustments do not count toward the cooldown.
func (r *ReputationRepo) LastVoteAt(ctx context.Context, voterID, targetUserID uint64) (time.Time, error) {
	var t time.Time
	err := r.DB.QueryRowContext(ctx,
		`SELECT created_at FROM reputation_events
		 WHERE voter_id=? AND target_user_id=? AND is_admin_action=0
		 ORDER BY created_at DESC LIMIT 1`,
		voterID, targetUserID).Scan(&t)
	return t, err
}

// GetRecord returns the cached aggregate, or a zero record if the user has
// no reputation activity yet.
func (r *ReputationRepo) GetRecord(ctx context.Context, userID uint64) (model.ReputationRecord, error) {
	var rec model.ReputationRecord
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, score, positive_votes, negative_votes, updated_at
		 FROM reputation_records WHERE user_id=? LIMIT 1`,
		userID).Scan(&rec.UserID, &rec.Score, &rec.PositiveVotes, &rec.NegativeVotes, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.ReputationRecord{UserID: userID}, nil
	}
	return rec, err
}

// EventsForUser lists a user's ledger entries, newest first.
func (r *ReputationRepo) EventsForUser(ctx context.Context, userID uint64, limit int) ([]model.ReputationEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, target_user_id, voter_id, delta, reason, is_admin_action, created_at
		 FROM reputation_events WHERE target_user_id=?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReputationEvent
	for rows.Next() {
		var ev model.ReputationEvent
		if err := rows.Scan(&ev.ID, &ev.TargetUserID, &ev.VoterID, &ev.Delta,
			&ev.Reason, &ev.IsAdminAction, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
