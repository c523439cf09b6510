package model

import "time"

// ReputationRecord is the per-user aggregate in `reputation_records`. The
// score is a cache: it must always equal the sum of the signed deltas in the
// user's ReputationEvent ledger, which is why both rows are written in one
// transaction.
type ReputationRecord struct {
	UserID        uint64    // reputation_records.user_id
	Score         int       // reputation_records.score
	PositiveVotes int       // reputation_records.positive_votes
	NegativeVotes int       // reputation_records.negative_votes
	UpdatedAt     time.Time // reputation_records.updated_at
}

// ReputationEvent is one row of the append-only reputation ledger. VoterID
// is nil for admin and system adjustments.
type ReputationEvent struct {
	ID            uint64    // reputation_events.id
	TargetUserID  uint64    // reputation_events.target_user_id
	VoterID       *uint64   // reputation_events.voter_id (nullable)
	Delta         int       // reputation_events.delta (signed)
	Reason        string    // reputation_events.reason
	IsAdminAction bool      // reputation_events.is_admin_action
	CreatedAt     time.Time // reputation_events.created_at
}

// PlayerStats mirrors `player_stats`, the per-user gameplay counters pushed
// by the server plugin. Playtime is tracked in whole minutes.
type PlayerStats struct {
	UserID          uint64    // player_stats.user_id
	PlaytimeMinutes int       // player_stats.playtime_minutes
	Kills           int       // player_stats.kills
	Deaths          int       // player_stats.deaths
	UpdatedAt       time.Time // player_stats.updated_at
}
