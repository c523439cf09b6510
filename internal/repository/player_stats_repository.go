package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/craft-community/internal/model"
)

// PlayerStatsRepo manages the per-user gameplay counters pushed by the
// server plugin. The row is seeded at account provisioning time, so updates
// can assume it exists; AddDeltas still upserts defensively because stats
// calls arrive from an external process.
type PlayerStatsRepo struct{ DB *sql.DB }

func NewPlayerStatsRepo(db *sql.DB) *PlayerStatsRepo { return &PlayerStatsRepo{DB: db} }

// Get returns the stats row for a user, or sql.ErrNoRows.
func (r *PlayerStatsRepo) Get(ctx context.Context, userID uint64) (model.PlayerStats, error) {
	var s model.PlayerStats
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, playtime_minutes, kills, deaths, updated_at
		 FROM player_stats WHERE user_id=? LIMIT 1`,
		userID).Scan(&s.UserID, &s.PlaytimeMinutes, &s.Kills, &s.Deaths, &s.UpdatedAt)
	return s, err
}

// AddDeltas accumulates stat increments reported by the plugin. Playtime is
// whole minutes; negative inputs are rejected at the handler layer.
func (r *PlayerStatsRepo) AddDeltas(ctx context.Context, userID uint64, playtimeMin, kills, deaths int) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO player_stats (user_id, playtime_minutes, kills, deaths)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   playtime_minutes = playtime_minutes + VALUES(playtime_minutes),
		   kills = kills + VALUES(kills),
		   deaths = deaths + VALUES(deaths)`,
		userID, playtimeMin, kills, deaths)
	return err
}
