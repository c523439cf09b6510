package model

import "time"

// TrustLevelApplication mirrors `trust_level_applications`: a user-initiated
// request to advance exactly one trust tier. The qualifying metrics are
// snapshotted at submission time so a pending review is judged against the
// numbers the user applied with.
type TrustLevelApplication struct {
	ID             uint64     // trust_level_applications.id
	UserID         uint64     // trust_level_applications.user_id
	CurrentLevel   int        // trust_level_applications.current_level
	RequestedLevel int        // trust_level_applications.requested_level (always current+1)
	Motivation     string     // trust_level_applications.motivation
	SnapPlaytime   int        // trust_level_applications.snap_playtime_minutes
	SnapReputation int        // trust_level_applications.snap_reputation
	SnapEmailOK    bool       // trust_level_applications.snap_email_verified
	Status         string     // trust_level_applications.status (shares Application* constants)
	ReviewerID     *uint64    // trust_level_applications.reviewer_id (nullable)
	ReviewComment  *string    // trust_level_applications.review_comment (nullable)
	SubmittedAt    time.Time  // trust_level_applications.submitted_at
	ReviewedAt     *time.Time // trust_level_applications.reviewed_at (nullable)
}
