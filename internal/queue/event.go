// Package queue defines the message payloads exchanged over the broker and
// the background consumer that turns them into the moderation audit log.
package queue

// Moderation event kinds published to the moderation queue.
const (
	ApplicationApproved = "application.approved"
	ApplicationRejected = "application.rejected"
	TrustLevelPromoted  = "trustlevel.promoted"
	UserBanned          = "user.banned"
)

// ModerationEvent is published whenever a moderator or admin decides
// something: application reviews, trust level promotions and bans. It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type ModerationEvent struct {
	Kind       string `json:"kind"`
	SubjectID  uint64 `json:"subject_id"`            // application / trust application / user id
	UserID     uint64 `json:"user_id,omitempty"`     // affected user, when one exists
	Nickname   string `json:"nickname,omitempty"`    // affected user's in-game name
	ReviewerID uint64 `json:"reviewer_id,omitempty"` // deciding moderator/admin
	Detail     string `json:"detail,omitempty"`      // review comment, ban reason, new level
	OccurredAt string `json:"occurred_at"`           // RFC3339 UTC
}
