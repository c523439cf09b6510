// Interfaces over the repository layer as consumed by the handlers. The
// concrete types in internal/repository satisfy them; tests substitute
// func-field mocks.
package handler

import (
	"context"
	"time"

	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/queue"
)

type UserStore interface {
	Create(ctx context.Context, nickname, email, passwordHash, role string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByNickname(ctx context.Context, nickname string) (model.User, error)
	TouchLastLogin(ctx context.Context, id uint64) error
	SetPassword(ctx context.Context, id uint64, password string, cost int) error
	SetVerifyCode(ctx context.Context, id uint64, codeHash string) error
	VerifyEmailByCode(ctx context.Context, id uint64, codeHash string) (bool, error)
	SetTrustLevel(ctx context.Context, id uint64, level int) error
	SetBan(ctx context.Context, id uint64, banned bool, reason string, expiresAt *time.Time) error
}

type SessionStore interface {
	Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error
	GetActiveByHash(ctx context.Context, tokenHash string) (model.Session, error)
	Deactivate(ctx context.Context, tokenHash string) error
	DeactivateAllForUser(ctx context.Context, userID uint64) error
}

type LoginAttemptStore interface {
	Record(ctx context.Context, email, ip string, success bool) error
	CountRecentFailures(ctx context.Context, email, ip string, window time.Duration) (int, error)
}

type GameTokenStore interface {
	Issue(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Peek(ctx context.Context, tokenHash string) (model.GameLoginToken, error)
	Consume(ctx context.Context, tokenHash string) (model.GameLoginToken, error)
}

type GameSessionStore interface {
	Create(ctx context.Context, s model.GameSession) error
	CheckActive(ctx context.Context, nickname, playerUUID, ip string) (model.GameSession, error)
	TouchLastLogin(ctx context.Context, id uint64) error
}

type ApiTokenStore interface {
	Create(ctx context.Context, userID uint64, name, tokenHash, permissions string, expiresAt *time.Time) (uint64, error)
	Revoke(ctx context.Context, id uint64) error
}

type ApplicationStore interface {
	Create(ctx context.Context, a *model.Application) error
	CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error)
	GetByID(ctx context.Context, id uint64) (model.Application, error)
	LatestByEmail(ctx context.Context, email string) (model.Application, error)
	ListPending(ctx context.Context, limit int) ([]model.Application, error)
	Approve(ctx context.Context, appID, reviewerID uint64, comment, passwordHash string) (uint64, error)
	Reject(ctx context.Context, appID, reviewerID uint64, comment string) error
	HasApprovedForUser(ctx context.Context, userID uint64) (bool, error)
}

type TrustApplicationStore interface {
	Create(ctx context.Context, a *model.TrustLevelApplication) error
	GetByID(ctx context.Context, id uint64) (model.TrustLevelApplication, error)
	ListPending(ctx context.Context, limit int) ([]model.TrustLevelApplication, error)
	Review(ctx context.Context, appID, reviewerID uint64, approve bool, comment string) (model.TrustLevelApplication, error)
}

type ReputationStore interface {
	Append(ctx context.Context, ev model.ReputationEvent) error
	LastVoteAt(ctx context.Context, voterID, targetUserID uint64) (time.Time, error)
	GetRecord(ctx context.Context, userID uint64) (model.ReputationRecord, error)
	EventsForUser(ctx context.Context, userID uint64, limit int) ([]model.ReputationEvent, error)
}

type PlayerStatsStore interface {
	Get(ctx context.Context, userID uint64) (model.PlayerStats, error)
	AddDeltas(ctx context.Context, userID uint64, playtimeMin, kills, deaths int) error
}

// EventPublisher pushes moderation events onto the broker. Publish failures
// are logged by the implementation and ignored by handlers.
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, event queue.ModerationEvent) error
}

// MailSender is the fire-and-forget mail surface used by review and
// verification flows.
type MailSender interface {
	SendApproval(email, nickname, tempPassword string)
	SendRejection(email, nickname, comment string)
	SendVerifyCode(email, code string)
}
