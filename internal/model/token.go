package model

import "time"

// Session models a row in the `sessions` table: one authenticated browser.
// Only the SHA-256 hash of the opaque session token is stored. A session is
// valid while IsActive is true and ExpiresAt lies in the future; logout,
// password change and bans flip IsActive.
type Session struct {
	ID        uint64    // sessions.id
	UserID    uint64    // sessions.user_id
	TokenHash string    // sessions.token_hash (SHA-256 hex)
	ExpiresAt time.Time // sessions.expires_at
	IsActive  bool      // sessions.is_active
	IP        string    // sessions.ip
	UserAgent string    // sessions.user_agent
	CreatedAt time.Time // sessions.created_at
}

// GameLoginToken is a one-time, short-lived credential a logged-in user
// generates to prove identity to the in-game client. Once consumed it can
// never authenticate again, regardless of expiry. At most one live token
// exists per user; issuing a new one marks prior unused tokens as used.
type GameLoginToken struct {
	ID        uint64    // game_login_tokens.id
	UserID    uint64    // game_login_tokens.user_id
	TokenHash string    // game_login_tokens.token_hash
	ExpiresAt time.Time // game_login_tokens.expires_at
	IsUsed    bool      // game_login_tokens.is_used
	CreatedAt time.Time // game_login_tokens.created_at
}

// GameSession is the longer-lived binding between a verified in-game player
// (UUID + nickname) and a User, established after a successful game login
// token verification. It is pinned to the IP it was created from; checking
// a session requires an exact nickname+uuid+ip match.
type GameSession struct {
	ID          uint64    // game_sessions.id
	UserID      uint64    // game_sessions.user_id
	PlayerUUID  string    // game_sessions.player_uuid (canonical lowercase)
	Nickname    string    // game_sessions.nickname
	IP          string    // game_sessions.ip
	ExpiresAt   time.Time // game_sessions.expires_at
	IsActive    bool      // game_sessions.is_active
	LastLoginAt time.Time // game_sessions.last_login_at
	CreatedAt   time.Time // game_sessions.created_at
}

// ApiToken is the long-lived credential held by the external game-server
// process. Only a SHA-256 hash of the bearer secret is persisted; the secret
// itself is shown once at creation and never logged. Revocation is an
// immediate is_active flip.
type ApiToken struct {
	ID          uint64     // api_tokens.id
	UserID      uint64     // api_tokens.user_id (service account the token acts as)
	Name        string     // api_tokens.name
	TokenHash   string     // api_tokens.token_hash
	Permissions string     // api_tokens.permissions (comma separated)
	IsActive    bool       // api_tokens.is_active
	ExpiresAt   *time.Time // api_tokens.expires_at (nullable; nil = non-expiring)
	LastUsedAt  *time.Time // api_tokens.last_used_at (nullable)
	CreatedAt   time.Time  // api_tokens.created_at
}

// LoginAttempt is one row of the append-only login attempt log. The log
// doubles as the backing store for the login rate limiter and as an audit
// trail; rows are never updated or deleted by the application.
type LoginAttempt struct {
	ID        uint64    // login_attempts.id
	Email     string    // login_attempts.email (normalized, as presented)
	IP        string    // login_attempts.ip
	Success   bool      // login_attempts.success
	CreatedAt time.Time // login_attempts.created_at
}
