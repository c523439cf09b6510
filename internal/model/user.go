package model

import "time"

// Role names stored in users.role. Role is an administrative axis and is
// independent of the trust level: an admin does not implicitly hold trust
// level 3.
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// User represents a registered community member as stored in the `users`
// table. Accounts are created only by approving a whitelist application
// (or by direct admin action) and are never hard-deleted; bans soft-disable
// the account instead.
//
// Fields:
//  ID              – primary key identifier of the user.
//  Nickname        – unique in-game name (3–16 chars, alphanumeric + underscore).
//  Email           – unique email address.
//  PasswordHash    – bcrypt hashed password.
//  Role            – USER, MODERATOR or ADMIN.
//  TrustLevel      – access tier 0–3, advanced only through reviewed applications.
//  IsEmailVerified – whether the email address has been confirmed.
//  IsBanned        – soft-disable flag; BanReason/BanExpiresAt qualify it.
//  LastLoginAt     – timestamp of the most recent successful login (nullable).
//  CreatedAt       – immutable registration timestamp.
type User struct {
	ID              uint64     // users.id
	Nickname        string     // users.nickname
	Email           string     // users.email
	PasswordHash    string     // users.password_hash
	Role            string     // users.role
	TrustLevel      int        // users.trust_level (0..3)
	IsEmailVerified bool       // users.is_email_verified
	IsBanned        bool       // users.is_banned
	BanReason       *string    // users.ban_reason (nullable)
	BanExpiresAt    *time.Time // users.ban_expires_at (nullable)
	LastLoginAt     *time.Time // users.last_login_at (nullable)
	CreatedAt       time.Time  // users.created_at
	UpdatedAt       time.Time  // users.updated_at
}

// BanActive reports whether the ban currently applies. A ban with an expiry
// in the past no longer blocks the account even while the flag is still set.
func (u *User) BanActive(now time.Time) bool {
	if !u.IsBanned {
		return false
	}
	if u.BanExpiresAt != nil && now.After(*u.BanExpiresAt) {
		return false
	}
	return true
}
