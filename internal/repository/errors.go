// Package repository implements data access over database/sql. This file
// defines the sentinel error values shared across repositories so that
// handlers can map failure modes onto HTTP statuses without inspecting SQL
// errors. Lookups that find nothing return sql.ErrNoRows directly.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own or lack the role for. Handlers translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrNicknameExists / ErrEmailExists surface unique-constraint violations on
// the users table in a form handlers can act on.
var (
	ErrNicknameExists = errors.New("nickname already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// ErrDuplicateActive is returned when a whitelist application is submitted
// while a pending or approved one already exists for the same email or
// nickname.
var ErrDuplicateActive = errors.New("active application already exists")

// ErrDuplicatePending is returned when a user already has a pending trust
// level application.
var ErrDuplicatePending = errors.New("pending trust level application already exists")

// ErrAlreadyReviewed is returned when reviewing an application that is no
// longer pending. Review decisions are terminal and single-shot.
var ErrAlreadyReviewed = errors.New("application already reviewed")

// Game login token verification failures. ErrTokenUsed specifically marks a
// token that was already consumed once; it never authenticates again.
var (
	ErrTokenUsed    = errors.New("token already used")
	ErrTokenExpired = errors.New("token expired")
)

// ErrBanned is returned when the owning user of an otherwise valid credential
// is banned.
var ErrBanned = errors.New("user is banned")

// ErrVoteCooldown is returned when a voter already rated the same target
// within the rolling cooldown window. Checked inside Append's transaction so
// concurrent votes cannot both slip past it.
var ErrVoteCooldown = errors.New("vote cooldown active")
