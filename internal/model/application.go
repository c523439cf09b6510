package model

import "time"

// Application status values. Transitions are one-way and single-shot:
// pending -> approved or pending -> rejected, both terminal. A rejected
// applicant submits a brand-new application instead of re-opening the old one.
const (
	ApplicationPending  = "PENDING"
	ApplicationApproved = "APPROVED"
	ApplicationRejected = "REJECTED"
)

// Application mirrors the `applications` table: a prospective player's
// whitelist submission. The applicant has no account yet, so the row carries
// its own contact fields; UserID is filled in only when an approval
// provisions the account.
type Application struct {
	ID            uint64     // applications.id
	Nickname      string     // applications.nickname
	Email         string     // applications.email
	Discord       string     // applications.discord
	Motivation    string     // applications.motivation (50–800 chars)
	Plans         string     // applications.plans (30–600 chars)
	Status        string     // applications.status
	IP            string     // applications.ip (submitting address, for the abuse guard)
	UserID        *uint64    // applications.user_id (set on approval)
	ReviewerID    *uint64    // applications.reviewer_id (nullable until review)
	ReviewComment *string    // applications.review_comment (nullable)
	SubmittedAt   time.Time  // applications.submitted_at
	ReviewedAt    *time.Time // applications.reviewed_at (nullable)
}
