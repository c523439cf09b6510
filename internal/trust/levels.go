// Package trust implements the trust-level progression rules. A user's tier
// (0 Newcomer, 1 Verified-Email, 2 Trusted, 3 Veteran) only moves forward,
// one level at a time, and only through a reviewed application; the functions
// here decide whether a user currently qualifies to apply.
package trust

import "errors"

// Level bounds.
const (
	MinLevel = 0
	MaxLevel = 3
)

// Requirements for one target level. A zero threshold means the requirement
// does not apply at that level.
type Requirements struct {
	EmailVerified   bool
	PlaytimeMinutes int
	Reputation      int
}

// requirements indexed by target level. Every tier >= 1 requires a verified
// email; tiers 2 and 3 add playtime and reputation floors.
var requirements = map[int]Requirements{
	1: {EmailVerified: true},
	2: {EmailVerified: true, PlaytimeMinutes: 1500, Reputation: 10},
	3: {EmailVerified: true, PlaytimeMinutes: 3000, Reputation: 20},
}

// Missing-requirement identifiers reported by CheckEligibility.
const (
	MissingEmailVerified = "email_verified"
	MissingPlaytime      = "playtime_minutes"
	MissingReputation    = "reputation"
)

// ErrInvalidTransition is returned for a level outside the progression rules:
// an out-of-range level, a level the user already holds, or, when applying,
// anything other than exactly one step up.
var ErrInvalidTransition = errors.New("invalid trust level transition")

// Metrics is the snapshot of a user's qualifying numbers used for an
// eligibility check.
type Metrics struct {
	EmailVerified   bool
	PlaytimeMinutes int
	Reputation      int
}

// RequirementsFor returns the thresholds for the given target level.
func RequirementsFor(target int) (Requirements, bool) {
	r, ok := requirements[target]
	return r, ok
}

// ValidateTransition enforces the application rule: a user applies for
// exactly the next level, never skipping tiers and never re-applying for a
// level already held.
func ValidateTransition(current, target int) error {
	if target != current+1 || target > MaxLevel || current < MinLevel {
		return ErrInvalidTransition
	}
	return nil
}

// CheckEligibility is a pure read: it reports whether the metrics satisfy the
// target level's thresholds and, when they do not, which requirements are
// unmet. Any level above the current one can be asked about, so a Newcomer
// can see how far they are from Veteran; ErrInvalidTransition is reserved
// for levels at or below the current tier and levels out of range.
func CheckEligibility(current, target int, m Metrics) (bool, []string, error) {
	if target <= current || target > MaxLevel || current < MinLevel {
		return false, nil, ErrInvalidTransition
	}
	req := requirements[target]
	var missing []string
	if req.EmailVerified && !m.EmailVerified {
		missing = append(missing, MissingEmailVerified)
	}
	if m.PlaytimeMinutes < req.PlaytimeMinutes {
		missing = append(missing, MissingPlaytime)
	}
	if m.Reputation < req.Reputation {
		missing = append(missing, MissingReputation)
	}
	return len(missing) == 0, missing, nil
}
