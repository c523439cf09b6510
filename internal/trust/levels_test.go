package trust

import (
	"errors"
	"reflect"
	"testing"
)

func TestCheckEligibility(t *testing.T) {
	cases := []struct {
		name     string
		current  int
		target   int
		metrics  Metrics
		eligible bool
		missing  []string
	}{
		{
			name:    "level 1 just needs a verified email",
			current: 0, target: 1,
			metrics:  Metrics{EmailVerified: true},
			eligible: true,
		},
		{
			name:    "level 1 blocked without verification",
			current: 0, target: 1,
			metrics: Metrics{},
			missing: []string{MissingEmailVerified},
		},
		{
			name:    "verified with 1600 minutes and reputation 12 qualifies for level 2",
			current: 1, target: 2,
			metrics:  Metrics{EmailVerified: true, PlaytimeMinutes: 1600, Reputation: 12},
			eligible: true,
		},
		{
			name:    "same numbers fall short of level 3",
			current: 2, target: 3,
			metrics: Metrics{EmailVerified: true, PlaytimeMinutes: 1600, Reputation: 12},
			missing: []string{MissingPlaytime, MissingReputation},
		},
		{
			name:    "level 1 user asking about level 3 gets a gap report",
			current: 1, target: 3,
			metrics: Metrics{EmailVerified: true, PlaytimeMinutes: 1600, Reputation: 12},
			missing: []string{MissingPlaytime, MissingReputation},
		},
		{
			name:    "exact thresholds count as met",
			current: 1, target: 2,
			metrics:  Metrics{EmailVerified: true, PlaytimeMinutes: 1500, Reputation: 10},
			eligible: true,
		},
		{
			name:    "one below a threshold is still missing",
			current: 1, target: 2,
			metrics: Metrics{EmailVerified: true, PlaytimeMinutes: 1499, Reputation: 10},
			missing: []string{MissingPlaytime},
		},
		{
			name:    "everything missing at once",
			current: 2, target: 3,
			metrics: Metrics{},
			missing: []string{MissingEmailVerified, MissingPlaytime, MissingReputation},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eligible, missing, err := CheckEligibility(tc.current, tc.target, tc.metrics)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if eligible != tc.eligible {
				t.Fatalf("eligible=%v, want %v", eligible, tc.eligible)
			}
			if !reflect.DeepEqual(missing, tc.missing) {
				t.Fatalf("missing=%v, want %v", missing, tc.missing)
			}
		})
	}
}

func TestCheckEligibility_InvalidLevels(t *testing.T) {
	// Eligibility only answers for levels above the current one and inside
	// the tier range; held levels and out-of-range levels are refused.
	strong := Metrics{EmailVerified: true, PlaytimeMinutes: 10000, Reputation: 100}
	cases := []struct {
		name    string
		current int
		target  int
	}{
		{"stay in place", 1, 1},
		{"go backwards", 2, 1},
		{"past the cap", 3, 4},
		{"below the floor", -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := CheckEligibility(tc.current, tc.target, strong)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestValidateTransition(t *testing.T) {
	// Applications move one step at a time, forward only, never past the cap.
	for _, tc := range []struct {
		name    string
		current int
		target  int
		ok      bool
	}{
		{"next level up", 1, 2, true},
		{"final step to the cap", 2, 3, true},
		{"skip a level", 0, 2, false},
		{"stay in place", 1, 1, false},
		{"go backwards", 2, 1, false},
		{"past the cap", 3, 4, false},
		{"below the floor", -1, 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.current, tc.target)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestRequirementsFor(t *testing.T) {
	r, ok := RequirementsFor(2)
	if !ok {
		t.Fatal("expected requirements for level 2")
	}
	if r.PlaytimeMinutes != 1500 || r.Reputation != 10 || !r.EmailVerified {
		t.Fatalf("unexpected level 2 requirements: %+v", r)
	}
	if _, ok := RequirementsFor(0); ok {
		t.Fatal("level 0 has no application requirements")
	}
}
