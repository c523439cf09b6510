package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/model"
	"github.com/iliyamo/craft-community/internal/queue"
	"github.com/iliyamo/craft-community/internal/repository"
)

func trustHandlerFor(u *mockUserStore, ta *mockTrustAppStore, st *mockStatsStore, rp *mockReputationStore, ev *mockPublisher) *TrustLevelHandler {
	if st == nil {
		st = &mockStatsStore{
			getFn: func(context.Context, uint64) (model.PlayerStats, error) {
				return model.PlayerStats{}, sql.ErrNoRows
			},
		}
	}
	if rp == nil {
		rp = &mockReputationStore{
			getRecordFn: func(_ context.Context, userID uint64) (model.ReputationRecord, error) {
				return model.ReputationRecord{UserID: userID}, nil
			},
		}
	}
	if ev == nil {
		ev = &mockPublisher{}
	}
	return NewTrustLevelHandler(u, ta, st, rp, ev)
}

func TestTrustLevelHandler_Eligibility(t *testing.T) {
	t.Run("reports missing requirements for the next level", func(t *testing.T) {
		users := &mockUserStore{
			getByIDFn: func(context.Context, uint64) (model.User, error) {
				return model.User{ID: 7, TrustLevel: 1, IsEmailVerified: true}, nil
			},
		}
		stats := &mockStatsStore{
			getFn: func(context.Context, uint64) (model.PlayerStats, error) {
				return model.PlayerStats{UserID: 7, PlaytimeMinutes: 900}, nil
			},
		}
		rep := &mockReputationStore{
			getRecordFn: func(context.Context, uint64) (model.ReputationRecord, error) {
				return model.ReputationRecord{UserID: 7, Score: 4}, nil
			},
		}
		h := trustHandlerFor(users, &mockTrustAppStore{}, stats, rep, nil)

		c, rec := newJSONContext(t, http.MethodGet, "/v1/trust-level/eligibility", "")
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Eligibility(c)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		out := decodeResponse(t, rec)
		if out["eligible"] != false || out["target_level"] != float64(2) {
			t.Fatalf("unexpected response: %v", out)
		}
		missing := out["missing_requirements"].([]any)
		if len(missing) != 2 {
			t.Fatalf("expected playtime and reputation missing, got %v", missing)
		}
	})

	t.Run("asking about a level further up reports the gap instead of erroring", func(t *testing.T) {
		// A level 1 user who already qualifies for 2 can still ask how far
		// they are from level 3.
		users := &mockUserStore{
			getByIDFn: func(context.Context, uint64) (model.User, error) {
				return model.User{ID: 7, TrustLevel: 1, IsEmailVerified: true}, nil
			},
		}
		stats := &mockStatsStore{
			getFn: func(context.Context, uint64) (model.PlayerStats, error) {
				return model.PlayerStats{UserID: 7, PlaytimeMinutes: 1600}, nil
			},
		}
		rep := &mockReputationStore{
			getRecordFn: func(context.Context, uint64) (model.ReputationRecord, error) {
				return model.ReputationRecord{UserID: 7, Score: 12}, nil
			},
		}
		h := trustHandlerFor(users, &mockTrustAppStore{}, stats, rep, nil)

		c, rec := newJSONContext(t, http.MethodGet, "/v1/trust-level/eligibility?target=3", "")
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Eligibility(c)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		out := decodeResponse(t, rec)
		if out["eligible"] != false || out["target_level"] != float64(3) {
			t.Fatalf("unexpected response: %v", out)
		}
		missing := out["missing_requirements"].([]any)
		if len(missing) != 2 || missing[0] != "playtime_minutes" || missing[1] != "reputation" {
			t.Fatalf("expected playtime and reputation missing, got %v", missing)
		}
	})

	t.Run("malformed target parameter is a 400", func(t *testing.T) {
		users := &mockUserStore{
			getByIDFn: func(context.Context, uint64) (model.User, error) {
				return model.User{ID: 7, TrustLevel: 1, IsEmailVerified: true}, nil
			},
		}
		h := trustHandlerFor(users, &mockTrustAppStore{}, nil, nil, nil)

		c, rec := newJSONContext(t, http.MethodGet, "/v1/trust-level/eligibility?target=veteran", "")
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Eligibility(c)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if out := decodeResponse(t, rec); out["error"] != "validation_error" {
			t.Fatalf("unexpected error: %v", out["error"])
		}
	})

	t.Run("missing stats row counts as zero playtime", func(t *testing.T) {
		users := &mockUserStore{
			getByIDFn: func(context.Context, uint64) (model.User, error) {
				return model.User{ID: 7, TrustLevel: 0}, nil
			},
		}
		h := trustHandlerFor(users, &mockTrustAppStore{}, nil, nil, nil)

		c, rec := newJSONContext(t, http.MethodGet, "/v1/trust-level/eligibility", "")
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Eligibility(c)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		metrics := decodeResponse(t, rec)["metrics"].(map[string]any)
		if metrics["playtime_minutes"] != float64(0) {
			t.Fatalf("expected zero playtime, got %v", metrics["playtime_minutes"])
		}
	})
}

func TestTrustLevelHandler_Apply(t *testing.T) {
	eligibleUsers := &mockUserStore{
		getByIDFn: func(context.Context, uint64) (model.User, error) {
			return model.User{ID: 7, TrustLevel: 1, IsEmailVerified: true}, nil
		},
	}
	richStats := &mockStatsStore{
		getFn: func(context.Context, uint64) (model.PlayerStats, error) {
			return model.PlayerStats{UserID: 7, PlaytimeMinutes: 1600}, nil
		},
	}
	goodRep := &mockReputationStore{
		getRecordFn: func(context.Context, uint64) (model.ReputationRecord, error) {
			return model.ReputationRecord{UserID: 7, Score: 12}, nil
		},
	}

	t.Run("snapshots the metrics at submission", func(t *testing.T) {
		var created model.TrustLevelApplication
		apps := &mockTrustAppStore{
			createFn: func(_ context.Context, a *model.TrustLevelApplication) error {
				a.ID = 5
				a.Status = model.ApplicationPending
				created = *a
				return nil
			},
		}
		h := trustHandlerFor(eligibleUsers, apps, richStats, goodRep, nil)

		c, rec := newJSONContext(t, http.MethodPost, "/v1/trust-level/applications",
			`{"target_level":2,"motivation":"been playing daily"}`)
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Apply(c)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if created.SnapPlaytime != 1600 || created.SnapReputation != 12 || !created.SnapEmailOK {
			t.Fatalf("unexpected snapshot: %+v", created)
		}
		if created.CurrentLevel != 1 || created.RequestedLevel != 2 {
			t.Fatalf("unexpected levels: %+v", created)
		}
	})

	t.Run("ineligible user gets 422 with the gap listed", func(t *testing.T) {
		poorStats := &mockStatsStore{
			getFn: func(context.Context, uint64) (model.PlayerStats, error) {
				return model.PlayerStats{UserID: 7, PlaytimeMinutes: 100}, nil
			},
		}
		h := trustHandlerFor(eligibleUsers, &mockTrustAppStore{}, poorStats, goodRep, nil)

		c, rec := newJSONContext(t, http.MethodPost, "/v1/trust-level/applications",
			`{"target_level":2}`)
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Apply(c)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		out := decodeResponse(t, rec)
		if out["error"] != "not_eligible" {
			t.Fatalf("unexpected error: %v", out["error"])
		}
	})

	t.Run("skipping a level is an invalid transition", func(t *testing.T) {
		h := trustHandlerFor(eligibleUsers, &mockTrustAppStore{}, richStats, goodRep, nil)
		c, rec := newJSONContext(t, http.MethodPost, "/v1/trust-level/applications",
			`{"target_level":3}`)
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Apply(c)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if out := decodeResponse(t, rec); out["error"] != "invalid_transition" {
			t.Fatalf("unexpected error: %v", out["error"])
		}
	})

	t.Run("second pending application is a 409", func(t *testing.T) {
		apps := &mockTrustAppStore{
			createFn: func(context.Context, *model.TrustLevelApplication) error {
				return repository.ErrDuplicatePending
			},
		}
		h := trustHandlerFor(eligibleUsers, apps, richStats, goodRep, nil)
		c, rec := newJSONContext(t, http.MethodPost, "/v1/trust-level/applications",
			`{"target_level":2}`)
		withPrincipal(c, middleware.Principal{UserID: 7})
		_ = h.Apply(c)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if out := decodeResponse(t, rec); out["error"] != "duplicate_pending" {
			t.Fatalf("unexpected error: %v", out["error"])
		}
	})
}

func TestTrustLevelHandler_Review(t *testing.T) {
	t.Run("approval publishes a promotion event", func(t *testing.T) {
		events := &mockPublisher{}
		apps := &mockTrustAppStore{
			reviewFn: func(_ context.Context, appID, reviewerID uint64, approve bool, _ string) (model.TrustLevelApplication, error) {
				if !approve {
					t.Fatal("expected an approval")
				}
				return model.TrustLevelApplication{
					ID: appID, UserID: 7, RequestedLevel: 2,
					Status: model.ApplicationApproved, ReviewerID: &reviewerID,
				}, nil
			},
		}
		h := trustHandlerFor(&mockUserStore{}, apps, nil, nil, events)

		c, rec := newJSONContext(t, http.MethodPost, "/v1/moderation/trust-level/applications/5/review",
			`{"decision":"approved"}`)
		c.SetParamNames("id")
		c.SetParamValues("5")
		withPrincipal(c, middleware.Principal{UserID: 3, Role: model.RoleModerator})
		_ = h.Review(c)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(events.events) != 1 || events.events[0].Kind != queue.TrustLevelPromoted {
			t.Fatalf("expected one promotion event, got %v", events.events)
		}
	})

	t.Run("already reviewed is a 409", func(t *testing.T) {
		apps := &mockTrustAppStore{
			reviewFn: func(context.Context, uint64, uint64, bool, string) (model.TrustLevelApplication, error) {
				return model.TrustLevelApplication{}, repository.ErrAlreadyReviewed
			},
		}
		h := trustHandlerFor(&mockUserStore{}, apps, nil, nil, nil)
		c, rec := newJSONContext(t, http.MethodPost, "/v1/moderation/trust-level/applications/5/review",
			`{"decision":"rejected"}`)
		c.SetParamNames("id")
		c.SetParamValues("5")
		withPrincipal(c, middleware.Principal{UserID: 3, Role: model.RoleModerator})
		_ = h.Review(c)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("rejection publishes nothing", func(t *testing.T) {
		events := &mockPublisher{}
		apps := &mockTrustAppStore{
			reviewFn: func(context.Context, uint64, uint64, bool, string) (model.TrustLevelApplication, error) {
				return model.TrustLevelApplication{Status: model.ApplicationRejected}, nil
			},
		}
		h := trustHandlerFor(&mockUserStore{}, apps, nil, nil, events)
		c, rec := newJSONContext(t, http.MethodPost, "/v1/moderation/trust-level/applications/5/review",
			`{"decision":"rejected"}`)
		c.SetParamNames("id")
		c.SetParamValues("5")
		withPrincipal(c, middleware.Principal{UserID: 3, Role: model.RoleModerator})
		_ = h.Review(c)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(events.events) != 0 {
			t.Fatalf("expected no events, got %v", events.events)
		}
	})
}

func TestTrustLevelHandler_AdminSetLevel(t *testing.T) {
	t.Run("writes the level directly", func(t *testing.T) {
		var gotLevel int
		users := &mockUserStore{
			getByIDFn: func(context.Context, uint64) (model.User, error) {
				return model.User{ID: 7}, nil
			},
			setTrustLevelFn: func(_ context.Context, _ uint64, level int) error {
				gotLevel = level
				return nil
			},
		}
		h := trustHandlerFor(users, &mockTrustAppStore{}, nil, nil, nil)
		c, rec := newJSONContext(t, http.MethodPut, "/v1/admin/users/7/trust-level", `{"level":3}`)
		c.SetParamNames("id")
		c.SetParamValues("7")
		_ = h.AdminSetLevel(c)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if gotLevel != 3 {
			t.Fatalf("expected level 3, got %d", gotLevel)
		}
	})

	t.Run("out of range level is a 400", func(t *testing.T) {
		h := trustHandlerFor(&mockUserStore{}, &mockTrustAppStore{}, nil, nil, nil)
		c, rec := newJSONContext(t, http.MethodPut, "/v1/admin/users/7/trust-level", `{"level":4}`)
		c.SetParamNames("id")
		c.SetParamValues("7")
		_ = h.AdminSetLevel(c)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
